// Command tapo-statusbar prints the temperature and humidity of a Tapo
// sensor paired with an H100 hub as one status-bar line per poll.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sweeney/tapo-statusbar/internal/config"
	"github.com/sweeney/tapo-statusbar/internal/credential"
	"github.com/sweeney/tapo-statusbar/internal/logger"
	"github.com/sweeney/tapo-statusbar/internal/poll"
	"github.com/sweeney/tapo-statusbar/internal/publisher"
	"github.com/sweeney/tapo-statusbar/internal/tapo"
)

const progName = "tapo-statusbar"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// deps holds everything run talks to outside the process.
type deps struct {
	store        credential.Store
	prompter     credential.Prompter
	connect      func(context.Context, tapo.Options) (tapo.Session, error)
	newPublisher func(config.MQTTConfig) (publisher.Publisher, error)
}

func defaultDeps() deps {
	return deps{
		store:    credential.KeyringStore{},
		prompter: credential.NewTermPrompter(),
		connect: func(ctx context.Context, opts tapo.Options) (tapo.Session, error) {
			c, err := tapo.Connect(ctx, opts)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		newPublisher: func(cfg config.MQTTConfig) (publisher.Publisher, error) {
			p, err := publisher.NewMQTTPublisher(cfg)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 on clean shutdown, 1 for startup
// failures, 2 for bad command lines or configuration.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, d deps) int {
	cfg, err := config.Parse(progName, args, stderr)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, config.ErrVersion):
		fmt.Fprintf(stdout, "%s %s\n", progName, version)
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "%s: %v\n", progName, err)
		return 2
	}

	log, err := logger.NewWithWriter(cfg.Log.Level, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", progName, err)
		return 2
	}
	defer log.Sync() //nolint:errcheck

	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	if err := serve(ctx, cfg, stdout, log, d); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", progName, err)
		return 1
	}
	return 0
}

// serve performs the one-time startup steps and then polls until ctx is
// cancelled.
func serve(ctx context.Context, cfg *config.Config, stdout io.Writer, log *zap.SugaredLogger, d deps) error {
	resolver := &credential.Resolver{
		Service:  cfg.Hub.KeyringService,
		Store:    d.store,
		Prompter: d.prompter,
		Logger:   log,
	}
	cred, err := resolver.Resolve(credential.Account{Username: cfg.Hub.Username})
	if err != nil {
		return fmt.Errorf("resolving password for %s: %w", cfg.Hub.Username, err)
	}

	log.Infof("%s %s starting (hub: %s, interval: %s)", progName, version, cfg.Hub.Address, cfg.Hub.PollInterval)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Hub.ConnectTimeout.Duration)
	defer cancel()

	session, err := d.connect(connectCtx, tapo.Options{
		Address:  cfg.Hub.Address,
		Username: cred.Username,
		Password: cred.Secret,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("connecting to hub at %s: %w", cfg.Hub.Address, err)
	}
	defer session.Close() //nolint:errcheck

	if info, err := session.DeviceInfo(connectCtx); err != nil {
		log.Warnf("reading hub info: %v", err)
	} else {
		log.Infof("Connected to %s named %s (model %s)", info.Type, info.Nickname, info.Model)
	}

	loop := &poll.Loop{
		Session:      session,
		Target:       cfg.Hub.Device,
		Interval:     cfg.Hub.PollInterval.Duration,
		FetchTimeout: cfg.Hub.EffectiveFetchTimeout(),
		Out:          stdout,
		Logger:       log,
	}

	if cfg.MQTT.Enabled() {
		pub, err := d.newPublisher(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT broker %s: %w", cfg.MQTT.Broker, err)
		}
		defer pub.Close() //nolint:errcheck
		loop.Publisher = pub
		loop.PublishConfig = publisher.PublishConfig{
			Prefix:   cfg.MQTT.TopicPrefix,
			Retained: cfg.MQTT.Retained,
		}
		log.Infof("mirroring readings to %s under %s/", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
	}

	if err := loop.Run(ctx); err != nil {
		return err
	}
	log.Info("shutting down")
	return nil
}
