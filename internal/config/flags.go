package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/pflag"
)

// maxIntervalSeconds is the largest --update-interval that fits a
// time.Duration.
const maxIntervalSeconds = uint64(math.MaxInt64 / int64(time.Second))

var (
	// ErrUsage marks invalid command lines and missing required settings.
	ErrUsage = errors.New("usage")
	// ErrVersion is returned by Parse when --version was given.
	ErrVersion = errors.New("version requested")
)

// Parse builds the configuration for a command line. Flags override the
// config file and environment only when explicitly set. --help yields
// pflag.ErrHelp after printing usage to out.
func Parse(name string, args []string, out io.Writer) (*Config, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s -u USER -i HUB_IP [flags]\n\n", name)
		fs.PrintDefaults()
	}

	user := fs.StringP("user", "u", "", "Tapo username (e-mail)")
	hubIP := fs.StringP("hub-ip", "i", "", "hub IP address")
	device := fs.StringP("device", "s", "", "device identifier (if not unique)")
	interval := fs.Uint64P("update-interval", "n", 120, "update interval (in seconds)")
	level := fs.StringP("log-level", "l", "info", "log level (off, error, warn, info, debug, trace)")
	configPath := fs.StringP("config", "c", "", "optional TOML config file")
	version := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *version {
		return nil, ErrVersion
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}

	if *configPath != "" {
		if _, err := os.Stat(*configPath); err != nil {
			return nil, fmt.Errorf("%w: config file: %v", ErrUsage, err)
		}
	}
	cfg, err := Load(*configPath)
	if err != nil {
		return nil, err
	}

	if fs.Changed("user") {
		cfg.Hub.Username = *user
	}
	if fs.Changed("hub-ip") {
		cfg.Hub.Address = *hubIP
	}
	if fs.Changed("device") {
		cfg.Hub.Device = *device
	}
	if fs.Changed("update-interval") {
		if *interval > maxIntervalSeconds {
			fs.Usage()
			return nil, fmt.Errorf("%w: update interval must be at most %d seconds", ErrUsage, maxIntervalSeconds)
		}
		cfg.Hub.PollInterval = Duration{time.Duration(*interval) * time.Second}
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *level
	}

	if err := cfg.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing required settings and out-of-range timings.
func (c *Config) Validate() error {
	if c.Hub.Username == "" {
		return fmt.Errorf("%w: --user is required", ErrUsage)
	}
	if c.Hub.Address == "" {
		return fmt.Errorf("%w: --hub-ip is required", ErrUsage)
	}
	if c.Hub.PollInterval.Duration <= 0 {
		return fmt.Errorf("%w: update interval must be positive", ErrUsage)
	}
	if c.Hub.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", ErrUsage)
	}
	if c.Hub.FetchTimeout.Duration < 0 {
		return fmt.Errorf("%w: fetch timeout must not be negative", ErrUsage)
	}
	return nil
}
