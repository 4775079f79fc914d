package publisher

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/tapo-statusbar/internal/config"
)

// publishTimeout bounds how long a publish may hold up a poll cycle.
const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("timed out waiting for broker acknowledgement")

// MQTTPublisher wraps paho.mqtt.golang and implements Publisher.
type MQTTPublisher struct {
	client mqtt.Client
	qos    byte
	prefix string
}

// NewMQTTPublisher creates a connected MQTT client. An offline announcement
// on OnlineTopic is registered as the Last Will and Testament, published by
// the broker if the client disconnects unexpectedly.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWill(OnlineTopic(cfg.TopicPrefix), FormatOnline(false), cfg.QOS, true)

	if cfg.TLSCACert != "" {
		tlsCfg, err := newTLSConfig(cfg.TLSCACert)
		if err != nil {
			return nil, fmt.Errorf("loading TLS CA cert %q: %w", cfg.TLSCACert, err)
		}
		opts.SetTLSConfig(tlsCfg)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %q: %w", cfg.Broker, token.Error())
	}
	p := &MQTTPublisher{client: client, qos: cfg.QOS, prefix: cfg.TopicPrefix}
	if err := p.Publish(Message{Topic: OnlineTopic(cfg.TopicPrefix), Payload: FormatOnline(true), Retained: true}); err != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("announcing online state: %w", err)
	}
	return p, nil
}

// Publish sends a single MQTT message and waits, at most publishTimeout,
// for the broker to acknowledge.
func (p *MQTTPublisher) Publish(msg Message) error {
	token := p.client.Publish(msg.Topic, p.qos, msg.Retained, msg.Payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing %s: %w", msg.Topic, errPublishTimeout)
	}
	return token.Error()
}

// Close announces the offline state and disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	err := p.Publish(Message{Topic: OnlineTopic(p.prefix), Payload: FormatOnline(false), Retained: true})
	p.client.Disconnect(250)
	return err
}

// newTLSConfig builds a *tls.Config that trusts caFile as an additional CA.
func newTLSConfig(caFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA cert from %q", caFile)
	}
	return &tls.Config{RootCAs: pool}, nil
}
