package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/HerbHall/bambulink/internal/cloud"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is one live broker connection subscribed to the printer's report
// topic.
type Session interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// Dialer opens sessions. onMessage receives report payloads in arrival
// order; onLost is called at most once when the session drops.
type Dialer interface {
	Dial(ctx context.Context, onMessage func([]byte), onLost func(error)) (Session, error)
}

// PahoDialer dials the printer's broker over TLS.
type PahoDialer struct {
	cfg    Config
	logger *zap.Logger
}

// NewPahoDialer creates a dialer for cfg.
func NewPahoDialer(cfg Config, logger *zap.Logger) *PahoDialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PahoDialer{cfg: cfg, logger: logger}
}

// brokerHost returns the broker to dial: the printer itself in local mode,
// the regional cloud broker otherwise.
func (d *PahoDialer) brokerHost() string {
	if d.cfg.Mode == ModeCloud {
		return cloud.MQTTHost(d.cfg.Region)
	}
	return d.cfg.Host
}

// credentials returns the broker username and password for the mode.
func (d *PahoDialer) credentials() (string, string) {
	if d.cfg.Mode != ModeCloud {
		return localUsername, d.cfg.AccessCode
	}
	user := d.cfg.Username
	if name, err := cloud.UsernameFromToken(d.cfg.Token); err == nil {
		user = name
	} else {
		d.logger.Debug("falling back to configured cloud username", zap.Error(err))
	}
	return user, d.cfg.Token
}

func (d *PahoDialer) tlsConfig() (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12}
	if d.cfg.InsecureTLS {
		tc.InsecureSkipVerify = true //nolint:gosec // G402: printers serve self-signed certificates in LAN mode
	}
	if d.cfg.CAFile != "" {
		pem, err := os.ReadFile(d.cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", d.cfg.CAFile)
		}
		tc.RootCAs = pool
	}
	return tc, nil
}

// Dial connects, subscribes to the report topic and returns the session.
func (d *PahoDialer) Dial(ctx context.Context, onMessage func([]byte), onLost func(error)) (Session, error) {
	tc, err := d.tlsConfig()
	if err != nil {
		return nil, err
	}
	user, pass := d.credentials()
	broker := "ssl://" + d.brokerHost() + ":" + strconv.Itoa(d.cfg.Port)

	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("bambulink-" + uuid.NewString()).
		SetUsername(user).
		SetPassword(pass).
		SetTLSConfig(tc).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetOrderMatters(true).
		SetKeepAlive(d.cfg.KeepAlive).
		SetConnectTimeout(d.cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { onLost(err) })

	client := pahomqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		client.Disconnect(0)
		if errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) || errors.Is(err, packets.ErrorRefusedNotAuthorised) {
			return nil, fmt.Errorf("connect %s: %w: %w", broker, ErrAuthRefused, err)
		}
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}

	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) { onMessage(msg.Payload()) }
	if err := wait(ctx, client.Subscribe(d.cfg.reportTopic(), 0, handler)); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("subscribe %s: %w", d.cfg.reportTopic(), err)
	}

	d.logger.Info("mqtt session established",
		zap.String("broker", broker),
		zap.String("mode", d.cfg.Mode),
	)
	return &pahoSession{client: client}, nil
}

type pahoSession struct {
	client pahomqtt.Client
}

func (s *pahoSession) Publish(ctx context.Context, topic string, payload []byte) error {
	return wait(ctx, s.client.Publish(topic, 0, false, payload))
}

func (s *pahoSession) Close() {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

// wait blocks until a paho token completes or ctx ends.
func wait(ctx context.Context, t pahomqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
