package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/domain"
)

const (
	DefaultNATSSubject = "cyberdefense.alerts"
	natsConnectTimeout = 10 * time.Second
	natsReconnectWait  = 2 * time.Second
	natsFlushTimeout   = 5 * time.Second
)

// natsPublisher is the subset of *nats.Conn the alerter uses.
type natsPublisher interface {
	PublishMsg(msg *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSAlerter publishes each alert as a JSON message on a NATS subject.
// Headers carry the alert id, threat type and level so subscribers can
// route without decoding the body.
type NATSAlerter struct {
	conn    natsPublisher
	subject string
	mu      sync.Mutex
	closed  bool
}

// NewNATSAlerter connects to url. The connection reconnects on its own
// forever; publishes made while disconnected are buffered by the client.
func NewNATSAlerter(url, subject string) (*NATSAlerter, error) {
	conn, err := nats.Connect(url,
		nats.Name("cyberdefense"),
		nats.Timeout(natsConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	log.Info().Str("url", url).Str("subject", subject).Msg("NATS alerter connected")
	return newNATSAlerter(conn, subject), nil
}

func newNATSAlerter(conn natsPublisher, subject string) *NATSAlerter {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSAlerter{
		conn:    conn,
		subject: subject,
	}
}

func (a *NATSAlerter) Send(ctx context.Context, alert *domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := alert.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", alert.ID, err)
	}

	msg := nats.NewMsg(a.subject)
	msg.Data = data
	msg.Header.Set("x-alert-id", alert.ID)
	msg.Header.Set("x-threat-type", string(alert.ThreatType))
	msg.Header.Set("x-level", string(alert.Level))

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("publish alert %s: alerter closed", alert.ID)
	}
	if err := a.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.ID, err)
	}
	return nil
}

func (a *NATSAlerter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.conn.FlushTimeout(natsFlushTimeout)
}

func (a *NATSAlerter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.conn.Close()
	return nil
}

func (a *NATSAlerter) Subject() string {
	return a.subject
}
