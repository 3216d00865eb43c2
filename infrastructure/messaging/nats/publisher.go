// Package nats publishes clustering outcome events on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/events"
)

// SubjectPrefix prefixes every event type.
const SubjectPrefix = "plaquems."

// Conn is the subset of *nats.Conn used by Publisher.
type Conn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// Connect dials the server with reconnects enabled.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("plaquems-clustering"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// Publisher implements ports.EventPublisher over core NATS.
type Publisher struct {
	conn   Conn
	logger *zap.Logger
}

// NewPublisher creates a new NATS publisher
func NewPublisher(conn Conn, logger *zap.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Subject maps an event type to its subject.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// Publish sends the event and flushes so that a returned nil means the
// server received it.
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.GetEventType(), err)
	}

	msg := nats.NewMsg(Subject(event.GetEventType()))
	msg.Data = data
	msg.Header.Set("Aggregate-Id", event.GetAggregateID())

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", msg.Subject, err)
	}

	p.logger.Debug("Event published to NATS", zap.String("subject", msg.Subject))
	return nil
}

var _ ports.EventPublisher = (*Publisher)(nil)
