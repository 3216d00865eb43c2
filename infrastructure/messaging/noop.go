// Package messaging holds the event publisher used when no bus is configured.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/events"
)

// LogPublisher writes events to the log instead of a bus.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a new log-only publisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.logger.Info("Clustering event",
		zap.String("eventType", event.GetEventType()),
		zap.String("selection_key", event.GetAggregateID()),
	)
	return nil
}

var _ ports.EventPublisher = (*LogPublisher)(nil)
