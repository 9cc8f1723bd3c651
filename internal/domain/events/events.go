// Package events defines domain events and the publisher contract.
// Events are written to the transactional outbox inside the business
// transaction; delivery to external consumers (notification and reporting
// layers) is the relay's problem, never the engine's.
package events

import (
	"context"

	"stockbook/internal/core/id"
)

// Event types emitted by the engine.
const (
	TypeStocktakeApproved    = "StocktakeApproved"
	TypePeriodReopened       = "PeriodReopened"
	TypeMissingPriorSnapshot = "MissingPriorSnapshot"
	TypeVarianceAlert        = "VarianceAlert"
	TypeLateMovement         = "LateMovement"
)

// DomainEvent represents an event to be published via the outbox.
type DomainEvent struct {
	AggregateType string // e.g. "Stocktake", "Period"
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher writes events to the transactional outbox.
// Must be called inside a transaction context.
type Publisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	PublishBatch(ctx context.Context, events []DomainEvent) error
}

// NopPublisher discards events. Used in tests and tools that run outside
// the outbox pipeline.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event DomainEvent) error        { return nil }
func (NopPublisher) PublishBatch(ctx context.Context, events []DomainEvent) error { return nil }
