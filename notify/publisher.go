package notify

import (
	"context"
	"time"
)

// Event types emitted by the pipeline.
const (
	EventHandoffRequired = "handoff.required"
	EventSaleDetected    = "sale.detected"
	EventLeadQualified   = "lead.qualified"
)

// Event is one operator-facing notification.
type Event struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	Link       string    `json:"link,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher fans events out to whatever is listening (message broker,
// dashboard, logs). Publishing is best effort: a dead broker must never
// block a customer reply.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
