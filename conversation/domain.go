// Package conversation defines the per-tenant, per-contact message log and
// the human-handoff flag. The working window lives in a fast keyed store
// (capped list, TTL'd); insertion order is the only conversational memory
// the agent sees.
package conversation

import (
	"context"
	"time"
)

// Roles for stored messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// StoredMessage is one immutable entry in a contact's context window.
type StoredMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the conversation memory contract.
//
// IsHumanHandoff gates every inbound message: while it reports true the AI
// must stay silent for that contact. Callers must treat a read error as
// "unknown owner" and fail safe toward not replying.
type Store interface {
	AppendMessage(ctx context.Context, tenantID, contactID, role, msgType, content string) error
	GetRecentContext(ctx context.Context, tenantID, contactID string, limit int) ([]StoredMessage, error)
	GetLastMessageTime(ctx context.Context, tenantID, contactID string) (*time.Time, error)
	ClearContext(ctx context.Context, tenantID, contactID string) error

	SetHumanHandoff(ctx context.Context, tenantID, contactID string, active bool) error
	IsHumanHandoff(ctx context.Context, tenantID, contactID string) (bool, error)

	// MarkSeen records a provider message id and reports whether this is the
	// first delivery. Duplicate webhook deliveries return false.
	MarkSeen(ctx context.Context, messageKey string) (bool, error)
}

// Options bound the working window.
type Options struct {
	ContextLimit int           // max messages kept per contact
	ContextTTL   time.Duration // idle expiry of the message list
	HandoffTTL   time.Duration // expiry of the handoff flag
	DedupTTL     time.Duration // retention of seen message ids
}

// WithDefaults fills unset options with the product defaults
// (50 messages, 7 days idle, 24h handoff and dedup windows).
func (o Options) WithDefaults() Options {
	if o.ContextLimit <= 0 {
		o.ContextLimit = 50
	}
	if o.ContextTTL <= 0 {
		o.ContextTTL = 7 * 24 * time.Hour
	}
	if o.HandoffTTL <= 0 {
		o.HandoffTTL = 24 * time.Hour
	}
	if o.DedupTTL <= 0 {
		o.DedupTTL = 24 * time.Hour
	}
	return o
}

// MessagesKey is the canonical key shape for a contact's context window.
func MessagesKey(tenantID, contactID string) string {
	return "tenant:" + tenantID + ":contact:" + contactID + ":messages"
}

// HandoffKey is the canonical key shape for the handoff flag.
func HandoffKey(tenantID, contactID string) string {
	return "tenant:" + tenantID + ":contact:" + contactID + ":human_handoff"
}
