package conversation

import (
	"context"
	"errors"
	"time"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Record is the durable view of a conversation thread. The Valkey store
// holds the short-lived model context; the archive keeps the full history
// and the rollup fields dashboards query on.
type Record struct {
	ID            string
	TenantID      string
	ContactID     string
	ContactName   string
	Channel       string
	LastIntent    string
	LastSentiment string
	LeadScore     int
	NeedsHuman    bool
	MessageCount  int
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ArchivedMessage is a single message inside a Record.
type ArchivedMessage struct {
	ID             string
	ConversationID string
	Role           string
	Type           string
	Content        string
	CreatedAt      time.Time
}

// RecordFilter narrows ListConversations.
type RecordFilter struct {
	TenantID   string
	Channel    string
	NeedsHuman *bool
	Limit      int
	Offset     int
}

// TurnUpdate carries the per-turn rollup written alongside each archived
// message. Zero-value string fields leave the stored value untouched.
type TurnUpdate struct {
	ContactName string
	Intent      string
	Sentiment   string
	LeadScore   int
}

// Archive is the durable conversation log.
type Archive interface {
	// RecordTurn upserts the conversation for (tenant, contact, channel),
	// appends the message and refreshes the rollup fields.
	RecordTurn(ctx context.Context, tenantID, contactID, channel, role, msgType, content string, update TurnUpdate) error
	SetNeedsHuman(ctx context.Context, tenantID, contactID string, needsHuman bool) error
	GetConversation(ctx context.Context, tenantID, contactID string) (*Record, error)
	ListConversations(ctx context.Context, filter RecordFilter) ([]*Record, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*ArchivedMessage, error)
}
