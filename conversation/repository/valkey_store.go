package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/aloqachat/aloqa/conversation"
	"github.com/aloqachat/aloqa/infrastructure/valkey"
)

// ValkeyStore implements conversation.Store on Valkey. Message lists are
// capped with LTRIM and expire after the idle TTL; the handoff flag and the
// dedup markers carry their own TTLs.
type ValkeyStore struct {
	client *valkey.Client
	opts   valkeyStoreOptions
}

type valkeyStoreOptions struct {
	contextLimit int64
	contextTTL   time.Duration
	handoffTTL   time.Duration
	dedupTTL     time.Duration
}

// NewValkeyStore creates a Valkey-backed conversation store.
func NewValkeyStore(client *valkey.Client, opts conversation.Options) *ValkeyStore {
	o := opts.WithDefaults()
	return &ValkeyStore{
		client: client,
		opts: valkeyStoreOptions{
			contextLimit: int64(o.ContextLimit),
			contextTTL:   o.ContextTTL,
			handoffTTL:   o.HandoffTTL,
			dedupTTL:     o.DedupTTL,
		},
	}
}

func (s *ValkeyStore) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *ValkeyStore) messagesKey(tenantID, contactID string) string {
	return s.client.Key(conversation.MessagesKey(tenantID, contactID))
}

func (s *ValkeyStore) handoffKey(tenantID, contactID string) string {
	return s.client.Key(conversation.HandoffKey(tenantID, contactID))
}

// AppendMessage pushes one message onto the contact's list, trims the list
// to the context limit and refreshes the idle TTL.
func (s *ValkeyStore) AppendMessage(ctx context.Context, tenantID, contactID, role, msgType, content string) error {
	key := s.messagesKey(tenantID, contactID)

	msg := conversation.StoredMessage{
		Role:      role,
		Content:   content,
		Type:      msgType,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	cmds := []valkeylib.Completed{
		s.inner().B().Rpush().Key(key).Element(string(data)).Build(),
		s.inner().B().Ltrim().Key(key).Start(-s.opts.contextLimit).Stop(-1).Build(),
		s.inner().B().Expire().Key(key).Seconds(int64(s.opts.contextTTL.Seconds())).Build(),
	}
	for _, resp := range s.inner().DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}
	return nil
}

// GetRecentContext returns up to limit messages, oldest first.
func (s *ValkeyStore) GetRecentContext(ctx context.Context, tenantID, contactID string, limit int) ([]conversation.StoredMessage, error) {
	if limit <= 0 || int64(limit) > s.opts.contextLimit {
		limit = int(s.opts.contextLimit)
	}
	key := s.messagesKey(tenantID, contactID)

	cmd := s.inner().B().Lrange().Key(key).Start(int64(-limit)).Stop(-1).Build()
	raw, err := s.inner().Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read context: %w", err)
	}

	msgs := make([]conversation.StoredMessage, 0, len(raw))
	for _, item := range raw {
		var m conversation.StoredMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue // skip corrupt entries rather than failing the turn
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// GetLastMessageTime returns the timestamp of the newest entry, or nil when
// the contact has no stored context.
func (s *ValkeyStore) GetLastMessageTime(ctx context.Context, tenantID, contactID string) (*time.Time, error) {
	key := s.messagesKey(tenantID, contactID)

	cmd := s.inner().B().Lindex().Key(key).Index(-1).Build()
	data, err := s.inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read last message: %w", err)
	}

	var m conversation.StoredMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last message: %w", err)
	}
	return &m.Timestamp, nil
}

// ClearContext removes the contact's message list.
func (s *ValkeyStore) ClearContext(ctx context.Context, tenantID, contactID string) error {
	cmd := s.inner().B().Del().Key(s.messagesKey(tenantID, contactID)).Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to clear context: %w", err)
	}
	return nil
}

// SetHumanHandoff flips the handoff flag. Activation carries its own TTL so
// an abandoned escalation eventually releases the conversation back to the AI.
func (s *ValkeyStore) SetHumanHandoff(ctx context.Context, tenantID, contactID string, active bool) error {
	key := s.handoffKey(tenantID, contactID)

	var cmd valkeylib.Completed
	if active {
		cmd = s.inner().B().Set().Key(key).Value("1").Ex(s.opts.handoffTTL).Build()
	} else {
		cmd = s.inner().B().Del().Key(key).Build()
	}
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set handoff flag: %w", err)
	}
	return nil
}

// IsHumanHandoff reads the handoff flag. Errors must be treated by callers
// as "owner unknown" (fail toward silence).
func (s *ValkeyStore) IsHumanHandoff(ctx context.Context, tenantID, contactID string) (bool, error) {
	cmd := s.inner().B().Get().Key(s.handoffKey(tenantID, contactID)).Build()
	val, err := s.inner().Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read handoff flag: %w", err)
	}
	return val == "1", nil
}

// MarkSeen is a SET NX with TTL on the provider message id. The first
// delivery wins; replays observe the existing marker and return false.
func (s *ValkeyStore) MarkSeen(ctx context.Context, messageKey string) (bool, error) {
	key := s.client.Key("seen", messageKey)
	cmd := s.inner().B().Set().Key(key).Value("1").Nx().Ex(s.opts.dedupTTL).Build()

	err := s.inner().Do(ctx, cmd).Error()
	if err != nil {
		if valkey.IsNil(err) {
			return false, nil // NX miss: already seen
		}
		return false, fmt.Errorf("failed to mark message seen: %w", err)
	}
	return true, nil
}
