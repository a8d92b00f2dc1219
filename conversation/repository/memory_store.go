package repository

import (
	"context"
	"sync"
	"time"

	"github.com/aloqachat/aloqa/conversation"
)

// MemoryStore is an in-process implementation of conversation.Store. It is
// functionally equivalent to the Valkey store for a single process but is
// not crash-durable; it backs the failover path and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	lists    map[string][]conversation.StoredMessage
	handoffs map[string]time.Time // key -> expiry
	seen     map[string]time.Time // message key -> expiry
	opts     conversation.Options
	now      func() time.Time
}

// NewMemoryStore creates an in-memory conversation store.
func NewMemoryStore(opts conversation.Options) *MemoryStore {
	s := &MemoryStore{
		lists:    make(map[string][]conversation.StoredMessage),
		handoffs: make(map[string]time.Time),
		seen:     make(map[string]time.Time),
		opts:     opts.WithDefaults(),
		now:      time.Now,
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) AppendMessage(ctx context.Context, tenantID, contactID, role, msgType, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conversation.MessagesKey(tenantID, contactID)
	list := append(s.lists[key], conversation.StoredMessage{
		Role:      role,
		Content:   content,
		Type:      msgType,
		Timestamp: s.now().UTC(),
	})
	if len(list) > s.opts.ContextLimit {
		list = list[len(list)-s.opts.ContextLimit:]
	}
	s.lists[key] = list
	return nil
}

func (s *MemoryStore) GetRecentContext(ctx context.Context, tenantID, contactID string, limit int) ([]conversation.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.lists[conversation.MessagesKey(tenantID, contactID)]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]conversation.StoredMessage, limit)
	copy(out, list[len(list)-limit:])
	return out, nil
}

func (s *MemoryStore) GetLastMessageTime(ctx context.Context, tenantID, contactID string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.lists[conversation.MessagesKey(tenantID, contactID)]
	if len(list) == 0 {
		return nil, nil
	}
	ts := list[len(list)-1].Timestamp
	return &ts, nil
}

func (s *MemoryStore) ClearContext(ctx context.Context, tenantID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lists, conversation.MessagesKey(tenantID, contactID))
	return nil
}

func (s *MemoryStore) SetHumanHandoff(ctx context.Context, tenantID, contactID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conversation.HandoffKey(tenantID, contactID)
	if active {
		s.handoffs[key] = s.now().Add(s.opts.HandoffTTL)
	} else {
		delete(s.handoffs, key)
	}
	return nil
}

func (s *MemoryStore) IsHumanHandoff(ctx context.Context, tenantID, contactID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.handoffs[conversation.HandoffKey(tenantID, contactID)]
	if !ok {
		return false, nil
	}
	return s.now().Before(expiry), nil
}

func (s *MemoryStore) MarkSeen(ctx context.Context, messageKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[messageKey]; ok && s.now().Before(expiry) {
		return false, nil
	}
	s.seen[messageKey] = s.now().Add(s.opts.DedupTTL)
	return true, nil
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := s.now()
		s.mu.Lock()
		for k, expiry := range s.handoffs {
			if now.After(expiry) {
				delete(s.handoffs, k)
			}
		}
		for k, expiry := range s.seen {
			if now.After(expiry) {
				delete(s.seen, k)
			}
		}
		s.mu.Unlock()
	}
}
