package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/conversation"
)

// FailoverStore wraps a primary (Valkey) store with an in-memory fallback.
// When the primary errors, the call is retried against the fallback so the
// pipeline keeps answering; degradation is logged once per transition, not
// per call.
//
// Handoff reads are the exception: an error from the primary is returned
// as-is, because answering for a conversation an operator may own is worse
// than staying silent.
type FailoverStore struct {
	primary  conversation.Store
	fallback conversation.Store
	degraded atomic.Bool
}

func NewFailoverStore(primary, fallback conversation.Store) *FailoverStore {
	return &FailoverStore{primary: primary, fallback: fallback}
}

func (s *FailoverStore) markDegraded(op string, err error) {
	if s.degraded.CompareAndSwap(false, true) {
		logrus.WithError(err).Warnf("[CONVERSATION] Primary store failed during %s, serving from in-memory fallback", op)
	}
}

func (s *FailoverStore) markHealthy() {
	if s.degraded.CompareAndSwap(true, false) {
		logrus.Info("[CONVERSATION] Primary store recovered")
	}
}

func (s *FailoverStore) AppendMessage(ctx context.Context, tenantID, contactID, role, msgType, content string) error {
	if err := s.primary.AppendMessage(ctx, tenantID, contactID, role, msgType, content); err != nil {
		s.markDegraded("append", err)
		return s.fallback.AppendMessage(ctx, tenantID, contactID, role, msgType, content)
	}
	s.markHealthy()
	return nil
}

func (s *FailoverStore) GetRecentContext(ctx context.Context, tenantID, contactID string, limit int) ([]conversation.StoredMessage, error) {
	msgs, err := s.primary.GetRecentContext(ctx, tenantID, contactID, limit)
	if err != nil {
		s.markDegraded("context read", err)
		return s.fallback.GetRecentContext(ctx, tenantID, contactID, limit)
	}
	s.markHealthy()
	return msgs, nil
}

func (s *FailoverStore) GetLastMessageTime(ctx context.Context, tenantID, contactID string) (*time.Time, error) {
	ts, err := s.primary.GetLastMessageTime(ctx, tenantID, contactID)
	if err != nil {
		s.markDegraded("last message read", err)
		return s.fallback.GetLastMessageTime(ctx, tenantID, contactID)
	}
	s.markHealthy()
	return ts, nil
}

func (s *FailoverStore) ClearContext(ctx context.Context, tenantID, contactID string) error {
	if err := s.primary.ClearContext(ctx, tenantID, contactID); err != nil {
		s.markDegraded("clear", err)
		return s.fallback.ClearContext(ctx, tenantID, contactID)
	}
	s.markHealthy()
	_ = s.fallback.ClearContext(ctx, tenantID, contactID)
	return nil
}

func (s *FailoverStore) SetHumanHandoff(ctx context.Context, tenantID, contactID string, active bool) error {
	// Mirror into the fallback so the flag survives a primary outage.
	err := s.primary.SetHumanHandoff(ctx, tenantID, contactID, active)
	if ferr := s.fallback.SetHumanHandoff(ctx, tenantID, contactID, active); err != nil {
		s.markDegraded("handoff write", err)
		return ferr
	}
	if err == nil {
		s.markHealthy()
	}
	return err
}

func (s *FailoverStore) IsHumanHandoff(ctx context.Context, tenantID, contactID string) (bool, error) {
	active, err := s.primary.IsHumanHandoff(ctx, tenantID, contactID)
	if err != nil {
		// No fallback here. If the flag can't be read the contact's
		// ownership is unknown and the pipeline must stay silent.
		return false, err
	}
	s.markHealthy()
	return active, nil
}

func (s *FailoverStore) MarkSeen(ctx context.Context, messageKey string) (bool, error) {
	first, err := s.primary.MarkSeen(ctx, messageKey)
	if err != nil {
		s.markDegraded("dedup", err)
		return s.fallback.MarkSeen(ctx, messageKey)
	}
	s.markHealthy()
	return first, nil
}
