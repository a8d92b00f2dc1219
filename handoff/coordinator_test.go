package handoff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloqachat/aloqa/conversation"
	"github.com/aloqachat/aloqa/conversation/repository"
	"github.com/aloqachat/aloqa/notify"
)

type recordingPublisher struct {
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event notify.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type recordingAlerter struct {
	texts []string
}

func (a *recordingAlerter) AlertOwner(ctx context.Context, tenantID, text string) error {
	a.texts = append(a.texts, text)
	return nil
}

type recordingMarker struct {
	calls int
	last  bool
}

func (m *recordingMarker) SetNeedsHuman(ctx context.Context, tenantID, contactID string, needsHuman bool) error {
	m.calls++
	m.last = needsHuman
	return nil
}

func TestEscalateSetsFlagAndNotifies(t *testing.T) {
	flags := repository.NewMemoryStore(conversation.Options{})
	pub := &recordingPublisher{}
	alerter := &recordingAlerter{}
	marker := &recordingMarker{}
	c := NewCoordinator(flags, marker, pub, alerter)

	require.NoError(t, c.Escalate(context.Background(), "t1", "c1", "Aziz", "Customer complaint detected"))

	active, err := flags.IsHumanHandoff(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.True(t, active)

	require.Len(t, pub.events, 1)
	assert.Equal(t, notify.EventHandoffRequired, pub.events[0].Type)
	assert.Contains(t, pub.events[0].Message, "Aziz")
	assert.Contains(t, pub.events[0].Message, "Customer complaint detected")

	require.Len(t, alerter.texts, 1)
	assert.Contains(t, alerter.texts[0], "HUMAN HANDOFF ALERT")

	assert.Equal(t, 1, marker.calls)
	assert.True(t, marker.last)
}

func TestEscalateIsIdempotent(t *testing.T) {
	flags := repository.NewMemoryStore(conversation.Options{})
	pub := &recordingPublisher{}
	c := NewCoordinator(flags, nil, pub, nil)

	require.NoError(t, c.Escalate(context.Background(), "t1", "c1", "Aziz", "first"))
	require.NoError(t, c.Escalate(context.Background(), "t1", "c1", "Aziz", "second"))

	// Only the first escalation notifies.
	assert.Len(t, pub.events, 1)
}

func TestEscalateSucceedsWhenPublisherFails(t *testing.T) {
	flags := repository.NewMemoryStore(conversation.Options{})
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCoordinator(flags, nil, pub, nil)

	require.NoError(t, c.Escalate(context.Background(), "t1", "c1", "", "reason"))

	active, err := flags.IsHumanHandoff(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestReleaseClearsFlag(t *testing.T) {
	flags := repository.NewMemoryStore(conversation.Options{})
	marker := &recordingMarker{}
	c := NewCoordinator(flags, marker, nil, nil)

	require.NoError(t, c.Escalate(context.Background(), "t1", "c1", "Aziz", "reason"))
	require.NoError(t, c.Release(context.Background(), "t1", "c1"))

	active, err := flags.IsHumanHandoff(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.False(t, active)
	assert.False(t, marker.last)
}
