package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloqachat/aloqa/conversation"
)

func TestMemoryStoreAppendAndContext(t *testing.T) {
	store := NewMemoryStore(conversation.Options{})
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "t1", "c1", conversation.RoleUser, "text", "salom"))
	require.NoError(t, store.AppendMessage(ctx, "t1", "c1", conversation.RoleAssistant, "text", "Assalomu alaykum!"))

	msgs, err := store.GetRecentContext(ctx, "t1", "c1", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "salom", msgs[0].Content)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
}

func TestMemoryStoreContextIsCapped(t *testing.T) {
	store := NewMemoryStore(conversation.Options{ContextLimit: 5})
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, store.AppendMessage(ctx, "t1", "c1", conversation.RoleUser, "text", fmt.Sprintf("msg-%d", i)))
	}

	msgs, err := store.GetRecentContext(ctx, "t1", "c1", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	// Oldest entries are evicted, the newest survive in order.
	assert.Equal(t, "msg-7", msgs[0].Content)
	assert.Equal(t, "msg-11", msgs[4].Content)
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	store := NewMemoryStore(conversation.Options{})
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "t1", "c1", conversation.RoleUser, "text", "one"))
	require.NoError(t, store.AppendMessage(ctx, "t2", "c1", conversation.RoleUser, "text", "two"))

	msgs, err := store.GetRecentContext(ctx, "t1", "c1", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "one", msgs[0].Content)
}

func TestMemoryStoreLastMessageTime(t *testing.T) {
	store := NewMemoryStore(conversation.Options{})
	ctx := context.Background()

	ts, err := store.GetLastMessageTime(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.Nil(t, ts)

	require.NoError(t, store.AppendMessage(ctx, "t1", "c1", conversation.RoleUser, "text", "hi"))

	ts, err = store.GetLastMessageTime(ctx, "t1", "c1")
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.WithinDuration(t, time.Now().UTC(), *ts, 2*time.Second)
}

func TestMemoryStoreHandoffFlag(t *testing.T) {
	store := NewMemoryStore(conversation.Options{})
	ctx := context.Background()

	active, err := store.IsHumanHandoff(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, store.SetHumanHandoff(ctx, "t1", "c1", true))

	active, err = store.IsHumanHandoff(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, store.SetHumanHandoff(ctx, "t1", "c1", false))

	active, err = store.IsHumanHandoff(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestMemoryStoreHandoffExpires(t *testing.T) {
	store := NewMemoryStore(conversation.Options{HandoffTTL: time.Hour})
	base := time.Now()
	store.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, store.SetHumanHandoff(ctx, "t1", "c1", true))

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	active, err := store.IsHumanHandoff(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestMemoryStoreMarkSeen(t *testing.T) {
	store := NewMemoryStore(conversation.Options{})
	ctx := context.Background()

	first, err := store.MarkSeen(ctx, "telegram:12345")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = store.MarkSeen(ctx, "telegram:12345")
	require.NoError(t, err)
	assert.False(t, first)

	first, err = store.MarkSeen(ctx, "telegram:12346")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestMemoryStoreClearContext(t *testing.T) {
	store := NewMemoryStore(conversation.Options{})
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "t1", "c1", conversation.RoleUser, "text", "hi"))
	require.NoError(t, store.ClearContext(ctx, "t1", "c1"))

	msgs, err := store.GetRecentContext(ctx, "t1", "c1", 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
