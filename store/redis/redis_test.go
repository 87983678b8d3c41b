package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/session"
)

// setupTestStore connects to the Redis named by REDIS_ADDR and skips
// otherwise.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := New(Config{Addr: addr, Prefix: "archmesh-test:" + t.Name(), TTL: time.Minute})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeys(t *testing.T) {
	s := NewFromClient(goredis.NewClient(&goredis.Options{Addr: "localhost:0"}), Config{})
	defer s.Close()

	assert.Equal(t, "archmesh:conv:abc", s.conversationKey("abc"))
	assert.Equal(t, "archmesh:analysis:abc", s.analysisKey("abc"))
	assert.Equal(t, "archmesh:conversations", s.indexKey())

	custom := NewFromClient(goredis.NewClient(&goredis.Options{Addr: "localhost:0"}), Config{Prefix: "x"})
	defer custom.Close()
	assert.Equal(t, "x:conv:abc", custom.conversationKey("abc"))
}

func TestStore_SaveLoadDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	snap := session.Snapshot{
		ID:        "conv-1",
		CreatedAt: now,
		UpdatedAt: now,
		Analysis:  &core.RoomAnalysis{RoomType: core.RoomBedroom, OverallConfidence: 0.7},
		Histories: map[core.AgentRole][]core.AgentMessage{
			core.RoleDesign: {core.NewMessage(core.MessageRoleUser, core.RoleDesign, "colour?", now)},
		},
	}
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, core.RoomBedroom, got.Analysis.RoomType)
	require.Len(t, got.Histories[core.RoleDesign], 1)
	assert.Equal(t, "colour?", got.Histories[core.RoleDesign][0].Content)

	a, err := s.Analysis(ctx, "conv-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, a.OverallConfidence, 1e-9)

	ids, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Contains(t, ids, "conv-1")

	require.NoError(t, s.Delete(ctx, "conv-1"))
	_, err = s.Load(ctx, "conv-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestStore_RestoresIntoSessionStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := session.NewInMemoryStore(func(o *session.Options) { o.Mirror = s })
	c := first.Create()
	c.SetAnalysis(core.RoomAnalysis{RoomType: core.RoomHallway})
	require.NoError(t, first.Sync(ctx, c))
	t.Cleanup(func() { _ = s.Delete(ctx, c.ID) })

	second := session.NewInMemoryStore(func(o *session.Options) { o.Mirror = s })
	restored, err := second.Get(ctx, c.ID)
	require.NoError(t, err)
	a, ok := restored.Analysis()
	require.True(t, ok)
	assert.Equal(t, core.RoomHallway, a.RoomType)
}
