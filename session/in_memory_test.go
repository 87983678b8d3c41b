package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/internal/testutil"
	"github.com/hupe1980/archmesh/memory"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type mapMirror struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
}

func newMapMirror() *mapMirror { return &mapMirror{snaps: map[string]Snapshot{}} }

func (m *mapMirror) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = snap
	return nil
}

func (m *mapMirror) Load(_ context.Context, id string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

func (m *mapMirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

func exchange(role core.AgentRole, q, a string) []core.AgentMessage {
	return []core.AgentMessage{
		core.NewMessage(core.MessageRoleUser, role, q, epoch),
		core.NewMessage(core.MessageRoleAssistant, role, a, epoch),
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.Clock = testutil.NewFakeClock(epoch) })
	c := s.Create()
	require.NotEmpty(t, c.ID)
	assert.Equal(t, epoch, c.CreatedAt)

	got, err := s.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetOrCreate(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	a, err := s.GetOrCreate(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", a.ID)
	b, err := s.GetOrCreate(ctx, "kitchen")
	require.NoError(t, err)
	assert.Same(t, a, b)

	fresh, err := s.GetOrCreate(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, "kitchen", fresh.ID)
	assert.Equal(t, 2, s.Len())
}

func TestStore_MemoryOptionsApply(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) {
		o.Memory = append(o.Memory, func(m *memory.Options) { m.MaxTurns = 2 })
	})
	c := s.Create()
	assert.Equal(t, 2, c.Memory().MaxTurns())
}

func TestConversation_AnalysisIsCopied(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	c := NewInMemoryStore(func(o *Options) { o.Clock = clock }).Create()

	_, ok := c.Analysis()
	assert.False(t, ok)

	a := core.RoomAnalysis{RoomType: core.RoomBedroom, Elements: []core.ArchitecturalElement{{Kind: core.ElementWall}}}
	clock.Advance(time.Minute)
	c.SetAnalysis(a)
	a.Elements[0].Kind = core.ElementDoor

	got, ok := c.Analysis()
	require.True(t, ok)
	assert.Equal(t, core.ElementWall, got.Elements[0].Kind)
	got.Elements[0].Kind = core.ElementFloor
	again, _ := c.Analysis()
	assert.Equal(t, core.ElementWall, again.Elements[0].Kind)
	assert.Equal(t, epoch.Add(time.Minute), c.UpdatedAt())

	c.SetAnalysis(core.RoomAnalysis{RoomType: core.RoomHallway})
	latest, _ := c.Analysis()
	assert.Equal(t, core.RoomHallway, latest.RoomType)
}

func TestStore_MirrorRoundTrip(t *testing.T) {
	ctx := context.Background()
	mirror := newMapMirror()
	first := NewInMemoryStore(func(o *Options) { o.Mirror = mirror })

	c := first.Create()
	require.NoError(t, c.Memory().AppendExchange(core.RoleStructural, exchange(core.RoleStructural, "beam?", "yes")...))
	c.SetAnalysis(core.RoomAnalysis{RoomType: core.RoomLivingRoom, OverallConfidence: 0.8})
	require.NoError(t, first.Sync(ctx, c))

	second := NewInMemoryStore(func(o *Options) { o.Mirror = mirror })
	restored, err := second.Get(ctx, c.ID)
	require.NoError(t, err)

	h, err := restored.Memory().History(core.RoleStructural)
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, core.MessageRoleSystem, h[0].Role)
	assert.Equal(t, "yes", h[2].Content)
	a, ok := restored.Analysis()
	require.True(t, ok)
	assert.Equal(t, core.RoomLivingRoom, a.RoomType)

	snap := restored.Snapshot()
	assert.Len(t, snap.Histories, 1)

	require.NoError(t, second.Delete(ctx, c.ID))
	_, err = second.Get(ctx, c.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_DeleteWithoutMirror(t *testing.T) {
	s := NewInMemoryStore()
	c := s.Create()
	require.NoError(t, s.Delete(context.Background(), c.ID))
	assert.ErrorIs(t, s.Delete(context.Background(), c.ID), ErrNotFound)
	assert.Zero(t, s.Len())
}

func TestStore_ConcurrentGetOrCreate(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	got := make([]*Conversation, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.GetOrCreate(context.Background(), "shared")
			if err == nil {
				got[i] = c
			}
		}()
	}
	wg.Wait()
	for _, c := range got {
		assert.Same(t, got[0], c)
	}
	assert.Equal(t, 1, s.Len())
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(func(o *Options) { o.MaxConversations = 2 })

	a, b := s.Create(), s.Create()
	_, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	c := s.Create()

	assert.Equal(t, 2, s.Len())
	_, err = s.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	for _, id := range []string{a.ID, c.ID} {
		_, err := s.Get(ctx, id)
		assert.NoError(t, err)
	}
}

func TestStore_EvictedConversationRestoresFromMirror(t *testing.T) {
	ctx := context.Background()
	mirror := newMapMirror()
	s := NewInMemoryStore(func(o *Options) {
		o.Mirror = mirror
		o.MaxConversations = 1
	})

	first := s.Create()
	require.NoError(t, first.Memory().AppendExchange(core.RoleDesign, exchange(core.RoleDesign, "oak?", "yes")...))
	require.NoError(t, s.Sync(ctx, first))
	s.Create()
	assert.Equal(t, 1, s.Len())

	restored, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.NotSame(t, first, restored)
	assert.Equal(t, 3, restored.Memory().Len(core.RoleDesign))
}
