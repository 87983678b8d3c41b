package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/memory"
)

// ErrNotFound is returned for unknown conversation ids.
var ErrNotFound = errors.New("conversation not found")

// Conversation is one user's dialogue with the team of roles.
type Conversation struct {
	ID        string
	CreatedAt time.Time

	memory *memory.Store
	clock  core.Clock

	mu        sync.RWMutex
	analysis  *core.RoomAnalysis
	updatedAt time.Time
}

// Memory returns the conversation's per-role history.
func (c *Conversation) Memory() *memory.Store { return c.memory }

// Analysis returns a copy of the latest RoomAnalysis, if any.
func (c *Conversation) Analysis() (*core.RoomAnalysis, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.analysis == nil {
		return nil, false
	}
	a := c.analysis.Clone()
	return &a, true
}

// SetAnalysis supersedes the stored analysis with a copy of a.
func (c *Conversation) SetAnalysis(a core.RoomAnalysis) {
	cp := a.Clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analysis = &cp
	c.updatedAt = c.clock.Now()
}

// Touch records activity on the conversation.
func (c *Conversation) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updatedAt = c.clock.Now()
}

// UpdatedAt returns the time of the last recorded activity.
func (c *Conversation) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Snapshot copies the conversation state.
func (c *Conversation) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt(),
		Histories: make(map[core.AgentRole][]core.AgentMessage),
	}
	if a, ok := c.Analysis(); ok {
		snap.Analysis = a
	}
	for _, role := range c.memory.Roles() {
		turns, err := c.memory.Recent(role, c.memory.MaxTurns())
		if err == nil && len(turns) > 0 {
			snap.Histories[role] = turns
		}
	}
	return snap
}

// Snapshot is a by-value copy of a conversation. System messages are not
// part of it; they are rebuilt from configuration on restore.
type Snapshot struct {
	ID        string                                 `json:"id"`
	CreatedAt time.Time                              `json:"created_at"`
	UpdatedAt time.Time                              `json:"updated_at"`
	Analysis  *core.RoomAnalysis                     `json:"analysis,omitempty"`
	Histories map[core.AgentRole][]core.AgentMessage `json:"histories,omitempty"`
}

// Mirror persists snapshots outside the process.
type Mirror interface {
	Save(ctx context.Context, snap Snapshot) error
	// Load returns ErrNotFound when no snapshot exists.
	Load(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// DefaultMaxConversations bounds the conversations held in memory.
const DefaultMaxConversations = 1000

// Options configures an InMemoryStore.
type Options struct {
	// Memory configures the memory.Store of every new conversation.
	Memory []func(o *memory.Options)
	Clock  core.Clock
	Mirror Mirror
	// MaxConversations bounds the store; the least recently used
	// conversation is evicted first. Evicted conversations are restored
	// from the Mirror on the next Get, if one is attached.
	MaxConversations int
}

// InMemoryStore keeps conversations in a process local LRU. It is safe for
// concurrent access.
type InMemoryStore struct {
	opts Options

	mu            sync.RWMutex
	conversations *lru.Cache[string, *Conversation]
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	if opts.MaxConversations <= 0 {
		opts.MaxConversations = DefaultMaxConversations
	}
	// lru.New only fails for a non-positive size.
	conversations, _ := lru.New[string, *Conversation](opts.MaxConversations)
	return &InMemoryStore{opts: opts, conversations: conversations}
}

// Create starts a conversation with a fresh id.
func (s *InMemoryStore) Create() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(core.NewID())
}

// Get returns the conversation with id. On a miss the Mirror, if any, is
// consulted and a found snapshot is restored into memory.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	c, ok := s.conversations.Get(id)
	s.mu.RUnlock()
	if ok {
		return c, nil
	}
	if s.opts.Mirror == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	snap, err := s.opts.Mirror.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations.Get(id); ok {
		return c, nil
	}
	return s.restoreLocked(snap)
}

// GetOrCreate returns the conversation with id, creating it when id is
// empty or unknown.
func (s *InMemoryStore) GetOrCreate(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		return s.Create(), nil
	}
	c, err := s.Get(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations.Get(id); ok {
		return c, nil
	}
	return s.createLocked(id), nil
}

// Sync writes a snapshot of c to the Mirror. Without a mirror it is a no-op.
func (s *InMemoryStore) Sync(ctx context.Context, c *Conversation) error {
	if s.opts.Mirror == nil {
		return nil
	}
	return s.opts.Mirror.Save(ctx, c.Snapshot())
}

// Delete forgets the conversation here and in the Mirror.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	ok := s.conversations.Remove(id)
	s.mu.Unlock()

	if s.opts.Mirror != nil {
		err := s.opts.Mirror.Delete(ctx, id)
		if err == nil || (ok && errors.Is(err, ErrNotFound)) {
			return nil
		}
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Len returns the number of conversations held in memory.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversations.Len()
}

// createLocked allocates and stores a conversation; caller must hold the
// write lock.
func (s *InMemoryStore) createLocked(id string) *Conversation {
	now := s.opts.Clock.Now()
	memOpts := append([]func(o *memory.Options){func(o *memory.Options) { o.Clock = s.opts.Clock }}, s.opts.Memory...)
	c := &Conversation{
		ID:        id,
		CreatedAt: now,
		memory:    memory.NewStore(memOpts...),
		clock:     s.opts.Clock,
		updatedAt: now,
	}
	s.conversations.Add(id, c)
	return c
}

func (s *InMemoryStore) restoreLocked(snap Snapshot) (*Conversation, error) {
	c := s.createLocked(snap.ID)
	c.CreatedAt, c.updatedAt = snap.CreatedAt, snap.UpdatedAt
	if snap.Analysis != nil {
		a := snap.Analysis.Clone()
		c.analysis = &a
	}
	for role, turns := range snap.Histories {
		if err := c.memory.AppendExchange(role, turns...); err != nil {
			s.conversations.Remove(snap.ID)
			return nil, fmt.Errorf("restore %s: %w", snap.ID, err)
		}
	}
	return c, nil
}
