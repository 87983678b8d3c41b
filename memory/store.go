package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/archmesh/core"
)

// DefaultMaxTurns is the default number of non-system messages retained per role.
const DefaultMaxTurns = 10

var (
	// ErrUnknownRole is returned for roles that have no history partition.
	ErrUnknownRole = errors.New("unknown agent role")
	// ErrSystemMessage is returned when a system message is appended as a turn.
	ErrSystemMessage = errors.New("system messages cannot be appended as turns")
)

// Options configures a Store.
type Options struct {
	// MaxTurns bounds the retained non-system messages per role (K).
	MaxTurns int
	// SystemPrompts overrides the built-in system prompt for selected roles.
	SystemPrompts map[core.AgentRole]string
	// Roles restricts the partitions created; defaults to core.AllRoles().
	Roles []core.AgentRole
	// Clock stamps system messages; defaults to core.SystemClock.
	Clock core.Clock
}

// history is one role's partition: the permanent system message followed by
// at most maxTurns messages in arrival order.
type history struct {
	mu     sync.Mutex
	system core.AgentMessage
	turns  []core.AgentMessage
}

// Store is a process-local ConversationHistory keyed by AgentRole.
//
// Concurrency: the partition map is never mutated after NewStore, so lookups
// are lock free; each partition has its own mutex. Appends for different
// roles never contend.
type Store struct {
	maxTurns  int
	histories map[core.AgentRole]*history
}

// NewStore creates a store with one partition per role.
func NewStore(optFns ...func(o *Options)) *Store {
	opts := Options{
		MaxTurns: DefaultMaxTurns,
		Roles:    core.AllRoles(),
		Clock:    core.SystemClock{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}

	now := opts.Clock.Now()
	s := &Store{maxTurns: opts.MaxTurns, histories: make(map[core.AgentRole]*history, len(opts.Roles))}
	for _, r := range opts.Roles {
		prompt := core.DefaultSystemPrompt(r)
		if p, ok := opts.SystemPrompts[r]; ok && p != "" {
			prompt = p
		}
		s.histories[r] = &history{
			system: core.NewMessage(core.MessageRoleSystem, r, prompt, now),
			turns:  make([]core.AgentMessage, 0, opts.MaxTurns),
		}
	}
	return s
}

// MaxTurns returns K, the retained non-system message bound.
func (s *Store) MaxTurns() int { return s.maxTurns }

func (s *Store) partition(role core.AgentRole) (*history, error) {
	h, ok := s.histories[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return h, nil
}

// Append adds one message to the role's history, evicting the oldest
// non-system messages beyond the bound.
func (s *Store) Append(role core.AgentRole, msg core.AgentMessage) error {
	return s.AppendExchange(role, msg)
}

// AppendExchange appends messages atomically: either all of them become
// visible together or none do.
func (s *Store) AppendExchange(role core.AgentRole, msgs ...core.AgentMessage) error {
	h, err := s.partition(role)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if m.Role == core.MessageRoleSystem {
			return ErrSystemMessage
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range msgs {
		m.AgentRole = role
		h.turns = append(h.turns, m)
	}
	if over := len(h.turns) - s.maxTurns; over > 0 {
		// FIFO eviction; copy so the backing array does not grow without bound.
		kept := make([]core.AgentMessage, s.maxTurns, cap(h.turns))
		copy(kept, h.turns[over:])
		h.turns = kept
	}
	return nil
}

// Recent returns up to n of the most recent non-system messages, oldest first.
// n <= 0 returns all retained turns.
func (s *Store) Recent(role core.AgentRole, n int) ([]core.AgentMessage, error) {
	h, err := s.partition(role)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if n > 0 && n < len(h.turns) {
		start = len(h.turns) - n
	}
	return append([]core.AgentMessage(nil), h.turns[start:]...), nil
}

// History returns a snapshot of the full ConversationHistory: the system
// message first, followed by the retained turns.
func (s *Store) History(role core.AgentRole) ([]core.AgentMessage, error) {
	h, err := s.partition(role)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]core.AgentMessage, 0, len(h.turns)+1)
	out = append(out, h.system)
	return append(out, h.turns...), nil
}

// SystemPrompt returns the role's permanent system message.
func (s *Store) SystemPrompt(role core.AgentRole) (core.AgentMessage, error) {
	h, err := s.partition(role)
	if err != nil {
		return core.AgentMessage{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.system, nil
}

// Clear resets the role's history to just its system message.
func (s *Store) Clear(role core.AgentRole) error {
	h, err := s.partition(role)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = make([]core.AgentMessage, 0, s.maxTurns)
	return nil
}

// Len returns the total number of messages including the system message.
func (s *Store) Len(role core.AgentRole) int {
	h, err := s.partition(role)
	if err != nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns) + 1
}

// Roles lists the roles that have a partition, in priority order.
func (s *Store) Roles() []core.AgentRole {
	out := make([]core.AgentRole, 0, len(s.histories))
	for _, r := range core.AllRoles() {
		if _, ok := s.histories[r]; ok {
			out = append(out, r)
		}
	}
	return out
}
