package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	// ErrDuplicateVote is returned when a role votes twice on one decision.
	ErrDuplicateVote = errors.New("role already voted")
	// ErrUnknownOption is returned when a vote names an option not offered.
	ErrUnknownOption = errors.New("unknown option")
	// ErrRoleNotRequired is returned when a role outside RequiredAgents votes.
	ErrRoleNotRequired = errors.New("role is not required for this decision")
	// ErrDecisionResolved is returned when voting on an already resolved decision.
	ErrDecisionResolved = errors.New("decision already resolved")
	// ErrInvalidDecision is returned for decisions without options or roles.
	ErrInvalidDecision = errors.New("invalid decision")
)

// Vote is a single specialist's choice on a CollaborativeDecision.
type Vote struct {
	Agent      AgentRole `json:"agent"`
	Choice     string    `json:"choice"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
}

// CollaborativeDecision gathers votes from a fixed set of roles. It is only
// mutated by appending votes and resolves exactly when every required role
// has voted. Safe for concurrent use.
type CollaborativeDecision struct {
	ID             string
	Question       string
	Options        []string
	RequiredAgents []AgentRole

	mu       sync.RWMutex
	votes    []Vote
	resolved *string
}

// NewDecision creates an unresolved decision. Duplicate required roles are
// collapsed.
func NewDecision(question string, options []string, required ...AgentRole) (*CollaborativeDecision, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("%w: %q has no options", ErrInvalidDecision, question)
	}
	if len(required) == 0 {
		return nil, fmt.Errorf("%w: %q has no required agents", ErrInvalidDecision, question)
	}
	seen := map[AgentRole]bool{}
	roles := make([]AgentRole, 0, len(required))
	for _, r := range required {
		if seen[r] {
			continue
		}
		seen[r] = true
		roles = append(roles, r)
	}
	return &CollaborativeDecision{
		ID:             NewID(),
		Question:       question,
		Options:        append([]string(nil), options...),
		RequiredAgents: roles,
	}, nil
}

// AddVote appends a vote and reports whether the decision is now resolved.
func (d *CollaborativeDecision) AddVote(v Vote) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.resolved != nil {
		return true, ErrDecisionResolved
	}
	if !d.requires(v.Agent) {
		return false, fmt.Errorf("%w: %s", ErrRoleNotRequired, v.Agent)
	}
	if !d.hasOption(v.Choice) {
		return false, fmt.Errorf("%w: %q", ErrUnknownOption, v.Choice)
	}
	for _, existing := range d.votes {
		if existing.Agent == v.Agent {
			return false, fmt.Errorf("%w: %s", ErrDuplicateVote, v.Agent)
		}
	}
	d.votes = append(d.votes, v)

	if len(d.votes) == len(d.RequiredAgents) {
		choice := ResolveConsensus(d.Options, d.votes)
		d.resolved = &choice
		return true, nil
	}
	return false, nil
}

// Votes returns a copy of the votes cast so far in arrival order.
func (d *CollaborativeDecision) Votes() []Vote {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Vote(nil), d.votes...)
}

// Resolved returns the chosen option once all required roles have voted.
func (d *CollaborativeDecision) Resolved() (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.resolved == nil {
		return "", false
	}
	return *d.resolved, true
}

// MarshalJSON renders a snapshot of the decision.
func (d *CollaborativeDecision) MarshalJSON() ([]byte, error) {
	resolved, ok := d.Resolved()
	snap := struct {
		ID             string      `json:"id"`
		Question       string      `json:"question"`
		Options        []string    `json:"options"`
		RequiredAgents []AgentRole `json:"required_agents"`
		Votes          []Vote      `json:"votes"`
		Resolved       *string     `json:"resolved"`
	}{
		ID:             d.ID,
		Question:       d.Question,
		Options:        d.Options,
		RequiredAgents: d.RequiredAgents,
		Votes:          d.Votes(),
	}
	if ok {
		snap.Resolved = &resolved
	}
	return json.Marshal(snap)
}

func (d *CollaborativeDecision) requires(r AgentRole) bool {
	for _, req := range d.RequiredAgents {
		if req == r {
			return true
		}
	}
	return false
}

func (d *CollaborativeDecision) hasOption(o string) bool {
	for _, opt := range d.Options {
		if opt == o {
			return true
		}
	}
	return false
}

// ResolveConsensus picks the option with the highest summed confidence,
// compared in thousandths so that sums like 0.1+0.2 and 0.3 tie. Ties go to
// the option backed by the highest-priority role (structural first), then to
// the earlier option. Zero-confidence votes add no rank. Always returns an
// option when options is non-empty.
func ResolveConsensus(options []string, votes []Vote) string {
	if len(options) == 0 {
		return ""
	}
	type tally struct {
		score int64
		rank  int
	}
	tallies := make(map[string]*tally, len(options))
	for _, o := range options {
		tallies[o] = &tally{rank: len(priorityOrder) + 1}
	}
	for _, v := range votes {
		t, ok := tallies[v.Choice]
		if !ok {
			continue
		}
		milli := int64(math.Round(v.Confidence * 1000))
		if milli <= 0 {
			continue
		}
		t.score += milli
		if p := v.Agent.Priority(); p < t.rank {
			t.rank = p
		}
	}

	best := options[0]
	for _, o := range options[1:] {
		cur, top := tallies[o], tallies[best]
		switch {
		case cur.score > top.score:
			best = o
		case cur.score == top.score && cur.rank < top.rank:
			best = o
		}
	}
	return best
}
