package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConsensus_HighestSumWins(t *testing.T) {
	votes := []Vote{
		{Agent: RoleStructural, Choice: "keep", Confidence: 0.4},
		{Agent: RoleDesign, Choice: "remove", Confidence: 0.3},
		{Agent: RoleProjectManager, Choice: "remove", Confidence: 0.3},
	}
	assert.Equal(t, "remove", ResolveConsensus([]string{"keep", "remove"}, votes))
}

func TestResolveConsensus_TieBreakOrder(t *testing.T) {
	tests := []struct {
		name  string
		votes []Vote
		want  string
	}{
		{
			name: "structural beats vision",
			votes: []Vote{
				{Agent: RoleVision, Choice: "a", Confidence: 0.5},
				{Agent: RoleStructural, Choice: "b", Confidence: 0.5},
			},
			want: "b",
		},
		{
			name: "vision beats design",
			votes: []Vote{
				{Agent: RoleDesign, Choice: "a", Confidence: 0.7},
				{Agent: RoleVision, Choice: "b", Confidence: 0.7},
			},
			want: "b",
		},
		{
			name: "design beats project manager",
			votes: []Vote{
				{Agent: RoleProjectManager, Choice: "b", Confidence: 0.2},
				{Agent: RoleDesign, Choice: "a", Confidence: 0.2},
			},
			want: "a",
		},
		{
			name: "sums that differ only by rounding still tie",
			votes: []Vote{
				{Agent: RoleVision, Choice: "a", Confidence: 0.1},
				{Agent: RoleDesign, Choice: "a", Confidence: 0.2},
				{Agent: RoleStructural, Choice: "b", Confidence: 0.3},
			},
			want: "b",
		},
		{
			name: "abstention carries no rank",
			votes: []Vote{
				{Agent: RoleVision, Choice: "a", Confidence: 0.5},
				{Agent: RoleStructural, Choice: "b", Confidence: 0},
				{Agent: RoleDesign, Choice: "b", Confidence: 0.5},
			},
			want: "a",
		},
		{
			name: "only abstentions fall back to first option",
			votes: []Vote{
				{Agent: RoleDesign, Choice: "b", Confidence: 0},
				{Agent: RoleStructural, Choice: "a", Confidence: 0},
			},
			want: "a",
		},
		{
			name:  "no votes falls back to first option",
			votes: nil,
			want:  "a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				assert.Equal(t, tt.want, ResolveConsensus([]string{"a", "b"}, tt.votes))
			}
		})
	}
}

func TestCollaborativeDecision_ResolvesWhenAllVoted(t *testing.T) {
	d, err := NewDecision("remove wall?", []string{"yes", "no"}, RoleStructural, RoleDesign)
	require.NoError(t, err)

	done, err := d.AddVote(Vote{Agent: RoleDesign, Choice: "yes", Confidence: 0.9})
	require.NoError(t, err)
	assert.False(t, done)
	_, ok := d.Resolved()
	assert.False(t, ok)

	done, err = d.AddVote(Vote{Agent: RoleStructural, Choice: "no", Confidence: 0.9})
	require.NoError(t, err)
	assert.True(t, done)

	got, ok := d.Resolved()
	require.True(t, ok)
	assert.Equal(t, "no", got)

	_, err = d.AddVote(Vote{Agent: RoleDesign, Choice: "yes", Confidence: 1})
	assert.ErrorIs(t, err, ErrDecisionResolved)
}

func TestCollaborativeDecision_RejectsInvalidVotes(t *testing.T) {
	d, err := NewDecision("q", []string{"x"}, RoleStructural, RoleVision)
	require.NoError(t, err)

	_, err = d.AddVote(Vote{Agent: RoleDesign, Choice: "x"})
	assert.ErrorIs(t, err, ErrRoleNotRequired)

	_, err = d.AddVote(Vote{Agent: RoleVision, Choice: "y"})
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, err = d.AddVote(Vote{Agent: RoleVision, Choice: "x"})
	require.NoError(t, err)
	_, err = d.AddVote(Vote{Agent: RoleVision, Choice: "x"})
	assert.ErrorIs(t, err, ErrDuplicateVote)
	assert.Len(t, d.Votes(), 1)
}

func TestCollaborativeDecision_ConcurrentVotes(t *testing.T) {
	roles := []AgentRole{RoleStructural, RoleVision, RoleDesign}
	d, err := NewDecision("q", []string{"a", "b"}, roles...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, r := range roles {
		wg.Add(1)
		go func(r AgentRole) {
			defer wg.Done()
			_, err := d.AddVote(Vote{Agent: r, Choice: "a", Confidence: 0.5})
			assert.NoError(t, err)
		}(r)
	}
	wg.Wait()

	got, ok := d.Resolved()
	require.True(t, ok)
	assert.Equal(t, "a", got)
}

func TestNewDecision_Validation(t *testing.T) {
	_, err := NewDecision("q", nil, RoleVision)
	assert.Error(t, err)
	_, err = NewDecision("q", []string{"a"})
	assert.Error(t, err)

	d, err := NewDecision("q", []string{"a"}, RoleVision, RoleVision)
	require.NoError(t, err)
	assert.Len(t, d.RequiredAgents, 1)
}

func TestAgentRole_Priority(t *testing.T) {
	assert.Less(t, RoleStructural.Priority(), RoleVision.Priority())
	assert.Less(t, RoleVision.Priority(), RoleDesign.Priority())
	assert.Less(t, RoleDesign.Priority(), RoleProjectManager.Priority())
	assert.False(t, AgentRole("plumber").Valid())

	r, err := ParseRole("design")
	require.NoError(t, err)
	assert.Equal(t, RoleDesign, r)
	_, err = ParseRole("nope")
	assert.Error(t, err)
}
