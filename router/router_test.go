package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/archmesh/core"
)

func TestRoute_DefaultsToCoordinator(t *testing.T) {
	sel := New().Route(Input{Message: "Hello there"})

	assert.Equal(t, core.RoleCoordinator, sel.Primary)
	assert.Empty(t, sel.Collaborators)
	assert.Equal(t, []string{"default"}, sel.Triggers[core.RoleCoordinator])
	assert.Nil(t, sel.Intent)
}

func TestRoute_StructuralWithCoordinator(t *testing.T) {
	sel := New().Route(Input{Message: "Can I remove this wall?"})

	assert.Equal(t, core.RoleStructural, sel.Primary)
	assert.Equal(t, []core.AgentRole{core.RoleCoordinator}, sel.Collaborators)
	assert.Contains(t, sel.Triggers[core.RoleStructural], "term:wall")
	assert.Contains(t, sel.Triggers[core.RoleStructural], "intent:remove_wall")
	require.NotNil(t, sel.Intent)
	assert.Equal(t, core.CommandRemoveWall, sel.Intent.Command)
}

func TestRoute_CapsAtThreeDroppingCoordinator(t *testing.T) {
	sel := New().Route(Input{
		Message: "How much will it cost to remove the wall and repaint in a modern style?",
	})

	assert.Equal(t, core.RoleStructural, sel.Primary)
	assert.Equal(t, []core.AgentRole{core.RoleDesign, core.RoleProjectManager}, sel.Collaborators)
	assert.Len(t, sel.Roles(), MaxRoles)
	assert.NotContains(t, sel.Roles(), core.RoleCoordinator)
}

func TestRoute_CapsLowestPrioritySpecialist(t *testing.T) {
	sel := New().Route(Input{
		Message:  "What is the budget to remove the wall and change the style?",
		HasImage: true,
	})

	assert.Equal(t, []core.AgentRole{core.RoleStructural, core.RoleVision, core.RoleDesign}, sel.Roles())
	_, ok := sel.Triggers[core.RoleProjectManager]
	assert.False(t, ok)
}

func TestRoute_ImageTriggersVision(t *testing.T) {
	sel := New().Route(Input{Message: "What style fits?", HasImage: true})

	assert.Equal(t, core.RoleVision, sel.Primary)
	assert.Equal(t, []core.AgentRole{core.RoleDesign, core.RoleCoordinator}, sel.Collaborators)
	assert.Contains(t, sel.Triggers[core.RoleVision], "image")
}

func TestRoute_AnalysisConfidence(t *testing.T) {
	r := New()

	low := core.RoomAnalysis{OverallConfidence: 0.3}
	sel := r.Route(Input{Message: "hello", Analysis: &low})
	assert.Equal(t, core.RoleVision, sel.Primary)
	assert.Equal(t, []string{"low_confidence_analysis"}, sel.Triggers[core.RoleVision])

	fallback := core.RoomAnalysis{OverallConfidence: 0.9, Fallback: true}
	sel = r.Route(Input{Message: "hello", Analysis: &fallback})
	assert.Equal(t, core.RoleVision, sel.Primary)

	high := core.RoomAnalysis{OverallConfidence: 0.8}
	sel = r.Route(Input{Message: "hello", Analysis: &high})
	assert.Equal(t, core.RoleCoordinator, sel.Primary)
}

func TestRoute_IntentOnlyTrigger(t *testing.T) {
	sel := New().Route(Input{Message: "make it more industrial"})

	assert.Equal(t, core.RoleDesign, sel.Primary)
	assert.Equal(t, []string{"intent:change_style"}, sel.Triggers[core.RoleDesign])
}

func TestRoute_WordBoundaries(t *testing.T) {
	// "sometimes" and "seeing" must not trigger time or see.
	sel := New().Route(Input{Message: "sometimes seeing friends is nice"})
	assert.Equal(t, core.RoleCoordinator, sel.Primary)
}

func TestRoute_Deterministic(t *testing.T) {
	r := New()
	in := Input{Message: "Remove the wall and paint it blue, what's the cost?"}
	first := r.Route(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Route(in))
	}
}
