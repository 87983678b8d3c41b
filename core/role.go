package core

import "fmt"

// AgentRole identifies one of the fixed specialist agents.
type AgentRole string

const (
	// RoleCoordinator handles general conversation and synthesises specialist input.
	RoleCoordinator AgentRole = "coordinator"
	// RoleVision interprets images and RoomAnalysis results.
	RoleVision AgentRole = "vision"
	// RoleDesign covers style, colour and aesthetic questions.
	RoleDesign AgentRole = "design"
	// RoleStructural covers walls, load paths and safety.
	RoleStructural AgentRole = "structural"
	// RoleProjectManager covers budget, cost and timeline questions.
	RoleProjectManager AgentRole = "project_manager"
)

// priorityOrder is the fixed precedence used for fan-out capping and consensus
// tie-breaks. Structural comes first (safety-first).
var priorityOrder = []AgentRole{
	RoleStructural,
	RoleVision,
	RoleDesign,
	RoleProjectManager,
	RoleCoordinator,
}

// AllRoles returns every known role in priority order.
func AllRoles() []AgentRole {
	out := make([]AgentRole, len(priorityOrder))
	copy(out, priorityOrder)
	return out
}

// Priority returns the rank of the role in the fixed priority order (lower is
// stronger). Unknown roles rank after all known roles.
func (r AgentRole) Priority() int {
	for i, p := range priorityOrder {
		if p == r {
			return i
		}
	}
	return len(priorityOrder)
}

// Valid reports whether r is one of the known roles.
func (r AgentRole) Valid() bool { return r.Priority() < len(priorityOrder) }

// String implements fmt.Stringer.
func (r AgentRole) String() string { return string(r) }

// DisplayName returns a human friendly label used in prompts.
func (r AgentRole) DisplayName() string {
	switch r {
	case RoleCoordinator:
		return "Coordinator"
	case RoleVision:
		return "Vision Analyst"
	case RoleDesign:
		return "Interior Designer"
	case RoleStructural:
		return "Structural Engineer"
	case RoleProjectManager:
		return "Project Manager"
	default:
		return string(r)
	}
}

// ParseRole converts a string into an AgentRole.
func ParseRole(s string) (AgentRole, error) {
	r := AgentRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown agent role %q", s)
	}
	return r, nil
}
