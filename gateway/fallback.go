package gateway

import "github.com/hupe1980/archmesh/core"

var fallbackMessages = map[core.AgentRole]string{
	core.RoleCoordinator: "I'm having trouble reaching the assistant service right now. " +
		"Please try again in a moment; your conversation has been kept.",
	core.RoleVision: "I can't interpret the room analysis at the moment. The detected elements " +
		"are still available, but please retry for a detailed explanation.",
	core.RoleDesign: "Design suggestions are temporarily unavailable. In the meantime, consider " +
		"neutral tones and maximizing natural light as a safe starting point.",
	core.RoleStructural: "Structural guidance is temporarily unavailable. Do not modify walls, " +
		"beams or openings until a licensed structural engineer has assessed them.",
	core.RoleProjectManager: "Cost and timeline estimates are temporarily unavailable. " +
		"Please retry shortly or consult a local contractor for a quote.",
}

// FallbackMessage returns the deterministic canned reply used when every
// provider in the role's chain failed.
func FallbackMessage(role core.AgentRole) string {
	if msg, ok := fallbackMessages[role]; ok {
		return msg
	}
	return fallbackMessages[core.RoleCoordinator]
}
