// Package orchestrator runs one user turn across the selected specialist
// roles.
//
// The primary role answers first. Its reply is quoted in the prompts of the
// collaborating roles, which then run concurrently. Tokens of every role are
// forwarded as Events while the turn runs. Ordering is guaranteed within a
// role and not across roles. Once every role has finished, the Outcome holds
// the merged response. A degraded reply adds a notice but never fails the
// turn.
//
// Decide asks a set of roles to vote on a CollaborativeDecision and resolves
// it by consensus.
package orchestrator
