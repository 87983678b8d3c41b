// Package core provides the foundational domain types used by ArchMesh. It
// defines the shared vocabulary of the orchestration core:
//
//   - AgentRole (the closed set of specialist identities)
//   - AgentMessage (immutable conversation entries)
//   - ArchitecturalElement / RoomAnalysis (vision pipeline output)
//   - Intent (parsed voice / text commands)
//   - CollaborativeDecision (multi-specialist voting with deterministic consensus)
//
// The package intentionally keeps implementation concerns (providers, routing,
// image processing) out of scope so every other package can depend on it
// without introducing cycles. Values handed to callers are copies; no type in
// this package is shared by reference with the presentation layer.
package core
