// Package session keeps conversations: each one owns its own per-role
// conversation memory and the latest RoomAnalysis.
//
// The InMemoryStore is the source of truth for the lifetime of the process.
// A Mirror (see store/redis) can be attached to persist snapshots by value
// and to restore conversations that are not in memory yet. Mirrors never see
// live state, only copies.
package session
