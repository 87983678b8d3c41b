// Package memory owns the per-agent ConversationHistory. Each role keeps one
// permanent leading system message plus a bounded FIFO of the most recent
// messages; roles never share history state, so every partition is guarded by
// its own mutex and the role map itself is immutable after construction.
package memory
