package registry

// Package registry holds the mutable item arena shared between the resolver,
// the fetch orchestrator, and any presentation layer. It serializes per-item
// mutation, validates every state transition against the item state machine,
// and derives the aggregate progress from a lock-consistent full scan.
