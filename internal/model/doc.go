package model

// Package model defines domain data structures used across the app: fetch
// items, batches, and the item state machine. Structures are designed for
// copy-by-value snapshots and explicit state transitions.
