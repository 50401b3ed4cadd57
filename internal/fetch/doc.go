package fetch

// Package fetch implements the concurrent fetch orchestrator: a bounded
// worker pool draining batches of items through the external fetch engine,
// with existing-output skip, cooperative generation-scoped cancellation, and
// per-item retry. Per-item failures are recorded on the item and never abort
// the batch.
