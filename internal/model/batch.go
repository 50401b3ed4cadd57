package model

import (
	"github.com/google/uuid"
)

// Batch is an ordered set of item ids submitted together for one fetch run.
// Generation scopes cancellation: a cancel request applies to the run that was
// current when it was raised, never to later runs.
type Batch struct {
	ID         string
	Generation int64
	ItemIDs    []int64
}

// NewBatch creates a batch for the given generation
func NewBatch(generation int64, itemIDs []int64) *Batch {
	ids := make([]int64, len(itemIDs))
	copy(ids, itemIDs)
	return &Batch{
		ID:         uuid.NewString(),
		Generation: generation,
		ItemIDs:    ids,
	}
}

// BatchSummary reports the terminal outcome of a drained batch
type BatchSummary struct {
	BatchID   string
	Done      int
	Skipped   int
	Cancelled int
	Errors    int
}

// Total returns the number of items the batch drained
func (s BatchSummary) Total() int {
	return s.Done + s.Skipped + s.Cancelled + s.Errors
}
