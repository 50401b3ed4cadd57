package model

// ItemState represents the lifecycle state of a fetch item
type ItemState string

const (
	// StatePending means the item is known but not yet queued for fetching
	StatePending ItemState = "Pending"

	// StateResolving means the reference is being expanded to concrete items
	StateResolving ItemState = "Resolving"

	// StateQueued means the item was submitted to a batch and awaits a worker
	StateQueued ItemState = "Queued"

	// StateDownloading means the engine is fetching the item
	StateDownloading ItemState = "Downloading"

	// StatePostprocessing means the download finished and transcoding is running
	StatePostprocessing ItemState = "Postprocessing"

	// StateDone means the item completed successfully
	StateDone ItemState = "Done"

	// StateSkipped means an existing output was found and the fetch was skipped
	StateSkipped ItemState = "Skipped"

	// StateCancelled means the item was cancelled before or during the fetch
	StateCancelled ItemState = "Cancelled"

	// StateError means the fetch failed
	StateError ItemState = "Error"
)

// transitions encodes every legal state edge. Anything not listed is rejected.
var transitions = map[ItemState][]ItemState{
	StatePending:        {StateResolving, StateQueued},
	StateResolving:      {StatePending},
	StateQueued:         {StateSkipped, StateCancelled, StateDownloading, StateError},
	StateDownloading:    {StatePostprocessing, StateDone, StateError, StateCancelled},
	StatePostprocessing: {StateDone, StateError, StateCancelled},
	StateDone:           {},
	StateSkipped:        {StateQueued},
	StateCancelled:      {StateQueued},
	StateError:          {StateQueued},
}

// String returns the string representation of ItemState
func (s ItemState) String() string {
	return string(s)
}

// IsActive returns true while a worker slot is occupied by the item
func (s ItemState) IsActive() bool {
	return s == StateDownloading || s == StatePostprocessing
}

// IsTerminal returns true if no further automatic transition occurs
func (s ItemState) IsTerminal() bool {
	return s == StateDone || s == StateSkipped || s == StateCancelled || s == StateError
}

// IsRetryable returns true if the item may be re-queued by a retry
func (s ItemState) IsRetryable() bool {
	return s == StateError || s == StateSkipped || s == StateCancelled
}

// CanTransition reports whether the edge s -> to is part of the state machine.
func (s ItemState) CanTransition(to ItemState) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
