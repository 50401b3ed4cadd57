package fetch

import (
	"context"
	"errors"
)

// ErrCancelled is the distinguished error a progress callback returns to
// request a cooperative abort. The orchestrator maps it to the Cancelled
// state rather than Error.
var ErrCancelled = errors.New("fetch cancelled")

// ProgressStatus mirrors the engine's per-event status
type ProgressStatus string

const (
	ProgressDownloading ProgressStatus = "downloading"
	ProgressFinished    ProgressStatus = "finished"
	ProgressError       ProgressStatus = "error"
)

// ProgressEvent is one engine progress report
type ProgressEvent struct {
	Status          ProgressStatus
	DownloadedBytes int64
	TotalBytes      int64 // 0 when unknown
	Title           string
}

// Percent returns the event's completion percentage, or 0 when the total is
// unknown.
func (e ProgressEvent) Percent() float64 {
	if e.TotalBytes <= 0 {
		return 0
	}
	return float64(e.DownloadedBytes) / float64(e.TotalBytes) * 100
}

// ProgressFunc receives engine progress events. Returning a non-nil error
// aborts the engine call with that error; it is the fetch's cancellation
// checkpoint.
type ProgressFunc func(ProgressEvent) error

// Request carries everything the engine needs for one fetch
type Request struct {
	Reference   string
	OutputDir   string
	ArchivePath string // dedup ledger, passed through on every call
}

// Engine defines the interface to the external fetch engine.
type Engine interface {
	// Fetch downloads and transcodes one item, reporting progress through
	// the callback, and returns the final output path.
	Fetch(ctx context.Context, req Request, progress ProgressFunc) (string, error)
}
