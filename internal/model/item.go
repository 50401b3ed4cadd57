package model

import (
	"path/filepath"
	"strings"
)

// Item represents a single unit of fetch work
type Item struct {
	ID          int64
	Reference   string  // user-supplied or resolver-derived source locator
	Title       string  // placeholder or raw reference until resolution completes
	Progress    float64 // 0.0 to 100.0
	State       ItemState
	ErrorDetail string // set only when State is StateError
	OutputPath  string // set once a concrete output file is known
}

// GetDisplayTitle returns title, output filename, or reference in order of preference
func (it *Item) GetDisplayTitle() string {
	if it.Title != "" && !strings.HasPrefix(it.Title, "http") {
		return it.Title
	}

	if it.OutputPath != "" {
		name := filepath.Base(it.OutputPath)
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}
		return name
	}

	return it.Reference
}
