// Package locate decides whether a reference has already been fetched into a
// destination directory, using the "<stable-id> - <title>.<ext>" filename
// convention shared with the fetch engine.
package locate

import (
	"os"
	"path/filepath"
	"strings"
)

// ExtractIDFunc derives the stable content id from a reference. It is supplied
// by the resolution engine so the locator stays free of URL-format knowledge.
type ExtractIDFunc func(reference string) (string, error)

// Locator performs best-effort existence checks for prior downloads. It never
// inspects file contents: a partial prior file still counts as fetched.
type Locator struct {
	extractID ExtractIDFunc
}

// New creates a locator using the given id extraction rule
func New(extractID ExtractIDFunc) *Locator {
	return &Locator{extractID: extractID}
}

// Locate returns the path of an existing output for the reference, if any.
// It fails closed: an unparseable reference or unreadable directory is
// reported as "not found", never as an error.
func (l *Locator) Locate(reference, destDir string) (string, bool) {
	id, err := l.extractID(reference)
	if err != nil || id == "" {
		return "", false
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", false
	}

	prefix := id + " - "
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			return filepath.Join(destDir, entry.Name()), true
		}
	}
	return "", false
}
