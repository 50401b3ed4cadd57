package resolve

import "context"

// Entry is one concrete fetchable item produced by expanding a reference.
type Entry struct {
	Reference string
	Title     string
}

// Metadata describes what a reference denotes.
type Metadata struct {
	Title        string
	IsCollection bool
	Entries      []Entry
}

// Engine defines the interface to the external resolution engine.
type Engine interface {
	// Resolve inspects a reference and reports whether it denotes a single
	// item or a collection, enumerating the children in the latter case.
	Resolve(ctx context.Context, reference string) (*Metadata, error)
}
