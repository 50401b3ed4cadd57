package resolve

// Package resolve expands user-submitted references into fetchable items: a
// single reference yields one item, a collection yields one item per child,
// and a failed expansion degrades to the raw reference instead of dropping
// the item.
