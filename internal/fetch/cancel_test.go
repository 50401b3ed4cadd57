package fetch

import "testing"

func TestCanceller_GenerationScoping(t *testing.T) {
	c := NewCanceller()

	gen1 := c.Begin()
	if c.Cancelled(gen1) {
		t.Error("Fresh run must not be cancelled")
	}

	c.Cancel()
	if !c.Cancelled(gen1) {
		t.Error("Current run must observe the cancel request")
	}

	// A new run implicitly clears the flag for its own items
	gen2 := c.Begin()
	if c.Cancelled(gen2) {
		t.Error("New run must not inherit a prior cancel request")
	}
	if !c.Cancelled(gen1) {
		t.Error("Old generation stays cancelled")
	}
}

func TestCanceller_CancelBeforeAnyRun(t *testing.T) {
	c := NewCanceller()
	c.Cancel()

	gen := c.Begin()
	if c.Cancelled(gen) {
		t.Error("Cancel before the first run must not affect it")
	}
}
