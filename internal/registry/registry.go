package registry

import (
	"fmt"
	"sync"

	"github.com/ytget/mediaq/internal/model"
)

// Child describes one resolver-produced entry replacing a collection placeholder.
type Child struct {
	Reference string
	Title     string
}

// Registry is the ordered collection of fetch items and the single source of
// truth for their lifecycle state. All mutations of one item happen under the
// registry lock, so a full scan never observes a partially-updated item.
type Registry struct {
	mu       sync.RWMutex
	items    map[int64]*model.Item
	order    []int64
	nextID   int64
	onUpdate func(model.Item) // callback for UI updates
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		items: make(map[int64]*model.Item),
	}
}

// SetUpdateCallback sets the callback invoked with an item snapshot after
// every mutation. The callback runs outside the registry lock.
func (r *Registry) SetUpdateCallback(callback func(model.Item)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = callback
}

// Add appends a new item in the Pending state and returns a snapshot.
// Ids are assigned monotonically and never reused, even after removal.
func (r *Registry) Add(reference, title string) model.Item {
	r.mu.Lock()
	r.nextID++
	it := &model.Item{
		ID:        r.nextID,
		Reference: reference,
		Title:     title,
		State:     model.StatePending,
	}
	r.items[it.ID] = it
	r.order = append(r.order, it.ID)
	snapshot := *it
	r.mu.Unlock()

	r.notify(snapshot)
	return snapshot
}

// Get returns a copy of the item with the given id
func (r *Registry) Get(id int64) (model.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return model.Item{}, false
	}
	return *it, true
}

// Reference returns the source locator of the item with the given id
func (r *Registry) Reference(id int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return "", false
	}
	return it.Reference, true
}

// Items returns copies of all items in insertion order
func (r *Registry) Items() []model.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Item, 0, len(r.order))
	for _, id := range r.order {
		if it, ok := r.items[id]; ok {
			out = append(out, *it)
		}
	}
	return out
}

// IDs returns all item ids in insertion order
func (r *Registry) IDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of tracked items
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Remove deletes an item from the registry and the aggregation set atomically
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id int64) {
	if _, ok := r.items[id]; !ok {
		return
	}
	delete(r.items, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ReplaceWithChildren removes a collection placeholder and appends one Pending
// item per child in a single critical section, so no concurrent scan observes
// the placeholder and its children together or neither.
func (r *Registry) ReplaceWithChildren(id int64, children []Child) []model.Item {
	r.mu.Lock()
	r.removeLocked(id)
	snapshots := make([]model.Item, 0, len(children))
	for _, c := range children {
		r.nextID++
		it := &model.Item{
			ID:        r.nextID,
			Reference: c.Reference,
			Title:     c.Title,
			State:     model.StatePending,
		}
		r.items[it.ID] = it
		r.order = append(r.order, it.ID)
		snapshots = append(snapshots, *it)
	}
	r.mu.Unlock()

	for _, s := range snapshots {
		r.notify(s)
	}
	return snapshots
}

// BeginResolve transitions an item into the Resolving state
func (r *Registry) BeginResolve(id int64) error {
	return r.mutate(id, func(it *model.Item) error {
		return transition(it, model.StateResolving)
	})
}

// FinishResolve returns a Resolving item to Pending with its resolved title
func (r *Registry) FinishResolve(id int64, title string) error {
	return r.mutate(id, func(it *model.Item) error {
		if err := transition(it, model.StatePending); err != nil {
			return err
		}
		it.Title = title
		return nil
	})
}

// SetTitle updates the human-readable label without touching state
func (r *Registry) SetTitle(id int64, title string) error {
	return r.mutate(id, func(it *model.Item) error {
		it.Title = title
		return nil
	})
}

// Enqueue puts an item into the Queued state for a fresh attempt. Progress is
// reset and any prior error detail is cleared.
func (r *Registry) Enqueue(id int64) error {
	return r.mutate(id, func(it *model.Item) error {
		if err := transition(it, model.StateQueued); err != nil {
			return err
		}
		it.Progress = 0
		it.ErrorDetail = ""
		return nil
	})
}

// StartDownloading transitions a Queued item to Downloading
func (r *Registry) StartDownloading(id int64) error {
	return r.mutate(id, func(it *model.Item) error {
		return transition(it, model.StateDownloading)
	})
}

// SetDownloadProgress records engine progress for a Downloading item.
// Progress is monotonic while the item is active: a stale or out-of-order
// callback can never move it backwards.
func (r *Registry) SetDownloadProgress(id int64, progress float64) error {
	return r.mutate(id, func(it *model.Item) error {
		if it.State != model.StateDownloading {
			return fmt.Errorf("item %d is not downloading: %s", id, it.State)
		}
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		if progress > it.Progress {
			it.Progress = progress
		}
		return nil
	})
}

// StartPostprocessing marks the download finished and the transcode running
func (r *Registry) StartPostprocessing(id int64) error {
	return r.mutate(id, func(it *model.Item) error {
		if err := transition(it, model.StatePostprocessing); err != nil {
			return err
		}
		it.Progress = 100
		return nil
	})
}

// Complete transitions an active item to Done with its output path. The
// Postprocessing step is taken implicitly when the engine finished without a
// separate postprocessing report (archive hits return this way).
func (r *Registry) Complete(id int64, outputPath string) error {
	return r.mutate(id, func(it *model.Item) error {
		if it.State == model.StateDownloading {
			if err := transition(it, model.StatePostprocessing); err != nil {
				return err
			}
		}
		if err := transition(it, model.StateDone); err != nil {
			return err
		}
		it.Progress = 100
		it.OutputPath = outputPath
		return nil
	})
}

// Skip transitions a Queued item to Skipped, recording the existing output
func (r *Registry) Skip(id int64, outputPath string) error {
	return r.mutate(id, func(it *model.Item) error {
		if err := transition(it, model.StateSkipped); err != nil {
			return err
		}
		it.Progress = 100
		it.OutputPath = outputPath
		return nil
	})
}

// Cancel transitions an item to Cancelled. Progress keeps its last observed
// checkpoint value.
func (r *Registry) Cancel(id int64) error {
	return r.mutate(id, func(it *model.Item) error {
		return transition(it, model.StateCancelled)
	})
}

// Fail transitions an item to Error with a human-readable detail
func (r *Registry) Fail(id int64, detail string) error {
	return r.mutate(id, func(it *model.Item) error {
		if err := transition(it, model.StateError); err != nil {
			return err
		}
		it.Progress = 0
		it.ErrorDetail = detail
		return nil
	})
}

// GlobalProgress returns the unweighted mean of all item progress values,
// or 0 for an empty registry.
func (r *Registry) GlobalProgress() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range r.items {
		sum += it.Progress
	}
	return sum / float64(len(r.items))
}

// mutate applies fn to the item under the write lock and notifies on success
func (r *Registry) mutate(id int64, fn func(*model.Item) error) error {
	r.mu.Lock()
	it, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("item not found: %d", id)
	}
	if err := fn(it); err != nil {
		r.mu.Unlock()
		return err
	}
	snapshot := *it
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// notify calls the update callback if set
func (r *Registry) notify(it model.Item) {
	r.mu.RLock()
	callback := r.onUpdate
	r.mu.RUnlock()
	if callback != nil {
		callback(it)
	}
}

func transition(it *model.Item, to model.ItemState) error {
	if !it.State.CanTransition(to) {
		return fmt.Errorf("invalid transition %s -> %s for item %d", it.State, to, it.ID)
	}
	it.State = to
	return nil
}
