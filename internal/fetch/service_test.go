package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/mediaq/internal/model"
	"github.com/ytget/mediaq/internal/registry"
)

// scriptedEngine runs a per-test closure and counts invocations.
type scriptedEngine struct {
	calls int64
	fn    func(ctx context.Context, req Request, progress ProgressFunc) (string, error)
}

func (e *scriptedEngine) Fetch(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
	atomic.AddInt64(&e.calls, 1)
	return e.fn(ctx, req, progress)
}

func (e *scriptedEngine) Calls() int64 {
	return atomic.LoadInt64(&e.calls)
}

// mapLocator resolves references to canned paths.
type mapLocator struct {
	paths map[string]string
}

func (l *mapLocator) Locate(reference, _ string) (string, bool) {
	p, ok := l.paths[reference]
	return p, ok
}

var missLocator = &mapLocator{}

func addItems(t *testing.T, reg *registry.Registry, refs ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		it := reg.Add(ref, ref)
		ids = append(ids, it.ID)
	}
	return ids
}

func TestRunBatch_AllItemsReachTerminalStates(t *testing.T) {
	reg := registry.New()
	engine := &scriptedEngine{fn: func(_ context.Context, req Request, progress ProgressFunc) (string, error) {
		require.NoError(t, progress(ProgressEvent{Status: ProgressDownloading, DownloadedBytes: 50, TotalBytes: 100}))
		require.NoError(t, progress(ProgressEvent{Status: ProgressFinished}))
		return "/out/" + req.Reference + ".mp3", nil
	}}
	svc := NewService(reg, missLocator, engine, "/out", 2)

	ids := addItems(t, reg, "a", "b", "c")
	summary := svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 3, summary.Done)
	assert.Equal(t, 3, summary.Total())
	for _, id := range ids {
		it, ok := reg.Get(id)
		require.True(t, ok)
		assert.Equal(t, model.StateDone, it.State)
		assert.NotEmpty(t, it.OutputPath)
		assert.Equal(t, 100.0, it.Progress)
	}
}

func TestRunBatch_BoundedConcurrency(t *testing.T) {
	reg := registry.New()

	var active, maxActive int64
	engine := &scriptedEngine{fn: func(_ context.Context, req Request, _ ProgressFunc) (string, error) {
		cur := atomic.AddInt64(&active, 1)
		for {
			prev := atomic.LoadInt64(&maxActive)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxActive, prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return "/out/" + req.Reference + ".mp3", nil
	}}
	svc := NewService(reg, missLocator, engine, "/out", 2)

	ids := addItems(t, reg, "a", "b", "c", "d", "e", "f")
	summary := svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 6, summary.Done)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxActive), int64(2),
		"no more than W items may be fetching at once")
}

func TestRunBatch_ExistingOutputSkipsWithoutWorker(t *testing.T) {
	reg := registry.New()
	engine := &scriptedEngine{fn: func(_ context.Context, _ Request, _ ProgressFunc) (string, error) {
		return "", errors.New("engine must not run for located items")
	}}
	locator := &mapLocator{paths: map[string]string{
		"https://youtube.com/watch?v=dup": "/out/dup1234 - Title.mp3",
		"https://youtu.be/dup":            "/out/dup1234 - Title.mp3",
	}}
	svc := NewService(reg, locator, engine, "/out", 2)

	// Two references resolving to the same stable identifier
	ids := addItems(t, reg, "https://youtube.com/watch?v=dup", "https://youtu.be/dup")
	summary := svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, engine.Calls())
	a, _ := reg.Get(ids[0])
	b, _ := reg.Get(ids[1])
	assert.Equal(t, model.StateSkipped, a.State)
	assert.Equal(t, a.OutputPath, b.OutputPath)
}

func TestRunBatch_OneFailureDoesNotAbortSiblings(t *testing.T) {
	reg := registry.New()
	engine := &scriptedEngine{fn: func(_ context.Context, req Request, progress ProgressFunc) (string, error) {
		if req.Reference == "bad" {
			return "", errors.New("403 forbidden")
		}
		require.NoError(t, progress(ProgressEvent{Status: ProgressFinished}))
		return "/out/" + req.Reference + ".mp3", nil
	}}
	svc := NewService(reg, missLocator, engine, "/out", 1)

	ids := addItems(t, reg, "bad", "good")
	summary := svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Done)

	bad, _ := reg.Get(ids[0])
	assert.Equal(t, model.StateError, bad.State)
	assert.Equal(t, "403 forbidden", bad.ErrorDetail)
	assert.Equal(t, 0.0, bad.Progress)

	good, _ := reg.Get(ids[1])
	assert.Equal(t, model.StateDone, good.State)
}

func TestRunBatch_CancellationMidFetchKeepsProgress(t *testing.T) {
	reg := registry.New()
	var svc *Service
	engine := &scriptedEngine{fn: func(_ context.Context, _ Request, progress ProgressFunc) (string, error) {
		require.NoError(t, progress(ProgressEvent{Status: ProgressDownloading, DownloadedBytes: 40, TotalBytes: 100}))
		svc.Cancel()
		if err := progress(ProgressEvent{Status: ProgressDownloading, DownloadedBytes: 60, TotalBytes: 100}); err != nil {
			return "", err
		}
		return "/out/x.mp3", nil
	}}
	svc = NewService(reg, missLocator, engine, "/out", 1)

	ids := addItems(t, reg, "x")
	summary := svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 1, summary.Cancelled)
	it, _ := reg.Get(ids[0])
	assert.Equal(t, model.StateCancelled, it.State)
	assert.Equal(t, 40.0, it.Progress, "progress stays at the last observed checkpoint")
}

func TestRunBatch_QueuedItemCancelledWithoutEngineCall(t *testing.T) {
	reg := registry.New()
	var svc *Service
	engine := &scriptedEngine{fn: func(_ context.Context, _ Request, progress ProgressFunc) (string, error) {
		svc.Cancel()
		return "", progress(ProgressEvent{Status: ProgressDownloading, DownloadedBytes: 1, TotalBytes: 2})
	}}
	svc = NewService(reg, missLocator, engine, "/out", 1)

	ids := addItems(t, reg, "first", "second")
	summary := svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 2, summary.Cancelled)
	assert.Equal(t, int64(1), engine.Calls(),
		"the still-queued item must never reach the engine")
}

func TestRunBatch_LateCancellationStillCompletes(t *testing.T) {
	// A fetch past its last checkpoint completes normally even though
	// cancellation was requested slightly earlier. Accepted race.
	reg := registry.New()
	var svc *Service
	engine := &scriptedEngine{fn: func(_ context.Context, _ Request, progress ProgressFunc) (string, error) {
		require.NoError(t, progress(ProgressEvent{Status: ProgressFinished}))
		svc.Cancel()
		return "/out/x.mp3", nil
	}}
	svc = NewService(reg, missLocator, engine, "/out", 1)

	ids := addItems(t, reg, "x")
	summary := svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 1, summary.Done)
	it, _ := reg.Get(ids[0])
	assert.Equal(t, model.StateDone, it.State)
}

func TestRetry_ErrorItemGoesThroughQueued(t *testing.T) {
	reg := registry.New()

	var attempts int64
	engine := &scriptedEngine{fn: func(_ context.Context, req Request, progress ProgressFunc) (string, error) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			return "", errors.New("transient failure")
		}
		require.NoError(t, progress(ProgressEvent{Status: ProgressFinished}))
		return "/out/x.mp3", nil
	}}
	svc := NewService(reg, missLocator, engine, "/out", 1)

	ids := addItems(t, reg, "x")
	svc.RunBatch(context.Background(), ids)

	it, _ := reg.Get(ids[0])
	require.Equal(t, model.StateError, it.State)

	var mu sync.Mutex
	var states []model.ItemState
	reg.SetUpdateCallback(func(snapshot model.Item) {
		mu.Lock()
		states = append(states, snapshot.State)
		mu.Unlock()
	})

	summary, err := svc.Retry(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, model.StateQueued, states[0], "retry must re-enter through Queued")
	assert.Equal(t, model.StateDone, states[len(states)-1])
}

func TestRetry_RejectsNonTerminalAndDoneItems(t *testing.T) {
	reg := registry.New()
	engine := &scriptedEngine{fn: func(_ context.Context, _ Request, progress ProgressFunc) (string, error) {
		require.NoError(t, progress(ProgressEvent{Status: ProgressFinished}))
		return "/out/x.mp3", nil
	}}
	svc := NewService(reg, missLocator, engine, "/out", 1)

	ids := addItems(t, reg, "x")

	_, err := svc.Retry(context.Background(), ids[0])
	assert.Error(t, err, "Pending items are not retryable")

	svc.RunBatch(context.Background(), ids)
	_, err = svc.Retry(context.Background(), ids[0])
	assert.Error(t, err, "Done items are not retryable")

	_, err = svc.Retry(context.Background(), 999)
	assert.Error(t, err)
}

func TestRunBatch_NewRunClearsCancelFlag(t *testing.T) {
	reg := registry.New()
	engine := &scriptedEngine{fn: func(_ context.Context, req Request, progress ProgressFunc) (string, error) {
		require.NoError(t, progress(ProgressEvent{Status: ProgressFinished}))
		return "/out/" + req.Reference + ".mp3", nil
	}}
	svc := NewService(reg, missLocator, engine, "/out", 2)

	svc.Cancel() // stale request from no particular run

	ids := addItems(t, reg, "a", "b")
	summary := svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 2, summary.Done, "a new run must not observe a stale cancel")
}

func TestRunBatch_SkipsItemsThatCannotRequeue(t *testing.T) {
	reg := registry.New()
	engine := &scriptedEngine{fn: func(_ context.Context, req Request, progress ProgressFunc) (string, error) {
		require.NoError(t, progress(ProgressEvent{Status: ProgressFinished}))
		return "/out/" + req.Reference + ".mp3", nil
	}}
	svc := NewService(reg, missLocator, engine, "/out", 2)

	ids := addItems(t, reg, "a", "b")
	svc.RunBatch(context.Background(), ids)
	require.Equal(t, int64(2), engine.Calls())

	// Second run over the same ids: everything is Done, nothing re-enters.
	summary := svc.RunBatch(context.Background(), ids)
	assert.Equal(t, int64(2), engine.Calls())
	assert.Equal(t, 2, summary.Done)
}

func TestRunBatch_CompletionCallback(t *testing.T) {
	reg := registry.New()
	engine := &scriptedEngine{fn: func(_ context.Context, req Request, progress ProgressFunc) (string, error) {
		require.NoError(t, progress(ProgressEvent{Status: ProgressFinished}))
		return "/out/" + req.Reference + ".mp3", nil
	}}
	svc := NewService(reg, missLocator, engine, "/out", 2)

	var got model.BatchSummary
	svc.SetCompleteCallback(func(s model.BatchSummary) { got = s })

	ids := addItems(t, reg, "a", "b")
	svc.RunBatch(context.Background(), ids)

	assert.Equal(t, 2, got.Done)
	assert.NotEmpty(t, got.BatchID)
}

func TestProgressEvent_Percent(t *testing.T) {
	tests := []struct {
		downloaded int64
		total      int64
		expected   float64
	}{
		{0, 0, 0},
		{50, 0, 0},
		{50, 100, 50},
		{100, 100, 100},
	}
	for _, test := range tests {
		ev := ProgressEvent{DownloadedBytes: test.downloaded, TotalBytes: test.total}
		assert.Equal(t, test.expected, ev.Percent())
	}
}
