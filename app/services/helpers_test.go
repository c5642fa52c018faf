package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"blackfong-core/app/domains"
	"blackfong-core/app/executor"
	"blackfong-core/app/observability"
	"blackfong-core/storage/sqlite"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "blackfong.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeClock hands out strictly increasing times
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{cur: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Millisecond)
	return c.cur
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.cur = t
	c.mu.Unlock()
}

type recordedEvents struct {
	mu      sync.Mutex
	entries []EventInput
}

func (r *recordedEvents) Record(ctx context.Context, in EventInput) (*domains.EventLogEntry, SinkResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, in)
	e := domains.NewEventLogEntry(time.Now(), in.Severity, in.Source, in.EventType, in.Message)
	return &e, SinkResult{}, nil
}

func (r *recordedEvents) all() []EventInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventInput(nil), r.entries...)
}

// failingRecorder rejects every entry as if the event_log insert failed
type failingRecorder struct {
	err error
}

func (r failingRecorder) Record(ctx context.Context, in EventInput) (*domains.EventLogEntry, SinkResult, error) {
	return nil, SinkResult{}, r.err
}

type scriptedRunner struct {
	mu     sync.Mutex
	calls  [][]string
	result func(argv []string) *executor.ExecutionResult
}

func (r *scriptedRunner) Run(ctx context.Context, argv []string) *executor.ExecutionResult {
	r.mu.Lock()
	r.calls = append(r.calls, argv)
	fn := r.result
	r.mu.Unlock()
	if fn == nil {
		return &executor.ExecutionResult{}
	}
	return fn(argv)
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testMetrics() *observability.Metrics {
	return observability.NewTestMetrics()
}
