package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blackfong-core/app/domains"
	"blackfong-core/app/executor"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commandFixture struct {
	svc    *CommandService
	runner *scriptedRunner
	events *recordedEvents
}

func newCommandFixture(t *testing.T, allowed map[string][]string) *commandFixture {
	store := newTestStore(t)
	runner := &scriptedRunner{}
	events := &recordedEvents{}
	svc := NewCommandService(store, executor.NewPool(runner, 2), events, allowed, testMetrics(), testLogger())
	svc.now = newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)).Now
	return &commandFixture{svc: svc, runner: runner, events: events}
}

func TestCommandRun_DeniedNeverExecutes(t *testing.T) {
	f := newCommandFixture(t, map[string][]string{"uptime": {"uptime"}})

	run, err := f.svc.Run(context.Background(), "rm-rf", domains.Requester("operator"))
	require.NoError(t, err)

	assert.Equal(t, domains.RunDenied, run.Status)
	assert.Nil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)
	assert.False(t, run.FinishedAt.Before(run.RequestedAt))
	assert.Nil(t, run.ReturnCode)
	assert.Equal(t, 0, f.runner.callCount())

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, "command.denied", events[0].EventType)
	assert.Equal(t, domains.SeverityWarn, events[0].Severity)
	assert.Equal(t, "command denied: rm-rf", events[0].Message)

	stored, err := f.svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domains.RunDenied, stored.Status)
	assert.Equal(t, "operator", *stored.RequestedBy)
}

func TestCommandRun_OK(t *testing.T) {
	f := newCommandFixture(t, map[string][]string{"uptime": {"uptime", "-p"}})
	f.runner.result = func(argv []string) *executor.ExecutionResult {
		return &executor.ExecutionResult{ExitCode: 0, Stdout: "up 3 days\n"}
	}

	run, err := f.svc.Run(context.Background(), "uptime", domains.Anonymous)
	require.NoError(t, err)

	assert.Equal(t, domains.RunOK, run.Status)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)
	assert.False(t, run.StartedAt.Before(run.RequestedAt))
	assert.False(t, run.FinishedAt.Before(*run.StartedAt))
	assert.Equal(t, 0, *run.ReturnCode)
	assert.Equal(t, "up 3 days\n", *run.Stdout)
	assert.Equal(t, [][]string{{"uptime", "-p"}}, f.runner.calls)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, domains.SeverityInfo, events[0].Severity)
	assert.Equal(t, "command OK: uptime (rc=0)", events[0].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.CommandRunsTotal.WithLabelValues("uptime", "OK")))
}

func TestCommandRun_FailWithExitCode(t *testing.T) {
	f := newCommandFixture(t, map[string][]string{"update": {"apt", "update"}})
	f.runner.result = func([]string) *executor.ExecutionResult {
		return &executor.ExecutionResult{ExitCode: 100, Stderr: "E: lock held"}
	}

	run, err := f.svc.Run(context.Background(), "update", domains.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, domains.RunFail, run.Status)
	assert.Equal(t, 100, *run.ReturnCode)
	assert.Equal(t, "E: lock held", *run.Stderr)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, domains.SeverityWarn, events[0].Severity)
	assert.Equal(t, "command FAIL: update (rc=100)", events[0].Message)
}

func TestCommandRun_StartFailureIsFail(t *testing.T) {
	f := newCommandFixture(t, map[string][]string{"ghost": {"/nonexistent"}})
	f.runner.result = func([]string) *executor.ExecutionResult {
		return &executor.ExecutionResult{ExitCode: -1, Error: errors.New("execution failed: no such file")}
	}

	run, err := f.svc.Run(context.Background(), "ghost", domains.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, domains.RunFail, run.Status)
	assert.Equal(t, -1, *run.ReturnCode)
	assert.Contains(t, *run.Stderr, "no such file")
}

func TestCommandRun_DetachedFromCallerCancellation(t *testing.T) {
	f := newCommandFixture(t, map[string][]string{"slow": {"sleep", "1"}})
	ctx, cancel := context.WithCancel(context.Background())
	f.runner.result = func([]string) *executor.ExecutionResult {
		cancel()
		return &executor.ExecutionResult{}
	}

	run, err := f.svc.Run(ctx, "slow", domains.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, domains.RunOK, run.Status)

	stored, err := f.svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domains.RunOK, stored.Status)
}

func TestCommandRun_SameNameSerialised(t *testing.T) {
	f := newCommandFixture(t, map[string][]string{"backup": {"true"}})

	var mu sync.Mutex
	active, peak := 0, 0
	f.runner.result = func([]string) *executor.ExecutionResult {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return &executor.ExecutionResult{}
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Run(context.Background(), "backup", domains.Anonymous)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Equal(t, 3, f.runner.callCount())
}

func TestCommandService_ListAndGet(t *testing.T) {
	f := newCommandFixture(t, map[string][]string{"b": {"true"}, "a": {"true"}})
	assert.Equal(t, []string{"a", "b"}, f.svc.AllowedCommands())

	for _, name := range []string{"a", "b", "nope"} {
		_, err := f.svc.Run(context.Background(), name, domains.Anonymous)
		require.NoError(t, err)
	}

	runs, err := f.svc.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "nope", runs[0].Name)

	_, err = f.svc.GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domains.ErrRunNotFound)
}

func TestTransition_Illegal(t *testing.T) {
	run := &domains.CommandRun{Status: domains.RunDenied}
	assert.ErrorIs(t, transition(run, domains.RunRunning), domains.ErrIllegalTransition)
	assert.Equal(t, domains.RunDenied, run.Status)
}

func TestCommandRun_AuditFailureIsReturned(t *testing.T) {
	store := newTestStore(t)
	runner := &scriptedRunner{}
	insertErr := errors.New("database is locked")
	svc := NewCommandService(store, executor.NewPool(runner, 1), failingRecorder{err: insertErr},
		map[string][]string{"reboot": {"reboot"}}, testMetrics(), testLogger())
	ctx := context.Background()

	run, err := svc.Run(ctx, "reboot", domains.Requester("operator"))
	require.ErrorIs(t, err, insertErr)
	require.NotNil(t, run)
	assert.Equal(t, domains.RunOK, run.Status)

	stored, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domains.RunOK, stored.Status, "the ledger row is still terminal")

	denied, err := svc.Run(ctx, "format-disk", domains.Requester("operator"))
	require.ErrorIs(t, err, insertErr)
	require.NotNil(t, denied)
	assert.Equal(t, domains.RunDenied, denied.Status)
}
