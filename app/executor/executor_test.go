package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_CapturesOutput(t *testing.T) {
	res := NewExecutor(5*time.Second).Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"})
	require.NoError(t, res.Error)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.True(t, res.Succeeded())
}

func TestExecutor_NonZeroExit(t *testing.T) {
	res := NewExecutor(5*time.Second).Run(context.Background(), []string{"sh", "-c", "exit 3"})
	assert.NoError(t, res.Error)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Succeeded())
}

func TestExecutor_StartFailure(t *testing.T) {
	res := NewExecutor(5*time.Second).Run(context.Background(), []string{"/nonexistent/blackfong-binary"})
	assert.Error(t, res.Error)
	assert.Equal(t, -1, res.ExitCode)
}

func TestExecutor_Timeout(t *testing.T) {
	start := time.Now()
	res := NewExecutor(100*time.Millisecond).Run(context.Background(), []string{"sleep", "5"})
	assert.Error(t, res.Error)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecutor_EmptyArgv(t *testing.T) {
	res := NewExecutor(time.Second).Run(context.Background(), nil)
	assert.Error(t, res.Error)
	assert.Equal(t, -1, res.ExitCode)
}

type countingRunner struct {
	active, peak int32
}

func (r *countingRunner) Run(ctx context.Context, argv []string) *ExecutionResult {
	n := atomic.AddInt32(&r.active, 1)
	for {
		p := atomic.LoadInt32(&r.peak)
		if n <= p || atomic.CompareAndSwapInt32(&r.peak, p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt32(&r.active, -1)
	return &ExecutionResult{}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	runner := &countingRunner{}
	pool := NewPool(runner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Run(context.Background(), []string{"x"})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&runner.peak), int32(2))
}

func TestPool_LockSerialisesSameKey(t *testing.T) {
	pool := NewPool(&countingRunner{}, 4)

	release := pool.Lock("backup")
	acquired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		r := pool.Lock("backup")
		close(acquired)
		r()
		close(done)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	other := pool.Lock("uptime")
	other()

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the key")
	}
	<-done

	pool.mu.Lock()
	defer pool.mu.Unlock()
	assert.Empty(t, pool.locks)
}

func TestPool_CancelledWhileWaiting(t *testing.T) {
	pool := NewPool(&countingRunner{}, 1)
	require.NoError(t, pool.sem.Acquire(context.Background(), 1))
	defer pool.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := pool.Run(ctx, []string{"x"})
	assert.Error(t, res.Error)
	assert.Equal(t, -1, res.ExitCode)
}
