package executor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many host processes run at once and serialises runs that
// share a key.
type Pool struct {
	runner Runner
	sem    *semaphore.Weighted

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewPool wraps runner with a concurrency limit of size
func NewPool(runner Runner, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(size)),
		locks:  make(map[string]*keyLock),
	}
}

// Lock blocks until no other holder of key remains and returns the release func
func (p *Pool) Lock(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &keyLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

// Run waits for a free slot then executes argv
func (p *Pool) Run(ctx context.Context, argv []string) *ExecutionResult {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return &ExecutionResult{ExitCode: -1, Error: fmt.Errorf("waiting for executor slot: %w", err)}
	}
	defer p.sem.Release(1)
	return p.runner.Run(ctx, argv)
}
