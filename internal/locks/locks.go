package locks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockSuffix        = ".lock"
	DefaultRetryDelay = 250 * time.Millisecond
)

// OutputDirMutex serializes merges writing into the same output directory,
// across goroutines and processes. The lock file sits next to the directory,
// never inside it, so it does not end up in the merged tree.
type OutputDirMutex struct {
	dir string
	mu  *flock.Flock
}

// ForOutputDir returns a mutex for outDir. Every call opens its own handle,
// so two mutexes for the same directory exclude each other.
func ForOutputDir(outDir string) *OutputDirMutex {
	dir := filepath.Clean(outDir)
	return &OutputDirMutex{dir: dir, mu: flock.New(dir + lockSuffix)}
}

func (m *OutputDirMutex) Dir() string {
	return m.dir
}

// Path is the lock file guarding Dir.
func (m *OutputDirMutex) Path() string {
	return m.mu.Path()
}

type TryLockResult struct {
	Attempt int
	Error   error
	Success bool
}

// TryLock keeps attempting to take the lock, reporting every attempt, until it
// succeeds, fails or ctx is done.
func (m *OutputDirMutex) TryLock(ctx context.Context, retryDelay time.Duration) <-chan TryLockResult {
	ch := make(chan TryLockResult)
	go func() {
		defer close(ch)
		for attempt := 0; ; attempt++ {
			ok, err := m.mu.TryLock()
			if err != nil {
				send(ctx, ch, TryLockResult{Attempt: attempt, Error: fmt.Errorf("failed to acquire lock on %s (pid %d): %w", m.dir, os.Getpid(), err)})
				return
			}
			if ok {
				if !send(ctx, ch, TryLockResult{Attempt: attempt, Success: true}) {
					_ = m.mu.Unlock()
				}
				return
			}

			select {
			case <-ctx.Done():
				send(ctx, ch, TryLockResult{Attempt: attempt, Error: ctx.Err()})
				return
			case <-time.After(retryDelay):
				if !send(ctx, ch, TryLockResult{Attempt: attempt, Success: false}) {
					return
				}
			}
		}
	}()
	return ch
}

// send delivers r unless ctx ends first. Errors are always delivered.
func send(ctx context.Context, ch chan<- TryLockResult, r TryLockResult) bool {
	if r.Error != nil {
		ch <- r
		return true
	}
	select {
	case ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// Lock blocks until the lock is held. onWait is called after each failed
// attempt and may be nil.
func (m *OutputDirMutex) Lock(ctx context.Context, retryDelay time.Duration, onWait func(attempt int)) error {
	for result := range m.TryLock(ctx, retryDelay) {
		switch {
		case result.Error != nil:
			return result.Error
		case result.Success:
			return nil
		case onWait != nil:
			onWait(result.Attempt)
		}
	}
	return ctx.Err()
}

func (m *OutputDirMutex) Unlock() error {
	return m.mu.Unlock()
}
