package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iho/envelopes/internal/domain"
)

// LocalLocker implements BookLocker with one RWMutex per storage key. Entries are
// reference counted and dropped once no caller holds or waits on them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.RWMutex
	refs int
}

// NewLocalLocker creates a new LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*lockEntry)}
}

func (l *LocalLocker) acquireEntry(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) releaseEntry(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock takes the exclusive lock for key. A waiting writer blocks new readers.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquireEntry(key)
	release := func() { l.releaseEntry(key, e) }
	if err := wait(ctx, e.mu.Lock, e.mu.Unlock, release); err != nil {
		return nil, err
	}
	return func() {
		e.mu.Unlock()
		release()
	}, nil
}

// RLock takes a shared lock for key.
func (l *LocalLocker) RLock(ctx context.Context, key string) (func(), error) {
	e := l.acquireEntry(key)
	release := func() { l.releaseEntry(key, e) }
	if err := wait(ctx, e.mu.RLock, e.mu.RUnlock, release); err != nil {
		return nil, err
	}
	return func() {
		e.mu.RUnlock()
		release()
	}, nil
}

// wait blocks on lock until it is held or ctx is done. When ctx wins, the pending lock
// is unlocked and the entry released as soon as it is granted.
func wait(ctx context.Context, lock, unlock, release func()) error {
	if err := ctx.Err(); err != nil {
		release()
		return fmt.Errorf("%w: %w", domain.ErrLockNotObtained, err)
	}

	done := make(chan struct{})
	go func() {
		lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		go func() {
			<-done
			unlock()
			release()
		}()
		return fmt.Errorf("%w: %w", domain.ErrLockNotObtained, ctx.Err())
	}
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) ReconciliationRecorded(string, domain.EntryLine) {}
func (NopRecorder) LineRemoved(string) {}
func (NopRecorder) IntegrityFailure(string) {}
func (NopRecorder) StorageOperation(string, time.Duration, error) {}
