package userlock

import (
	"context"
	"sync"
)

// Locker serializes critical sections per user. Two concurrent operations for
// the same user never overlap between Acquire and the returned release; ops
// for different users proceed independently.
type Locker interface {
	// Acquire blocks until the user's lock is held or ctx is done. On
	// success it returns a release function that must be called exactly
	// once.
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// KeyedMutex is an in-process Locker backed by one mutex per user. Entries
// are reference counted and removed when the last waiter releases, so the map
// does not grow with the set of users ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*userEntry
}

type userEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty in-process locker.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*userEntry),
	}
}

// Acquire implements Locker.
func (km *KeyedMutex) Acquire(ctx context.Context, userID string) (func(), error) {
	km.mu.Lock()
	entry, exists := km.locks[userID]
	if !exists {
		entry = &userEntry{ch: make(chan struct{}, 1)}
		km.locks[userID] = entry
	}
	entry.refs++
	km.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			km.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(km.locks, userID)
			}
			km.mu.Unlock()
		}, nil
	case <-ctx.Done():
		km.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(km.locks, userID)
		}
		km.mu.Unlock()
		return nil, ctx.Err()
	}
}
