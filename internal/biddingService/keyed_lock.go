package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"pigeon-bidding/internal/biddingerrors"
)

// keyedLocker hands out one exclusive slot per auction id. Entries are reference
// counted and dropped once nobody holds or waits on them.
type keyedLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{slots: make(map[string]*slot)}
}

// Lock waits at most timeout for the slot of key. A cancelled ctx returns its error,
// an expired wait returns ErrLockTimeout. The returned func releases the slot.
func (k *keyedLocker) Lock(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := k.acquireRef(key)

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.sem.Acquire(waitCtx, 1); err != nil {
		k.releaseRef(key)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock auction %s after %s: %w", key, timeout, biddingerrors.ErrLockTimeout)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			k.releaseRef(key)
		})
	}, nil
}

func (k *keyedLocker) acquireRef(key string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		k.slots[key] = s
	}
	s.refs++
	return s
}

func (k *keyedLocker) releaseRef(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// size returns the number of live slots
func (k *keyedLocker) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
