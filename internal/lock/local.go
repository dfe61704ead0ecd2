package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is a process-local Locker. Entries are reference counted
// and removed once no caller holds or waits for the key.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*localEntry
	wait time.Duration
}

type localEntry struct {
	slot chan struct{}
	refs int
}

// NewLocalLocker returns a LocalLocker that waits at most wait for a key.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &LocalLocker{keys: make(map[string]*localEntry), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &localEntry{slot: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case e.slot <- struct{}{}:
		return &localLease{owner: l, key: key, entry: e}, nil
	case <-ctx.Done():
		l.drop(key, e)
		return nil, ctx.Err()
	case <-timer.C:
		l.drop(key, e)
		return nil, ErrNotObtained
	}
}

func (l *LocalLocker) drop(key string, e *localEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}

type localLease struct {
	owner *LocalLocker
	key   string
	entry *localEntry
	once  sync.Once
}

func (lease *localLease) Release(context.Context) error {
	lease.once.Do(func() {
		<-lease.entry.slot
		lease.owner.drop(lease.key, lease.entry)
	})
	return nil
}
