package memory

import (
	"context"
	"sync"
)

// lockTable hands out one exclusive lock per key. Entries are reference
// counted and dropped once nobody holds or waits for them, so the table
// only grows with the number of rows in use.
type lockTable struct {
	mu   sync.Mutex
	rows map[string]*rowLock
}

type rowLock struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{rows: make(map[string]*rowLock)}
}

// lock blocks until key is free or ctx is done. The returned func releases
// the lock and must be called exactly once.
func (t *lockTable) lock(ctx context.Context, key string) (func(), error) {
	t.mu.Lock()
	l, ok := t.rows[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		t.rows[key] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			t.put(key, l)
		}, nil
	case <-ctx.Done():
		t.put(key, l)
		return nil, ctx.Err()
	}
}

func (t *lockTable) put(key string, l *rowLock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(t.rows, key)
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}
