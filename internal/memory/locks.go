package memory

import (
	"sort"
	"sync"
)

// lockTable hands out per-id mutexes. Entries are reference counted and
// removed when the last holder releases them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*keyLock)}
}

// lock acquires the mutexes of every distinct id in sorted order and
// returns a func releasing them.
func (t *lockTable) lock(ids ...string) (unlock func()) {
	keys := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)

	held := make([]*keyLock, 0, len(keys))
	for _, k := range keys {
		l := t.acquire(k)
		l.mu.Lock()
		held = append(held, l)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				t.release(keys[i])
			}
		})
	}
}

func (t *lockTable) acquire(key string) *keyLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &keyLock{}
		t.locks[key] = l
	}
	l.refs++
	return l
}

func (t *lockTable) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

// size reports the number of live entries.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
