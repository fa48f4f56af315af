package memory

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// locator caches which collection holds a memory id. It is a hint: the
// cache may drop entries, so a miss falls back to probing.
type locator struct {
	cache *ristretto.Cache
}

func newLocator() (*locator, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 17,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create locator cache: %w", err)
	}
	return &locator{cache: cache}, nil
}

func (l *locator) lookup(id string) (string, bool) {
	v, ok := l.cache.Get(id)
	if !ok {
		return "", false
	}
	collection, ok := v.(string)
	return collection, ok
}

func (l *locator) remember(id, collection string) {
	l.cache.Set(id, collection, 1)
}

func (l *locator) forget(id string) {
	l.cache.Del(id)
}

func (l *locator) close() {
	l.cache.Close()
}
