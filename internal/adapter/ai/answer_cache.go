package ai

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/exdly/conectai/internal/domain"
	"github.com/exdly/conectai/pkg/textx"
)

// AnswerCache is a bounded FIFO cache keyed by the normalized query text.
// Insertion order decides eviction; updating an existing key keeps its slot.
// Every write is snapshotted to the optional store, best effort.
type AnswerCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]string
	order    []string
	store    domain.CacheSnapshotStore
	log      *slog.Logger
}

// NewAnswerCache builds a cache of the given capacity, seeded from the
// snapshot store when one is provided and readable.
func NewAnswerCache(capacity int, store domain.CacheSnapshotStore, log *slog.Logger) *AnswerCache {
	if log == nil {
		log = slog.Default()
	}
	c := &AnswerCache{
		capacity: capacity,
		entries:  make(map[string]string),
		store:    store,
		log:      log,
	}
	if store == nil {
		return c
	}
	loaded, ok := store.TryLoad()
	if !ok {
		return c
	}
	// Snapshots do not record insertion order; sort for a stable one.
	keys := make([]string, 0, len(loaded))
	for k := range loaded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(c.order) >= capacity {
			break
		}
		c.entries[k] = loaded[k]
		c.order = append(c.order, k)
	}
	log.Info("answer cache restored", slog.Int("entries", len(c.order)))
	return c
}

// Get looks up a previous answer for an equivalent query.
func (c *AnswerCache) Get(query string) (string, bool) {
	key := textx.CacheKey(query)
	if key == "" {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[key]
	return a, ok
}

// Put stores an answer, evicting the oldest entry when the cache is full.
func (c *AnswerCache) Put(query, answer string) {
	key := textx.CacheKey(query)
	if key == "" || answer == "" {
		return
	}
	c.mu.Lock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = answer
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.store != nil && !c.store.TrySave(snapshot) {
		c.log.Debug("answer cache snapshot not persisted")
	}
}

// Len reports the number of cached answers.
func (c *AnswerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *AnswerCache) snapshotLocked() map[string]string {
	out := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}
