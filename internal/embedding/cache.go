package embedding

import (
	"container/list"
	"sync"
)

// EmbeddingCache keeps the most recently used embeddings, keyed by input text. Vectors
// are copied on the way in and out so cached entries cannot be modified by callers.
// A cache with capacity 0 stores nothing.
type EmbeddingCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front is most recent
	hits     uint64
	misses   uint64
}

type cached struct {
	text string
	vec  []float32
}

// NewEmbeddingCache returns a cache holding up to capacity embeddings.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity < 0 {
		capacity = 0
	}
	return &EmbeddingCache{capacity: capacity, items: make(map[string]*list.Element), order: list.New()}
}

// Get returns the embedding cached for text.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[text]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return append([]float32(nil), el.Value.(*cached).vec...), true
}

// Set caches vec for text, evicting the least recently used entry when full.
func (c *EmbeddingCache) Set(text string, vec []float32) {
	if c.capacity == 0 {
		return
	}
	own := append([]float32(nil), vec...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[text]; ok {
		el.Value.(*cached).vec = own
		c.order.MoveToFront(el)
		return
	}
	c.items[text] = c.order.PushFront(&cached{text: text, vec: own})
	for c.order.Len() > c.capacity {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.items, last.Value.(*cached).text)
	}
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the hit and miss counts since creation.
func (c *EmbeddingCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
