package util

import (
	"fmt"
	"strings"
	"sync"
)

/*
LRU is a fixed-capacity, least-recently-used cache. Capacity is counted in
entries. It is safe for concurrent use.
*/

////////////////////////////////////////////////////////////////////////////////

// LRU is a least-recently-used cache.
type LRU[K comparable, V any] struct {
	entries    map[K]*entry[K, V]
	head, tail *entry[K, V]
	capacity   int
	hits       uint64
	misses     uint64
	mtx        *sync.Mutex
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	prev, next *entry[K, V]
}

// NewLRU returns a cache that holds at most capacity entries. A capacity below
// one is treated as one.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	head, tail := &entry[K, V]{}, &entry[K, V]{}
	head.next = tail
	tail.prev = head
	return &LRU[K, V]{
		entries:  make(map[K]*entry[K, V]),
		head:     head,
		tail:     tail,
		capacity: capacity,
		mtx:      &sync.Mutex{},
	}
}

func (c *LRU[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *LRU[K, V]) pushFront(e *entry[K, V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

// Put inserts or replaces a value and marks it most recently used.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.unlink(e)
		c.pushFront(e)
		return
	}
	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)
	for len(c.entries) > c.capacity {
		oldest := c.tail.prev
		c.unlink(oldest)
		delete(c.entries, oldest.key)
	}
}

// Get returns the value for key and whether it was present.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.unlink(e)
	c.pushFront(e)
	return e.value, true
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts since creation or the last Reset.
func (c *LRU[K, V]) Stats() (hits, misses uint64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.hits, c.misses
}

// Reset empties the cache.
func (c *LRU[K, V]) Reset() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.entries = make(map[K]*entry[K, V])
	c.head.next = c.tail
	c.tail.prev = c.head
	c.hits, c.misses = 0, 0
}

// String renders the cache from most to least recently used.
func (c *LRU[K, V]) String() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "(%d/%d) [", len(c.entries), c.capacity)
	for e := c.head.next; e != c.tail; e = e.next {
		fmt.Fprintf(sb, "%v:%v", e.key, e.value)
		if e.next != c.tail {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
