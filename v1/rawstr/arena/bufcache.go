// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package arena

import (
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// bufferCache holds freed buffers for reuse. The LRU bounds the total number
// of buffers across all lengths; bySize indexes the entries of each length,
// most recently freed last. Callers serialize access with the arena mutex.
type bufferCache struct {
	entries *lru.Cache[uint64, []byte]
	bySize  map[int][]uint64
	next    uint64
}

func newBufferCache(size int) (*bufferCache, error) {
	c := &bufferCache{bySize: map[int][]uint64{}}
	entries, err := lru.NewWithEvict(size, c.evicted)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func (c *bufferCache) evicted(id uint64, buf []byte) {
	c.forget(len(buf), id)
}

func (c *bufferCache) forget(n int, id uint64) {
	ids := c.bySize[n]
	i := slices.Index(ids, id)
	if i < 0 {
		return
	}
	ids = slices.Delete(ids, i, i+1)
	if len(ids) == 0 {
		delete(c.bySize, n)
		return
	}
	c.bySize[n] = ids
}

func (c *bufferCache) put(buf []byte) {
	c.next++
	c.bySize[len(buf)] = append(c.bySize[len(buf)], c.next)
	c.entries.Add(c.next, buf)
}

// take removes and returns the most recently freed buffer of length n.
func (c *bufferCache) take(n int) ([]byte, bool) {
	ids := c.bySize[n]
	if len(ids) == 0 {
		return nil, false
	}
	id := ids[len(ids)-1]
	buf, ok := c.entries.Peek(id)
	c.forget(n, id)
	c.entries.Remove(id)
	return buf, ok
}

func (c *bufferCache) len() int {
	return c.entries.Len()
}

func (c *bufferCache) purge() {
	c.entries.Purge()
	clear(c.bySize)
}
