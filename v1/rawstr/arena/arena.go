// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package arena implements the buffer allocator that owns the content of
// heap-backed compact strings.
//
// The arena provides:
//   - Even, non-zero buffer references that fit in a single machine word
//   - Lock-free buffer lookups for readers
//   - Slot reuse via a freelist, so references stay small
//   - Optional reuse of recently freed buffers of the same size
//   - Live allocation accounting for leak detection
//
// A reference is owned by exactly one handle. A reference carries the
// generation of its slot, so a stale copy of a freed reference never
// resolves to a buffer that reuses the slot: looking it up returns nil and
// freeing it panics.
package arena

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/open-policy-agent/compactstr/v1/logging"
)

const (
	// SegmentSize defines how many buffer slots fit in one segment.
	SegmentSize = 512

	// MaxSegments limits the number of live buffers to 2,097,152
	// (512 * 4096). WithMaxSegments lowers the limit.
	MaxSegments = 4096
)

const (
	// indexBits is the width of the slot field of a reference. It holds
	// index+1 for every slot up to MaxSegments*SegmentSize.
	indexBits = 22

	// genBits is the width of the generation field: 41 bits on 64-bit hosts,
	// 9 bits on 32-bit hosts where generations wrap sooner.
	genBits = bits.UintSize - indexBits - 1
	genMask = 1<<genBits - 1

	slotMask = 1<<indexBits - 1
)

// ErrExhausted is returned by Alloc when every segment is in use.
var ErrExhausted = errors.New("arena: maximum segments exceeded")

// slot holds one heap buffer.
type slot struct {
	buf  []byte
	next int32 // index of the next free slot, -1 terminates the freelist
	gen  uint  // bumped on every Free
	live bool
}

// Arena hands out byte buffers addressed by word-sized references.
type Arena struct {
	// segments is a fixed-size array of slot segments, allocated lazily.
	segments [MaxSegments]*[SegmentSize]slot

	// segCount tracks the number of allocated segments.
	segCount int32

	// slotCnt tracks the number of slots ever handed out.
	slotCnt int32

	// freeHead points to the head of the freelist. -1 indicates an empty
	// freelist.
	freeHead int32

	maxSegments int32

	// mu serializes Alloc, Free and segment growth.
	mu sync.Mutex

	live      atomic.Int64
	liveBytes atomic.Int64
	allocs    atomic.Uint64
	frees     atomic.Uint64
	reused    atomic.Uint64

	cache  *bufferCache
	logger logging.Logger
	reg    prometheus.Registerer
}

// Stats is a snapshot of the arena's accounting.
type Stats struct {
	Live      int64  `json:"live"`       // buffers allocated and not yet freed
	LiveBytes int64  `json:"live_bytes"` // total size of live buffers
	Allocs    uint64 `json:"allocs"`
	Frees     uint64 `json:"frees"`
	Reused    uint64 `json:"reused"` // allocations served from the buffer cache
	Segments  int32  `json:"segments"`
}

// Opt is a configuration option for the arena.
type Opt func(*Arena)

// WithMaxSegments caps the number of segments the arena may allocate.
// Values outside (0, MaxSegments] are ignored.
func WithMaxSegments(n int) Opt {
	return func(a *Arena) {
		if n > 0 && n <= MaxSegments {
			a.maxSegments = int32(n)
		}
	}
}

// WithLogger sets the logger used for segment growth and leak reports.
func WithLogger(logger logging.Logger) Opt {
	return func(a *Arena) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithBufferCache keeps up to size recently freed buffers, of any mix of
// lengths, and hands them out again to Alloc calls of the same length.
func WithBufferCache(size int) Opt {
	return func(a *Arena) {
		if size <= 0 {
			return
		}
		cache, err := newBufferCache(size)
		if err != nil {
			panic(err)
		}
		a.cache = cache
	}
}

// WithRegisterer registers a Prometheus collector for the arena.
func WithRegisterer(reg prometheus.Registerer) Opt {
	return func(a *Arena) {
		a.reg = reg
	}
}

// New creates a new arena with default options.
func New() *Arena {
	return NewWithOpts()
}

// NewWithOpts creates a new arena with custom options.
func NewWithOpts(opts ...Opt) *Arena {
	a := &Arena{
		freeHead:    -1,
		maxSegments: MaxSegments,
		logger:      logging.NewNoOpLogger(),
	}

	// Segments are allocated on first use: an arena that only ever sees
	// short strings never allocates at all.

	for _, opt := range opts {
		opt(a)
	}

	if a.reg != nil {
		if err := a.reg.Register(NewCollector(a)); err != nil {
			a.logger.Warn("arena: failed to register metrics collector: %v", err)
		}
	}

	return a
}

// Ref encodes a slot index and the slot's generation as a buffer
// reference. References are always even and never zero.
func Ref(idx int32, gen uint) uint {
	return ((gen&genMask)<<indexBits | uint(idx+1)) << 1
}

// decode splits a buffer reference into slot index and generation. The
// index is -1 for values that cannot have been produced by Ref.
func decode(ref uint) (int32, uint) {
	if ref&1 != 0 {
		return -1, 0
	}
	v := ref >> 1
	n := v & slotMask
	if n == 0 || n > MaxSegments*SegmentSize {
		return -1, 0
	}
	return int32(n - 1), v >> indexBits
}

// extend allocates a new segment.
// Must be called with a.mu held.
func (a *Arena) extend() error {
	newIdx := atomic.LoadInt32(&a.segCount)
	if newIdx >= a.maxSegments {
		return ErrExhausted
	}

	seg := new([SegmentSize]slot)
	for i := range seg {
		seg[i].next = -1
	}

	a.segments[newIdx] = seg
	atomic.AddInt32(&a.segCount, 1)

	a.logger.WithFields(map[string]any{"segment": newIdx}).Debug("arena: allocated segment")
	return nil
}

// getSlot returns a pointer to the slot at the given index.
func (a *Arena) getSlot(idx int32) *slot {
	if idx < 0 {
		return nil
	}
	segIdx := idx / SegmentSize
	if segIdx >= atomic.LoadInt32(&a.segCount) {
		return nil
	}
	return &a.segments[segIdx][idx%SegmentSize]
}

// Alloc allocates a buffer of exactly n bytes and returns its reference.
// The buffer content is unspecified; callers overwrite all n bytes.
func (a *Arena) Alloc(n int) (uint, []byte, error) {
	if n < 0 {
		return 0, nil, fmt.Errorf("arena: negative allocation size %d", n)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx, err := a.takeSlot()
	if err != nil {
		return 0, nil, err
	}

	s := a.getSlot(idx)
	s.buf = a.newBuffer(n)
	s.live = true
	s.next = -1

	a.live.Add(1)
	a.liveBytes.Add(int64(n))
	a.allocs.Add(1)

	return Ref(idx, s.gen), s.buf, nil
}

// takeSlot pops the freelist or extends the arena.
// Must be called with a.mu held.
func (a *Arena) takeSlot() (int32, error) {
	if a.freeHead != -1 {
		idx := a.freeHead
		a.freeHead = a.getSlot(idx).next
		return idx, nil
	}

	idx := a.slotCnt
	if idx/SegmentSize >= atomic.LoadInt32(&a.segCount) {
		if err := a.extend(); err != nil {
			return -1, err
		}
	}
	a.slotCnt++
	return idx, nil
}

func (a *Arena) newBuffer(n int) []byte {
	if a.cache != nil && n > 0 {
		if buf, ok := a.cache.take(n); ok {
			a.reused.Add(1)
			return buf
		}
	}
	return make([]byte, n)
}

// lookup returns the live slot behind ref, or nil if ref is unknown, freed
// or from an earlier generation of its slot.
func (a *Arena) lookup(ref uint) (int32, *slot) {
	idx, gen := decode(ref)
	s := a.getSlot(idx)
	if s == nil || !s.live || s.gen != gen {
		return idx, nil
	}
	return idx, s
}

// Buffer returns the buffer behind a live reference, or nil if the
// reference is unknown or has been freed.
func (a *Arena) Buffer(ref uint) []byte {
	if _, s := a.lookup(ref); s != nil {
		return s.buf
	}
	return nil
}

// Free releases the buffer behind ref. Freeing a reference that is not live
// is a programming error and panics.
func (a *Arena) Free(ref uint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, s := a.lookup(ref)
	if s == nil {
		panic(fmt.Sprintf("arena: free of unallocated reference %#x", ref))
	}

	buf := s.buf
	s.buf = nil
	s.live = false
	s.gen = (s.gen + 1) & genMask
	s.next = a.freeHead
	a.freeHead = idx

	if a.cache != nil && len(buf) > 0 {
		a.cache.put(buf)
	}

	a.live.Add(-1)
	a.liveBytes.Add(-int64(len(buf)))
	a.frees.Add(1)
}

// Live returns the number of outstanding allocations.
func (a *Arena) Live() int64 {
	return a.live.Load()
}

// Stats returns a snapshot of the arena's accounting.
func (a *Arena) Stats() Stats {
	return Stats{
		Live:      a.live.Load(),
		LiveBytes: a.liveBytes.Load(),
		Allocs:    a.allocs.Load(),
		Frees:     a.frees.Load(),
		Reused:    a.reused.Load(),
		Segments:  atomic.LoadInt32(&a.segCount),
	}
}

// Reset drops every buffer and segment. References handed out before Reset
// must not be used afterwards; outstanding ones are reported as leaked.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if leaked := a.live.Load(); leaked > 0 {
		a.logger.WithFields(map[string]any{
			"buffers": leaked,
			"bytes":   a.liveBytes.Load(),
		}).Warn("arena: reset with live buffers")
	}

	segs := atomic.LoadInt32(&a.segCount)
	for i := int32(0); i < segs; i++ {
		a.segments[i] = nil
	}
	atomic.StoreInt32(&a.segCount, 0)
	a.slotCnt = 0
	a.freeHead = -1
	a.live.Store(0)
	a.liveBytes.Store(0)
	if a.cache != nil {
		a.cache.purge()
	}
}
