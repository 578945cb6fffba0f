// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package rawstr

import (
	"fmt"

	"github.com/open-policy-agent/compactstr/v1/logging"
	"github.com/open-policy-agent/compactstr/v1/rawstr/arena"
)

// Allocator owns the buffers of heap-backed handles. References returned by
// Alloc must be even and non-zero.
type Allocator interface {
	Alloc(n int) (uint, []byte, error)
	Buffer(ref uint) []byte
	Free(ref uint)
}

// Heap builds, reads and releases handles whose long content lives in one
// Allocator. A handle must always be used with the Heap that built it.
type Heap struct {
	alloc  Allocator
	logger logging.Logger
}

// HeapOpt is a configuration option for a Heap.
type HeapOpt func(*Heap)

// WithAllocator sets the allocator used for heap-backed content.
func WithAllocator(a Allocator) HeapOpt {
	return func(h *Heap) {
		if a != nil {
			h.alloc = a
		}
	}
}

// WithLogger sets the logger used to report allocation failures.
func WithLogger(logger logging.Logger) HeapOpt {
	return func(h *Heap) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHeap returns a Heap backed by a fresh arena unless WithAllocator is
// given.
func NewHeap(opts ...HeapOpt) *Heap {
	h := &Heap{
		logger: logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.alloc == nil {
		h.alloc = arena.NewWithOpts(arena.WithLogger(h.logger))
	}
	return h
}

// Allocator returns the allocator behind h.
func (h *Heap) Allocator() Allocator {
	return h.alloc
}

type byteSeq interface {
	~[]byte | ~string
}

// FromBytes builds a handle holding a copy of b. Like every constructor
// without UTF-8 in its name it does not validate b: callers pass bytes that
// are already known to be well-formed, or use FromUTF8.
//
// Complexity is O(n) in the length of b.
func (h *Heap) FromBytes(b []byte) Raw {
	return build(h, [][]byte{b})
}

// FromString builds a handle holding a copy of s. A Go string may hold
// arbitrary bytes; s is not validated.
func (h *Heap) FromString(s string) Raw {
	return build(h, []string{s})
}

// FromConcatenated builds a handle holding the concatenation of parts with
// a single allocation decision and at most one allocation.
//
// Complexity is O(n) in the total length of parts.
func (h *Heap) FromConcatenated(parts ...[]byte) Raw {
	return build(h, parts)
}

// FromStrings is FromConcatenated for string parts.
func (h *Heap) FromStrings(parts ...string) Raw {
	return build(h, parts)
}

// FromUTF8 builds a handle from b after checking that b is well-formed
// UTF-8. On failure it returns a *UTF8Error and no handle.
func (h *Heap) FromUTF8(b []byte) (Raw, error) {
	if err := ValidateUTF8(b); err != nil {
		return Raw{}, err
	}
	return h.FromBytes(b), nil
}

// FromUTF8Unchecked builds a handle from b without validating it. Callers
// must only pass well-formed UTF-8.
func (h *Heap) FromUTF8Unchecked(b []byte) Raw {
	return h.FromBytes(b)
}

func build[T byteSeq](h *Heap, parts []T) Raw {
	n := 0
	for _, p := range parts {
		n += len(p)
	}

	var r Raw
	dst := h.prepare(&r, n)
	for _, p := range parts {
		dst = dst[copy(dst, p):]
	}
	return r
}

// prepare makes r an n byte string and returns the destination its content
// must be copied into.
func (h *Heap) prepare(r *Raw, n int) []byte {
	if n <= InlineCap {
		r.setInline(n)
		return r.inlineBytes(n)
	}

	ref, buf, err := h.alloc.Alloc(n)
	if err != nil {
		h.logger.Error("rawstr: allocation of %d bytes failed: %v", n, err)
		panic(err)
	}
	if ref == 0 || ref&1 != 0 {
		panic(fmt.Sprintf("rawstr: allocator returned unaligned reference %#x", ref))
	}
	if len(buf) < n {
		panic(fmt.Sprintf("rawstr: allocator returned %d bytes, want %d", len(buf), n))
	}

	r.setHeap(ref, n)
	return buf[:n]
}

// Bytes returns a view of the content of r. The view aliases r (inline) or
// its buffer (heap), and must not be used after r is replaced or released.
func (h *Heap) Bytes(r *Raw) []byte {
	l := r.Classify()
	switch l.Mode {
	case ModeInline:
		return r.inlineBytes(l.Len)
	case ModeHeap:
		buf := h.alloc.Buffer(l.Ref)
		if len(buf) != l.Len {
			panic(fmt.Sprintf("rawstr: handle %#x does not match a live buffer", l.Ref))
		}
		return buf[:l.Len:l.Len]
	}
	return nil
}

// String returns a copy of the content of r.
func (h *Heap) String(r *Raw) string {
	return string(h.Bytes(r))
}

// Replace makes r hold a copy of b. The new content is built before the old
// buffer is released, so b may alias r.
func (h *Heap) Replace(r *Raw, b []byte) {
	h.ReplaceConcatenated(r, b)
}

// ReplaceConcatenated makes r hold the concatenation of parts. Parts may
// alias r.
func (h *Heap) ReplaceConcatenated(r *Raw, parts ...[]byte) {
	next := h.FromConcatenated(parts...)
	h.Release(r)
	*r = next
}

// Clone returns a deep copy of r. Heap-backed content is copied into a new
// buffer; the clone never shares memory with r.
func (h *Heap) Clone(r *Raw) Raw {
	if !r.Valid() {
		return Raw{}
	}
	return h.FromBytes(h.Bytes(r))
}

// Release frees the buffer of a heap-backed handle and resets r to the
// absent handle. Releasing an absent handle is a no-op.
func (h *Heap) Release(r *Raw) {
	if l := r.Classify(); l.Mode == ModeHeap {
		h.alloc.Free(l.Ref)
	}
	*r = Raw{}
}

// Capacity returns the number of bytes r can hold without rebuilding. There
// is never spare capacity, so it is always r.Len().
func (h *Heap) Capacity(r *Raw) int {
	return r.Len()
}
