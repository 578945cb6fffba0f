// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package rawstr implements a two-word string handle that stores short
// strings inline and longer strings in an arena-owned buffer.
//
// A Raw is exactly two machine words. The first word (the length slot)
// holds the byte length of a heap-backed string. The second word (the
// discriminant slot) is always stored big-endian, so its least significant
// byte is the last byte of the handle on every host:
//
//	inline:  | content[0 : 2W-1] ............................ | len<<1|1 |
//	heap:    | length (host order)  | buffer reference (big-endian, even) |
//
// An odd discriminant means the content lives inline, in the leading bytes
// of the handle. An even, non-zero discriminant is a buffer reference handed
// out by an Allocator. The zero Raw has discriminant 0, which no constructor
// produces; it stands for an absent handle.
package rawstr

import (
	"encoding/binary"
	"math/bits"
)

const (
	// WordSize is the size of a machine word in bytes.
	WordSize = bits.UintSize / 8

	// Size is the size of a Raw in bytes.
	Size = 2 * WordSize

	// InlineCap is the longest string stored without a heap buffer: 15
	// bytes on 64-bit hosts, 7 on 32-bit hosts. The last byte of the
	// handle is reserved for the inline tag.
	InlineCap = Size - 1
)

// emptyTag is the discriminant of the empty inline string.
const emptyTag = 1

var hostOrder binary.ByteOrder = binary.NativeEndian

// Raw is the two-word string handle. It owns its heap buffer, if any,
// exclusively: copy it with Heap.Clone, never by assignment.
type Raw struct {
	_ [0]func() // not comparable

	b [Size]byte
}

// Mode tells where the content of a Raw lives.
type Mode uint8

const (
	ModeAbsent Mode = iota // zero value, no content
	ModeInline             // content stored in the handle itself
	ModeHeap               // content stored in an allocator buffer
)

func (m Mode) String() string {
	switch m {
	case ModeInline:
		return "inline"
	case ModeHeap:
		return "heap"
	}
	return "absent"
}

// Layout is the decoded form of a handle.
type Layout struct {
	Mode Mode
	Len  int
	Ref  uint // buffer reference, only set for ModeHeap
}

func getWord(order binary.ByteOrder, b []byte) uint {
	if WordSize == 8 {
		return uint(order.Uint64(b))
	}
	return uint(order.Uint32(b))
}

func putWord(order binary.ByteOrder, b []byte, v uint) {
	if WordSize == 8 {
		order.PutUint64(b, uint64(v))
		return
	}
	order.PutUint32(b, uint32(v))
}

// EncodeDiscriminant returns the word to store, in host byte order, in the
// discriminant slot so that the bytes of v end up big-endian. It is its own
// inverse on either host byte order.
func EncodeDiscriminant(v uint) uint {
	return encodeDiscriminantFor(hostOrder, v)
}

// DecodeDiscriminant recovers the logical value from a discriminant slot
// word read in host byte order.
func DecodeDiscriminant(raw uint) uint {
	return decodeDiscriminantFor(hostOrder, raw)
}

func encodeDiscriminantFor(order binary.ByteOrder, v uint) uint {
	var buf [WordSize]byte
	putWord(binary.BigEndian, buf[:], v)
	return getWord(order, buf[:])
}

func decodeDiscriminantFor(order binary.ByteOrder, raw uint) uint {
	var buf [WordSize]byte
	putWord(order, buf[:], raw)
	return getWord(binary.BigEndian, buf[:])
}

// inlineTag is the discriminant low byte for an inline string of n bytes.
func inlineTag(n int) uint {
	return uint(n)<<1 | 1
}

// New returns the empty inline string. It never allocates.
func New() Raw {
	var r Raw
	r.setInline(0)
	return r
}

func (r *Raw) lengthSlot() uint {
	return getWord(hostOrder, r.b[:WordSize])
}

func (r *Raw) setLengthSlot(n uint) {
	putWord(hostOrder, r.b[:WordSize], n)
}

// Discriminant returns the decoded logical value of the discriminant slot.
// For inline strings only the low byte is the tag; the remaining bytes are
// string content.
func (r *Raw) Discriminant() uint {
	return DecodeDiscriminant(getWord(hostOrder, r.b[WordSize:]))
}

func (r *Raw) setDiscriminant(v uint) {
	putWord(hostOrder, r.b[WordSize:], EncodeDiscriminant(v))
}

// setInline writes the inline tag for n bytes without touching the content
// that shares the discriminant word.
func (r *Raw) setInline(n int) {
	r.setDiscriminant(r.Discriminant()&^0xff | inlineTag(n))
}

func (r *Raw) setHeap(ref uint, n int) {
	r.setLengthSlot(uint(n))
	r.setDiscriminant(ref)
}

// Classify decodes the discriminant.
func (r *Raw) Classify() Layout {
	d := r.Discriminant()
	switch {
	case d == 0:
		return Layout{Mode: ModeAbsent}
	case d&1 == 1:
		return Layout{Mode: ModeInline, Len: int(uint8(d) >> 1)}
	default:
		return Layout{Mode: ModeHeap, Len: int(r.lengthSlot()), Ref: d}
	}
}

// Valid reports whether r was produced by a constructor and not released.
func (r *Raw) Valid() bool {
	return r.Discriminant() != 0
}

// IsInline reports whether the content of r is stored in r itself.
func (r *Raw) IsInline() bool {
	return r.Discriminant()&1 == 1
}

// Len returns the length of the content in bytes.
func (r *Raw) Len() int {
	return r.Classify().Len
}

// Image returns a copy of the handle's physical bytes.
func (r *Raw) Image() [Size]byte {
	return r.b
}

// inlineBytes returns a view over the first n bytes of the handle.
func (r *Raw) inlineBytes(n int) []byte {
	return r.b[:n:n]
}
