// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package jstring provides String, an immutable-content string that is two
// machine words wide.
//
// String uses short string optimization and has no capacity field. Up to
// rawstr.InlineCap bytes (15 on 64-bit hosts) are stored in the value
// itself; longer strings use exactly one heap buffer of exactly their
// length. Every mutation rebuilds the whole value, so appending in a loop is
// quadratic: build the content elsewhere and convert once.
//
// A String owns its heap buffer. Copy it with Clone and give the buffer back
// with Release; a String that is dropped without Release keeps its buffer
// alive in the default arena.
package jstring

import (
	"bytes"
	"strconv"
	"unicode/utf8"
	"unique"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/open-policy-agent/compactstr/v1/rawstr"
)

// String is a two-word string handle backed by the default rawstr heap.
type String struct {
	raw rawstr.Raw
}

// New creates a new empty String.
//
// Given that the String is empty, this will not allocate any initial
// buffer.
func New() String {
	return String{raw: rawstr.New()}
}

// WithCapacity creates a new empty String. Included for API compatibility
// with growable strings; the capacity hint is ignored.
func WithCapacity(int) String {
	return New()
}

// FromString creates a String holding a copy of s.
//
// FromString panics with an *Error if s is not well-formed UTF-8; use
// FromUTF8 for input that has not been validated.
func FromString(s string) String {
	mustBeUTF8("from string", s)
	return String{raw: rawstr.FromString(s)}
}

// FromUTF8 creates a String from b if b is well-formed UTF-8. Otherwise it
// returns an *Error with code InvalidEncodingErr and the offset of the first
// invalid sequence.
func FromUTF8(b []byte) (String, error) {
	raw, err := rawstr.FromUTF8(b)
	if err != nil {
		return String{}, invalidUTF8Error(err)
	}
	return String{raw: raw}, nil
}

// FromUTF8Unchecked creates a String from b without validating it. The
// caller guarantees b is well-formed UTF-8.
func FromUTF8Unchecked(b []byte) String {
	return String{raw: rawstr.FromUTF8Unchecked(b)}
}

// FromHandle creates a String from an interned string. It panics like
// FromString if the interned value is not well-formed UTF-8.
func FromHandle(h unique.Handle[string]) String {
	return FromString(h.Value())
}

// mustBeUTF8 panics with an *Error if str is not well-formed UTF-8.
func mustBeUTF8(op string, str string) {
	if utf8.ValidString(str) {
		return
	}
	err := invalidUTF8Error(rawstr.ValidateUTF8(unsafeBytes(str)))
	err.Message = op + ": " + err.Message
	panic(err)
}

// unsafeBytes returns the bytes of s without copying. The result must not
// be modified.
func unsafeBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// Len returns the length of s in bytes.
func (s String) Len() int {
	return s.raw.Len()
}

// IsEmpty reports whether s has length zero.
func (s String) IsEmpty() bool {
	return s.raw.Len() == 0
}

// Capacity returns the number of bytes s can hold without rebuilding. A
// String never has spare capacity, so this always equals Len.
func (s String) Capacity() int {
	return s.raw.Len()
}

// Reserve is a no-op kept for API compatibility: a String never holds spare
// capacity.
func (s *String) Reserve(int) {}

// ReserveExact is a no-op kept for API compatibility.
func (s *String) ReserveExact(int) {}

// ShrinkToFit is a no-op: capacity always equals length.
func (s *String) ShrinkToFit() {}

// IsInline reports whether s is stored without a heap buffer.
func (s String) IsInline() bool {
	return s.raw.IsInline()
}

// Bytes returns a read-only view of the content of s. The view is only valid
// until s is next modified or released.
func (s *String) Bytes() []byte {
	return rawstr.Bytes(&s.raw)
}

// String returns the content of s as a Go string.
func (s String) String() string {
	return rawstr.String(&s.raw)
}

// GoString returns the content of s as a quoted Go string literal.
func (s String) GoString() string {
	return strconv.Quote(s.String())
}

// Chars returns the runes of s.
func (s String) Chars() []rune {
	b := rawstr.Bytes(&s.raw)
	out := make([]rune, 0, utf8.RuneCount(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}
	return out
}

// Intern returns the canonical handle for the content of s.
func (s String) Intern() unique.Handle[string] {
	return unique.Make(s.String())
}

// Clone returns a deep copy of s.
func (s String) Clone() String {
	return String{raw: rawstr.Clone(&s.raw)}
}

// Release frees the heap buffer of s, if any, and leaves s empty.
func (s *String) Release() {
	rawstr.Release(&s.raw)
	s.raw = rawstr.New()
}

// Equal reports whether s and other hold the same bytes.
func (s String) Equal(other String) bool {
	return bytes.Equal(rawstr.Bytes(&s.raw), rawstr.Bytes(&other.raw))
}

// EqualString reports whether s holds the bytes of str.
func (s String) EqualString(str string) bool {
	return string(rawstr.Bytes(&s.raw)) == str
}

// Compare compares s and other lexicographically by bytes.
func (s String) Compare(other String) int {
	return bytes.Compare(rawstr.Bytes(&s.raw), rawstr.Bytes(&other.raw))
}

// Less reports whether s sorts before other.
func (s String) Less(other String) bool {
	return s.Compare(other) < 0
}

// Hash returns the xxhash of the content of s.
func (s String) Hash() uint64 {
	return xxhash.Sum64(rawstr.Bytes(&s.raw))
}
