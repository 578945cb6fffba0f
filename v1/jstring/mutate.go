// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package jstring

import (
	"fmt"
	"unicode/utf8"

	"github.com/open-policy-agent/compactstr/v1/rawstr"
)

// Every method in this file rebuilds the whole handle in one pass. Parts
// passed to rawstr may alias the current content: the new handle is built
// before the old one is released.

func (s *String) rebuild(parts ...[]byte) {
	rawstr.ReplaceConcatenated(&s.raw, parts...)
}

// isCharBoundary reports whether idx is the first byte of a UTF-8 sequence
// in b, or its end.
func isCharBoundary(b []byte, idx int) bool {
	if idx == 0 || idx == len(b) {
		return true
	}
	return idx > 0 && idx < len(b) && utf8.RuneStart(b[idx])
}

func (s *String) assertBoundary(op string, idx int) []byte {
	b := s.Bytes()
	if idx < 0 || idx > len(b) {
		panic(fmt.Sprintf("jstring: %s: index %d out of range for string of length %d", op, idx, len(b)))
	}
	if !isCharBoundary(b, idx) {
		panic(fmt.Sprintf("jstring: %s: index %d is not a char boundary", op, idx))
	}
	return b
}

// Set replaces the content of s with str. It panics with an *Error if str
// is not well-formed UTF-8.
func (s *String) Set(str string) {
	mustBeUTF8("set", str)
	s.rebuild(unsafeBytes(str))
}

// PushStr appends str to the end of s. It panics with an *Error if str is
// not well-formed UTF-8.
//
// Complexity is O(n) in the combined length.
func (s *String) PushStr(str string) {
	mustBeUTF8("push", str)
	if len(str) == 0 {
		return
	}
	s.rebuild(s.Bytes(), unsafeBytes(str))
}

// Push appends the rune ch to the end of s.
func (s *String) Push(ch rune) {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], ch)
	s.rebuild(s.Bytes(), buf[:n])
}

// Pop removes the last rune of s and returns it. It returns false if s is
// empty.
func (s *String) Pop() (rune, bool) {
	b := s.Bytes()
	if len(b) == 0 {
		return 0, false
	}
	ch, size := utf8.DecodeLastRune(b)
	s.rebuild(b[:len(b)-size])
	return ch, true
}

// Remove removes the rune starting at byte offset idx and returns it.
//
// Remove panics if idx is not a char boundary or is not smaller than the
// length of s.
func (s *String) Remove(idx int) rune {
	b := s.assertBoundary("remove", idx)
	if idx == len(b) {
		panic("jstring: remove: cannot remove a char from the end of a string")
	}
	ch, size := utf8.DecodeRune(b[idx:])
	s.rebuild(b[:idx], b[idx+size:])
	return ch
}

// Insert inserts the rune ch at byte offset idx.
//
// Insert panics if idx is larger than the length of s or is not a char
// boundary.
func (s *String) Insert(idx int, ch rune) {
	b := s.assertBoundary("insert", idx)
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], ch)
	s.rebuild(b[:idx], buf[:n], b[idx:])
}

// InsertStr inserts str at byte offset idx.
//
// InsertStr panics if idx is larger than the length of s or is not a char
// boundary, and with an *Error if str is not well-formed UTF-8.
func (s *String) InsertStr(idx int, str string) {
	b := s.assertBoundary("insert", idx)
	mustBeUTF8("insert", str)
	if len(str) == 0 {
		return
	}
	s.rebuild(b[:idx], unsafeBytes(str), b[idx:])
}

// Truncate shortens s to n bytes. It has no effect if n is greater than or
// equal to the length of s.
//
// Truncate panics if n does not lie on a char boundary or is negative.
func (s *String) Truncate(n int) {
	if n >= s.Len() {
		return
	}
	b := s.assertBoundary("truncate", n)
	s.rebuild(b[:n])
}

// Clear empties s, releasing its heap buffer.
func (s *String) Clear() {
	s.rebuild()
}

// Retain keeps only the runes for which keep returns true.
func (s *String) Retain(keep func(rune) bool) {
	b := s.Bytes()
	parts := make([][]byte, 0, 4)
	start := -1
	for i := 0; i < len(b); {
		ch, size := utf8.DecodeRune(b[i:])
		if keep(ch) {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			parts = append(parts, b[start:i])
			start = -1
		}
		i += size
	}
	if start >= 0 {
		parts = append(parts, b[start:])
	}
	s.rebuild(parts...)
}
