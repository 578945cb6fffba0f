// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package rawstr

import (
	"fmt"
	"unicode/utf8"
)

// UTF8Error reports malformed UTF-8 passed to a validating constructor.
type UTF8Error struct {
	// ValidUpTo is the length of the longest well-formed prefix.
	ValidUpTo int

	// ErrorLen is the length of the malformed sequence at ValidUpTo, or 0
	// when the input ends in the middle of a sequence.
	ErrorLen int
}

func (e *UTF8Error) Error() string {
	if e.ErrorLen == 0 {
		return fmt.Sprintf("rawstr: incomplete utf-8 byte sequence from index %d", e.ValidUpTo)
	}
	return fmt.Sprintf("rawstr: invalid utf-8 sequence of %d bytes from index %d", e.ErrorLen, e.ValidUpTo)
}

// ValidateUTF8 returns a *UTF8Error describing the first malformed sequence
// in b, or nil if b is well-formed.
func ValidateUTF8(b []byte) error {
	if utf8.Valid(b) {
		return nil
	}

	i := 0
	for i < len(b) {
		if b[i] < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		i += size
	}

	return &UTF8Error{ValidUpTo: i, ErrorLen: malformedLen(b[i:])}
}

// malformedLen returns how many bytes of p belong to the malformed sequence
// at its start: the leading byte plus every continuation byte accepted
// before the failure. It returns 0 when p ends before the failure.
func malformedLen(p []byte) int {
	need, lo, hi := 0, byte(0x80), byte(0xbf)
	switch c := p[0]; {
	case c >= 0xc2 && c <= 0xdf:
		need = 2
	case c == 0xe0:
		need, lo = 3, 0xa0
	case c == 0xed:
		need, hi = 3, 0x9f
	case c >= 0xe1 && c <= 0xef:
		need = 3
	case c == 0xf0:
		need, lo = 4, 0x90
	case c == 0xf4:
		need, hi = 4, 0x8f
	case c >= 0xf1 && c <= 0xf3:
		need = 4
	default:
		return 1
	}

	for i := 1; i < need; i++ {
		if i >= len(p) {
			return 0
		}
		if p[i] < lo || p[i] > hi {
			return i
		}
		lo, hi = 0x80, 0xbf
	}

	// unreachable: every byte of a complete sequence was in range.
	return need
}
