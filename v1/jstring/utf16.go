// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package jstring

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/open-policy-agent/compactstr/v1/rawstr"
)

// FromUTF16 decodes UTF-16 code units into a String. An unpaired surrogate
// yields an *Error with code InvalidUTF16Err whose Offset is the index of the
// offending code unit.
func FromUTF16(units []uint16) (String, error) {
	buf := make([]byte, 0, len(units))
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if utf16.IsSurrogate(r) {
			if i+1 >= len(units) {
				return String{}, invalidUTF16Error(i)
			}
			r = utf16.DecodeRune(r, rune(units[i+1]))
			if r == utf8.RuneError {
				return String{}, invalidUTF16Error(i)
			}
			i++
		}
		buf = utf8.AppendRune(buf, r)
	}
	return String{raw: rawstr.FromUTF8Unchecked(buf)}, nil
}

// FromUTF16Lossy decodes UTF-16 code units, replacing unpaired surrogates
// with U+FFFD.
func FromUTF16Lossy(units []uint16) String {
	return FromString(string(utf16.Decode(units)))
}

func utf16Encoding(bigEndian bool) encoding.Encoding {
	order := unicode.LittleEndian
	if bigEndian {
		order = unicode.BigEndian
	}
	return unicode.UTF16(order, unicode.IgnoreBOM)
}

// FromUTF16Bytes decodes UTF-16 encoded bytes in the given byte order.
// Unpaired surrogates are replaced with U+FFFD; an odd number of bytes is
// an error.
func FromUTF16Bytes(b []byte, bigEndian bool) (String, error) {
	if len(b)%2 != 0 {
		return String{}, &Error{
			Code:    InvalidUTF16Err,
			Message: fmt.Sprintf("odd number of bytes (%d) in UTF-16 input", len(b)),
			Offset:  len(b) / 2,
		}
	}
	out, err := utf16Encoding(bigEndian).NewDecoder().Bytes(b)
	if err != nil {
		return String{}, &Error{Code: InvalidUTF16Err, Message: err.Error(), err: err}
	}
	return String{raw: rawstr.FromUTF8Unchecked(out)}, nil
}

// EncodeUTF16 returns the UTF-16 code units of s.
func (s String) EncodeUTF16() []uint16 {
	return utf16.Encode(s.Chars())
}

// EncodeUTF16Bytes returns the UTF-16 encoding of s in the given byte order,
// without a byte order mark.
func (s String) EncodeUTF16Bytes(bigEndian bool) ([]byte, error) {
	return utf16Encoding(bigEndian).NewEncoder().Bytes(rawstr.Bytes(&s.raw))
}

func invalidUTF16Error(idx int) *Error {
	return &Error{
		Code:    InvalidUTF16Err,
		Message: fmt.Sprintf("unpaired surrogate at code unit %d", idx),
		Offset:  idx,
	}
}
