// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package jstring

import (
	"errors"
	"fmt"

	"github.com/open-policy-agent/compactstr/v1/rawstr"
)

const (
	// InvalidEncodingErr indicates the input bytes are not well-formed UTF-8.
	InvalidEncodingErr = "invalid_encoding_error"

	// InvalidUTF16Err indicates the input contains an unpaired surrogate
	// or a truncated code unit.
	InvalidUTF16Err = "invalid_utf16_error"
)

// Error is the error type returned by the constructors and decoders of this
// package.
type Error struct {
	Code    string
	Message string

	// Offset is the byte offset (UTF-8 input) or code unit index (UTF-16
	// input) of the first invalid sequence.
	Offset int

	err error
}

func (err *Error) Error() string {
	return fmt.Sprintf("%v: %v", err.Code, err.Message)
}

func (err *Error) Unwrap() error {
	return err.err
}

// IsInvalidEncoding returns true if err is an invalid UTF-8 or UTF-16 error.
func IsInvalidEncoding(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == InvalidEncodingErr || e.Code == InvalidUTF16Err
	}
	return false
}

func invalidUTF8Error(err error) *Error {
	e := &Error{
		Code:    InvalidEncodingErr,
		Message: err.Error(),
		err:     err,
	}
	var utfErr *rawstr.UTF8Error
	if errors.As(err, &utfErr) {
		e.Offset = utfErr.ValidUpTo
	}
	return e
}
