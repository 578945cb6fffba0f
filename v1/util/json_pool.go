// Copyright 2025 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package util

import (
	"bytes"
	"encoding/json"
	"sync"
)

// bufferPool provides a pool of reusable byte buffers for JSON operations.
var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

// getBuffer retrieves a buffer from the pool.
func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// putBuffer returns a buffer to the pool after resetting it.
func putBuffer(buf *bytes.Buffer) {
	buf.Reset()
	bufferPool.Put(buf)
}

// MarshalJSON encodes x without HTML escaping, using a pooled buffer. The
// returned slice is owned by the caller.
func MarshalJSON(x any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(x); err != nil {
		return nil, err
	}

	// Remove trailing newline added by Encoder.Encode
	bs := buf.Bytes()
	if len(bs) > 0 && bs[len(bs)-1] == '\n' {
		bs = bs[:len(bs)-1]
	}

	return bytes.Clone(bs), nil
}

// MarshalJSONIndent is MarshalJSON with two space indentation.
func MarshalJSONIndent(x any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(x); err != nil {
		return nil, err
	}

	return bytes.Clone(buf.Bytes()), nil
}
