// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package rawstr

var defaultHeap = NewHeap()

// Default returns the Heap used by the package-level functions.
func Default() *Heap {
	return defaultHeap
}

// FromBytes builds a handle on the default heap.
func FromBytes(b []byte) Raw {
	return defaultHeap.FromBytes(b)
}

// FromString builds a handle on the default heap.
func FromString(s string) Raw {
	return defaultHeap.FromString(s)
}

// FromConcatenated builds a handle on the default heap.
func FromConcatenated(parts ...[]byte) Raw {
	return defaultHeap.FromConcatenated(parts...)
}

// FromStrings builds a handle on the default heap.
func FromStrings(parts ...string) Raw {
	return defaultHeap.FromStrings(parts...)
}

// FromUTF8 builds a handle on the default heap after validating b.
func FromUTF8(b []byte) (Raw, error) {
	return defaultHeap.FromUTF8(b)
}

// FromUTF8Unchecked builds a handle on the default heap without validation.
func FromUTF8Unchecked(b []byte) Raw {
	return defaultHeap.FromUTF8Unchecked(b)
}

// Bytes returns a view of a handle built on the default heap.
func Bytes(r *Raw) []byte {
	return defaultHeap.Bytes(r)
}

// String returns a copy of the content of a default heap handle.
func String(r *Raw) string {
	return defaultHeap.String(r)
}

// Replace replaces the content of a default heap handle.
func Replace(r *Raw, b []byte) {
	defaultHeap.Replace(r, b)
}

// ReplaceConcatenated replaces the content of a default heap handle.
func ReplaceConcatenated(r *Raw, parts ...[]byte) {
	defaultHeap.ReplaceConcatenated(r, parts...)
}

// Clone deep-copies a default heap handle.
func Clone(r *Raw) Raw {
	return defaultHeap.Clone(r)
}

// Release releases a default heap handle.
func Release(r *Raw) {
	defaultHeap.Release(r)
}
