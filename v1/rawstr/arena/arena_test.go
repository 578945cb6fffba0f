// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package arena

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"

	"github.com/open-policy-agent/compactstr/v1/logging"
)

func TestArenaAllocFree(t *testing.T) {
	a := New()

	ref, buf, err := a.Alloc(100)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	if ref == 0 || ref%2 != 0 {
		t.Fatalf("Expected even non-zero reference, got %#x", ref)
	}
	if len(buf) != 100 {
		t.Fatalf("Expected buffer of 100 bytes, got %d", len(buf))
	}

	copy(buf, strings.Repeat("x", 100))
	if got := a.Buffer(ref); !bytes.Equal(got, buf) {
		t.Fatalf("Buffer returned different content")
	}

	if a.Live() != 1 {
		t.Fatalf("Expected 1 live buffer, got %d", a.Live())
	}

	a.Free(ref)

	if a.Live() != 0 {
		t.Fatalf("Expected 0 live buffers, got %d", a.Live())
	}
	if a.Buffer(ref) != nil {
		t.Fatalf("Expected nil buffer for freed reference")
	}

	stats := a.Stats()
	if stats.Allocs != 1 || stats.Frees != 1 || stats.LiveBytes != 0 || stats.Segments != 1 {
		t.Fatalf("Unexpected stats: %+v", stats)
	}
}

func TestArenaLazySegments(t *testing.T) {
	a := New()
	if s := a.Stats(); s.Segments != 0 {
		t.Fatalf("Expected no segments before first Alloc, got %d", s.Segments)
	}
}

func TestArenaFreelistReuse(t *testing.T) {
	a := New()

	r1, _, _ := a.Alloc(16)
	r2, _, _ := a.Alloc(16)
	if r1 == r2 {
		t.Fatalf("Expected distinct references, got %#x twice", r1)
	}

	a.Free(r1)

	r3, _, err := a.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	idx1, gen1 := decode(r1)
	idx3, gen3 := decode(r3)
	if idx3 != idx1 || gen3 != gen1+1 {
		t.Fatalf("Expected slot %d to be reused with the next generation, got slot %d gen %d", idx1, idx3, gen3)
	}
	if len(a.Buffer(r3)) != 64 {
		t.Fatalf("Expected reused slot to hold a 64 byte buffer")
	}
}

func TestArenaStaleReference(t *testing.T) {
	a := New()

	stale, _, _ := a.Alloc(20)
	a.Free(stale)

	fresh, buf, _ := a.Alloc(20)
	copy(buf, strings.Repeat("b", 20))

	if fresh == stale {
		t.Fatalf("Expected a new reference for the reused slot, got %#x again", fresh)
	}
	if a.Buffer(stale) != nil {
		t.Fatal("Stale reference resolved to the buffer of the slot's new owner")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("Expected panic freeing a stale reference")
			}
		}()
		a.Free(stale)
	}()

	if a.Live() != 1 || !bytes.Equal(a.Buffer(fresh), buf) {
		t.Fatal("Freeing a stale reference affected the live buffer")
	}
}

func TestRefEncoding(t *testing.T) {
	for _, tc := range []struct {
		idx int32
		gen uint
	}{
		{0, 0},
		{1, 7},
		{MaxSegments*SegmentSize - 1, genMask},
	} {
		ref := Ref(tc.idx, tc.gen)
		if ref == 0 || ref%2 != 0 {
			t.Fatalf("Expected even non-zero reference, got %#x", ref)
		}
		if idx, gen := decode(ref); idx != tc.idx || gen != tc.gen {
			t.Fatalf("Expected (%d, %d), got (%d, %d)", tc.idx, tc.gen, idx, gen)
		}
	}

	if idx, _ := decode(0); idx != -1 {
		t.Fatalf("Expected zero reference to be invalid, got slot %d", idx)
	}
}

func TestArenaDoubleFree(t *testing.T) {
	a := New()
	ref, _, _ := a.Alloc(20)
	a.Free(ref)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected panic on double free")
		}
	}()
	a.Free(ref)
}

func TestArenaInvalidReference(t *testing.T) {
	a := New()
	_, _, _ = a.Alloc(20)

	for _, ref := range []uint{0, 1, 3, Ref(SegmentSize*3, 0)} {
		if a.Buffer(ref) != nil {
			t.Errorf("Expected nil buffer for reference %#x", ref)
		}
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected panic freeing an odd reference")
		}
	}()
	a.Free(7)
}

func TestArenaSegmentLimit(t *testing.T) {
	a := NewWithOpts(WithMaxSegments(1))

	for i := 0; i < SegmentSize; i++ {
		if _, _, err := a.Alloc(1); err != nil {
			t.Fatalf("Alloc %d failed: %v", i, err)
		}
	}

	if _, _, err := a.Alloc(1); !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}
}

func TestArenaNegativeSize(t *testing.T) {
	if _, _, err := New().Alloc(-1); err == nil {
		t.Fatal("Expected error for negative size")
	}
}

func TestArenaBufferCache(t *testing.T) {
	a := NewWithOpts(WithBufferCache(4))

	ref, buf, _ := a.Alloc(32)
	a.Free(ref)

	_, again, _ := a.Alloc(32)
	if &again[0] != &buf[0] {
		t.Fatal("Expected freed buffer to be handed out again")
	}

	_, _, _ = a.Alloc(32)
	if s := a.Stats(); s.Reused != 1 {
		t.Fatalf("Expected 1 reused buffer, got %d", s.Reused)
	}
}

func TestArenaBufferCacheHoldsManyOfOneSize(t *testing.T) {
	a := NewWithOpts(WithBufferCache(2))

	refs := make([]uint, 3)
	bufs := make([][]byte, 3)
	for i := range refs {
		refs[i], bufs[i], _ = a.Alloc(64)
	}
	for _, ref := range refs {
		a.Free(ref)
	}

	if n := a.cache.len(); n != 2 {
		t.Fatalf("Expected cache to hold 2 buffers, got %d", n)
	}

	// The two most recently freed buffers come back, newest first.
	for _, want := range [][]byte{bufs[2], bufs[1]} {
		_, got, _ := a.Alloc(64)
		if &got[0] != &want[0] {
			t.Fatal("Expected a cached buffer to be handed out again")
		}
	}

	_, _, _ = a.Alloc(64)
	if s := a.Stats(); s.Reused != 2 {
		t.Fatalf("Expected 2 reused buffers, got %d", s.Reused)
	}
}

func TestArenaBufferCacheMixedSizes(t *testing.T) {
	a := NewWithOpts(WithBufferCache(3))

	r1, b1, _ := a.Alloc(16)
	r2, b2, _ := a.Alloc(32)
	a.Free(r1)
	a.Free(r2)

	_, got, _ := a.Alloc(32)
	if &got[0] != &b2[0] {
		t.Fatal("Expected the 32 byte buffer to be reused")
	}
	_, got, _ = a.Alloc(16)
	if &got[0] != &b1[0] {
		t.Fatal("Expected the 16 byte buffer to be reused")
	}
	if n := a.cache.len(); n != 0 {
		t.Fatalf("Expected empty cache, got %d entries", n)
	}
}

func TestArenaResetReportsLeaks(t *testing.T) {
	var out bytes.Buffer
	logger := logging.New()
	logger.SetOutput(&out)

	a := NewWithOpts(WithLogger(logger))
	_, _, _ = a.Alloc(40)
	_, _, _ = a.Alloc(40)

	a.Reset()

	if !strings.Contains(out.String(), "reset with live buffers") {
		t.Fatalf("Expected leak warning, got %q", out.String())
	}
	if s := a.Stats(); s.Live != 0 || s.Segments != 0 {
		t.Fatalf("Expected empty arena after reset, got %+v", s)
	}

	ref, _, err := a.Alloc(1)
	if err != nil || ref != Ref(0, 0) {
		t.Fatalf("Expected first slot after reset, got %#x (err: %v)", ref, err)
	}
}

func TestArenaConcurrentAllocFree(t *testing.T) {
	a := New()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 1000; i++ {
				ref, buf, err := a.Alloc(24)
				if err != nil {
					return err
				}
				buf[0] = byte(i)
				if got := a.Buffer(ref); got[0] != byte(i) {
					return errors.New("buffer shared between owners")
				}
				a.Free(ref)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if a.Live() != 0 {
		t.Fatalf("Expected no live buffers, got %d", a.Live())
	}
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewWithOpts(WithRegisterer(reg))

	r1, _, _ := a.Alloc(30)
	_, _, _ = a.Alloc(50)
	a.Free(r1)

	expected := `
# HELP compactstr_arena_live_buffers Number of heap buffers currently owned by string handles.
# TYPE compactstr_arena_live_buffers gauge
compactstr_arena_live_buffers 1
# HELP compactstr_arena_live_bytes Total size in bytes of live heap buffers.
# TYPE compactstr_arena_live_bytes gauge
compactstr_arena_live_bytes 50
# HELP compactstr_arena_frees_total Number of heap buffers freed.
# TYPE compactstr_arena_frees_total counter
compactstr_arena_frees_total 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"compactstr_arena_live_buffers", "compactstr_arena_live_bytes", "compactstr_arena_frees_total")
	if err != nil {
		t.Fatal(err)
	}

	if n := testutil.CollectAndCount(NewCollector(a)); n != 6 {
		t.Fatalf("Expected 6 metrics, got %d", n)
	}
}
