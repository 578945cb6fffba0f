// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/open-policy-agent/compactstr/v1/rawstr"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := Command("rawstr")
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestInspectJSON(t *testing.T) {
	long := strings.Repeat("x", rawstr.InlineCap+1)

	stdout, _, err := execute(t, "inspect", "--format", "json", "", "hi", long)
	if err != nil {
		t.Fatal(err)
	}

	var results []inspectResult
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("Unexpected output %q: %v", stdout, err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	for i, want := range []struct {
		text string
		mode string
		disc string
	}{
		{"", "inline", "0x1"},
		{"hi", "inline", ""},
		{long, "heap", ""},
	} {
		got := results[i]
		if got.Text != want.text || got.Mode != want.mode || got.Len != len(want.text) {
			t.Fatalf("Result %d: unexpected %+v", i, got)
		}
		if want.disc != "" && got.Discriminant != want.disc {
			t.Fatalf("Result %d: expected discriminant %s, got %s", i, want.disc, got.Discriminant)
		}
		if len(got.Image) != 2*rawstr.Size {
			t.Fatalf("Result %d: expected %d hex digits, got %q", i, 2*rawstr.Size, got.Image)
		}
	}

	if results[1].Ref != 0 || results[2].Ref == 0 || results[2].Ref%2 != 0 {
		t.Fatalf("Unexpected references %d and %d", results[1].Ref, results[2].Ref)
	}
}

func TestInspectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inputs.yaml")
	if err := os.WriteFile(path, []byte("- one\n- two\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "inspect", "--format=json", "-f", path, "zero")
	if err != nil {
		t.Fatal(err)
	}

	var results []inspectResult
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatal(err)
	}

	got := make([]string, len(results))
	for i, r := range results {
		got[i] = r.Text
	}
	if diff := cmp.Diff([]string{"zero", "one", "two"}, got); diff != "" {
		t.Fatalf("Unexpected inputs (-want +got):\n%s", diff)
	}
}

func TestInspectPretty(t *testing.T) {
	stdout, _, err := execute(t, "inspect", "pretty output")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"\"pretty output\"", "inline", "13"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("Expected output to contain %q, got:\n%s", want, stdout)
		}
	}
}

func TestInspectErrors(t *testing.T) {
	tests := []struct {
		note string
		args []string
		err  string
	}{
		{"no input", []string{"inspect"}, "at least one string"},
		{"missing file", []string{"inspect", "-f", filepath.Join(t.TempDir(), "missing.json")}, "no such file"},
		{"bad format", []string{"inspect", "--format", "xml", "x"}, "invalid output format"},
		{"bad log level", []string{"inspect", "--log-level", "loud", "x"}, "invalid log level"},
		{"bad max segments", []string{"inspect", "--max-segments", "0", "x"}, "max-segments"},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			_, _, err := execute(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.err) {
				t.Fatalf("Expected error containing %q, got %v", tc.err, err)
			}
		})
	}
}

func TestStatsJSON(t *testing.T) {
	stdout, _, err := execute(t, "stats", "--format", "json", "--count", "1000", "--length", "40", "--workers", "3")
	if err != nil {
		t.Fatal(err)
	}

	var res statsResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("Unexpected output %q: %v", stdout, err)
	}

	if res.Peak.Live != 1000 || res.Peak.LiveBytes != 40000 {
		t.Fatalf("Unexpected peak stats %+v", res.Peak)
	}

	want := res.Final
	want.Live, want.LiveBytes = 0, 0
	if diff := cmp.Diff(want, res.Final); diff != "" || res.Final.Allocs != 1000 || res.Final.Frees != 1000 {
		t.Fatalf("Expected every buffer to be released, got %+v", res.Final)
	}

	if diff := cmp.Diff(map[string]float64{
		"compactstr_arena_live_buffers": 0,
		"compactstr_arena_live_bytes":   0,
		"compactstr_arena_allocs_total": 1000,
		"compactstr_arena_frees_total":  1000,
		"compactstr_arena_reused_total": 0,
	}, res.Metrics, cmpopts.IgnoreMapEntries(func(k string, _ float64) bool {
		return k == "compactstr_arena_segments"
	})); diff != "" {
		t.Fatalf("Unexpected metrics (-want +got):\n%s", diff)
	}
}

func TestStatsInline(t *testing.T) {
	stdout, _, err := execute(t, "stats", "--format", "json", "--count", "100", "--length", "4")
	if err != nil {
		t.Fatal(err)
	}

	var res statsResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatal(err)
	}
	if res.Peak.Allocs != 0 || res.Peak.Segments != 0 {
		t.Fatalf("Expected short strings to stay inline, got %+v", res.Peak)
	}
}

func TestStatsPretty(t *testing.T) {
	stdout, _, err := execute(t, "stats", "--count", "10", "--length", "64", "--workers", "2", "--buffer-cache", "4")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"handles: 10 of 64 bytes, workers: 2", "peak", "final", "compactstr_arena_allocs_total"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("Expected output to contain %q, got:\n%s", want, stdout)
		}
	}
}

func TestStatsExhausted(t *testing.T) {
	_, _, err := execute(t, "stats", "--count", "600", "--length", "64", "--workers", "1", "--max-segments", "1")
	if err == nil || !strings.Contains(err.Error(), "allocation failed") {
		t.Fatalf("Expected allocation failure, got %v", err)
	}
}

func TestStatsInvalidParams(t *testing.T) {
	_, _, err := execute(t, "stats", "--workers", "0")
	if err == nil || !strings.Contains(err.Error(), "workers must be positive") {
		t.Fatalf("Expected parameter error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("COMPACTSTR_FORMAT", "json")

	stdout, _, err := execute(t, "inspect", "env")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "[") {
		t.Fatalf("Expected JSON output selected through the environment, got:\n%s", stdout)
	}

	// Flags on the command line take precedence.
	stdout, _, err = execute(t, "inspect", "--format", "pretty", "env")
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(stdout, "[") {
		t.Fatalf("Expected pretty output, got:\n%s", stdout)
	}
}

func TestDebugLogging(t *testing.T) {
	_, stderr, err := execute(t, "stats", "--log-level", "debug", "--log-format", "json", "--count", "1", "--length", "64", "--workers", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, `"level":"debug"`) || !strings.Contains(stderr, "built and released 1 handles") {
		t.Fatalf("Expected debug log output, got:\n%s", stderr)
	}
}

func TestInspectRejectsInvalidUTF8(t *testing.T) {
	stdout, _, err := execute(t, "inspect", "fine", "ok\xff")

	var utfErr *rawstr.UTF8Error
	if !errors.As(err, &utfErr) || utfErr.ValidUpTo != 2 {
		t.Fatalf("Expected UTF-8 error at index 2, got %v", err)
	}
	if !strings.Contains(err.Error(), "input 1") {
		t.Fatalf("Expected error to name the input, got %v", err)
	}
	if stdout != "" {
		t.Fatalf("Expected no output, got:\n%s", stdout)
	}
}
