package testutil

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	// Verify non-nil error is handled correctly
	AssertError(t, errors.New("test error"))
}

func TestTempPath(t *testing.T) {
	t.Parallel()

	p := TempPath(t, "classes.bin")
	if filepath.Base(p) != "classes.bin" {
		t.Errorf("base = %s, want classes.bin", filepath.Base(p))
	}
	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		t.Errorf("temp dir missing: %v", err)
	}
}

func TestWriteTuning(t *testing.T) {
	t.Parallel()

	path := WriteTuning(t, map[string]any{"buckets": 8, "mode": "translation"})
	if filepath.Ext(path) != ".json" {
		t.Errorf("ext = %s, want .json", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	AssertNoError(t, err)

	var got map[string]any
	AssertNoError(t, json.Unmarshal(data, &got))
	if got["buckets"] != float64(8) || got["mode"] != "translation" {
		t.Errorf("unexpected tuning file: %s", data)
	}
}

func TestReadLines(t *testing.T) {
	t.Parallel()

	path := TempPath(t, "obs.jsonl")
	AssertNoError(t, os.WriteFile(path, []byte("{\"a\":1}\n\n  \n{\"a\":2}\n"), 0o644))

	lines := ReadLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), lines)
	}
	if lines[1] != `{"a":2}` {
		t.Errorf("lines[1] = %q", lines[1])
	}
}
