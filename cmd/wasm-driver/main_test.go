package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRun_NoArguments(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if code := run(nil); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
}

func TestRun_Help(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if code := run([]string{"help"}); code != 0 {
		t.Errorf("run() = %d, want 0", code)
	}
}

func TestRun_UnknownTool(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if code := run([]string{"objcopy"}); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
}

func TestRun_LdWithoutInputs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if code := run([]string{"ld", "-o", "prog"}); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
}

func TestRun_LdDryRunLink(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := t.TempDir()
	obj := filepath.Join(dir, "a.o")
	if err := os.WriteFile(obj, []byte("BC\xc0\xde\x35\x14\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "prog")

	code := run([]string{"--dry-run", "ld", "-o", out, obj})
	if code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
	if _, err := os.Stat(out); err == nil {
		t.Error("dry run produced an output file")
	}
}
