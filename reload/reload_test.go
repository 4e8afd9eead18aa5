package reload

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan []string, 1)

	w, err := NewWatcher(func(paths []string) { fired <- paths }, 50*time.Millisecond, ".wgsl")
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	shader := filepath.Join(dir, "tri.wgsl")
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(shader, []byte("fn main() {}"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(other, []byte("ignore"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case paths := <-fired:
		sawShader := false
		for _, p := range paths {
			if p == shader {
				sawShader = true
			}
			if p == other {
				t.Errorf("callback received filtered-out path %s", p)
			}
		}
		if !sawShader {
			t.Errorf("callback paths = %v, missing %s", paths, shader)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan []string, 4)

	w, err := NewWatcher(func(paths []string) { fired <- paths }, 100*time.Millisecond, ".wgsl")
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Editor-style burst: several writes in quick succession.
	shader := filepath.Join(dir, "tri.wgsl")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(shader, []byte("fn main() {}"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never fired")
	}

	// The burst collapses into that one invocation.
	select {
	case paths := <-fired:
		t.Errorf("debounce let a second callback through: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := NewWatcher(func([]string) {}, 0)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Add(t.TempDir()); !errors.Is(err, ErrClosed) {
		t.Errorf("Add() after Close error = %v, want ErrClosed", err)
	}
}
