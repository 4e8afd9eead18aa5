package tracefile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "warm.trace")
	data := []byte("trace payload")

	if err := Save(context.Background(), path, data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Load() = %q, want %q", got, data)
	}

	// No temp files left behind in the trace directory.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warm.trace")

	if err := Save(context.Background(), path, []byte("old")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := Save(context.Background(), path, []byte("new")); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	got, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Load() = %q, want %q", got, "new")
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.trace")
	if _, err := Load(context.Background(), path); err == nil {
		t.Error("Load() of a missing trace succeeded")
	}
}

func TestConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warm.trace")

	// Equal-length payloads with distinct fill; the survivor must be one of
	// them intact, never a mix.
	payloads := make([][]byte, 8)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 4096)
	}

	var wg sync.WaitGroup
	for _, p := range payloads {
		wg.Add(1)
		go func(p []byte) {
			defer wg.Done()
			if err := Save(context.Background(), path, p); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(p)
	}
	wg.Wait()

	got, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	intact := false
	for _, p := range payloads {
		if bytes.Equal(got, p) {
			intact = true
			break
		}
	}
	if !intact {
		t.Errorf("loaded trace matches none of the written payloads (%d bytes)", len(got))
	}
}
