package store

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOrCreate(t *testing.T) {
	s := New[string]()

	createCalled := 0
	build := func() (string, error) {
		createCalled++
		return "pipeline-a", nil
	}

	v, err := s.GetOrCreate(1, build)
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	if v != "pipeline-a" {
		t.Errorf("GetOrCreate() = %q, want %q", v, "pipeline-a")
	}
	if createCalled != 1 {
		t.Errorf("build called %d times, want 1", createCalled)
	}

	// Second request for the same key must not rebuild.
	v, err = s.GetOrCreate(1, build)
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	if v != "pipeline-a" {
		t.Errorf("GetOrCreate() = %q, want %q", v, "pipeline-a")
	}
	if createCalled != 1 {
		t.Errorf("build called %d times after hit, want 1", createCalled)
	}

	stats := s.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses, want 1, 1", stats.Hits, stats.Misses)
	}
}

func TestGetOrCreateBuildError(t *testing.T) {
	s := New[string]()
	buildErr := errors.New("device lost")

	_, err := s.GetOrCreate(7, func() (string, error) {
		return "", buildErr
	})
	if !errors.Is(err, buildErr) {
		t.Fatalf("GetOrCreate() err = %v, want %v", err, buildErr)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after failed build, want 0", s.Len())
	}

	// A failed build must not poison the key.
	v, err := s.GetOrCreate(7, func() (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	if v != "ok" {
		t.Errorf("GetOrCreate() = %q, want %q", v, "ok")
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	s := New[*int]()

	var createCalled atomic.Int32
	const goroutines = 32

	var wg sync.WaitGroup
	results := make([]*int, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.GetOrCreate(42, func() (*int, error) {
				createCalled.Add(1)
				n := 42
				return &n, nil
			})
			if err != nil {
				t.Errorf("GetOrCreate() error: %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := createCalled.Load(); got != 1 {
		t.Errorf("build called %d times under contention, want 1", got)
	}
	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Errorf("goroutine %d got a different object", i)
		}
	}
}

func TestGetOrCreateConcurrentDistinctKeys(t *testing.T) {
	s := New[uint64]()

	const keys = 64
	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		wg.Add(1)
		go func(k uint64) {
			defer wg.Done()
			_, err := s.GetOrCreate(k, func() (uint64, error) {
				return k * 2, nil
			})
			if err != nil {
				t.Errorf("GetOrCreate(%d) error: %v", k, err)
			}
		}(uint64(i))
	}
	wg.Wait()

	if s.Len() != keys {
		t.Errorf("Len() = %d, want %d", s.Len(), keys)
	}
}

func TestMutateMovesEntry(t *testing.T) {
	s := New[string]()
	s.Insert(10, "set")

	s.Mutate(func(entries map[uint64]string) {
		v := entries[10]
		delete(entries, 10)
		entries[99] = v
	})

	if _, ok := s.Get(10); ok {
		t.Error("entry still reachable under old key")
	}
	v, ok := s.Get(99)
	if !ok || v != "set" {
		t.Errorf("Get(99) = %q, %v, want %q, true", v, ok, "set")
	}
}

func TestClearDestroy(t *testing.T) {
	s := New[int]()
	s.Insert(1, 100)
	s.Insert(2, 200)

	destroyed := 0
	s.Clear(func(int) { destroyed++ })

	if destroyed != 2 {
		t.Errorf("destroy called %d times, want 2", destroyed)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", s.Len())
	}
	stats := s.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("stats not reset: %+v", stats)
	}
}

func TestKeys(t *testing.T) {
	s := New[int]()
	for _, k := range []uint64{5, 3, 9} {
		s.Insert(k, int(k))
	}

	keys := s.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	want := []uint64{3, 5, 9}
	if len(keys) != len(want) {
		t.Fatalf("Keys() returned %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %d, want %d", i, keys[i], want[i])
		}
	}
}
