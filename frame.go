package vkcache

import (
	"errors"
	"fmt"
	"sort"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/resource"
)

// DescriptorManagementStrategy selects how FrameResources handles descriptor
// sets within a frame.
type DescriptorManagementStrategy int

const (
	// StoreInCache keeps per-thread hash-keyed set tables, so equal bindings
	// reuse one set across the frame.
	StoreInCache DescriptorManagementStrategy = iota

	// CreateDirectly allocates a fresh set from the pool on every request
	// and relies on a bulk pool reset between frames.
	CreateDirectly
)

// ErrBadThreadIndex is returned for a thread index outside the range the
// FrameResources was created with.
var ErrBadThreadIndex = errors.New("vkcache: thread index out of range")

// frameThread is one worker thread's private descriptor tables.
type frameThread struct {
	pools map[uint64]*resource.DescriptorPool
	sets  map[uint64]*resource.DescriptorSet
}

// FrameResources partitions descriptor pools and sets by worker thread, so
// intra-frame descriptor allocation needs no locks at all: each thread only
// touches its own tables. The shared, mutex-guarded cache stays reserved for
// device-lifetime kinds (layouts, pipelines, render passes, framebuffers).
//
// Frame-local objects are never recorded; they bind per-frame buffers and
// views that do not exist at warmup time.
type FrameResources struct {
	cache    *ResourceCache
	strategy DescriptorManagementStrategy
	threads  []frameThread
}

// NewFrameResources creates per-thread descriptor tables over the cache's
// device. threadCount minimum is 1.
func NewFrameResources(cache *ResourceCache, threadCount int, strategy DescriptorManagementStrategy) *FrameResources {
	if threadCount < 1 {
		threadCount = 1
	}
	threads := make([]frameThread, threadCount)
	for i := range threads {
		threads[i] = frameThread{
			pools: make(map[uint64]*resource.DescriptorPool),
			sets:  make(map[uint64]*resource.DescriptorSet),
		}
	}
	return &FrameResources{
		cache:    cache,
		strategy: strategy,
		threads:  threads,
	}
}

// ThreadCount returns the number of thread partitions.
func (f *FrameResources) ThreadCount() int { return len(f.threads) }

// Strategy returns the configured descriptor management strategy.
func (f *FrameResources) Strategy() DescriptorManagementStrategy { return f.strategy }

// RequestDescriptorPool returns threadIndex's pool chain for the layout,
// creating it on first request. Only that thread may call with its index.
func (f *FrameResources) RequestDescriptorPool(threadIndex int, layout *resource.DescriptorSetLayout) (*resource.DescriptorPool, error) {
	if threadIndex < 0 || threadIndex >= len(f.threads) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadThreadIndex, threadIndex, len(f.threads))
	}
	t := &f.threads[threadIndex]

	key := resource.HashDescriptorPool(layout, f.cache.poolSize)
	if pool, ok := t.pools[key]; ok {
		return pool, nil
	}
	pool, err := resource.NewDescriptorPool(f.cache.device, layout, f.cache.poolSize)
	if err != nil {
		return nil, err
	}
	t.pools[key] = pool
	return pool, nil
}

// RequestDescriptorSet returns a set binding the given buffers and images for
// threadIndex. Under StoreInCache equal bindings share one set per thread;
// under CreateDirectly every call allocates a fresh set that lives until the
// next pool reset. Only that thread may call with its index.
func (f *FrameResources) RequestDescriptorSet(threadIndex int, layout *resource.DescriptorSetLayout, buffers resource.BindingMap[driver.BufferInfo], images resource.BindingMap[driver.ImageInfo]) (*resource.DescriptorSet, error) {
	if threadIndex < 0 || threadIndex >= len(f.threads) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadThreadIndex, threadIndex, len(f.threads))
	}
	t := &f.threads[threadIndex]

	pool, err := f.RequestDescriptorPool(threadIndex, layout)
	if err != nil {
		return nil, err
	}

	if f.strategy == CreateDirectly {
		set, err := resource.NewDescriptorSet(f.cache.device, layout, pool, buffers, images)
		if err != nil {
			return nil, err
		}
		if err := set.ApplyWrites(); err != nil {
			return nil, err
		}
		return set, nil
	}

	key := resource.HashDescriptorSet(layout, buffers, images)
	if set, ok := t.sets[key]; ok {
		return set, nil
	}
	set, err := resource.NewDescriptorSet(f.cache.device, layout, pool, buffers, images)
	if err != nil {
		return nil, err
	}
	if err := set.ApplyWrites(); err != nil {
		return nil, err
	}
	t.sets[key] = set
	return set, nil
}

// ClearDescriptors drops every thread's set table and bulk-resets every pool
// chain, invalidating all sets allocated this frame. Called between frames
// when descriptor state is rebuilt rather than updated incrementally.
func (f *FrameResources) ClearDescriptors() error {
	for i := range f.threads {
		t := &f.threads[i]
		clear(t.sets)
		for _, pool := range t.pools {
			if err := pool.Reset(); err != nil {
				return err
			}
		}
	}
	return nil
}

// BindingsToUpdate collects the binding numbers worth passing to a set's
// Update for the given candidate bindings, skipping bindings the layout does
// not carry and bindings flagged update-after-bind, which are written through
// a separate path after the set is bound. The result is ascending.
func BindingsToUpdate(layout *resource.DescriptorSetLayout, buffers resource.BindingMap[driver.BufferInfo], images resource.BindingMap[driver.ImageInfo]) []uint32 {
	seen := make(map[uint32]bool)
	var out []uint32

	collect := func(binding uint32) {
		if seen[binding] {
			return
		}
		seen[binding] = true
		if _, ok := layout.Binding(binding); !ok {
			return
		}
		if layout.BindingFlags(binding)&driver.DescriptorBindingUpdateAfterBind != 0 {
			return
		}
		out = append(out, binding)
	}

	for binding := range buffers {
		collect(binding)
	}
	for binding := range images {
		collect(binding)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
