package resource

import (
	"testing"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/driver/null"
)

// buildSet wires a layout with one uniform buffer at binding 0 and one
// combined image sampler at binding 1 through a fresh pool.
func buildSet(t *testing.T, device *null.Device, buffers BindingMap[driver.BufferInfo], images BindingMap[driver.ImageInfo]) *DescriptorSet {
	t.Helper()
	layout := testLayout(t, device, []ShaderResource{
		uniformBinding(0, "camera"),
		samplerBinding(1, "albedo"),
	})
	pool, err := NewDescriptorPool(device, layout, 4)
	if err != nil {
		t.Fatalf("NewDescriptorPool() error = %v", err)
	}
	s, err := NewDescriptorSet(device, layout, pool, buffers, images)
	if err != nil {
		t.Fatalf("NewDescriptorSet() error = %v", err)
	}
	return s
}

func TestDescriptorSetPrepare(t *testing.T) {
	device := null.New()
	s := buildSet(t, device,
		bufferAt(0, 0, driver.BufferInfo{Buffer: 3, Range: 256}),
		imageAt(1, 0, driver.ImageInfo{Sampler: 4, View: 5}))

	writes := s.Writes()
	if len(writes) != 2 {
		t.Fatalf("len(Writes()) = %d, want 2", len(writes))
	}
	if writes[0].Binding != 0 || writes[0].Buffer == nil || writes[0].Buffer.Range != 256 {
		t.Errorf("buffer write = %+v", writes[0])
	}
	if writes[1].Binding != 1 || writes[1].Image == nil || writes[1].Image.View != 5 {
		t.Errorf("image write = %+v", writes[1])
	}
	if writes[0].Type != driver.DescriptorTypeUniformBuffer {
		t.Errorf("buffer write type = %v, want uniform buffer", writes[0].Type)
	}
}

func TestDescriptorSetPrepareClampsRange(t *testing.T) {
	device := null.New()
	s := buildSet(t, device,
		bufferAt(0, 0, driver.BufferInfo{Buffer: 3, Range: 1 << 20}),
		nil)

	limit := uint64(device.Limits().MaxUniformBufferRange)
	if got := s.Writes()[0].Buffer.Range; got != limit {
		t.Errorf("clamped range = %d, want device limit %d", got, limit)
	}
	if got := s.BufferInfos()[0][0].Range; got != limit {
		t.Errorf("binding map range = %d, want device limit %d", got, limit)
	}
}

func TestDescriptorSetSkipsMissingBinding(t *testing.T) {
	device := null.New()
	buffers := bufferAt(0, 0, driver.BufferInfo{Buffer: 3, Range: 256})
	buffers[7] = map[uint32]driver.BufferInfo{0: {Buffer: 9, Range: 64}} // layout has no binding 7

	s := buildSet(t, device, buffers, nil)
	if len(s.Writes()) != 1 {
		t.Errorf("len(Writes()) = %d, want 1: unknown binding must be skipped", len(s.Writes()))
	}
}

func TestDescriptorSetUpdateDedup(t *testing.T) {
	device := null.New()
	s := buildSet(t, device,
		bufferAt(0, 0, driver.BufferInfo{Buffer: 3, Range: 256}),
		imageAt(1, 0, driver.ImageInfo{Sampler: 4, View: 5}))

	if err := s.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if device.UpdateBatches() != 1 || device.WritesApplied() != 2 {
		t.Fatalf("first Update(): %d batches, %d writes; want 1, 2",
			device.UpdateBatches(), device.WritesApplied())
	}

	// Nothing changed: no device traffic at all.
	if err := s.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if device.UpdateBatches() != 1 {
		t.Errorf("redundant Update() issued a device batch")
	}

	// Rewriting one binding resends exactly that binding.
	s.SetBufferInfo(0, 0, driver.BufferInfo{Buffer: 8, Range: 256})
	if err := s.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if device.UpdateBatches() != 2 {
		t.Fatalf("UpdateBatches() = %d, want 2", device.UpdateBatches())
	}
	last := device.LastUpdate()
	if len(last) != 1 || last[0].Binding != 0 || last[0].Buffer.Buffer != 8 {
		t.Errorf("changed-binding batch = %+v, want one write for binding 0", last)
	}
}

func TestDescriptorSetUpdateSubset(t *testing.T) {
	device := null.New()
	s := buildSet(t, device,
		bufferAt(0, 0, driver.BufferInfo{Buffer: 3, Range: 256}),
		imageAt(1, 0, driver.ImageInfo{Sampler: 4, View: 5}))

	if err := s.Update(1); err != nil {
		t.Fatalf("Update(1) error = %v", err)
	}
	last := device.LastUpdate()
	if len(last) != 1 || last[0].Binding != 1 {
		t.Errorf("subset batch = %+v, want only binding 1", last)
	}

	// The unlisted binding is still pending and goes out on the next full pass.
	if err := s.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	last = device.LastUpdate()
	if len(last) != 1 || last[0].Binding != 0 {
		t.Errorf("follow-up batch = %+v, want only binding 0", last)
	}
}

func TestDescriptorSetReset(t *testing.T) {
	device := null.New()
	s := buildSet(t, device,
		bufferAt(0, 0, driver.BufferInfo{Buffer: 3, Range: 256}),
		nil)
	if err := s.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	s.Reset(bufferAt(0, 0, driver.BufferInfo{Buffer: 9, Range: 128}), nil)
	if len(s.Writes()) != 0 {
		t.Fatalf("Writes() not cleared by Reset")
	}

	s.Prepare()
	if err := s.Update(); err != nil {
		t.Fatalf("Update() after reset error = %v", err)
	}
	last := device.LastUpdate()
	if len(last) != 1 || last[0].Buffer.Buffer != 9 {
		t.Errorf("post-reset batch = %+v, want the new buffer", last)
	}
}

func TestDescriptorSetSwapImageViewRehash(t *testing.T) {
	device := null.New()
	s := buildSet(t, device,
		nil,
		imageAt(1, 0, driver.ImageInfo{Sampler: 4, View: 5}))
	oldHash := s.Hash()

	affected := s.SwapImageView(5, 17)
	if len(affected) != 1 || affected[0].Image.View != 17 {
		t.Fatalf("SwapImageView() affected = %+v, want one write with the new view", affected)
	}
	if s.ImageInfos()[1][0].View != 17 {
		t.Errorf("binding map still holds the old view")
	}

	if s.Rehash() == oldHash {
		t.Errorf("Rehash() returned the stale key")
	}
	if s.Hash() != HashDescriptorSet(s.Layout(), s.BufferInfos(), s.ImageInfos()) {
		t.Errorf("Rehash() does not match a fresh content hash")
	}

	// Swapping a view nothing binds is a no-op.
	if affected := s.SwapImageView(99, 100); len(affected) != 0 {
		t.Errorf("SwapImageView(unbound) affected = %+v, want none", affected)
	}
}

func TestDescriptorSetFree(t *testing.T) {
	device := null.New()
	s := buildSet(t, device,
		bufferAt(0, 0, driver.BufferInfo{Buffer: 3, Range: 256}),
		nil)
	pool := s.Pool()

	if err := s.Free(); err != nil {
		t.Fatalf("Free() error = %v", err)
	}
	if pool.Live(0) != 0 {
		t.Errorf("Live(0) = %d after free, want 0", pool.Live(0))
	}
	if err := s.Free(); err != nil {
		t.Errorf("second Free() error = %v, want nil no-op", err)
	}
}
