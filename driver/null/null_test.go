package null

import (
	"errors"
	"testing"

	"github.com/DrGr4f1x/vkcache/driver"
)

func TestPoolCapacityEnforced(t *testing.T) {
	dev := New()

	pool, err := dev.CreateDescriptorPool(nil, 2, false)
	if err != nil {
		t.Fatalf("CreateDescriptorPool() error: %v", err)
	}
	layout, err := dev.CreateDescriptorSetLayout(nil, nil)
	if err != nil {
		t.Fatalf("CreateDescriptorSetLayout() error: %v", err)
	}

	if _, err := dev.AllocateDescriptorSet(pool, layout); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	set2, err := dev.AllocateDescriptorSet(pool, layout)
	if err != nil {
		t.Fatalf("second allocation: %v", err)
	}
	if _, err := dev.AllocateDescriptorSet(pool, layout); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("third allocation err = %v, want ErrPoolExhausted", err)
	}

	// Freeing returns capacity.
	if err := dev.FreeDescriptorSet(pool, set2); err != nil {
		t.Fatalf("FreeDescriptorSet() error: %v", err)
	}
	if _, err := dev.AllocateDescriptorSet(pool, layout); err != nil {
		t.Errorf("allocation after free: %v", err)
	}
}

func TestFreeUnknownSet(t *testing.T) {
	dev := New()
	pool, _ := dev.CreateDescriptorPool(nil, 4, false)

	if err := dev.FreeDescriptorSet(pool, driver.DescriptorSet(999)); !errors.Is(err, ErrUnknownSet) {
		t.Errorf("FreeDescriptorSet(unknown) err = %v, want ErrUnknownSet", err)
	}
	if err := dev.FreeDescriptorSet(driver.DescriptorPool(888), 1); !errors.Is(err, ErrUnknownPool) {
		t.Errorf("FreeDescriptorSet(bad pool) err = %v, want ErrUnknownPool", err)
	}
}

func TestResetInvalidatesSets(t *testing.T) {
	dev := New()
	pool, _ := dev.CreateDescriptorPool(nil, 4, false)
	layout, _ := dev.CreateDescriptorSetLayout(nil, nil)
	set, _ := dev.AllocateDescriptorSet(pool, layout)

	if err := dev.ResetDescriptorPool(pool); err != nil {
		t.Fatalf("ResetDescriptorPool() error: %v", err)
	}

	// Updating an invalidated set must fail.
	err := dev.UpdateDescriptorSets([]driver.WriteDescriptorSet{{Set: set, Binding: 0, Type: driver.DescriptorTypeUniformBuffer}})
	if !errors.Is(err, ErrUnknownSet) {
		t.Errorf("UpdateDescriptorSets(stale set) err = %v, want ErrUnknownSet", err)
	}

	// Capacity is back after reset.
	for i := 0; i < 4; i++ {
		if _, err := dev.AllocateDescriptorSet(pool, layout); err != nil {
			t.Fatalf("allocation %d after reset: %v", i, err)
		}
	}
}

func TestUpdateAccounting(t *testing.T) {
	dev := New()
	pool, _ := dev.CreateDescriptorPool(nil, 4, false)
	layout, _ := dev.CreateDescriptorSetLayout(nil, nil)
	set, _ := dev.AllocateDescriptorSet(pool, layout)

	writes := []driver.WriteDescriptorSet{
		{Set: set, Binding: 0, Type: driver.DescriptorTypeUniformBuffer, Buffer: &driver.BufferInfo{Buffer: 1, Range: 64}},
		{Set: set, Binding: 1, Type: driver.DescriptorTypeCombinedImageSampler, Image: &driver.ImageInfo{View: 2}},
	}
	if err := dev.UpdateDescriptorSets(writes); err != nil {
		t.Fatalf("UpdateDescriptorSets() error: %v", err)
	}

	if got := dev.UpdateBatches(); got != 1 {
		t.Errorf("UpdateBatches() = %d, want 1", got)
	}
	if got := dev.WritesApplied(); got != 2 {
		t.Errorf("WritesApplied() = %d, want 2", got)
	}
	last := dev.LastUpdate()
	if len(last) != 2 || last[1].Binding != 1 {
		t.Errorf("LastUpdate() = %+v, want the two submitted writes", last)
	}
}

func TestDestroyAccounting(t *testing.T) {
	dev := New()

	m, _ := dev.CreateShaderModule([]uint32{0x07230203})
	rp, _ := dev.CreateRenderPass(&driver.RenderPassDescriptor{})
	dev.DestroyShaderModule(m)
	dev.DestroyRenderPass(rp)

	if live := dev.LiveObjects(); live != 0 {
		t.Errorf("LiveObjects() = %d, want 0", live)
	}
	if got := dev.Destroyed().ShaderModules; got != 1 {
		t.Errorf("Destroyed().ShaderModules = %d, want 1", got)
	}

	// Double-destroy is tracked, not fatal.
	dev.DestroyShaderModule(m)
	if got := dev.InvalidDestroys(); got != 1 {
		t.Errorf("InvalidDestroys() = %d, want 1", got)
	}
}

func TestCreateErrorInjection(t *testing.T) {
	dev := New()
	boom := errors.New("out of device memory")
	dev.SetCreateError(boom)

	if _, err := dev.CreateShaderModule(nil); !errors.Is(err, boom) {
		t.Errorf("CreateShaderModule() err = %v, want injected error", err)
	}

	dev.SetCreateError(nil)
	if _, err := dev.CreateShaderModule(nil); err != nil {
		t.Errorf("CreateShaderModule() after clearing: %v", err)
	}
}
