package vkcache

import (
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/driver/null"
	"github.com/DrGr4f1x/vkcache/resource"
)

func TestRequestShaderModuleDedup(t *testing.T) {
	device := null.New()
	compiler := &fakeCompiler{resources: defaultReflection()}
	c := New(device, WithCompiler(compiler))

	const workers = 16
	modules := make([]*resource.ShaderModule, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := c.RequestShaderModule(gputypes.ShaderStageVertex,
				resource.ShaderSource{Code: "fn vs_main() {}"}, "vs_main", resource.ShaderVariant{})
			if err != nil {
				t.Errorf("RequestShaderModule() error = %v", err)
				return
			}
			modules[i] = m
		}(i)
	}
	wg.Wait()

	if got := compiler.compiles.Load(); got != 1 {
		t.Errorf("compiler invoked %d times, want 1", got)
	}
	if got := device.Created().ShaderModules; got != 1 {
		t.Errorf("driver modules created = %d, want 1", got)
	}
	for i := 1; i < workers; i++ {
		if modules[i] != modules[0] {
			t.Fatalf("request %d returned a different module instance", i)
		}
	}

	state := c.State().ShaderModules
	if state.Count != 1 || state.Misses != 1 || state.Hits != workers-1 {
		t.Errorf("shader module store = %d entries, %d hits, %d misses; want 1, %d, 1",
			state.Count, state.Hits, state.Misses, workers-1)
	}
}

func TestRequestShaderModuleDistinctVariants(t *testing.T) {
	device := null.New()
	c := newTestCache(device)

	plain := resource.ShaderVariant{}
	toned := resource.ShaderVariant{}
	toned.AddDefine("const TONEMAP: u32 = 1u;")

	a, err := c.RequestShaderModule(gputypes.ShaderStageFragment,
		resource.ShaderSource{Code: "fn fs_main() {}"}, "fs_main", plain)
	if err != nil {
		t.Fatalf("RequestShaderModule() error = %v", err)
	}
	b, err := c.RequestShaderModule(gputypes.ShaderStageFragment,
		resource.ShaderSource{Code: "fn fs_main() {}"}, "fs_main", toned)
	if err != nil {
		t.Fatalf("RequestShaderModule() error = %v", err)
	}
	if a == b || a.Hash() == b.Hash() {
		t.Errorf("variant change did not produce a distinct cache entry")
	}
	if c.State().ShaderModules.Count != 2 {
		t.Errorf("shader module count = %d, want 2", c.State().ShaderModules.Count)
	}
}

func TestRequestPipelineLayoutSharesSetLayouts(t *testing.T) {
	device := null.New()
	c := newTestCache(device)

	l1 := requestTestLayout(t, c)
	l2 := requestTestLayout(t, c)
	if l1 != l2 {
		t.Errorf("equal module lists produced distinct pipeline layouts")
	}

	state := c.State()
	if state.PipelineLayouts.Count != 1 {
		t.Errorf("pipeline layout count = %d, want 1", state.PipelineLayouts.Count)
	}
	if state.DescriptorSetLayouts.Count != 1 {
		t.Errorf("descriptor set layout count = %d, want 1", state.DescriptorSetLayouts.Count)
	}
	if device.Created().DescriptorSetLayouts != 1 {
		t.Errorf("driver set layouts created = %d, want 1", device.Created().DescriptorSetLayouts)
	}
}

func TestRequestDescriptorSetKeyExcludesPool(t *testing.T) {
	device := null.New()
	c := newTestCache(device, WithPoolSize(2))

	layout := requestTestLayout(t, c)
	setLayout, ok := layout.SetLayout(0)
	if !ok {
		t.Fatal("pipeline layout has no set 0")
	}
	pool, err := c.RequestDescriptorPool(setLayout)
	if err != nil {
		t.Fatalf("RequestDescriptorPool() error = %v", err)
	}
	other, err := resource.NewDescriptorPool(device, setLayout, 8)
	if err != nil {
		t.Fatalf("NewDescriptorPool() error = %v", err)
	}

	buffers := resource.BindingMap[driver.BufferInfo]{0: {0: {Buffer: 3, Range: 256}}}
	s1, err := c.RequestDescriptorSet(setLayout, pool, buffers, nil)
	if err != nil {
		t.Fatalf("RequestDescriptorSet() error = %v", err)
	}
	s2, err := c.RequestDescriptorSet(setLayout, other, buffers, nil)
	if err != nil {
		t.Fatalf("RequestDescriptorSet() error = %v", err)
	}
	if s1 != s2 {
		t.Errorf("equal bindings through different pools produced distinct sets")
	}
	if device.Created().DescriptorSets != 1 {
		t.Errorf("driver sets allocated = %d, want 1", device.Created().DescriptorSets)
	}
	// First-time population goes out exactly once.
	if device.UpdateBatches() != 1 {
		t.Errorf("update batches = %d, want 1", device.UpdateBatches())
	}
}

func TestRequestComputePipelineNoComputeStage(t *testing.T) {
	device := null.New()
	c := newTestCache(device)
	layout := requestTestLayout(t, c) // vertex-only

	if _, err := c.RequestComputePipeline(layout, nil); err == nil {
		t.Fatal("RequestComputePipeline() accepted a layout without a compute stage")
	}
	// Failed builds are not cached; the kind stays empty and a retry fails
	// the same way instead of returning a zero object.
	if c.State().ComputePipelines.Count != 0 {
		t.Errorf("compute pipeline count = %d after failed build, want 0", c.State().ComputePipelines.Count)
	}
	if _, err := c.RequestComputePipeline(layout, nil); err == nil {
		t.Error("retry after failed build unexpectedly succeeded")
	}
}

func buildFullWorkload(t *testing.T, c *ResourceCache) {
	t.Helper()
	layout := requestTestLayout(t, c)
	rp := requestTestRenderPass(t, c)

	if _, err := c.RequestGraphicsPipeline(&resource.PipelineState{Layout: layout, RenderPass: rp}); err != nil {
		t.Fatalf("RequestGraphicsPipeline() error = %v", err)
	}
	requestTestSet(t, c, 5)
	if _, err := c.RequestFramebuffer(&resource.RenderTarget{
		Extent: driver.Extent2D{Width: 1280, Height: 720},
		Views:  []driver.ImageView{9},
	}, rp); err != nil {
		t.Fatalf("RequestFramebuffer() error = %v", err)
	}
}

func TestClear(t *testing.T) {
	device := null.New()
	c := newTestCache(device)
	buildFullWorkload(t, c)

	c.Clear()

	state := c.State()
	counts := map[string]int{
		"shader modules":   state.ShaderModules.Count,
		"set layouts":      state.DescriptorSetLayouts.Count,
		"pipeline layouts": state.PipelineLayouts.Count,
		"pools":            state.DescriptorPools.Count,
		"sets":             state.DescriptorSets.Count,
		"render passes":    state.RenderPasses.Count,
		"pipelines":        state.GraphicsPipelines.Count,
		"framebuffers":     state.Framebuffers.Count,
	}
	for kind, n := range counts {
		if n != 0 {
			t.Errorf("%s count = %d after Clear, want 0", kind, n)
		}
	}
	if device.LiveObjects() != 0 {
		t.Errorf("LiveObjects() = %d after Clear, want 0", device.LiveObjects())
	}
	if device.InvalidDestroys() != 0 {
		t.Errorf("InvalidDestroys() = %d, want 0", device.InvalidDestroys())
	}
}

func TestClearPipelines(t *testing.T) {
	device := null.New()
	c := newTestCache(device)
	buildFullWorkload(t, c)

	c.ClearPipelines()

	state := c.State()
	if state.GraphicsPipelines.Count != 0 {
		t.Errorf("graphics pipeline count = %d, want 0", state.GraphicsPipelines.Count)
	}
	if state.ShaderModules.Count == 0 || state.PipelineLayouts.Count == 0 || state.RenderPasses.Count == 0 {
		t.Errorf("ClearPipelines evicted non-pipeline kinds")
	}
	if device.Destroyed().GraphicsPipelines != 1 {
		t.Errorf("pipelines destroyed = %d, want 1", device.Destroyed().GraphicsPipelines)
	}
}

func TestClearFramebuffers(t *testing.T) {
	device := null.New()
	c := newTestCache(device)
	buildFullWorkload(t, c)

	c.ClearFramebuffers()
	if c.State().Framebuffers.Count != 0 {
		t.Errorf("framebuffer count = %d, want 0", c.State().Framebuffers.Count)
	}
	if device.Destroyed().Framebuffers != 1 {
		t.Errorf("framebuffers destroyed = %d, want 1", device.Destroyed().Framebuffers)
	}
}
