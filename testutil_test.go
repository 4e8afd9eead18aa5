package vkcache

import (
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/driver/null"
	"github.com/DrGr4f1x/vkcache/resource"
)

// fakeCompiler returns canned SPIR-V and a fixed reflection list, so cache
// tests exercise dedup and recording without invoking naga. Outputs are
// deterministic for equal inputs, matching the Compiler contract.
type fakeCompiler struct {
	compiles  atomic.Int32
	resources []resource.ShaderResource
}

func (c *fakeCompiler) Compile(stage gputypes.ShaderStage, source resource.ShaderSource, entryPoint string, variant resource.ShaderVariant) ([]uint32, []resource.ShaderResource, error) {
	c.compiles.Add(1)
	out := make([]resource.ShaderResource, len(c.resources))
	copy(out, c.resources)
	return []uint32{0x07230203, uint32(len(source.Code))}, out, nil
}

func defaultReflection() []resource.ShaderResource {
	return []resource.ShaderResource{
		{Type: resource.ShaderResourceBufferUniform, Set: 0, Binding: 0, ArraySize: 1, Name: "camera"},
		{Type: resource.ShaderResourceImageSampler, Set: 0, Binding: 1, ArraySize: 1, Name: "albedo"},
	}
}

func newTestCache(device *null.Device, opts ...Option) *ResourceCache {
	opts = append([]Option{WithCompiler(&fakeCompiler{resources: defaultReflection()})}, opts...)
	return New(device, opts...)
}

func requestVertexModule(t *testing.T, c *ResourceCache, code string) *resource.ShaderModule {
	t.Helper()
	m, err := c.RequestShaderModule(gputypes.ShaderStageVertex,
		resource.ShaderSource{Name: "test.vert.wgsl", Code: code}, "vs_main", resource.ShaderVariant{})
	if err != nil {
		t.Fatalf("RequestShaderModule() error = %v", err)
	}
	return m
}

func requestTestLayout(t *testing.T, c *ResourceCache) *resource.PipelineLayout {
	t.Helper()
	m := requestVertexModule(t, c, "fn vs_main() {}")
	l, err := c.RequestPipelineLayout([]*resource.ShaderModule{m})
	if err != nil {
		t.Fatalf("RequestPipelineLayout() error = %v", err)
	}
	return l
}

func requestTestRenderPass(t *testing.T, c *ResourceCache) *resource.RenderPass {
	t.Helper()
	rp, err := c.RequestRenderPass(
		[]resource.Attachment{{Format: gputypes.TextureFormatBGRA8Unorm, Samples: 1}},
		[]resource.LoadStoreInfo{{Load: gputypes.LoadOpClear, Store: gputypes.StoreOpStore}},
		nil)
	if err != nil {
		t.Fatalf("RequestRenderPass() error = %v", err)
	}
	return rp
}

// requestTestSet requests the descriptor set binding one buffer and one image
// through the cache's set-0 layout.
func requestTestSet(t *testing.T, c *ResourceCache, view driver.ImageView) (*resource.DescriptorSet, *resource.DescriptorSetLayout) {
	t.Helper()
	layout := requestTestLayout(t, c)
	setLayout, ok := layout.SetLayout(0)
	if !ok {
		t.Fatal("pipeline layout has no set 0")
	}
	pool, err := c.RequestDescriptorPool(setLayout)
	if err != nil {
		t.Fatalf("RequestDescriptorPool() error = %v", err)
	}
	buffers := resource.BindingMap[driver.BufferInfo]{0: {0: {Buffer: 3, Range: 256}}}
	images := resource.BindingMap[driver.ImageInfo]{1: {0: {Sampler: 4, View: view}}}
	s, err := c.RequestDescriptorSet(setLayout, pool, buffers, images)
	if err != nil {
		t.Fatalf("RequestDescriptorSet() error = %v", err)
	}
	return s, setLayout
}
