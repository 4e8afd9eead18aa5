package resource

import (
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/driver/null"
)

// fakeCompiler returns canned SPIR-V and reflection without invoking naga.
type fakeCompiler struct {
	compiles  atomic.Int32
	resources []ShaderResource
	err       error
}

func (c *fakeCompiler) Compile(stage gputypes.ShaderStage, source ShaderSource, entryPoint string, variant ShaderVariant) ([]uint32, []ShaderResource, error) {
	c.compiles.Add(1)
	if c.err != nil {
		return nil, nil, c.err
	}
	out := make([]ShaderResource, len(c.resources))
	copy(out, c.resources)
	return []uint32{spirvMagic, uint32(len(source.Code))}, out, nil
}

func testModule(t *testing.T, device driver.Device, stage gputypes.ShaderStage, code string, resources []ShaderResource) *ShaderModule {
	t.Helper()
	m, err := NewShaderModule(device, &fakeCompiler{resources: resources}, ShaderModuleParams{
		Stage:      stage,
		Source:     ShaderSource{Name: "test.wgsl", Code: code},
		EntryPoint: "main",
	})
	if err != nil {
		t.Fatalf("NewShaderModule() error = %v", err)
	}
	return m
}

func testLayout(t *testing.T, device *null.Device, resources []ShaderResource) *DescriptorSetLayout {
	t.Helper()
	l, err := NewDescriptorSetLayout(device, 0, nil, resources)
	if err != nil {
		t.Fatalf("NewDescriptorSetLayout() error = %v", err)
	}
	return l
}

func uniformBinding(binding uint32, name string) ShaderResource {
	return ShaderResource{
		Stages:    gputypes.ShaderStageVertex,
		Type:      ShaderResourceBufferUniform,
		Binding:   binding,
		ArraySize: 1,
		Name:      name,
	}
}

func samplerBinding(binding uint32, name string) ShaderResource {
	return ShaderResource{
		Stages:    gputypes.ShaderStageFragment,
		Type:      ShaderResourceImageSampler,
		Binding:   binding,
		ArraySize: 1,
		Name:      name,
	}
}

func bufferAt(binding, element uint32, info driver.BufferInfo) BindingMap[driver.BufferInfo] {
	return BindingMap[driver.BufferInfo]{binding: {element: info}}
}

func imageAt(binding, element uint32, info driver.ImageInfo) BindingMap[driver.ImageInfo] {
	return BindingMap[driver.ImageInfo]{binding: {element: info}}
}
