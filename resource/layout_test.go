package resource

import (
	"errors"
	"testing"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/driver/null"
)

func TestNewDescriptorSetLayout(t *testing.T) {
	device := null.New()
	resources := []ShaderResource{
		uniformBinding(0, "camera"),
		samplerBinding(1, "albedo"),
		{Type: ShaderResourceInput, Name: "position"}, // no binding point, skipped
	}

	l, err := NewDescriptorSetLayout(device, 2, nil, resources)
	if err != nil {
		t.Fatalf("NewDescriptorSetLayout() error = %v", err)
	}
	if l.SetIndex() != 2 {
		t.Errorf("SetIndex() = %d, want 2", l.SetIndex())
	}
	if got := len(l.Bindings()); got != 2 {
		t.Fatalf("len(Bindings()) = %d, want 2", got)
	}

	b, ok := l.Binding(0)
	if !ok || b.Type != driver.DescriptorTypeUniformBuffer {
		t.Errorf("Binding(0) = %+v, %v; want uniform buffer", b, ok)
	}
	b, ok = l.BindingByName("albedo")
	if !ok || b.Type != driver.DescriptorTypeCombinedImageSampler || b.Binding != 1 {
		t.Errorf("BindingByName(albedo) = %+v, %v; want combined image sampler at 1", b, ok)
	}
	if _, ok := l.Binding(9); ok {
		t.Errorf("Binding(9) found a binding the layout does not carry")
	}
	if l.UpdateAfterBind() {
		t.Errorf("UpdateAfterBind() = true for a plain layout")
	}
}

func TestDescriptorSetLayoutUpdateAfterBind(t *testing.T) {
	device := null.New()
	res := samplerBinding(0, "albedo")
	res.Mode = ShaderResourceModeUpdateAfterBind

	l, err := NewDescriptorSetLayout(device, 0, nil, []ShaderResource{res})
	if err != nil {
		t.Fatalf("NewDescriptorSetLayout() error = %v", err)
	}
	if !l.UpdateAfterBind() {
		t.Errorf("UpdateAfterBind() = false")
	}
	if l.BindingFlags(0)&driver.DescriptorBindingUpdateAfterBind == 0 {
		t.Errorf("BindingFlags(0) missing update-after-bind flag")
	}
}

func TestDescriptorSetLayoutExplicitFlags(t *testing.T) {
	device := null.New()
	resources := []ShaderResource{
		uniformBinding(0, "camera"),
		samplerBinding(1, "albedo"),
	}

	l, err := NewDescriptorSetLayout(device, 0, nil, resources,
		0, driver.DescriptorBindingUpdateAfterBind)
	if err != nil {
		t.Fatalf("NewDescriptorSetLayout() error = %v", err)
	}
	if !l.UpdateAfterBind() {
		t.Errorf("UpdateAfterBind() = false with an explicit update-after-bind flag")
	}
	if l.BindingFlags(1)&driver.DescriptorBindingUpdateAfterBind == 0 {
		t.Errorf("BindingFlags(1) missing the supplied update-after-bind flag")
	}
	if l.BindingFlags(0) != 0 {
		t.Errorf("BindingFlags(0) = %v, want 0", l.BindingFlags(0))
	}

	// One flag for two bindings.
	_, err = NewDescriptorSetLayout(device, 0, nil, resources, 0)
	if !errors.Is(err, ErrBindingFlagsMismatch) {
		t.Errorf("short flag list error = %v, want ErrBindingFlagsMismatch", err)
	}
}

func TestDescriptorSetLayoutDynamicConflict(t *testing.T) {
	device := null.New()
	dynamic := uniformBinding(0, "camera")
	dynamic.Mode = ShaderResourceModeDynamic
	uab := samplerBinding(1, "albedo")
	uab.Mode = ShaderResourceModeUpdateAfterBind

	_, err := NewDescriptorSetLayout(device, 0, nil, []ShaderResource{dynamic, uab})
	if !errors.Is(err, ErrDynamicWithUpdateAfterBind) {
		t.Errorf("error = %v, want ErrDynamicWithUpdateAfterBind", err)
	}
}

func TestResolveDescriptorType(t *testing.T) {
	tests := []struct {
		typ     ShaderResourceType
		dynamic bool
		want    driver.DescriptorType
		ok      bool
	}{
		{ShaderResourceBufferUniform, false, driver.DescriptorTypeUniformBuffer, true},
		{ShaderResourceBufferUniform, true, driver.DescriptorTypeUniformBufferDynamic, true},
		{ShaderResourceBufferStorage, false, driver.DescriptorTypeStorageBuffer, true},
		{ShaderResourceBufferStorage, true, driver.DescriptorTypeStorageBufferDynamic, true},
		{ShaderResourceImage, false, driver.DescriptorTypeSampledImage, true},
		{ShaderResourceImageSampler, false, driver.DescriptorTypeCombinedImageSampler, true},
		{ShaderResourceImageStorage, false, driver.DescriptorTypeStorageImage, true},
		{ShaderResourceSampler, false, driver.DescriptorTypeSampler, true},
		{ShaderResourceInputAttachment, false, driver.DescriptorTypeInputAttachment, true},
		{ShaderResourceInput, false, 0, false},
		{ShaderResourceOutput, false, 0, false},
		{ShaderResourcePushConstant, false, 0, false},
		{ShaderResourceSpecializationConstant, false, 0, false},
	}
	for _, tt := range tests {
		got, ok := resolveDescriptorType(tt.typ, tt.dynamic)
		if got != tt.want || ok != tt.ok {
			t.Errorf("resolveDescriptorType(%v, %v) = %v, %v; want %v, %v",
				tt.typ, tt.dynamic, got, ok, tt.want, tt.ok)
		}
	}
}
