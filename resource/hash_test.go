package resource

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/driver/null"
)

func TestShaderModuleParamsHash(t *testing.T) {
	base := ShaderModuleParams{
		Stage:      gputypes.ShaderStageVertex,
		Source:     ShaderSource{Name: "a.wgsl", Code: "fn main() {}"},
		EntryPoint: "main",
	}

	if got, want := base.Hash(), base.Hash(); got != want {
		t.Errorf("Hash() not deterministic: %#x vs %#x", got, want)
	}

	renamed := base
	renamed.Source.Name = "b.wgsl"
	if renamed.Hash() != base.Hash() {
		t.Errorf("source name changed the hash; names are diagnostics, not identity")
	}

	edited := base
	edited.Source.Code = "fn main() { return; }"
	if edited.Hash() == base.Hash() {
		t.Errorf("different code produced equal hashes")
	}

	stage := base
	stage.Stage = gputypes.ShaderStageFragment
	if stage.Hash() == base.Hash() {
		t.Errorf("different stage produced equal hashes")
	}

	entry := base
	entry.EntryPoint = "other"
	if entry.Hash() == base.Hash() {
		t.Errorf("different entry point produced equal hashes")
	}
}

func TestShaderVariantHashOrderSensitive(t *testing.T) {
	ab := ShaderModuleParams{
		Stage:      gputypes.ShaderStageFragment,
		Source:     ShaderSource{Code: "fn main() {}"},
		EntryPoint: "main",
		Variant:    ShaderVariant{Defines: []string{"A", "B"}},
	}
	ba := ab
	ba.Variant = ShaderVariant{Defines: []string{"B", "A"}}

	if ab.Hash() == ba.Hash() {
		t.Errorf("define order should be part of the key: %#x == %#x", ab.Hash(), ba.Hash())
	}
}

func TestHashDescriptorSetLayoutIgnoresNames(t *testing.T) {
	a := []ShaderResource{uniformBinding(0, "camera")}
	b := []ShaderResource{uniformBinding(0, "renamed")}

	if HashDescriptorSetLayout(0, nil, a) != HashDescriptorSetLayout(0, nil, b) {
		t.Errorf("resource name changed the layout hash")
	}
	if HashDescriptorSetLayout(0, nil, a) == HashDescriptorSetLayout(1, nil, a) {
		t.Errorf("set index not folded into the layout hash")
	}

	dynamic := []ShaderResource{uniformBinding(0, "camera")}
	dynamic[0].Mode = ShaderResourceModeDynamic
	if HashDescriptorSetLayout(0, nil, a) == HashDescriptorSetLayout(0, nil, dynamic) {
		t.Errorf("binding mode not folded into the layout hash")
	}
}

func TestHashDescriptorSetExcludesPool(t *testing.T) {
	device := null.New()
	layout := testLayout(t, device, []ShaderResource{uniformBinding(0, "camera")})

	buffers := bufferAt(0, 0, driver.BufferInfo{Buffer: 7, Range: 256})
	h1 := HashDescriptorSet(layout, buffers, nil)
	h2 := HashDescriptorSet(layout, buffers, nil)
	if h1 != h2 {
		t.Errorf("HashDescriptorSet not deterministic: %#x vs %#x", h1, h2)
	}

	moved := bufferAt(0, 0, driver.BufferInfo{Buffer: 7, Offset: 64, Range: 256})
	if HashDescriptorSet(layout, moved, nil) == h1 {
		t.Errorf("buffer offset not folded into the set hash")
	}
}

func TestHashDescriptorPool(t *testing.T) {
	device := null.New()
	layout := testLayout(t, device, []ShaderResource{uniformBinding(0, "camera")})

	if HashDescriptorPool(layout, 16) == HashDescriptorPool(layout, 32) {
		t.Errorf("pool size not folded into the pool hash")
	}
}
