// Package driver defines the narrow device contract the resource cache
// builds against.
//
// The cache never talks to a GPU API directly: every derived object is
// constructed through a Device implementation, and the cache consumes only
// "build(args) -> handle" plus the batched descriptor-update primitive and
// the device limits query. Implementations wrap a real Vulkan device in
// production; driver/null provides an in-memory device for tests and tools.
package driver

// Handles are opaque, non-dispatchable object identifiers minted by a
// Device. Zero is never a valid handle.
type (
	// ShaderModule identifies a compiled shader stage.
	ShaderModule uint64

	// DescriptorSetLayout identifies an immutable set-layout object.
	DescriptorSetLayout uint64

	// PipelineLayout identifies a pipeline layout.
	PipelineLayout uint64

	// DescriptorPool identifies one fixed-capacity descriptor sub-pool.
	DescriptorPool uint64

	// DescriptorSet identifies an allocated descriptor set.
	DescriptorSet uint64

	// RenderPass identifies a render pass object.
	RenderPass uint64

	// Pipeline identifies a graphics or compute pipeline.
	Pipeline uint64

	// Framebuffer identifies a framebuffer object.
	Framebuffer uint64

	// PipelineCache identifies a driver-level pipeline cache used to
	// accelerate pipeline construction. Distinct from this package's own
	// content-addressed caching.
	PipelineCache uint64

	// Buffer identifies a device buffer bound through a descriptor.
	Buffer uint64

	// Sampler identifies a sampler object.
	Sampler uint64

	// ImageView identifies an image view bound through a descriptor or
	// attached to a framebuffer.
	ImageView uint64
)

// Device is the construction and update surface consumed by the cache.
//
// Every Create call is expected to be side-effect free beyond allocating the
// driver object; the cache guarantees it is invoked at most once per distinct
// parameter hash. Destroy calls are issued only from bulk clears, after the
// caller has guaranteed the objects are no longer in use on the device.
type Device interface {
	// Limits reports the device limits consulted during descriptor set
	// preparation.
	Limits() Limits

	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(ShaderModule)

	// CreateDescriptorSetLayout builds a set layout from ordered bindings.
	// flags is either empty or exactly one entry per binding.
	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding, flags []DescriptorBindingFlags) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(DescriptorSetLayout)

	CreatePipelineLayout(setLayouts []DescriptorSetLayout, pushConstants []PushConstantRange) (PipelineLayout, error)
	DestroyPipelineLayout(PipelineLayout)

	// CreateDescriptorPool builds one sub-pool holding at most maxSets sets
	// drawn from the given per-type capacities.
	CreateDescriptorPool(sizes []DescriptorPoolSize, maxSets uint32, updateAfterBind bool) (DescriptorPool, error)
	// ResetDescriptorPool returns every set allocated from the pool to it
	// in bulk. Handles allocated from the pool become invalid.
	ResetDescriptorPool(DescriptorPool) error
	DestroyDescriptorPool(DescriptorPool)

	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	FreeDescriptorSet(pool DescriptorPool, set DescriptorSet) error

	// UpdateDescriptorSets applies an ordered list of write-descriptor
	// entries in one batched call, atomic from the caller's perspective.
	UpdateDescriptorSets(writes []WriteDescriptorSet) error

	CreateRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	DestroyRenderPass(RenderPass)

	CreateGraphicsPipeline(cache PipelineCache, desc *GraphicsPipelineDescriptor) (Pipeline, error)
	CreateComputePipeline(cache PipelineCache, desc *ComputePipelineDescriptor) (Pipeline, error)
	DestroyPipeline(Pipeline)

	CreateFramebuffer(desc *FramebufferDescriptor) (Framebuffer, error)
	DestroyFramebuffer(Framebuffer)
}

// Limits carries the device limits the cache consults. Buffer ranges
// requested past these bounds are clamped during descriptor preparation
// rather than rejected by the driver during the update call.
type Limits struct {
	// MaxUniformBufferRange is the largest byte range bindable through a
	// uniform buffer descriptor.
	MaxUniformBufferRange uint32

	// MaxStorageBufferRange is the largest byte range bindable through a
	// storage buffer descriptor.
	MaxStorageBufferRange uint32

	// MaxBoundDescriptorSets is the highest set index usable in a pipeline
	// layout, plus one.
	MaxBoundDescriptorSets uint32

	// MaxPushConstantsSize is the push constant budget in bytes.
	MaxPushConstantsSize uint32
}

// DefaultLimits returns the guaranteed-minimum limits every conformant
// device supports. The null driver reports these.
func DefaultLimits() Limits {
	return Limits{
		MaxUniformBufferRange:  16384,
		MaxStorageBufferRange:  1 << 27,
		MaxBoundDescriptorSets: 4,
		MaxPushConstantsSize:   128,
	}
}
