package driver

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// DescriptorType classifies what a descriptor binding holds.
type DescriptorType uint32

// Descriptor types, in binding-table order.
const (
	DescriptorTypeSampler DescriptorType = iota
	DescriptorTypeCombinedImageSampler
	DescriptorTypeSampledImage
	DescriptorTypeStorageImage
	DescriptorTypeUniformTexelBuffer
	DescriptorTypeStorageTexelBuffer
	DescriptorTypeUniformBuffer
	DescriptorTypeStorageBuffer
	DescriptorTypeUniformBufferDynamic
	DescriptorTypeStorageBufferDynamic
	DescriptorTypeInputAttachment
)

// String returns the lowercase name used in diagnostics.
func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeSampler:
		return "sampler"
	case DescriptorTypeCombinedImageSampler:
		return "combined-image-sampler"
	case DescriptorTypeSampledImage:
		return "sampled-image"
	case DescriptorTypeStorageImage:
		return "storage-image"
	case DescriptorTypeUniformTexelBuffer:
		return "uniform-texel-buffer"
	case DescriptorTypeStorageTexelBuffer:
		return "storage-texel-buffer"
	case DescriptorTypeUniformBuffer:
		return "uniform-buffer"
	case DescriptorTypeStorageBuffer:
		return "storage-buffer"
	case DescriptorTypeUniformBufferDynamic:
		return "uniform-buffer-dynamic"
	case DescriptorTypeStorageBufferDynamic:
		return "storage-buffer-dynamic"
	case DescriptorTypeInputAttachment:
		return "input-attachment"
	default:
		return fmt.Sprintf("descriptor-type(%d)", uint32(t))
	}
}

// IsBuffer reports whether the descriptor binds a buffer range.
func (t DescriptorType) IsBuffer() bool {
	switch t {
	case DescriptorTypeUniformBuffer, DescriptorTypeUniformBufferDynamic,
		DescriptorTypeStorageBuffer, DescriptorTypeStorageBufferDynamic,
		DescriptorTypeUniformTexelBuffer, DescriptorTypeStorageTexelBuffer:
		return true
	}
	return false
}

// IsDynamic reports whether the descriptor takes a dynamic offset at bind
// time. Dynamic bindings conflict with update-after-bind in the same layout.
func (t DescriptorType) IsDynamic() bool {
	return t == DescriptorTypeUniformBufferDynamic || t == DescriptorTypeStorageBufferDynamic
}

// DescriptorBindingFlags carries per-binding layout flags.
type DescriptorBindingFlags uint32

// DescriptorBindingUpdateAfterBind marks a binding whose descriptor may be
// written after the set is bound to a command buffer.
const DescriptorBindingUpdateAfterBind DescriptorBindingFlags = 1 << 0

// ImageLayout is the layout an image is expected to be in when accessed
// through a descriptor or attachment.
type ImageLayout uint32

// Image layouts.
const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutColorAttachmentOptimal
	ImageLayoutDepthStencilAttachmentOptimal
	ImageLayoutDepthStencilReadOnlyOptimal
	ImageLayoutShaderReadOnlyOptimal
	ImageLayoutTransferSrcOptimal
	ImageLayoutTransferDstOptimal
	ImageLayoutPresentSrc
)

// StencilOp selects how a stencil value is updated.
type StencilOp uint32

// Stencil operations.
const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrementClamp
	StencilOpDecrementClamp
	StencilOpInvert
	StencilOpIncrementWrap
	StencilOpDecrementWrap
)

// PolygonMode selects triangle fill behavior during rasterization.
type PolygonMode uint32

// Polygon modes.
const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

// LogicOp is the framebuffer logical operation applied when logic ops are
// enabled in the color blend state.
type LogicOp uint32

// Logical operations.
const (
	LogicOpClear LogicOp = iota
	LogicOpAnd
	LogicOpAndReverse
	LogicOpCopy
	LogicOpAndInverted
	LogicOpNoOp
	LogicOpXor
	LogicOpOr
	LogicOpNor
	LogicOpEquivalent
	LogicOpInvert
	LogicOpOrReverse
	LogicOpCopyInverted
	LogicOpOrInverted
	LogicOpNand
	LogicOpSet
)

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// DescriptorSetLayoutBinding describes one binding slot in a set layout.
type DescriptorSetLayoutBinding struct {
	// Binding is the shader binding number.
	Binding uint32

	// Type is the descriptor type bound at this slot.
	Type DescriptorType

	// Count is the array size, 1 for non-arrayed bindings.
	Count uint32

	// Stages is the mask of shader stages that access the binding.
	Stages gputypes.ShaderStage
}

// PushConstantRange describes one push constant block of a pipeline layout.
type PushConstantRange struct {
	Stages gputypes.ShaderStage
	Offset uint32
	Size   uint32
}

// DescriptorPoolSize gives the per-type descriptor capacity of a sub-pool.
type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// BufferInfo is the payload of a buffer descriptor write.
type BufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// ImageInfo is the payload of an image descriptor write.
type ImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

// WriteDescriptorSet is one binding's data-and-target description queued for
// application to the device. Exactly one of Buffer or Image is set,
// according to Type.
type WriteDescriptorSet struct {
	Set          DescriptorSet
	Binding      uint32
	ArrayElement uint32
	Type         DescriptorType
	Buffer       *BufferInfo
	Image        *ImageInfo
}

// AttachmentReference points a subpass at one attachment slot.
type AttachmentReference struct {
	Attachment uint32
	Layout     ImageLayout
}

// AttachmentDescription describes one render pass attachment.
type AttachmentDescription struct {
	Format         gputypes.TextureFormat
	Samples        uint32
	LoadOp         gputypes.LoadOp
	StoreOp        gputypes.StoreOp
	StencilLoadOp  gputypes.LoadOp
	StencilStoreOp gputypes.StoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

// SubpassDescription describes one subpass of a render pass.
type SubpassDescription struct {
	InputAttachments       []AttachmentReference
	ColorAttachments       []AttachmentReference
	ResolveAttachments     []AttachmentReference
	DepthStencilAttachment *AttachmentReference
}

// RenderPassDescriptor describes a render pass to create.
type RenderPassDescriptor struct {
	Attachments []AttachmentDescription
	Subpasses   []SubpassDescription
}

// VertexInputBinding describes one vertex buffer slot.
type VertexInputBinding struct {
	Binding  uint32
	Stride   uint32
	StepMode gputypes.VertexStepMode
}

// VertexInputAttribute describes one vertex attribute.
type VertexInputAttribute struct {
	Location uint32
	Binding  uint32
	Format   gputypes.VertexFormat
	Offset   uint32
}

// VertexInputState describes the vertex fetch configuration.
type VertexInputState struct {
	Bindings   []VertexInputBinding
	Attributes []VertexInputAttribute
}

// InputAssemblyState describes primitive assembly.
type InputAssemblyState struct {
	Topology         gputypes.PrimitiveTopology
	PrimitiveRestart bool
}

// RasterizationState describes the rasterizer configuration.
type RasterizationState struct {
	DepthClamp        bool
	RasterizerDiscard bool
	PolygonMode       PolygonMode
	CullMode          gputypes.CullMode
	FrontFace         gputypes.FrontFace
	DepthBias         bool
}

// ViewportState carries viewport and scissor counts; the rectangles
// themselves are dynamic state supplied at draw time.
type ViewportState struct {
	Viewports uint32
	Scissors  uint32
}

// MultisampleState describes sample-rate shading configuration.
type MultisampleState struct {
	Samples          uint32
	SampleShading    bool
	MinSampleShading float32
	SampleMask       uint32
	AlphaToCoverage  bool
	AlphaToOne       bool
}

// StencilOpState describes stencil behavior for one face.
type StencilOpState struct {
	FailOp      StencilOp
	PassOp      StencilOp
	DepthFailOp StencilOp
	CompareOp   gputypes.CompareFunction
}

// DepthStencilState describes depth and stencil test configuration.
type DepthStencilState struct {
	DepthTest       bool
	DepthWrite      bool
	DepthCompare    gputypes.CompareFunction
	DepthBoundsTest bool
	StencilTest     bool
	Front           StencilOpState
	Back            StencilOpState
}

// ColorBlendAttachmentState describes blending for one color attachment.
type ColorBlendAttachmentState struct {
	BlendEnable         bool
	SrcColorBlendFactor gputypes.BlendFactor
	DstColorBlendFactor gputypes.BlendFactor
	ColorBlendOp        gputypes.BlendOperation
	SrcAlphaBlendFactor gputypes.BlendFactor
	DstAlphaBlendFactor gputypes.BlendFactor
	AlphaBlendOp        gputypes.BlendOperation
	ColorWriteMask      gputypes.ColorWriteMask
}

// ColorBlendState describes blending across all color attachments.
type ColorBlendState struct {
	LogicOpEnable bool
	LogicOp       LogicOp
	Attachments   []ColorBlendAttachmentState
}

// SpecConstant is one specialization constant override passed to pipeline
// construction.
type SpecConstant struct {
	ID   uint32
	Data []byte
}

// ShaderStageInfo names one shader stage of a pipeline.
type ShaderStageInfo struct {
	Stage          gputypes.ShaderStage
	Module         ShaderModule
	EntryPoint     string
	Specialization []SpecConstant
}

// GraphicsPipelineDescriptor describes a graphics pipeline to create.
type GraphicsPipelineDescriptor struct {
	Layout        PipelineLayout
	RenderPass    RenderPass
	Subpass       uint32
	Stages        []ShaderStageInfo
	VertexInput   VertexInputState
	InputAssembly InputAssemblyState
	Rasterization RasterizationState
	Viewport      ViewportState
	Multisample   MultisampleState
	DepthStencil  DepthStencilState
	ColorBlend    ColorBlendState
}

// ComputePipelineDescriptor describes a compute pipeline to create.
type ComputePipelineDescriptor struct {
	Layout PipelineLayout
	Stage  ShaderStageInfo
}

// FramebufferDescriptor describes a framebuffer to create.
type FramebufferDescriptor struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
	Layers      uint32
}
