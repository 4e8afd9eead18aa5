package main

import (
	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache"
	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/resource"
)

// Demo shaders for the record command, compiled with the real naga compiler.
const (
	demoVertexWGSL = `
@group(0) @binding(0) var<uniform> transform: mat4x4<f32>;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return transform * vec4<f32>(position, 1.0);
}
`

	demoFragmentWGSL = `
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, pos.xy);
}
`

	demoComputeWGSL = `
@group(0) @binding(0) var<storage, read_write> values: array<f32>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    values[id.x] = values[id.x] * 2.0;
}
`
)

// buildDemoWorkload drives a representative build sequence through the
// cache: one render pipeline with a tonemapping variant, plus one compute
// pipeline. Every miss lands in the recorder.
func buildDemoWorkload(cache *vkcache.ResourceCache) error {
	vert, err := cache.RequestShaderModule(gputypes.ShaderStageVertex,
		resource.ShaderSource{Name: "demo.vert.wgsl", Code: demoVertexWGSL},
		"vs_main", resource.ShaderVariant{})
	if err != nil {
		return err
	}

	variant := resource.ShaderVariant{}
	variant.AddDefine("const TONEMAP: u32 = 1u;")
	frag, err := cache.RequestShaderModule(gputypes.ShaderStageFragment,
		resource.ShaderSource{Name: "demo.frag.wgsl", Code: demoFragmentWGSL},
		"fs_main", variant)
	if err != nil {
		return err
	}

	layout, err := cache.RequestPipelineLayout([]*resource.ShaderModule{vert, frag})
	if err != nil {
		return err
	}

	renderPass, err := cache.RequestRenderPass(
		[]resource.Attachment{
			{Format: gputypes.TextureFormatBGRA8Unorm, Samples: 1},
			{Format: gputypes.TextureFormatDepth24PlusStencil8, Samples: 1},
		},
		[]resource.LoadStoreInfo{
			{Load: gputypes.LoadOpClear, Store: gputypes.StoreOpStore},
			{Load: gputypes.LoadOpClear, Store: gputypes.StoreOpDiscard},
		},
		nil)
	if err != nil {
		return err
	}

	if _, err := cache.RequestGraphicsPipeline(demoPipelineState(layout, renderPass)); err != nil {
		return err
	}

	comp, err := cache.RequestShaderModule(gputypes.ShaderStageCompute,
		resource.ShaderSource{Name: "demo.comp.wgsl", Code: demoComputeWGSL},
		"cs_main", resource.ShaderVariant{})
	if err != nil {
		return err
	}
	compLayout, err := cache.RequestPipelineLayout([]*resource.ShaderModule{comp})
	if err != nil {
		return err
	}
	if _, err := cache.RequestComputePipeline(compLayout, nil); err != nil {
		return err
	}
	return nil
}

// demoPipelineState is a plain opaque-geometry pipeline over the demo
// layout and render pass.
func demoPipelineState(layout *resource.PipelineLayout, renderPass *resource.RenderPass) *resource.PipelineState {
	return &resource.PipelineState{
		Layout:     layout,
		RenderPass: renderPass,
		VertexInput: driver.VertexInputState{
			Bindings: []driver.VertexInputBinding{
				{Binding: 0, Stride: 12, StepMode: gputypes.VertexStepModeVertex},
			},
			Attributes: []driver.VertexInputAttribute{
				{Location: 0, Binding: 0, Format: gputypes.VertexFormatFloat32x3, Offset: 0},
			},
		},
		InputAssembly: driver.InputAssemblyState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
		},
		Rasterization: driver.RasterizationState{
			PolygonMode: driver.PolygonModeFill,
			CullMode:    gputypes.CullModeBack,
		},
		Viewport: driver.ViewportState{Viewports: 1, Scissors: 1},
		Multisample: driver.MultisampleState{
			Samples:    1,
			SampleMask: 0xffffffff,
		},
		DepthStencil: driver.DepthStencilState{
			DepthTest:    true,
			DepthWrite:   true,
			DepthCompare: gputypes.CompareFunctionLess,
		},
		ColorBlend: driver.ColorBlendState{
			Attachments: []driver.ColorBlendAttachmentState{
				{ColorWriteMask: gputypes.ColorWriteMaskAll},
			},
		},
	}
}
