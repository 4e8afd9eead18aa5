package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/wire"
)

// Pipeline errors.
var (
	// ErrNilPipelineLayout is returned when building a pipeline without a layout.
	ErrNilPipelineLayout = errors.New("resource: pipeline layout is nil")

	// ErrNilRenderPass is returned when building a graphics pipeline without
	// a render pass.
	ErrNilRenderPass = errors.New("resource: render pass is nil")

	// ErrNoComputeStage is returned when a compute pipeline's layout carries
	// no compute shader module.
	ErrNoComputeStage = errors.New("resource: pipeline layout has no compute stage")
)

// SpecializationState maps specialization constant ids to their override
// bytes. Pipelines with different overrides are distinct cache entries.
type SpecializationState map[uint32][]byte

// Clone returns a deep copy.
func (s SpecializationState) Clone() SpecializationState {
	out := make(SpecializationState, len(s))
	for id, data := range s {
		buf := make([]byte, len(data))
		copy(buf, data)
		out[id] = buf
	}
	return out
}

// encode writes the constants in ascending id order so the walk is
// deterministic over the map.
func (s SpecializationState) encode(w *wire.Writer) {
	w.Len(len(s))
	for _, id := range sortedKeys(s) {
		w.Uint32(id)
		w.Bytes(s[id])
	}
}

func decodeSpecializationState(r *wire.Reader) SpecializationState {
	n := r.Len()
	if n == 0 {
		return nil
	}
	out := make(SpecializationState, n)
	for i := 0; i < n; i++ {
		id := r.Uint32()
		out[id] = r.Bytes()
	}
	return out
}

// toDriver converts to the driver's ordered constant list, ascending by id.
func (s SpecializationState) toDriver() []driver.SpecConstant {
	if len(s) == 0 {
		return nil
	}
	out := make([]driver.SpecConstant, 0, len(s))
	for _, id := range sortedKeys(s) {
		out = append(out, driver.SpecConstant{ID: id, Data: s[id]})
	}
	return out
}

// PipelineState is the full identity of one graphics pipeline request: the
// layout and render pass it targets plus every fixed-function block.
type PipelineState struct {
	Layout     *PipelineLayout
	RenderPass *RenderPass
	Subpass    uint32

	Specialization SpecializationState

	VertexInput   driver.VertexInputState
	InputAssembly driver.InputAssemblyState
	Rasterization driver.RasterizationState
	Viewport      driver.ViewportState
	Multisample   driver.MultisampleState
	DepthStencil  driver.DepthStencilState
	ColorBlend    driver.ColorBlendState
}

// encode walks every identity field. The layout and render pass are
// references; everything else is value data written field by field.
func (p *PipelineState) encode(w *wire.Writer, refs RefSink) {
	refs.PipelineLayoutRef(p.Layout)
	refs.RenderPassRef(p.RenderPass)
	w.Uint32(p.Subpass)
	p.Specialization.encode(w)

	w.Len(len(p.VertexInput.Bindings))
	for _, b := range p.VertexInput.Bindings {
		w.Uint32(b.Binding)
		w.Uint32(b.Stride)
		w.Uint32(uint32(b.StepMode))
	}
	w.Len(len(p.VertexInput.Attributes))
	for _, a := range p.VertexInput.Attributes {
		w.Uint32(a.Location)
		w.Uint32(a.Binding)
		w.Uint32(uint32(a.Format))
		w.Uint32(a.Offset)
	}

	w.Uint32(uint32(p.InputAssembly.Topology))
	w.Bool(p.InputAssembly.PrimitiveRestart)

	w.Bool(p.Rasterization.DepthClamp)
	w.Bool(p.Rasterization.RasterizerDiscard)
	w.Uint32(uint32(p.Rasterization.PolygonMode))
	w.Uint32(uint32(p.Rasterization.CullMode))
	w.Uint32(uint32(p.Rasterization.FrontFace))
	w.Bool(p.Rasterization.DepthBias)

	w.Uint32(p.Viewport.Viewports)
	w.Uint32(p.Viewport.Scissors)

	w.Uint32(p.Multisample.Samples)
	w.Bool(p.Multisample.SampleShading)
	w.Float32(p.Multisample.MinSampleShading)
	w.Uint32(p.Multisample.SampleMask)
	w.Bool(p.Multisample.AlphaToCoverage)
	w.Bool(p.Multisample.AlphaToOne)

	w.Bool(p.DepthStencil.DepthTest)
	w.Bool(p.DepthStencil.DepthWrite)
	w.Uint32(uint32(p.DepthStencil.DepthCompare))
	w.Bool(p.DepthStencil.DepthBoundsTest)
	w.Bool(p.DepthStencil.StencilTest)
	encodeStencilOpState(w, p.DepthStencil.Front)
	encodeStencilOpState(w, p.DepthStencil.Back)

	w.Bool(p.ColorBlend.LogicOpEnable)
	w.Uint32(uint32(p.ColorBlend.LogicOp))
	w.Len(len(p.ColorBlend.Attachments))
	for _, a := range p.ColorBlend.Attachments {
		w.Bool(a.BlendEnable)
		w.Uint32(uint32(a.SrcColorBlendFactor))
		w.Uint32(uint32(a.DstColorBlendFactor))
		w.Uint32(uint32(a.ColorBlendOp))
		w.Uint32(uint32(a.SrcAlphaBlendFactor))
		w.Uint32(uint32(a.DstAlphaBlendFactor))
		w.Uint32(uint32(a.AlphaBlendOp))
		w.Uint32(uint32(a.ColorWriteMask))
	}
}

func encodeStencilOpState(w *wire.Writer, s driver.StencilOpState) {
	w.Uint32(uint32(s.FailOp))
	w.Uint32(uint32(s.PassOp))
	w.Uint32(uint32(s.DepthFailOp))
	w.Uint32(uint32(s.CompareOp))
}

func decodeStencilOpState(r *wire.Reader) driver.StencilOpState {
	return driver.StencilOpState{
		FailOp:      driver.StencilOp(r.Uint32()),
		PassOp:      driver.StencilOp(r.Uint32()),
		DepthFailOp: driver.StencilOp(r.Uint32()),
		CompareOp:   gputypes.CompareFunction(r.Uint32()),
	}
}

// EncodeTo writes the state through the shared field walk.
func (p *PipelineState) EncodeTo(w *wire.Writer, refs RefSink) {
	p.encode(w, refs)
}

// Hash returns the cache key for this state.
func (p *PipelineState) Hash() uint64 {
	return fnvOf(p.encode)
}

// DecodePipelineState reads state written by EncodeTo, resolving the layout
// and render pass references through src.
func DecodePipelineState(r *wire.Reader, src RefSource) (*PipelineState, error) {
	layout, err := src.PipelineLayoutRef()
	if err != nil {
		return nil, err
	}
	renderPass, err := src.RenderPassRef()
	if err != nil {
		return nil, err
	}

	p := &PipelineState{
		Layout:         layout,
		RenderPass:     renderPass,
		Subpass:        r.Uint32(),
		Specialization: decodeSpecializationState(r),
	}

	n := r.Len()
	for i := 0; i < n; i++ {
		p.VertexInput.Bindings = append(p.VertexInput.Bindings, driver.VertexInputBinding{
			Binding:  r.Uint32(),
			Stride:   r.Uint32(),
			StepMode: gputypes.VertexStepMode(r.Uint32()),
		})
	}
	n = r.Len()
	for i := 0; i < n; i++ {
		p.VertexInput.Attributes = append(p.VertexInput.Attributes, driver.VertexInputAttribute{
			Location: r.Uint32(),
			Binding:  r.Uint32(),
			Format:   gputypes.VertexFormat(r.Uint32()),
			Offset:   r.Uint32(),
		})
	}

	p.InputAssembly.Topology = gputypes.PrimitiveTopology(r.Uint32())
	p.InputAssembly.PrimitiveRestart = r.Bool()

	p.Rasterization.DepthClamp = r.Bool()
	p.Rasterization.RasterizerDiscard = r.Bool()
	p.Rasterization.PolygonMode = driver.PolygonMode(r.Uint32())
	p.Rasterization.CullMode = gputypes.CullMode(r.Uint32())
	p.Rasterization.FrontFace = gputypes.FrontFace(r.Uint32())
	p.Rasterization.DepthBias = r.Bool()

	p.Viewport.Viewports = r.Uint32()
	p.Viewport.Scissors = r.Uint32()

	p.Multisample.Samples = r.Uint32()
	p.Multisample.SampleShading = r.Bool()
	p.Multisample.MinSampleShading = r.Float32()
	p.Multisample.SampleMask = r.Uint32()
	p.Multisample.AlphaToCoverage = r.Bool()
	p.Multisample.AlphaToOne = r.Bool()

	p.DepthStencil.DepthTest = r.Bool()
	p.DepthStencil.DepthWrite = r.Bool()
	p.DepthStencil.DepthCompare = gputypes.CompareFunction(r.Uint32())
	p.DepthStencil.DepthBoundsTest = r.Bool()
	p.DepthStencil.StencilTest = r.Bool()
	p.DepthStencil.Front = decodeStencilOpState(r)
	p.DepthStencil.Back = decodeStencilOpState(r)

	p.ColorBlend.LogicOpEnable = r.Bool()
	p.ColorBlend.LogicOp = driver.LogicOp(r.Uint32())
	n = r.Len()
	for i := 0; i < n; i++ {
		p.ColorBlend.Attachments = append(p.ColorBlend.Attachments, driver.ColorBlendAttachmentState{
			BlendEnable:         r.Bool(),
			SrcColorBlendFactor: gputypes.BlendFactor(r.Uint32()),
			DstColorBlendFactor: gputypes.BlendFactor(r.Uint32()),
			ColorBlendOp:        gputypes.BlendOperation(r.Uint32()),
			SrcAlphaBlendFactor: gputypes.BlendFactor(r.Uint32()),
			DstAlphaBlendFactor: gputypes.BlendFactor(r.Uint32()),
			AlphaBlendOp:        gputypes.BlendOperation(r.Uint32()),
			ColorWriteMask:      gputypes.ColorWriteMask(r.Uint32()),
		})
	}

	return p, r.Err()
}

// GraphicsPipeline is a cached graphics pipeline.
type GraphicsPipeline struct {
	device driver.Device
	handle driver.Pipeline
	hash   uint64
	state  *PipelineState
}

// NewGraphicsPipeline creates the driver pipeline described by state. The
// shader stages come from the layout's modules; pipelineCache is the driver
// level cache handle, zero for none.
func NewGraphicsPipeline(device driver.Device, pipelineCache driver.PipelineCache, state *PipelineState) (*GraphicsPipeline, error) {
	if state.Layout == nil {
		return nil, ErrNilPipelineLayout
	}
	if state.RenderPass == nil {
		return nil, ErrNilRenderPass
	}

	spec := state.Specialization.toDriver()
	stages := make([]driver.ShaderStageInfo, 0, len(state.Layout.Modules()))
	for _, m := range state.Layout.Modules() {
		stages = append(stages, driver.ShaderStageInfo{
			Stage:          m.Stage(),
			Module:         m.Handle(),
			EntryPoint:     m.EntryPoint(),
			Specialization: spec,
		})
	}

	handle, err := device.CreateGraphicsPipeline(pipelineCache, &driver.GraphicsPipelineDescriptor{
		Layout:        state.Layout.Handle(),
		RenderPass:    state.RenderPass.Handle(),
		Subpass:       state.Subpass,
		Stages:        stages,
		VertexInput:   state.VertexInput,
		InputAssembly: state.InputAssembly,
		Rasterization: state.Rasterization,
		Viewport:      state.Viewport,
		Multisample:   state.Multisample,
		DepthStencil:  state.DepthStencil,
		ColorBlend:    state.ColorBlend,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create graphics pipeline: %w", err)
	}

	slogger().Debug("created graphics pipeline", "stages", len(stages), "subpass", state.Subpass)
	return &GraphicsPipeline{
		device: device,
		handle: handle,
		hash:   state.Hash(),
		state:  state,
	}, nil
}

// Handle returns the driver pipeline handle.
func (p *GraphicsPipeline) Handle() driver.Pipeline { return p.handle }

// Hash returns the pipeline's content hash, its key in the cache.
func (p *GraphicsPipeline) Hash() uint64 { return p.hash }

// State returns the state the pipeline was built from. Callers must not
// modify it.
func (p *GraphicsPipeline) State() *PipelineState { return p.state }

// Destroy releases the driver pipeline.
func (p *GraphicsPipeline) Destroy() {
	if p.handle != 0 {
		p.device.DestroyPipeline(p.handle)
		p.handle = 0
	}
}

// ComputePipelineParams is the identity of one compute pipeline request.
type ComputePipelineParams struct {
	Layout         *PipelineLayout
	Specialization SpecializationState
}

// encode walks the identity fields.
func (p *ComputePipelineParams) encode(w *wire.Writer, refs RefSink) {
	refs.PipelineLayoutRef(p.Layout)
	p.Specialization.encode(w)
}

// EncodeTo writes the params through the shared field walk.
func (p *ComputePipelineParams) EncodeTo(w *wire.Writer, refs RefSink) {
	p.encode(w, refs)
}

// Hash returns the cache key for these params.
func (p *ComputePipelineParams) Hash() uint64 {
	return fnvOf(p.encode)
}

// DecodeComputePipelineParams reads params written by EncodeTo, resolving the
// layout reference through src.
func DecodeComputePipelineParams(r *wire.Reader, src RefSource) (ComputePipelineParams, error) {
	layout, err := src.PipelineLayoutRef()
	if err != nil {
		return ComputePipelineParams{}, err
	}
	p := ComputePipelineParams{
		Layout:         layout,
		Specialization: decodeSpecializationState(r),
	}
	return p, r.Err()
}

// ComputePipeline is a cached compute pipeline.
type ComputePipeline struct {
	device driver.Device
	handle driver.Pipeline
	hash   uint64
	layout *PipelineLayout
}

// NewComputePipeline creates the driver pipeline for the layout's compute
// stage module.
func NewComputePipeline(device driver.Device, pipelineCache driver.PipelineCache, params ComputePipelineParams) (*ComputePipeline, error) {
	if params.Layout == nil {
		return nil, ErrNilPipelineLayout
	}
	module := params.Layout.StageModule(gputypes.ShaderStageCompute)
	if module == nil {
		return nil, ErrNoComputeStage
	}

	handle, err := device.CreateComputePipeline(pipelineCache, &driver.ComputePipelineDescriptor{
		Layout: params.Layout.Handle(),
		Stage: driver.ShaderStageInfo{
			Stage:          module.Stage(),
			Module:         module.Handle(),
			EntryPoint:     module.EntryPoint(),
			Specialization: params.Specialization.toDriver(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create compute pipeline: %w", err)
	}

	slogger().Debug("created compute pipeline", "module", module.Name())
	return &ComputePipeline{
		device: device,
		handle: handle,
		hash:   params.Hash(),
		layout: params.Layout,
	}, nil
}

// Handle returns the driver pipeline handle.
func (p *ComputePipeline) Handle() driver.Pipeline { return p.handle }

// Hash returns the pipeline's content hash, its key in the cache.
func (p *ComputePipeline) Hash() uint64 { return p.hash }

// Layout returns the pipeline layout.
func (p *ComputePipeline) Layout() *PipelineLayout { return p.layout }

// Destroy releases the driver pipeline.
func (p *ComputePipeline) Destroy() {
	if p.handle != 0 {
		p.device.DestroyPipeline(p.handle)
		p.handle = 0
	}
}
