// Package resource implements the typed wrappers the cache hands out: shader
// modules, descriptor set layouts, descriptor pools and sets, pipeline
// layouts, render passes, pipelines, and framebuffers.
//
// Each wrapper owns its driver handle, carries the content hash it was cached
// under, and knows how to walk its construction parameters for hashing and
// recording. Construction goes through driver.Device; nothing in this package
// touches a GPU API directly.
package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/wire"
)

// Shader errors.
var (
	// ErrNilCompiler is returned when building a shader module without a compiler.
	ErrNilCompiler = errors.New("resource: shader compiler is nil")

	// ErrEmptyShaderSource is returned when the source code is empty.
	ErrEmptyShaderSource = errors.New("resource: shader source is empty")
)

// ShaderResourceType classifies a shader-reflected resource.
type ShaderResourceType uint32

// Shader resource types. Input, Output, PushConstant, and
// SpecializationConstant have no descriptor binding point and are skipped
// when deriving set layouts.
const (
	ShaderResourceInput ShaderResourceType = iota
	ShaderResourceInputAttachment
	ShaderResourceOutput
	ShaderResourceImage
	ShaderResourceImageSampler
	ShaderResourceImageStorage
	ShaderResourceSampler
	ShaderResourceBufferUniform
	ShaderResourceBufferStorage
	ShaderResourcePushConstant
	ShaderResourceSpecializationConstant
)

// ShaderResourceMode qualifies how a resource's descriptor is bound.
type ShaderResourceMode uint32

// Shader resource modes.
const (
	// ShaderResourceModeStatic descriptors are written before the set is bound.
	ShaderResourceModeStatic ShaderResourceMode = iota

	// ShaderResourceModeDynamic buffers take a dynamic offset at bind time.
	ShaderResourceModeDynamic

	// ShaderResourceModeUpdateAfterBind descriptors may be written after the
	// set is bound. Conflicts with dynamic bindings in the same set.
	ShaderResourceModeUpdateAfterBind
)

// ShaderResource describes one resource reflected from a shader stage.
type ShaderResource struct {
	// Stages is the mask of stages that reference the resource. Merged
	// across modules when building a pipeline layout.
	Stages gputypes.ShaderStage

	Type ShaderResourceType
	Mode ShaderResourceMode

	// Set and Binding locate the resource's descriptor slot. Meaningless
	// for types without a binding point.
	Set     uint32
	Binding uint32

	// ArraySize is the binding's array length, 1 when not arrayed.
	ArraySize uint32

	// Offset and Size describe push constant blocks.
	Offset uint32
	Size   uint32

	// ConstantID is the specialization constant id, for
	// ShaderResourceSpecializationConstant only.
	ConstantID uint32

	// Name is the identifier in the shader source. Used for name lookups
	// and diagnostics, never folded into cache keys.
	Name string
}

// ShaderSource is a piece of shader code handed to the compiler.
type ShaderSource struct {
	// Name identifies the source in diagnostics, typically a file name.
	// Excluded from hashing and recording: two sources with equal code are
	// the same shader regardless of where they came from.
	Name string

	// Code is the shader text.
	Code string
}

// ShaderVariant alters a source before compilation. The preamble and each
// define are prepended to the code as separate lines, in order. Variants
// with different define orders are distinct by design: the cache key is
// order-sensitive.
type ShaderVariant struct {
	Preamble string
	Defines  []string
}

// AddDefine appends one prepended source line to the variant.
func (v *ShaderVariant) AddDefine(def string) {
	v.Defines = append(v.Defines, def)
}

// Empty reports whether the variant alters the source at all.
func (v *ShaderVariant) Empty() bool {
	return v.Preamble == "" && len(v.Defines) == 0
}

// Compiler turns shader source into SPIR-V words plus the reflected resource
// list. The cache invokes it once per distinct shader module key; results
// must be deterministic for equal inputs.
type Compiler interface {
	Compile(stage gputypes.ShaderStage, source ShaderSource, entryPoint string, variant ShaderVariant) (code []uint32, resources []ShaderResource, err error)
}

// ShaderModuleParams is the identity of one shader module request.
type ShaderModuleParams struct {
	Stage      gputypes.ShaderStage
	Source     ShaderSource
	EntryPoint string
	Variant    ShaderVariant
}

// encode walks the identity fields. Shared verbatim by hashing and
// recording; see RefSink.
func (p *ShaderModuleParams) encode(w *wire.Writer, refs RefSink) {
	w.Uint32(uint32(p.Stage))
	w.String(p.Source.Code)
	w.String(p.EntryPoint)
	w.String(p.Variant.Preamble)
	w.Len(len(p.Variant.Defines))
	for _, d := range p.Variant.Defines {
		w.String(d)
	}
}

// EncodeTo writes the params through the shared field walk.
func (p *ShaderModuleParams) EncodeTo(w *wire.Writer, refs RefSink) {
	p.encode(w, refs)
}

// Hash returns the cache key for these params.
func (p *ShaderModuleParams) Hash() uint64 {
	return fnvOf(p.encode)
}

// DecodeShaderModuleParams reads params written by EncodeTo.
func DecodeShaderModuleParams(r *wire.Reader) (ShaderModuleParams, error) {
	var p ShaderModuleParams
	p.Stage = gputypes.ShaderStage(r.Uint32())
	p.Source.Code = r.String()
	p.EntryPoint = r.String()
	p.Variant.Preamble = r.String()
	n := r.Len()
	for i := 0; i < n; i++ {
		p.Variant.Defines = append(p.Variant.Defines, r.String())
	}
	return p, r.Err()
}

// ShaderModule is a compiled shader stage with its reflected resources.
//
// Modules are shared by every pipeline layout that names them. Apart from
// SetResourceMode, which must run before a module is handed to other
// goroutines, a module never changes after construction.
type ShaderModule struct {
	device     driver.Device
	handle     driver.ShaderModule
	hash       uint64
	stage      gputypes.ShaderStage
	entryPoint string
	name       string
	spirv      []uint32
	resources  []ShaderResource
}

// NewShaderModule compiles source through the compiler and wraps the driver
// module. The reflected resources are stamped with the module's stage.
func NewShaderModule(device driver.Device, compiler Compiler, params ShaderModuleParams) (*ShaderModule, error) {
	if compiler == nil {
		return nil, ErrNilCompiler
	}
	if params.Source.Code == "" {
		return nil, ErrEmptyShaderSource
	}

	code, resources, err := compiler.Compile(params.Stage, params.Source, params.EntryPoint, params.Variant)
	if err != nil {
		return nil, fmt.Errorf("resource: compile shader %q: %w", params.Source.Name, err)
	}
	for i := range resources {
		resources[i].Stages |= params.Stage
	}

	handle, err := device.CreateShaderModule(code)
	if err != nil {
		return nil, fmt.Errorf("resource: create shader module %q: %w", params.Source.Name, err)
	}

	return &ShaderModule{
		device:     device,
		handle:     handle,
		hash:       params.Hash(),
		stage:      params.Stage,
		entryPoint: params.EntryPoint,
		name:       params.Source.Name,
		spirv:      code,
		resources:  resources,
	}, nil
}

// Handle returns the driver module handle.
func (m *ShaderModule) Handle() driver.ShaderModule { return m.handle }

// Hash returns the module's content hash, its key in the cache.
func (m *ShaderModule) Hash() uint64 { return m.hash }

// Stage returns the shader stage.
func (m *ShaderModule) Stage() gputypes.ShaderStage { return m.stage }

// EntryPoint returns the entry point function name.
func (m *ShaderModule) EntryPoint() string { return m.entryPoint }

// Name returns the diagnostic source name.
func (m *ShaderModule) Name() string { return m.name }

// Resources returns the reflected resource list. Callers must not modify it.
func (m *ShaderModule) Resources() []ShaderResource { return m.resources }

// SetResourceMode overrides the binding mode of the named resource, for
// example to mark a uniform buffer dynamic before building layouts from this
// module. Unknown names are logged and ignored.
func (m *ShaderModule) SetResourceMode(name string, mode ShaderResourceMode) {
	for i := range m.resources {
		if m.resources[i].Name == name {
			m.resources[i].Mode = mode
			return
		}
	}
	slogger().Warn("shader resource not found", "module", m.name, "resource", name)
}

// SPIRV returns the compiled words. Callers must not modify them.
func (m *ShaderModule) SPIRV() []uint32 { return m.spirv }

// Destroy releases the driver module.
func (m *ShaderModule) Destroy() {
	if m.handle != 0 {
		m.device.DestroyShaderModule(m.handle)
		m.handle = 0
	}
}
