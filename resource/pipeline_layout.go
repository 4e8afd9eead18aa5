package resource

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/wire"
)

// ErrNoShaderModules is returned when building a pipeline layout from an
// empty module list.
var ErrNoShaderModules = errors.New("resource: pipeline layout needs at least one shader module")

// PipelineLayoutParams is the identity of one pipeline layout request: the
// contributing shader modules, in order.
type PipelineLayoutParams struct {
	Modules []*ShaderModule
}

// encode walks the identity fields. Modules are references: the hashing sink
// folds their content hashes in, the recording sink their log indices.
func (p *PipelineLayoutParams) encode(w *wire.Writer, refs RefSink) {
	w.Len(len(p.Modules))
	for _, m := range p.Modules {
		refs.ShaderModuleRef(m)
	}
}

// EncodeTo writes the params through the shared field walk.
func (p *PipelineLayoutParams) EncodeTo(w *wire.Writer, refs RefSink) {
	p.encode(w, refs)
}

// Hash returns the cache key for these params.
func (p *PipelineLayoutParams) Hash() uint64 {
	return fnvOf(p.encode)
}

// DecodePipelineLayoutParams reads params written by EncodeTo, resolving
// module references through src.
func DecodePipelineLayoutParams(r *wire.Reader, src RefSource) (PipelineLayoutParams, error) {
	var p PipelineLayoutParams
	n := r.Len()
	for i := 0; i < n; i++ {
		if r.Err() != nil {
			return p, r.Err()
		}
		m, err := src.ShaderModuleRef()
		if err != nil {
			return p, err
		}
		p.Modules = append(p.Modules, m)
	}
	return p, r.Err()
}

// mergeShaderResources folds the reflected resources of every module into one
// list, merging entries that share a name by OR-ing their stage masks. The
// first occurrence fixes an entry's position, so the merged order is
// deterministic for a given module order.
func mergeShaderResources(modules []*ShaderModule) []ShaderResource {
	var merged []ShaderResource
	index := make(map[string]int)

	for _, m := range modules {
		for _, r := range m.Resources() {
			// Inputs and outputs are per-stage by nature; never merge them.
			if r.Type == ShaderResourceInput || r.Type == ShaderResourceOutput {
				merged = append(merged, r)
				continue
			}
			if i, ok := index[r.Name]; ok {
				merged[i].Stages |= r.Stages
				continue
			}
			index[r.Name] = len(merged)
			merged = append(merged, r)
		}
	}
	return merged
}

// RequestSetLayoutFunc obtains the cached descriptor set layout for one set
// index. The cache passes its own RequestDescriptorSetLayout here so nested
// layouts are shared across pipeline layouts.
type RequestSetLayoutFunc func(setIndex uint32, modules []*ShaderModule, resources []ShaderResource) (*DescriptorSetLayout, error)

// PipelineLayout is the cached layout of a whole pipeline: the descriptor set
// layouts of every set its shaders touch plus the push constant ranges.
type PipelineLayout struct {
	device driver.Device
	handle driver.PipelineLayout
	hash   uint64

	modules   []*ShaderModule
	resources []ShaderResource

	setLayouts    map[uint32]*DescriptorSetLayout
	setIndices    []uint32
	pushConstants []driver.PushConstantRange
}

// NewPipelineLayout merges the modules' reflected resources, obtains one
// descriptor set layout per referenced set through requestSetLayout, and
// creates the driver layout with the merged push constant ranges.
func NewPipelineLayout(device driver.Device, params PipelineLayoutParams, requestSetLayout RequestSetLayoutFunc) (*PipelineLayout, error) {
	if len(params.Modules) == 0 {
		return nil, ErrNoShaderModules
	}

	merged := mergeShaderResources(params.Modules)

	// Group the bindable resources by set index.
	bySet := make(map[uint32][]ShaderResource)
	for _, r := range merged {
		if _, ok := resolveDescriptorType(r.Type, r.Mode == ShaderResourceModeDynamic); !ok {
			continue
		}
		bySet[r.Set] = append(bySet[r.Set], r)
	}

	l := &PipelineLayout{
		device:     device,
		hash:       params.Hash(),
		modules:    params.Modules,
		resources:  merged,
		setLayouts: make(map[uint32]*DescriptorSetLayout, len(bySet)),
		setIndices: sortedKeys(bySet),
	}

	handles := make([]driver.DescriptorSetLayout, 0, len(l.setIndices))
	for _, set := range l.setIndices {
		layout, err := requestSetLayout(set, params.Modules, bySet[set])
		if err != nil {
			return nil, fmt.Errorf("resource: set %d layout for pipeline layout: %w", set, err)
		}
		l.setLayouts[set] = layout
		handles = append(handles, layout.Handle())
	}

	for _, r := range merged {
		if r.Type == ShaderResourcePushConstant {
			l.pushConstants = append(l.pushConstants, driver.PushConstantRange{
				Stages: r.Stages,
				Offset: r.Offset,
				Size:   r.Size,
			})
		}
	}

	handle, err := device.CreatePipelineLayout(handles, l.pushConstants)
	if err != nil {
		return nil, fmt.Errorf("resource: create pipeline layout: %w", err)
	}
	l.handle = handle

	slogger().Debug("created pipeline layout",
		"modules", len(params.Modules),
		"sets", len(l.setIndices),
		"pushConstants", len(l.pushConstants))
	return l, nil
}

// Handle returns the driver layout handle.
func (l *PipelineLayout) Handle() driver.PipelineLayout { return l.handle }

// Hash returns the layout's content hash, its key in the cache.
func (l *PipelineLayout) Hash() uint64 { return l.hash }

// Modules returns the shader modules the layout was built from.
func (l *PipelineLayout) Modules() []*ShaderModule { return l.modules }

// Resources returns the merged resource list across all stages. Callers must
// not modify it.
func (l *PipelineLayout) Resources() []ShaderResource { return l.resources }

// SetIndices returns the referenced descriptor set indices in ascending
// order.
func (l *PipelineLayout) SetIndices() []uint32 { return l.setIndices }

// SetLayout returns the descriptor set layout for one set index.
func (l *PipelineLayout) SetLayout(setIndex uint32) (*DescriptorSetLayout, bool) {
	layout, ok := l.setLayouts[setIndex]
	return layout, ok
}

// HasSet reports whether the layout's shaders touch the given set index.
func (l *PipelineLayout) HasSet(setIndex uint32) bool {
	_, ok := l.setLayouts[setIndex]
	return ok
}

// PushConstants returns the layout's push constant ranges.
func (l *PipelineLayout) PushConstants() []driver.PushConstantRange { return l.pushConstants }

// StageModule returns the first module compiled for the given stage, or nil.
func (l *PipelineLayout) StageModule(stage gputypes.ShaderStage) *ShaderModule {
	for _, m := range l.modules {
		if m.Stage() == stage {
			return m
		}
	}
	return nil
}

// SetsWithUpdateAfterBind returns the indices of sets carrying at least one
// update-after-bind binding, ascending.
func (l *PipelineLayout) SetsWithUpdateAfterBind() []uint32 {
	var out []uint32
	for set, layout := range l.setLayouts {
		if layout.UpdateAfterBind() {
			out = append(out, set)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Destroy releases the driver layout. The nested set layouts stay alive; they
// are owned by the cache, not by this object.
func (l *PipelineLayout) Destroy() {
	if l.handle != 0 {
		l.device.DestroyPipelineLayout(l.handle)
		l.handle = 0
	}
}
