// Package record captures the construction parameters of cache misses as an
// append-only tagged log and replays such logs against a fresh cache.
//
// Each recorded kind appends one entry per object actually constructed; cache
// hits never append. Entries that depend on earlier objects (a pipeline
// layout on its shader modules, a pipeline on its layout and render pass)
// encode those dependencies as per-kind log indices, never as addresses, so a
// replayed log resolves them through the order it was written in. Replay
// drives the same request operations the live build path uses, which is what
// guarantees identical cache keys on both paths.
package record

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/DrGr4f1x/vkcache/resource"
	"github.com/DrGr4f1x/vkcache/wire"
)

// Tag identifies the resource kind of one log entry.
type Tag uint8

// Entry tags, one per recordable kind. Descriptor pools, descriptor sets, and
// framebuffers are never recorded: their parameters embed live driver handles
// that do not exist at warmup time.
const (
	TagShaderModule Tag = iota + 1
	TagPipelineLayout
	TagRenderPass
	TagGraphicsPipeline
	TagComputePipeline
)

// String returns the kind name used in diagnostics and trace listings.
func (t Tag) String() string {
	switch t {
	case TagShaderModule:
		return "shader-module"
	case TagPipelineLayout:
		return "pipeline-layout"
	case TagRenderPass:
		return "render-pass"
	case TagGraphicsPipeline:
		return "graphics-pipeline"
	case TagComputePipeline:
		return "compute-pipeline"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// MissingRef is written for a reference to an object the recorder never had
// registered. A log containing it fails replay; it indicates the referenced
// object was built before the recorder was attached.
const MissingRef = ^uint32(0)

// Recorder accumulates the append-only log and the identity tables resolving
// objects to the indices they were registered under.
//
// Recorder is safe for concurrent use; one mutex serializes appends. The
// caller must register an object's entry before any later entry references
// it, which holds naturally when registrations happen at construction time:
// an object's dependencies are always constructed first.
type Recorder struct {
	mu  sync.Mutex
	buf bytes.Buffer

	shaderModules   map[*resource.ShaderModule]uint32
	pipelineLayouts map[*resource.PipelineLayout]uint32
	renderPasses    map[*resource.RenderPass]uint32

	counts [TagComputePipeline + 1]uint32
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		shaderModules:   make(map[*resource.ShaderModule]uint32),
		pipelineLayouts: make(map[*resource.PipelineLayout]uint32),
		renderPasses:    make(map[*resource.RenderPass]uint32),
	}
}

// recordSink writes object references as per-kind log indices. Implements
// resource.RefSink; the hashing twin lives in the resource package.
type recordSink struct {
	rec *Recorder
	w   *wire.Writer
}

func (s recordSink) ShaderModuleRef(m *resource.ShaderModule) {
	idx, ok := s.rec.shaderModules[m]
	if !ok {
		slogger().Error("recording reference to unregistered shader module", "module", m.Name())
		idx = MissingRef
	}
	s.w.Uint32(idx)
}

func (s recordSink) PipelineLayoutRef(l *resource.PipelineLayout) {
	idx, ok := s.rec.pipelineLayouts[l]
	if !ok {
		slogger().Error("recording reference to unregistered pipeline layout")
		idx = MissingRef
	}
	s.w.Uint32(idx)
}

func (s recordSink) RenderPassRef(rp *resource.RenderPass) {
	idx, ok := s.rec.renderPasses[rp]
	if !ok {
		slogger().Error("recording reference to unregistered render pass")
		idx = MissingRef
	}
	s.w.Uint32(idx)
}

// append writes one tagged entry through the params' field walk and returns
// the kind's next sequential index.
func (r *Recorder) append(tag Tag, encode func(w *wire.Writer, refs resource.RefSink)) uint32 {
	w := wire.NewWriter(&r.buf)
	w.Uint8(uint8(tag))
	encode(w, recordSink{rec: r, w: w})
	if err := w.Err(); err != nil {
		// Writes to the in-memory buffer cannot fail; this is a field
		// exceeding the wire limits, which corrupts the log from here on.
		slogger().Error("record entry exceeded wire limits", "tag", tag.String(), "err", err)
	}
	idx := r.counts[tag]
	r.counts[tag]++
	return idx
}

// RegisterShaderModule appends a shader module entry and returns its index.
func (r *Recorder) RegisterShaderModule(p *resource.ShaderModuleParams) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.append(TagShaderModule, p.EncodeTo)
}

// SetShaderModule associates a constructed module with its registered index
// so later entries can reference it.
func (r *Recorder) SetShaderModule(index uint32, m *resource.ShaderModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shaderModules[m] = index
}

// RegisterPipelineLayout appends a pipeline layout entry and returns its
// index. Every module in the params must have been registered already.
func (r *Recorder) RegisterPipelineLayout(p *resource.PipelineLayoutParams) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.append(TagPipelineLayout, p.EncodeTo)
}

// SetPipelineLayout associates a constructed layout with its registered index.
func (r *Recorder) SetPipelineLayout(index uint32, l *resource.PipelineLayout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineLayouts[l] = index
}

// RegisterRenderPass appends a render pass entry and returns its index.
func (r *Recorder) RegisterRenderPass(p *resource.RenderPassParams) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.append(TagRenderPass, p.EncodeTo)
}

// SetRenderPass associates a constructed render pass with its registered
// index.
func (r *Recorder) SetRenderPass(index uint32, rp *resource.RenderPass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderPasses[rp] = index
}

// RegisterGraphicsPipeline appends a graphics pipeline entry and returns its
// index. The state's layout and render pass must have been registered.
func (r *Recorder) RegisterGraphicsPipeline(state *resource.PipelineState) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.append(TagGraphicsPipeline, state.EncodeTo)
}

// RegisterComputePipeline appends a compute pipeline entry and returns its
// index. The params' layout must have been registered.
func (r *Recorder) RegisterComputePipeline(p *resource.ComputePipelineParams) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.append(TagComputePipeline, p.EncodeTo)
}

// EntryCount returns how many entries of the given kind were appended.
func (r *Recorder) EntryCount(tag Tag) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(tag) >= len(r.counts) {
		return 0
	}
	return r.counts[tag]
}

// GetData returns a copy of the raw log bytes.
func (r *Recorder) GetData() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, r.buf.Len())
	copy(out, r.buf.Bytes())
	return out
}

// SetData replaces the log with previously captured bytes, validating them
// and restoring the per-kind entry counters. The identity tables start empty
// after an import: entries registered later cannot reference the imported
// ones, so SetData is meant for tooling that only appends value-typed kinds
// or none at all.
func (r *Recorder) SetData(data []byte) error {
	entries, err := Scan(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf.Reset()
	r.buf.Write(data)
	clear(r.shaderModules)
	clear(r.pipelineLayouts)
	clear(r.renderPasses)
	for i := range r.counts {
		r.counts[i] = 0
	}
	for _, e := range entries {
		r.counts[e.Tag]++
	}
	return nil
}
