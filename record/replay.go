package record

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/resource"
	"github.com/DrGr4f1x/vkcache/wire"
)

// Replay errors.
var (
	// ErrUnknownTag is returned when the log carries a tag no decoder
	// handles. The log is from a different build or corrupt; replay aborts.
	ErrUnknownTag = errors.New("record: unknown entry tag")

	// ErrBadReference is returned when an entry references an index that has
	// not been replayed yet, including MissingRef. The log violates the
	// forward-reference-only ordering.
	ErrBadReference = errors.New("record: entry references an unreplayed object")
)

// Target is the request surface replay drives. The resource cache implements
// it; replaying through the same request operations that produced the log is
// what makes the rebuilt cache keys identical to the originals.
type Target interface {
	RequestShaderModule(stage gputypes.ShaderStage, source resource.ShaderSource, entryPoint string, variant resource.ShaderVariant) (*resource.ShaderModule, error)
	RequestPipelineLayout(modules []*resource.ShaderModule) (*resource.PipelineLayout, error)
	RequestRenderPass(attachments []resource.Attachment, loadStore []resource.LoadStoreInfo, subpasses []resource.SubpassInfo) (*resource.RenderPass, error)
	RequestGraphicsPipeline(state *resource.PipelineState) (*resource.GraphicsPipeline, error)
	RequestComputePipeline(layout *resource.PipelineLayout, spec resource.SpecializationState) (*resource.ComputePipeline, error)
}

// Replayer rebuilds an object graph from a captured log by invoking a
// Target's request operations in log order.
//
// Replayed objects live in per-kind arenas addressed by their log indices;
// later entries resolve their dependency references through the arenas. A
// Replayer is single-use and not safe for concurrent use.
type Replayer struct {
	shaderModules   []*resource.ShaderModule
	pipelineLayouts []*resource.PipelineLayout
	renderPasses    []*resource.RenderPass
}

// NewReplayer creates an empty replayer.
func NewReplayer() *Replayer {
	return &Replayer{}
}

// replaySource resolves recorded reference indices against the replayer's
// arenas. Implements resource.RefSource over the entry's reader.
type replaySource struct {
	rep *Replayer
	r   *wire.Reader
}

func (s replaySource) ShaderModuleRef() (*resource.ShaderModule, error) {
	idx := s.r.Uint32()
	if err := s.r.Err(); err != nil {
		return nil, err
	}
	if int(idx) >= len(s.rep.shaderModules) {
		return nil, fmt.Errorf("%w: shader module %d of %d", ErrBadReference, idx, len(s.rep.shaderModules))
	}
	return s.rep.shaderModules[idx], nil
}

func (s replaySource) PipelineLayoutRef() (*resource.PipelineLayout, error) {
	idx := s.r.Uint32()
	if err := s.r.Err(); err != nil {
		return nil, err
	}
	if int(idx) >= len(s.rep.pipelineLayouts) {
		return nil, fmt.Errorf("%w: pipeline layout %d of %d", ErrBadReference, idx, len(s.rep.pipelineLayouts))
	}
	return s.rep.pipelineLayouts[idx], nil
}

func (s replaySource) RenderPassRef() (*resource.RenderPass, error) {
	idx := s.r.Uint32()
	if err := s.r.Err(); err != nil {
		return nil, err
	}
	if int(idx) >= len(s.rep.renderPasses) {
		return nil, fmt.Errorf("%w: render pass %d of %d", ErrBadReference, idx, len(s.rep.renderPasses))
	}
	return s.rep.renderPasses[idx], nil
}

// Play decodes every entry of data in order and issues the corresponding
// request against target. The first decode or construction failure aborts the
// whole replay.
func (p *Replayer) Play(target Target, data []byte) error {
	r := wire.NewReader(data)
	src := replaySource{rep: p, r: r}

	entry := 0
	for r.Remaining() > 0 {
		tag := Tag(r.Uint8())
		if err := p.playEntry(target, tag, r, src); err != nil {
			return fmt.Errorf("record: replay entry %d (%s): %w", entry, tag.String(), err)
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("record: replay entry %d (%s): %w", entry, tag.String(), err)
		}
		entry++
	}

	slogger().Debug("replay complete",
		"entries", entry,
		"shaderModules", len(p.shaderModules),
		"pipelineLayouts", len(p.pipelineLayouts),
		"renderPasses", len(p.renderPasses))
	return nil
}

func (p *Replayer) playEntry(target Target, tag Tag, r *wire.Reader, src replaySource) error {
	switch tag {
	case TagShaderModule:
		params, err := resource.DecodeShaderModuleParams(r)
		if err != nil {
			return err
		}
		m, err := target.RequestShaderModule(params.Stage, params.Source, params.EntryPoint, params.Variant)
		if err != nil {
			return err
		}
		p.shaderModules = append(p.shaderModules, m)

	case TagPipelineLayout:
		params, err := resource.DecodePipelineLayoutParams(r, src)
		if err != nil {
			return err
		}
		l, err := target.RequestPipelineLayout(params.Modules)
		if err != nil {
			return err
		}
		p.pipelineLayouts = append(p.pipelineLayouts, l)

	case TagRenderPass:
		params, err := resource.DecodeRenderPassParams(r)
		if err != nil {
			return err
		}
		rp, err := target.RequestRenderPass(params.Attachments, params.LoadStore, params.Subpasses)
		if err != nil {
			return err
		}
		p.renderPasses = append(p.renderPasses, rp)

	case TagGraphicsPipeline:
		state, err := resource.DecodePipelineState(r, src)
		if err != nil {
			return err
		}
		if _, err := target.RequestGraphicsPipeline(state); err != nil {
			return err
		}

	case TagComputePipeline:
		params, err := resource.DecodeComputePipelineParams(r, src)
		if err != nil {
			return err
		}
		if _, err := target.RequestComputePipeline(params.Layout, params.Specialization); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %d", ErrUnknownTag, uint8(tag))
	}
	return nil
}

// EntryInfo summarizes one log entry for trace inspection.
type EntryInfo struct {
	// Tag is the entry's resource kind.
	Tag Tag

	// Index is the entry's per-kind sequential index.
	Index uint32

	// Size is the payload size in bytes, tag byte excluded.
	Size int
}

// scanArena satisfies resource.RefSource while only consuming reference
// bytes; no objects are resolved.
type scanSource struct {
	r *wire.Reader
}

func (s scanSource) ShaderModuleRef() (*resource.ShaderModule, error) {
	s.r.Uint32()
	return nil, s.r.Err()
}

func (s scanSource) PipelineLayoutRef() (*resource.PipelineLayout, error) {
	s.r.Uint32()
	return nil, s.r.Err()
}

func (s scanSource) RenderPassRef() (*resource.RenderPass, error) {
	s.r.Uint32()
	return nil, s.r.Err()
}

// Scan walks a log without constructing anything and returns one EntryInfo
// per entry. Used by trace tooling and by Recorder.SetData to validate
// imported bytes.
func Scan(data []byte) ([]EntryInfo, error) {
	r := wire.NewReader(data)
	src := scanSource{r: r}

	var (
		entries []EntryInfo
		counts  [TagComputePipeline + 1]uint32
	)
	for r.Remaining() > 0 {
		start := r.Remaining()
		tag := Tag(r.Uint8())

		var err error
		switch tag {
		case TagShaderModule:
			_, err = resource.DecodeShaderModuleParams(r)
		case TagPipelineLayout:
			_, err = resource.DecodePipelineLayoutParams(r, src)
		case TagRenderPass:
			_, err = resource.DecodeRenderPassParams(r)
		case TagGraphicsPipeline:
			_, err = resource.DecodePipelineState(r, src)
		case TagComputePipeline:
			_, err = resource.DecodeComputePipelineParams(r, src)
		default:
			return nil, fmt.Errorf("%w: %d at entry %d", ErrUnknownTag, uint8(tag), len(entries))
		}
		if err != nil {
			return nil, fmt.Errorf("record: scan entry %d (%s): %w", len(entries), tag.String(), err)
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("record: scan entry %d (%s): %w", len(entries), tag.String(), err)
		}

		entries = append(entries, EntryInfo{
			Tag:   tag,
			Index: counts[tag],
			Size:  start - r.Remaining() - 1,
		})
		counts[tag]++
	}
	return entries, nil
}
