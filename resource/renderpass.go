package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/wire"
)

// NoAttachment marks an unused attachment slot in a SubpassInfo.
const NoAttachment = ^uint32(0)

// Render pass errors.
var (
	// ErrNoAttachments is returned when building a render pass without any
	// attachments.
	ErrNoAttachments = errors.New("resource: render pass needs at least one attachment")

	// ErrLoadStoreMismatch is returned when the load/store list does not
	// cover every attachment.
	ErrLoadStoreMismatch = errors.New("resource: load/store count does not match attachment count")

	// ErrAttachmentOutOfRange is returned when a subpass references an
	// attachment index past the attachment list.
	ErrAttachmentOutOfRange = errors.New("resource: subpass references attachment out of range")
)

// Attachment describes one render pass attachment slot.
type Attachment struct {
	Format        gputypes.TextureFormat
	Samples       uint32
	InitialLayout driver.ImageLayout
	FinalLayout   driver.ImageLayout
}

// LoadStoreInfo pairs the load and store operations of one attachment.
type LoadStoreInfo struct {
	Load  gputypes.LoadOp
	Store gputypes.StoreOp
}

// SubpassInfo describes one subpass by attachment index. DepthStencil is
// NoAttachment when the subpass has no depth-stencil attachment.
type SubpassInfo struct {
	InputAttachments   []uint32
	OutputAttachments  []uint32
	ResolveAttachments []uint32
	DepthStencil       uint32
}

// RenderPassParams is the identity of one render pass request.
type RenderPassParams struct {
	Attachments []Attachment
	LoadStore   []LoadStoreInfo
	Subpasses   []SubpassInfo
}

// encode walks the identity fields. Render passes reference no other cached
// objects; everything is value data.
func (p *RenderPassParams) encode(w *wire.Writer, refs RefSink) {
	w.Len(len(p.Attachments))
	for _, a := range p.Attachments {
		w.Uint32(uint32(a.Format))
		w.Uint32(a.Samples)
		w.Uint32(uint32(a.InitialLayout))
		w.Uint32(uint32(a.FinalLayout))
	}
	w.Len(len(p.LoadStore))
	for _, ls := range p.LoadStore {
		w.Uint32(uint32(ls.Load))
		w.Uint32(uint32(ls.Store))
	}
	w.Len(len(p.Subpasses))
	for _, s := range p.Subpasses {
		encodeIndexList(w, s.InputAttachments)
		encodeIndexList(w, s.OutputAttachments)
		encodeIndexList(w, s.ResolveAttachments)
		w.Uint32(s.DepthStencil)
	}
}

func encodeIndexList(w *wire.Writer, list []uint32) {
	w.Len(len(list))
	for _, v := range list {
		w.Uint32(v)
	}
}

func decodeIndexList(r *wire.Reader) []uint32 {
	n := r.Len()
	if n == 0 {
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = r.Uint32()
	}
	return out
}

// EncodeTo writes the params through the shared field walk.
func (p *RenderPassParams) EncodeTo(w *wire.Writer, refs RefSink) {
	p.encode(w, refs)
}

// Hash returns the cache key for these params.
func (p *RenderPassParams) Hash() uint64 {
	return fnvOf(p.encode)
}

// DecodeRenderPassParams reads params written by EncodeTo.
func DecodeRenderPassParams(r *wire.Reader) (RenderPassParams, error) {
	var p RenderPassParams
	n := r.Len()
	for i := 0; i < n; i++ {
		p.Attachments = append(p.Attachments, Attachment{
			Format:        gputypes.TextureFormat(r.Uint32()),
			Samples:       r.Uint32(),
			InitialLayout: driver.ImageLayout(r.Uint32()),
			FinalLayout:   driver.ImageLayout(r.Uint32()),
		})
	}
	n = r.Len()
	for i := 0; i < n; i++ {
		p.LoadStore = append(p.LoadStore, LoadStoreInfo{
			Load:  gputypes.LoadOp(r.Uint32()),
			Store: gputypes.StoreOp(r.Uint32()),
		})
	}
	n = r.Len()
	for i := 0; i < n; i++ {
		p.Subpasses = append(p.Subpasses, SubpassInfo{
			InputAttachments:   decodeIndexList(r),
			OutputAttachments:  decodeIndexList(r),
			ResolveAttachments: decodeIndexList(r),
			DepthStencil:       r.Uint32(),
		})
	}
	return p, r.Err()
}

// isDepthStencilFormat reports whether an attachment format carries depth.
// Used only when synthesizing the default subpass.
func isDepthStencilFormat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8
}

// RenderPass is a cached render pass object.
type RenderPass struct {
	device driver.Device
	handle driver.RenderPass
	hash   uint64

	attachments []Attachment
	subpasses   int
}

// NewRenderPass creates the driver render pass described by params. When no
// subpasses are given, one default subpass is synthesized that writes every
// color attachment and, if present, the depth-stencil attachment.
func NewRenderPass(device driver.Device, params RenderPassParams) (*RenderPass, error) {
	if len(params.Attachments) == 0 {
		return nil, ErrNoAttachments
	}
	if len(params.LoadStore) != len(params.Attachments) {
		return nil, ErrLoadStoreMismatch
	}

	count := uint32(len(params.Attachments))
	descs := make([]driver.AttachmentDescription, count)
	for i, a := range params.Attachments {
		samples := a.Samples
		if samples == 0 {
			samples = 1
		}
		descs[i] = driver.AttachmentDescription{
			Format:         a.Format,
			Samples:        samples,
			LoadOp:         params.LoadStore[i].Load,
			StoreOp:        params.LoadStore[i].Store,
			StencilLoadOp:  params.LoadStore[i].Load,
			StencilStoreOp: params.LoadStore[i].Store,
			InitialLayout:  a.InitialLayout,
			FinalLayout:    a.FinalLayout,
		}
	}

	subpasses := params.Subpasses
	if len(subpasses) == 0 {
		subpasses = []SubpassInfo{defaultSubpass(params.Attachments)}
	}

	subDescs := make([]driver.SubpassDescription, 0, len(subpasses))
	for _, s := range subpasses {
		var d driver.SubpassDescription
		for _, i := range s.InputAttachments {
			if i >= count {
				return nil, fmt.Errorf("%w: input %d of %d", ErrAttachmentOutOfRange, i, count)
			}
			d.InputAttachments = append(d.InputAttachments, driver.AttachmentReference{
				Attachment: i,
				Layout:     driver.ImageLayoutShaderReadOnlyOptimal,
			})
		}
		for _, i := range s.OutputAttachments {
			if i >= count {
				return nil, fmt.Errorf("%w: output %d of %d", ErrAttachmentOutOfRange, i, count)
			}
			d.ColorAttachments = append(d.ColorAttachments, driver.AttachmentReference{
				Attachment: i,
				Layout:     driver.ImageLayoutColorAttachmentOptimal,
			})
		}
		for _, i := range s.ResolveAttachments {
			if i >= count {
				return nil, fmt.Errorf("%w: resolve %d of %d", ErrAttachmentOutOfRange, i, count)
			}
			d.ResolveAttachments = append(d.ResolveAttachments, driver.AttachmentReference{
				Attachment: i,
				Layout:     driver.ImageLayoutColorAttachmentOptimal,
			})
		}
		if s.DepthStencil != NoAttachment {
			if s.DepthStencil >= count {
				return nil, fmt.Errorf("%w: depth-stencil %d of %d", ErrAttachmentOutOfRange, s.DepthStencil, count)
			}
			d.DepthStencilAttachment = &driver.AttachmentReference{
				Attachment: s.DepthStencil,
				Layout:     driver.ImageLayoutDepthStencilAttachmentOptimal,
			}
		}
		subDescs = append(subDescs, d)
	}

	handle, err := device.CreateRenderPass(&driver.RenderPassDescriptor{
		Attachments: descs,
		Subpasses:   subDescs,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create render pass: %w", err)
	}

	slogger().Debug("created render pass",
		"attachments", len(params.Attachments),
		"subpasses", len(subDescs))
	return &RenderPass{
		device:      device,
		handle:      handle,
		hash:        params.Hash(),
		attachments: params.Attachments,
		subpasses:   len(subDescs),
	}, nil
}

// defaultSubpass writes every color attachment and the first depth-stencil
// attachment, if any.
func defaultSubpass(attachments []Attachment) SubpassInfo {
	s := SubpassInfo{DepthStencil: NoAttachment}
	for i, a := range attachments {
		if isDepthStencilFormat(a.Format) {
			if s.DepthStencil == NoAttachment {
				s.DepthStencil = uint32(i)
			}
			continue
		}
		s.OutputAttachments = append(s.OutputAttachments, uint32(i))
	}
	return s
}

// Handle returns the driver render pass handle.
func (rp *RenderPass) Handle() driver.RenderPass { return rp.handle }

// Hash returns the render pass's content hash, its key in the cache.
func (rp *RenderPass) Hash() uint64 { return rp.hash }

// Attachments returns the attachment descriptions the pass was built from.
func (rp *RenderPass) Attachments() []Attachment { return rp.attachments }

// SubpassCount returns the number of subpasses, after default synthesis.
func (rp *RenderPass) SubpassCount() int { return rp.subpasses }

// Destroy releases the driver render pass.
func (rp *RenderPass) Destroy() {
	if rp.handle != 0 {
		rp.device.DestroyRenderPass(rp.handle)
		rp.handle = 0
	}
}
