package resource

import (
	"errors"
	"fmt"

	"github.com/DrGr4f1x/vkcache/driver"
)

// Framebuffer errors.
var (
	// ErrNilRenderTarget is returned when building a framebuffer without a
	// render target.
	ErrNilRenderTarget = errors.New("resource: render target is nil")

	// ErrNoViews is returned when a render target carries no image views.
	ErrNoViews = errors.New("resource: render target has no image views")
)

// RenderTarget names the image views a framebuffer attaches, with their
// shared extent. The views are live driver handles owned by the swapchain or
// image code one layer up; framebuffers built over them are never recorded,
// because the handles do not exist at warmup time.
type RenderTarget struct {
	Extent driver.Extent2D
	Layers uint32
	Views  []driver.ImageView
}

// Framebuffer is a cached framebuffer object.
type Framebuffer struct {
	device driver.Device
	handle driver.Framebuffer
	hash   uint64

	extent driver.Extent2D
}

// NewFramebuffer creates the driver framebuffer attaching the target's views
// to the render pass.
func NewFramebuffer(device driver.Device, target *RenderTarget, renderPass *RenderPass) (*Framebuffer, error) {
	if target == nil {
		return nil, ErrNilRenderTarget
	}
	if len(target.Views) == 0 {
		return nil, ErrNoViews
	}
	if renderPass == nil {
		return nil, ErrNilRenderPass
	}

	layers := target.Layers
	if layers == 0 {
		layers = 1
	}

	handle, err := device.CreateFramebuffer(&driver.FramebufferDescriptor{
		RenderPass:  renderPass.Handle(),
		Attachments: target.Views,
		Extent:      target.Extent,
		Layers:      layers,
	})
	if err != nil {
		return nil, fmt.Errorf("resource: create framebuffer: %w", err)
	}

	slogger().Debug("created framebuffer",
		"width", target.Extent.Width,
		"height", target.Extent.Height,
		"attachments", len(target.Views))
	return &Framebuffer{
		device: device,
		handle: handle,
		hash:   HashFramebuffer(target, renderPass),
		extent: target.Extent,
	}, nil
}

// Handle returns the driver framebuffer handle.
func (f *Framebuffer) Handle() driver.Framebuffer { return f.handle }

// Hash returns the framebuffer's content hash, its key in the cache.
func (f *Framebuffer) Hash() uint64 { return f.hash }

// Extent returns the framebuffer dimensions.
func (f *Framebuffer) Extent() driver.Extent2D { return f.extent }

// Destroy releases the driver framebuffer.
func (f *Framebuffer) Destroy() {
	if f.handle != 0 {
		f.device.DestroyFramebuffer(f.handle)
		f.handle = 0
	}
}
