package vkcache

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gogpu/gputypes"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/record"
	"github.com/DrGr4f1x/vkcache/resource"
	"github.com/DrGr4f1x/vkcache/store"
)

// ResourceCache is the deduplicating cache for derived GPU objects.
//
// Every Request operation hashes its parameters into a cache key, returns the
// existing object on a hit, and builds, inserts, and (for recordable kinds)
// records the object on a miss. Each resource kind has its own store with its
// own lock, so requests for unrelated kinds never serialize against each
// other, while at most one build runs per key within a kind.
//
// ResourceCache is safe for concurrent use.
type ResourceCache struct {
	device   driver.Device
	compiler resource.Compiler
	poolSize uint32
	id       uuid.UUID

	recorder *record.Recorder

	// mu guards the driver pipeline cache handle only; the stores carry
	// their own locks.
	mu            sync.Mutex
	pipelineCache driver.PipelineCache

	shaderModules        *store.Store[*resource.ShaderModule]
	descriptorSetLayouts *store.Store[*resource.DescriptorSetLayout]
	pipelineLayouts      *store.Store[*resource.PipelineLayout]
	descriptorPools      *store.Store[*resource.DescriptorPool]
	descriptorSets       *store.Store[*resource.DescriptorSet]
	renderPasses         *store.Store[*resource.RenderPass]
	graphicsPipelines    *store.Store[*resource.GraphicsPipeline]
	computePipelines     *store.Store[*resource.ComputePipeline]
	framebuffers         *store.Store[*resource.Framebuffer]
}

// New creates a cache building against device. By default shaders compile
// through resource.NagaCompiler, descriptor pools hold
// resource.DefaultPoolSize sets per sub-pool, and a recorder is attached so
// Serialize captures every construction.
func New(device driver.Device, opts ...Option) *ResourceCache {
	o := defaultCacheOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &ResourceCache{
		device:   device,
		compiler: o.compiler,
		poolSize: o.poolSize,
		id:       uuid.New(),

		shaderModules:        store.New[*resource.ShaderModule](),
		descriptorSetLayouts: store.New[*resource.DescriptorSetLayout](),
		pipelineLayouts:      store.New[*resource.PipelineLayout](),
		descriptorPools:      store.New[*resource.DescriptorPool](),
		descriptorSets:       store.New[*resource.DescriptorSet](),
		renderPasses:         store.New[*resource.RenderPass](),
		graphicsPipelines:    store.New[*resource.GraphicsPipeline](),
		computePipelines:     store.New[*resource.ComputePipeline](),
		framebuffers:         store.New[*resource.Framebuffer](),
	}
	if o.recording {
		c.recorder = record.NewRecorder()
	}

	Logger().Debug("resource cache created",
		"cache", c.id.String(),
		"poolSize", c.poolSize,
		"recording", c.recorder != nil)
	return c
}

// Device returns the device the cache builds against.
func (c *ResourceCache) Device() driver.Device { return c.device }

// SetPipelineCache installs a driver-level pipeline cache handle passed to
// every subsequent pipeline build.
func (c *ResourceCache) SetPipelineCache(pc driver.PipelineCache) {
	c.mu.Lock()
	c.pipelineCache = pc
	c.mu.Unlock()
}

func (c *ResourceCache) pipelineCacheHandle() driver.PipelineCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipelineCache
}

// RequestShaderModule returns the cached module for the given compilation
// parameters, compiling and creating it on first request.
func (c *ResourceCache) RequestShaderModule(stage gputypes.ShaderStage, source resource.ShaderSource, entryPoint string, variant resource.ShaderVariant) (*resource.ShaderModule, error) {
	params := resource.ShaderModuleParams{
		Stage:      stage,
		Source:     source,
		EntryPoint: entryPoint,
		Variant:    variant,
	}
	return c.shaderModules.GetOrCreate(params.Hash(), func() (*resource.ShaderModule, error) {
		m, err := resource.NewShaderModule(c.device, c.compiler, params)
		if err != nil {
			return nil, err
		}
		if c.recorder != nil {
			idx := c.recorder.RegisterShaderModule(&params)
			c.recorder.SetShaderModule(idx, m)
		}
		return m, nil
	})
}

// RequestDescriptorSetLayout returns the cached layout for one set index
// derived from the given modules and resources.
func (c *ResourceCache) RequestDescriptorSetLayout(setIndex uint32, modules []*resource.ShaderModule, resources []resource.ShaderResource) (*resource.DescriptorSetLayout, error) {
	key := resource.HashDescriptorSetLayout(setIndex, modules, resources)
	return c.descriptorSetLayouts.GetOrCreate(key, func() (*resource.DescriptorSetLayout, error) {
		return resource.NewDescriptorSetLayout(c.device, setIndex, modules, resources)
	})
}

// RequestPipelineLayout returns the cached layout for the given module set.
// The per-set descriptor layouts it needs are themselves requested through
// the cache, so they are shared across pipeline layouts.
func (c *ResourceCache) RequestPipelineLayout(modules []*resource.ShaderModule) (*resource.PipelineLayout, error) {
	params := resource.PipelineLayoutParams{Modules: modules}
	return c.pipelineLayouts.GetOrCreate(params.Hash(), func() (*resource.PipelineLayout, error) {
		l, err := resource.NewPipelineLayout(c.device, params, c.RequestDescriptorSetLayout)
		if err != nil {
			return nil, err
		}
		if c.recorder != nil {
			idx := c.recorder.RegisterPipelineLayout(&params)
			c.recorder.SetPipelineLayout(idx, l)
		}
		return l, nil
	})
}

// RequestDescriptorPool returns the cached pool chain for the given layout.
func (c *ResourceCache) RequestDescriptorPool(layout *resource.DescriptorSetLayout) (*resource.DescriptorPool, error) {
	key := resource.HashDescriptorPool(layout, c.poolSize)
	return c.descriptorPools.GetOrCreate(key, func() (*resource.DescriptorPool, error) {
		return resource.NewDescriptorPool(c.device, layout, c.poolSize)
	})
}

// RequestDescriptorSet returns the cached set binding the given buffers and
// images through layout. The key covers the layout and the bound content,
// not the pool: equal bindings share one set no matter which pool chain
// serves the allocation. New sets have their writes applied once,
// unconditionally.
func (c *ResourceCache) RequestDescriptorSet(layout *resource.DescriptorSetLayout, pool *resource.DescriptorPool, buffers resource.BindingMap[driver.BufferInfo], images resource.BindingMap[driver.ImageInfo]) (*resource.DescriptorSet, error) {
	key := resource.HashDescriptorSet(layout, buffers, images)
	return c.descriptorSets.GetOrCreate(key, func() (*resource.DescriptorSet, error) {
		s, err := resource.NewDescriptorSet(c.device, layout, pool, buffers, images)
		if err != nil {
			return nil, err
		}
		if err := s.ApplyWrites(); err != nil {
			return nil, err
		}
		return s, nil
	})
}

// RequestRenderPass returns the cached render pass for the given attachment
// and subpass description.
func (c *ResourceCache) RequestRenderPass(attachments []resource.Attachment, loadStore []resource.LoadStoreInfo, subpasses []resource.SubpassInfo) (*resource.RenderPass, error) {
	params := resource.RenderPassParams{
		Attachments: attachments,
		LoadStore:   loadStore,
		Subpasses:   subpasses,
	}
	return c.renderPasses.GetOrCreate(params.Hash(), func() (*resource.RenderPass, error) {
		rp, err := resource.NewRenderPass(c.device, params)
		if err != nil {
			return nil, err
		}
		if c.recorder != nil {
			idx := c.recorder.RegisterRenderPass(&params)
			c.recorder.SetRenderPass(idx, rp)
		}
		return rp, nil
	})
}

// RequestGraphicsPipeline returns the cached pipeline for the given state.
func (c *ResourceCache) RequestGraphicsPipeline(state *resource.PipelineState) (*resource.GraphicsPipeline, error) {
	return c.graphicsPipelines.GetOrCreate(state.Hash(), func() (*resource.GraphicsPipeline, error) {
		p, err := resource.NewGraphicsPipeline(c.device, c.pipelineCacheHandle(), state)
		if err != nil {
			return nil, err
		}
		if c.recorder != nil {
			c.recorder.RegisterGraphicsPipeline(state)
		}
		return p, nil
	})
}

// RequestComputePipeline returns the cached pipeline for the layout's compute
// stage with the given specialization overrides.
func (c *ResourceCache) RequestComputePipeline(layout *resource.PipelineLayout, spec resource.SpecializationState) (*resource.ComputePipeline, error) {
	params := resource.ComputePipelineParams{
		Layout:         layout,
		Specialization: spec,
	}
	return c.computePipelines.GetOrCreate(params.Hash(), func() (*resource.ComputePipeline, error) {
		p, err := resource.NewComputePipeline(c.device, c.pipelineCacheHandle(), params)
		if err != nil {
			return nil, err
		}
		if c.recorder != nil {
			c.recorder.RegisterComputePipeline(&params)
		}
		return p, nil
	})
}

// RequestFramebuffer returns the cached framebuffer attaching the target's
// views to the render pass.
func (c *ResourceCache) RequestFramebuffer(target *resource.RenderTarget, renderPass *resource.RenderPass) (*resource.Framebuffer, error) {
	key := resource.HashFramebuffer(target, renderPass)
	return c.framebuffers.GetOrCreate(key, func() (*resource.Framebuffer, error) {
		return resource.NewFramebuffer(c.device, target, renderPass)
	})
}

// ClearPipelines evicts every graphics and compute pipeline, destroying the
// driver objects. Callers guarantee no outstanding device-side use.
func (c *ResourceCache) ClearPipelines() {
	c.graphicsPipelines.Clear(func(p *resource.GraphicsPipeline) { p.Destroy() })
	c.computePipelines.Clear(func(p *resource.ComputePipeline) { p.Destroy() })
	Logger().Debug("cleared pipelines", "cache", c.id.String())
}

// ClearFramebuffers evicts every framebuffer, destroying the driver objects.
// Callers guarantee no outstanding device-side use.
func (c *ResourceCache) ClearFramebuffers() {
	c.framebuffers.Clear(func(f *resource.Framebuffer) { f.Destroy() })
	Logger().Debug("cleared framebuffers", "cache", c.id.String())
}

// Clear evicts everything, destroying driver objects in dependency order.
// Descriptor sets are not destroyed individually; their handles die with
// their pools. Callers guarantee no outstanding device-side use.
func (c *ResourceCache) Clear() {
	c.framebuffers.Clear(func(f *resource.Framebuffer) { f.Destroy() })
	c.graphicsPipelines.Clear(func(p *resource.GraphicsPipeline) { p.Destroy() })
	c.computePipelines.Clear(func(p *resource.ComputePipeline) { p.Destroy() })
	c.descriptorSets.Clear(nil)
	c.descriptorPools.Clear(func(p *resource.DescriptorPool) { p.Destroy() })
	c.pipelineLayouts.Clear(func(l *resource.PipelineLayout) { l.Destroy() })
	c.descriptorSetLayouts.Clear(func(l *resource.DescriptorSetLayout) { l.Destroy() })
	c.renderPasses.Clear(func(rp *resource.RenderPass) { rp.Destroy() })
	c.shaderModules.Clear(func(m *resource.ShaderModule) { m.Destroy() })
	Logger().Debug("cleared cache", "cache", c.id.String())
}

// KindState is the read-only view of one resource kind's store.
type KindState struct {
	Count  int
	Hits   uint64
	Misses uint64
	Keys   []uint64
}

// CacheState is a point-in-time snapshot of every kind's store, for tests and
// tooling. Keys are in unspecified order.
type CacheState struct {
	ShaderModules        KindState
	DescriptorSetLayouts KindState
	PipelineLayouts      KindState
	DescriptorPools      KindState
	DescriptorSets       KindState
	RenderPasses         KindState
	GraphicsPipelines    KindState
	ComputePipelines     KindState
	Framebuffers         KindState
}

func kindState[V any](s *store.Store[V]) KindState {
	stats := s.Stats()
	return KindState{
		Count:  stats.Len,
		Hits:   stats.Hits,
		Misses: stats.Misses,
		Keys:   s.Keys(),
	}
}

// State returns a snapshot of the full cache state.
func (c *ResourceCache) State() CacheState {
	return CacheState{
		ShaderModules:        kindState(c.shaderModules),
		DescriptorSetLayouts: kindState(c.descriptorSetLayouts),
		PipelineLayouts:      kindState(c.pipelineLayouts),
		DescriptorPools:      kindState(c.descriptorPools),
		DescriptorSets:       kindState(c.descriptorSets),
		RenderPasses:         kindState(c.renderPasses),
		GraphicsPipelines:    kindState(c.graphicsPipelines),
		ComputePipelines:     kindState(c.computePipelines),
		Framebuffers:         kindState(c.framebuffers),
	}
}
