// Package null implements an in-memory driver.Device.
//
// The null device mints handles, enforces descriptor pool capacities, and
// records construction, destruction, and update traffic without touching a
// GPU. Tests assert build-once semantics and batched-update counts against
// it; vkcachetool uses it to warm and inspect traces headlessly.
package null

import (
	"errors"
	"sync"

	"github.com/DrGr4f1x/vkcache/driver"
)

var (
	// ErrPoolExhausted is returned when a sub-pool is asked for more sets
	// than its declared capacity.
	ErrPoolExhausted = errors.New("null: descriptor pool exhausted")

	// ErrUnknownPool is returned for operations on a pool handle the device
	// never created.
	ErrUnknownPool = errors.New("null: unknown descriptor pool")

	// ErrUnknownSet is returned when freeing a set that was not allocated
	// from the given pool.
	ErrUnknownSet = errors.New("null: descriptor set not allocated from pool")
)

// ObjectCounts tallies per-kind object traffic.
type ObjectCounts struct {
	ShaderModules        int
	DescriptorSetLayouts int
	PipelineLayouts      int
	DescriptorPools      int
	DescriptorSets       int
	RenderPasses         int
	GraphicsPipelines    int
	ComputePipelines     int
	Framebuffers         int
}

type poolState struct {
	maxSets uint32
	live    uint32
}

// Device is an in-memory driver.Device. Safe for concurrent use.
type Device struct {
	mu      sync.Mutex
	limits  driver.Limits
	next    uint64
	pools   map[driver.DescriptorPool]*poolState
	sets    map[driver.DescriptorSet]driver.DescriptorPool
	objects map[uint64]struct{}

	created   ObjectCounts
	destroyed ObjectCounts

	updateBatches  int
	writesApplied  int
	lastUpdate     []driver.WriteDescriptorSet
	invalidDestroy int

	createErr error
}

// New creates a null device reporting driver.DefaultLimits.
func New() *Device {
	return &Device{
		limits:  driver.DefaultLimits(),
		pools:   make(map[driver.DescriptorPool]*poolState),
		sets:    make(map[driver.DescriptorSet]driver.DescriptorPool),
		objects: make(map[uint64]struct{}),
	}
}

// SetLimits overrides the reported device limits. Call before building
// descriptor sets.
func (d *Device) SetLimits(l driver.Limits) {
	d.mu.Lock()
	d.limits = l
	d.mu.Unlock()
}

// SetCreateError makes every subsequent Create and Allocate call fail with
// err until called again with nil.
func (d *Device) SetCreateError(err error) {
	d.mu.Lock()
	d.createErr = err
	d.mu.Unlock()
}

// Limits implements driver.Device.
func (d *Device) Limits() driver.Limits {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.limits
}

func (d *Device) mint() uint64 {
	d.next++
	d.objects[d.next] = struct{}{}
	return d.next
}

func (d *Device) release(h uint64) bool {
	if _, ok := d.objects[h]; !ok {
		d.invalidDestroy++
		return false
	}
	delete(d.objects, h)
	return true
}

// CreateShaderModule implements driver.Device.
func (d *Device) CreateShaderModule(code []uint32) (driver.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	d.created.ShaderModules++
	return driver.ShaderModule(d.mint()), nil
}

// DestroyShaderModule implements driver.Device.
func (d *Device) DestroyShaderModule(m driver.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(uint64(m)) {
		d.destroyed.ShaderModules++
	}
}

// CreateDescriptorSetLayout implements driver.Device.
func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorSetLayoutBinding, flags []driver.DescriptorBindingFlags) (driver.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	d.created.DescriptorSetLayouts++
	return driver.DescriptorSetLayout(d.mint()), nil
}

// DestroyDescriptorSetLayout implements driver.Device.
func (d *Device) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(uint64(l)) {
		d.destroyed.DescriptorSetLayouts++
	}
}

// CreatePipelineLayout implements driver.Device.
func (d *Device) CreatePipelineLayout(setLayouts []driver.DescriptorSetLayout, pushConstants []driver.PushConstantRange) (driver.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	d.created.PipelineLayouts++
	return driver.PipelineLayout(d.mint()), nil
}

// DestroyPipelineLayout implements driver.Device.
func (d *Device) DestroyPipelineLayout(l driver.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(uint64(l)) {
		d.destroyed.PipelineLayouts++
	}
}

// CreateDescriptorPool implements driver.Device.
func (d *Device) CreateDescriptorPool(sizes []driver.DescriptorPoolSize, maxSets uint32, updateAfterBind bool) (driver.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	d.created.DescriptorPools++
	h := driver.DescriptorPool(d.mint())
	d.pools[h] = &poolState{maxSets: maxSets}
	return h, nil
}

// ResetDescriptorPool implements driver.Device. Every set allocated from the
// pool becomes invalid.
func (d *Device) ResetDescriptorPool(pool driver.DescriptorPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ps, ok := d.pools[pool]
	if !ok {
		return ErrUnknownPool
	}
	for set, owner := range d.sets {
		if owner == pool {
			delete(d.sets, set)
			delete(d.objects, uint64(set))
		}
	}
	ps.live = 0
	return nil
}

// DestroyDescriptorPool implements driver.Device.
func (d *Device) DestroyDescriptorPool(pool driver.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pools[pool]; ok {
		for set, owner := range d.sets {
			if owner == pool {
				delete(d.sets, set)
				delete(d.objects, uint64(set))
			}
		}
		delete(d.pools, pool)
	}
	if d.release(uint64(pool)) {
		d.destroyed.DescriptorPools++
	}
}

// AllocateDescriptorSet implements driver.Device. Allocation fails with
// ErrPoolExhausted once the pool's declared capacity is reached, which is
// what drives sub-pool growth in the caller.
func (d *Device) AllocateDescriptorSet(pool driver.DescriptorPool, layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	ps, ok := d.pools[pool]
	if !ok {
		return 0, ErrUnknownPool
	}
	if ps.live >= ps.maxSets {
		return 0, ErrPoolExhausted
	}
	ps.live++
	d.created.DescriptorSets++
	h := driver.DescriptorSet(d.mint())
	d.sets[h] = pool
	return h, nil
}

// FreeDescriptorSet implements driver.Device.
func (d *Device) FreeDescriptorSet(pool driver.DescriptorPool, set driver.DescriptorSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ps, ok := d.pools[pool]
	if !ok {
		return ErrUnknownPool
	}
	if owner, ok := d.sets[set]; !ok || owner != pool {
		return ErrUnknownSet
	}
	delete(d.sets, set)
	delete(d.objects, uint64(set))
	ps.live--
	return nil
}

// UpdateDescriptorSets implements driver.Device. The batch is recorded for
// inspection; writes referencing unknown sets fail the whole batch.
func (d *Device) UpdateDescriptorSets(writes []driver.WriteDescriptorSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range writes {
		if _, ok := d.sets[writes[i].Set]; !ok {
			return ErrUnknownSet
		}
	}
	d.updateBatches++
	d.writesApplied += len(writes)
	d.lastUpdate = append(d.lastUpdate[:0], writes...)
	return nil
}

// CreateRenderPass implements driver.Device.
func (d *Device) CreateRenderPass(desc *driver.RenderPassDescriptor) (driver.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	d.created.RenderPasses++
	return driver.RenderPass(d.mint()), nil
}

// DestroyRenderPass implements driver.Device.
func (d *Device) DestroyRenderPass(rp driver.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(uint64(rp)) {
		d.destroyed.RenderPasses++
	}
}

// CreateGraphicsPipeline implements driver.Device.
func (d *Device) CreateGraphicsPipeline(cache driver.PipelineCache, desc *driver.GraphicsPipelineDescriptor) (driver.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	d.created.GraphicsPipelines++
	return driver.Pipeline(d.mint()), nil
}

// CreateComputePipeline implements driver.Device.
func (d *Device) CreateComputePipeline(cache driver.PipelineCache, desc *driver.ComputePipelineDescriptor) (driver.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	d.created.ComputePipelines++
	return driver.Pipeline(d.mint()), nil
}

// DestroyPipeline implements driver.Device.
func (d *Device) DestroyPipeline(p driver.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(uint64(p)) {
		d.destroyed.GraphicsPipelines++
	}
}

// CreateFramebuffer implements driver.Device.
func (d *Device) CreateFramebuffer(desc *driver.FramebufferDescriptor) (driver.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return 0, d.createErr
	}
	d.created.Framebuffers++
	return driver.Framebuffer(d.mint()), nil
}

// DestroyFramebuffer implements driver.Device.
func (d *Device) DestroyFramebuffer(fb driver.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(uint64(fb)) {
		d.destroyed.Framebuffers++
	}
}

// Created returns per-kind construction counts.
func (d *Device) Created() ObjectCounts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

// Destroyed returns per-kind destruction counts. Pipelines destroyed through
// DestroyPipeline are tallied under GraphicsPipelines regardless of origin;
// the device cannot tell the two apart from the handle alone.
func (d *Device) Destroyed() ObjectCounts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// LiveObjects returns the number of handles created and not yet destroyed.
func (d *Device) LiveObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}

// UpdateBatches returns how many UpdateDescriptorSets calls were issued.
func (d *Device) UpdateBatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updateBatches
}

// WritesApplied returns the total number of write entries across all update
// batches.
func (d *Device) WritesApplied() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writesApplied
}

// LastUpdate returns a copy of the most recent update batch.
func (d *Device) LastUpdate() []driver.WriteDescriptorSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]driver.WriteDescriptorSet, len(d.lastUpdate))
	copy(out, d.lastUpdate)
	return out
}

// InvalidDestroys returns how many Destroy calls named an unknown handle.
// Tests assert this stays zero.
func (d *Device) InvalidDestroys() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.invalidDestroy
}
