package resource

import (
	"errors"
	"fmt"
	"sort"

	"github.com/DrGr4f1x/vkcache/driver"
)

// DefaultPoolSize is the number of descriptor sets each sub-pool can serve
// when no explicit size is configured.
const DefaultPoolSize = 16

// ErrSetNotInPool is returned when freeing a descriptor set the pool never
// allocated, or one already freed.
var ErrSetNotInPool = errors.New("resource: descriptor set does not belong to this pool")

// DescriptorPool allocates descriptor sets for one layout from a chain of
// fixed-capacity driver sub-pools, growing the chain on demand.
//
// A cursor tracks the sub-pool allocations are currently served from. The
// cursor only moves forward past full sub-pools, and snaps back whenever a
// set is freed so the vacated capacity is reused before the chain grows.
//
// A DescriptorPool is not safe for concurrent use. Shared pools are guarded
// by the cache's descriptor-pool lock; per-frame pools are thread-local.
type DescriptorPool struct {
	device driver.Device
	hash   uint64
	layout *DescriptorSetLayout

	// poolSizes is the per-descriptor-type capacity of each sub-pool,
	// the layout's aggregate counts scaled by maxSets.
	poolSizes []driver.DescriptorPoolSize
	maxSets   uint32

	pools   []driver.DescriptorPool
	live    []uint32
	setPool map[driver.DescriptorSet]int
	cursor  int
}

// NewDescriptorPool creates a pool serving thisLayout. poolSize is the
// per-sub-pool set capacity; zero selects DefaultPoolSize.
func NewDescriptorPool(device driver.Device, layout *DescriptorSetLayout, poolSize uint32) (*DescriptorPool, error) {
	if poolSize == 0 {
		poolSize = DefaultPoolSize
	}

	// Aggregate descriptor counts by type, then scale by the per-sub-pool
	// set capacity. Sorted so the driver sees a deterministic size list.
	counts := make(map[driver.DescriptorType]uint32)
	for _, b := range layout.Bindings() {
		counts[b.Type] += b.Count
	}
	types := make([]driver.DescriptorType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	sizes := make([]driver.DescriptorPoolSize, 0, len(types))
	for _, t := range types {
		sizes = append(sizes, driver.DescriptorPoolSize{
			Type:  t,
			Count: counts[t] * poolSize,
		})
	}

	return &DescriptorPool{
		device:    device,
		hash:      HashDescriptorPool(layout, poolSize),
		layout:    layout,
		poolSizes: sizes,
		maxSets:   poolSize,
		setPool:   make(map[driver.DescriptorSet]int),
	}, nil
}

// Hash returns the pool's content hash, its key in the cache.
func (p *DescriptorPool) Hash() uint64 { return p.hash }

// Layout returns the layout the pool allocates for.
func (p *DescriptorPool) Layout() *DescriptorSetLayout { return p.layout }

// SubPools returns how many driver sub-pools the chain has grown to.
func (p *DescriptorPool) SubPools() int { return len(p.pools) }

// Live returns the number of sets currently allocated from sub-pool i.
func (p *DescriptorPool) Live(i int) uint32 { return p.live[i] }

// Allocate returns a descriptor set from the first sub-pool at or after the
// cursor with free capacity, creating a new sub-pool when the cursor walks
// off the end of the chain.
func (p *DescriptorPool) Allocate() (driver.DescriptorSet, error) {
	for {
		if p.cursor == len(p.pools) {
			handle, err := p.device.CreateDescriptorPool(p.poolSizes, p.maxSets, p.layout.UpdateAfterBind())
			if err != nil {
				return 0, fmt.Errorf("resource: grow descriptor pool chain: %w", err)
			}
			p.pools = append(p.pools, handle)
			p.live = append(p.live, 0)
			slogger().Debug("descriptor pool chain grew",
				"layout", p.layout.SetIndex(),
				"subPools", len(p.pools))
		}

		if p.live[p.cursor] >= p.maxSets {
			p.cursor++
			continue
		}

		set, err := p.device.AllocateDescriptorSet(p.pools[p.cursor], p.layout.Handle())
		if err != nil {
			return 0, fmt.Errorf("resource: allocate descriptor set: %w", err)
		}
		p.live[p.cursor]++
		p.setPool[set] = p.cursor
		return set, nil
	}
}

// Free releases a set back to the sub-pool it came from and moves the cursor
// there so the freed capacity is reused before the chain grows.
func (p *DescriptorPool) Free(set driver.DescriptorSet) error {
	i, ok := p.setPool[set]
	if !ok {
		return ErrSetNotInPool
	}
	if err := p.device.FreeDescriptorSet(p.pools[i], set); err != nil {
		return fmt.Errorf("resource: free descriptor set: %w", err)
	}
	delete(p.setPool, set)
	p.live[i]--
	p.cursor = i
	return nil
}

// Reset returns every sub-pool to empty in one bulk operation per sub-pool.
// All sets previously allocated from the pool become invalid.
func (p *DescriptorPool) Reset() error {
	for _, handle := range p.pools {
		if err := p.device.ResetDescriptorPool(handle); err != nil {
			return fmt.Errorf("resource: reset descriptor pool: %w", err)
		}
	}
	for i := range p.live {
		p.live[i] = 0
	}
	clear(p.setPool)
	p.cursor = 0
	return nil
}

// Destroy releases every sub-pool. Sets allocated from the pool must not be
// used afterwards.
func (p *DescriptorPool) Destroy() {
	for _, handle := range p.pools {
		p.device.DestroyDescriptorPool(handle)
	}
	p.pools = nil
	p.live = nil
	clear(p.setPool)
	p.cursor = 0
}
