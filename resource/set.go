package resource

import (
	"fmt"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/wire"
)

// DescriptorSet owns one allocated driver set together with the buffer and
// image bindings written into it.
//
// A set moves through three phases. Construction allocates the driver set
// and prepares its write entries. Update and ApplyWrites send entries to the
// device, Update skipping entries whose content already matches what was
// last applied for that binding. Reset returns the set to unprepared so new
// bindings can be installed and prepared from scratch.
//
// A DescriptorSet is not safe for concurrent use; the cache's descriptor-set
// lock or a per-frame thread-local table guards it.
type DescriptorSet struct {
	device driver.Device
	layout *DescriptorSetLayout
	pool   *DescriptorPool
	handle driver.DescriptorSet
	hash   uint64

	bufferInfos BindingMap[driver.BufferInfo]
	imageInfos  BindingMap[driver.ImageInfo]

	// writes are the prepared entries, one per bound array element. Each
	// entry owns its payload copy so bindings can be rewritten in place.
	writes []driver.WriteDescriptorSet

	// applied maps binding index to the hash of the write last sent for
	// it. Update consults this to skip redundant device writes.
	applied map[uint32]uint64
}

// NewDescriptorSet allocates a set for layout from pool and prepares its
// write entries from the given bindings. The maps are cloned; the caller's
// copies stay untouched.
func NewDescriptorSet(device driver.Device, layout *DescriptorSetLayout, pool *DescriptorPool, bufferInfos BindingMap[driver.BufferInfo], imageInfos BindingMap[driver.ImageInfo]) (*DescriptorSet, error) {
	handle, err := pool.Allocate()
	if err != nil {
		return nil, err
	}

	s := &DescriptorSet{
		device:      device,
		layout:      layout,
		pool:        pool,
		handle:      handle,
		hash:        HashDescriptorSet(layout, bufferInfos, imageInfos),
		bufferInfos: bufferInfos.Clone(),
		imageInfos:  imageInfos.Clone(),
		applied:     make(map[uint32]uint64),
	}
	s.Prepare()
	return s, nil
}

// Handle returns the driver set handle.
func (s *DescriptorSet) Handle() driver.DescriptorSet { return s.handle }

// Hash returns the key the set was cached under. After SwapImageView the
// stored key goes stale; Rehash computes the replacement.
func (s *DescriptorSet) Hash() uint64 { return s.hash }

// Layout returns the layout the set was allocated against.
func (s *DescriptorSet) Layout() *DescriptorSetLayout { return s.layout }

// Pool returns the pool the set was allocated from.
func (s *DescriptorSet) Pool() *DescriptorPool { return s.pool }

// BufferInfos returns the buffer bindings. Callers must not modify the map.
func (s *DescriptorSet) BufferInfos() BindingMap[driver.BufferInfo] { return s.bufferInfos }

// ImageInfos returns the image bindings. Callers must not modify the map.
func (s *DescriptorSet) ImageInfos() BindingMap[driver.ImageInfo] { return s.imageInfos }

// Writes returns the prepared write entries. Callers must not modify them.
func (s *DescriptorSet) Writes() []driver.WriteDescriptorSet { return s.writes }

// Prepare builds one write entry per bound array element. Buffer ranges
// beyond the device limit for the binding's descriptor type are clamped and
// logged rather than rejected. Bindings the layout does not carry are
// skipped with a diagnostic. Preparing an already prepared set is a no-op.
func (s *DescriptorSet) Prepare() {
	if len(s.writes) != 0 {
		slogger().Warn("descriptor set already prepared, skipping")
		return
	}

	limits := s.device.Limits()

	for _, binding := range sortedKeys(s.bufferInfos) {
		info, ok := s.layout.Binding(binding)
		if !ok {
			slogger().Error("layout does not use buffer binding", "binding", binding)
			continue
		}
		elements := s.bufferInfos[binding]
		for _, element := range sortedKeys(elements) {
			buf := elements[element]

			var limit uint64
			switch info.Type {
			case driver.DescriptorTypeUniformBuffer, driver.DescriptorTypeUniformBufferDynamic:
				limit = uint64(limits.MaxUniformBufferRange)
			case driver.DescriptorTypeStorageBuffer, driver.DescriptorTypeStorageBufferDynamic:
				limit = uint64(limits.MaxStorageBufferRange)
			}
			if limit != 0 && buf.Range > limit {
				slogger().Error("buffer range exceeds device limit",
					"binding", binding,
					"range", buf.Range,
					"limit", limit)
				buf.Range = limit
				elements[element] = buf
			}

			payload := buf
			s.writes = append(s.writes, driver.WriteDescriptorSet{
				Set:          s.handle,
				Binding:      binding,
				ArrayElement: element,
				Type:         info.Type,
				Buffer:       &payload,
			})
		}
	}

	for _, binding := range sortedKeys(s.imageInfos) {
		info, ok := s.layout.Binding(binding)
		if !ok {
			slogger().Error("layout does not use image binding", "binding", binding)
			continue
		}
		elements := s.imageInfos[binding]
		for _, element := range sortedKeys(elements) {
			payload := elements[element]
			s.writes = append(s.writes, driver.WriteDescriptorSet{
				Set:          s.handle,
				Binding:      binding,
				ArrayElement: element,
				Type:         info.Type,
				Image:        &payload,
			})
		}
	}
}

// hashWrite digests one write entry, payload included.
func hashWrite(w driver.WriteDescriptorSet) uint64 {
	return fnvOf(func(e *wire.Writer, _ RefSink) {
		e.Uint64(uint64(w.Set))
		e.Uint32(w.Binding)
		e.Uint32(w.ArrayElement)
		e.Uint32(uint32(w.Type))
		e.Bool(w.Buffer != nil)
		if w.Buffer != nil {
			e.Uint64(uint64(w.Buffer.Buffer))
			e.Uint64(w.Buffer.Offset)
			e.Uint64(w.Buffer.Range)
		}
		e.Bool(w.Image != nil)
		if w.Image != nil {
			e.Uint64(uint64(w.Image.Sampler))
			e.Uint64(uint64(w.Image.View))
			e.Uint32(uint32(w.Image.Layout))
		}
	})
}

// Update sends prepared entries whose content changed since they were last
// applied, in one batched device call. With no arguments every prepared
// entry is a candidate; otherwise only entries for the listed bindings are.
// Entries sent have their hashes recorded so the next Update skips them.
func (s *DescriptorSet) Update(bindings ...uint32) error {
	var subset map[uint32]bool
	if len(bindings) > 0 {
		subset = make(map[uint32]bool, len(bindings))
		for _, b := range bindings {
			subset[b] = true
		}
	}

	var (
		pending       []driver.WriteDescriptorSet
		pendingHashes []uint64
	)
	for _, w := range s.writes {
		if subset != nil && !subset[w.Binding] {
			continue
		}
		h := hashWrite(w)
		if prev, ok := s.applied[w.Binding]; ok && prev == h {
			continue
		}
		pending = append(pending, w)
		pendingHashes = append(pendingHashes, h)
	}

	if len(pending) == 0 {
		return nil
	}
	if err := s.device.UpdateDescriptorSets(pending); err != nil {
		return fmt.Errorf("resource: update descriptor set: %w", err)
	}
	for i, w := range pending {
		s.applied[w.Binding] = pendingHashes[i]
	}
	return nil
}

// ApplyWrites sends every prepared entry unconditionally, without consulting
// or recording applied hashes. Used for first-time population before any
// update history exists.
func (s *DescriptorSet) ApplyWrites() error {
	if len(s.writes) == 0 {
		return nil
	}
	if err := s.device.UpdateDescriptorSets(s.writes); err != nil {
		return fmt.Errorf("resource: apply descriptor writes: %w", err)
	}
	return nil
}

// Reset returns the set to unprepared, clearing prepared entries and applied
// hashes. Non-empty maps replace the current bindings; passing two empty
// maps keeps the existing ones and logs a diagnostic.
func (s *DescriptorSet) Reset(newBufferInfos BindingMap[driver.BufferInfo], newImageInfos BindingMap[driver.ImageInfo]) {
	if len(newBufferInfos) != 0 || len(newImageInfos) != 0 {
		s.bufferInfos = newBufferInfos.Clone()
		s.imageInfos = newImageInfos.Clone()
	} else {
		slogger().Warn("descriptor set reset with no new bindings")
	}

	s.writes = nil
	clear(s.applied)
}

// SetBufferInfo rewrites one buffer binding's payload in place, both in the
// binding map and in the prepared write entry, without touching the applied
// hash history. The next Update sends exactly the entries whose content
// changed. Bindings or elements that were never prepared are logged and
// ignored.
func (s *DescriptorSet) SetBufferInfo(binding, element uint32, info driver.BufferInfo) {
	elements, ok := s.bufferInfos[binding]
	if !ok {
		slogger().Error("no buffer binding to rewrite", "binding", binding)
		return
	}
	if _, ok := elements[element]; !ok {
		slogger().Error("no buffer element to rewrite", "binding", binding, "element", element)
		return
	}
	elements[element] = info

	for i := range s.writes {
		w := &s.writes[i]
		if w.Binding == binding && w.ArrayElement == element && w.Buffer != nil {
			*w.Buffer = info
		}
	}
}

// SetImageInfo rewrites one image binding's payload in place, the image
// counterpart to SetBufferInfo.
func (s *DescriptorSet) SetImageInfo(binding, element uint32, info driver.ImageInfo) {
	elements, ok := s.imageInfos[binding]
	if !ok {
		slogger().Error("no image binding to rewrite", "binding", binding)
		return
	}
	if _, ok := elements[element]; !ok {
		slogger().Error("no image element to rewrite", "binding", binding, "element", element)
		return
	}
	elements[element] = info

	for i := range s.writes {
		w := &s.writes[i]
		if w.Binding == binding && w.ArrayElement == element && w.Image != nil {
			*w.Image = info
		}
	}
}

// SwapImageView rewrites every binding that references oldView to reference
// newView, both in the image bindings and in the prepared entries, and
// returns the rewritten entries so the caller can batch them into one device
// update. The cache key returned by Hash is stale afterwards; the caller
// re-keys the set using Rehash.
func (s *DescriptorSet) SwapImageView(oldView, newView driver.ImageView) []driver.WriteDescriptorSet {
	var affected []driver.WriteDescriptorSet

	for binding, elements := range s.imageInfos {
		for element, info := range elements {
			if info.View != oldView {
				continue
			}
			info.View = newView
			elements[element] = info

			for i := range s.writes {
				w := &s.writes[i]
				if w.Binding == binding && w.ArrayElement == element && w.Image != nil {
					w.Image.View = newView
					affected = append(affected, *w)
				}
			}
		}
	}
	return affected
}

// Rehash recomputes the cache key from the current bindings and stores it as
// the set's hash.
func (s *DescriptorSet) Rehash() uint64 {
	s.hash = HashDescriptorSet(s.layout, s.bufferInfos, s.imageInfos)
	return s.hash
}

// Free returns the driver set to its pool.
func (s *DescriptorSet) Free() error {
	if s.handle == 0 {
		return nil
	}
	if err := s.pool.Free(s.handle); err != nil {
		return err
	}
	s.handle = 0
	return nil
}
