package resource

import (
	"hash/fnv"
	"sort"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/wire"
)

// RefSink receives the object references encountered while a params type
// walks its fields.
//
// Each recordable params kind has exactly one encode method; value fields go
// to the wire.Writer and references dispatch through the sink. The hashing
// sink folds the referee's content hash into the digest, the recording sink
// writes the referee's log index into the payload. Deriving both paths from
// the same field walk is what keeps cache keys and recorded entries
// consistent with each other.
type RefSink interface {
	ShaderModuleRef(*ShaderModule)
	PipelineLayoutRef(*PipelineLayout)
	RenderPassRef(*RenderPass)
}

// RefSource is the decoding mirror of RefSink: it resolves previously
// recorded references back to live objects, in the same positions the encode
// walk emitted them.
type RefSource interface {
	ShaderModuleRef() (*ShaderModule, error)
	PipelineLayoutRef() (*PipelineLayout, error)
	RenderPassRef() (*RenderPass, error)
}

// hashSink folds referenced objects' content hashes into the digest.
type hashSink struct {
	w *wire.Writer
}

func (s hashSink) ShaderModuleRef(m *ShaderModule) {
	if m != nil {
		s.w.Uint64(m.Hash())
	} else {
		s.w.Uint64(0)
	}
}

func (s hashSink) PipelineLayoutRef(l *PipelineLayout) {
	if l != nil {
		s.w.Uint64(l.Hash())
	} else {
		s.w.Uint64(0)
	}
}

func (s hashSink) RenderPassRef(rp *RenderPass) {
	if rp != nil {
		s.w.Uint64(rp.Hash())
	} else {
		s.w.Uint64(0)
	}
}

// fnvOf runs one encode walk into an FNV-1a digest and returns the sum.
// Writes into a hash never fail, so there is no error to check.
func fnvOf(encode func(w *wire.Writer, refs RefSink)) uint64 {
	h := fnv.New64a()
	w := wire.NewWriter(h)
	encode(w, hashSink{w})
	return h.Sum64()
}

// BindingMap associates binding number and array element with a descriptor
// payload: the outer key is the binding, the inner key the array element.
type BindingMap[T any] map[uint32]map[uint32]T

// Clone returns a deep copy. A nil map clones to an empty one.
func (m BindingMap[T]) Clone() BindingMap[T] {
	out := make(BindingMap[T], len(m))
	for binding, elems := range m {
		inner := make(map[uint32]T, len(elems))
		for elem, v := range elems {
			inner[elem] = v
		}
		out[binding] = inner
	}
	return out
}

// sortedKeys returns the map's keys in ascending order. Binding tables are
// Go maps, so every hash walk over them must impose this order itself to
// stay deterministic.
func sortedKeys[T any](m map[uint32]T) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func encodeBufferInfos(w *wire.Writer, m BindingMap[driver.BufferInfo]) {
	w.Len(len(m))
	for _, binding := range sortedKeys(m) {
		w.Uint32(binding)
		elems := m[binding]
		w.Len(len(elems))
		for _, elem := range sortedKeys(elems) {
			info := elems[elem]
			w.Uint32(elem)
			w.Uint64(uint64(info.Buffer))
			w.Uint64(info.Offset)
			w.Uint64(info.Range)
		}
	}
}

func encodeImageInfos(w *wire.Writer, m BindingMap[driver.ImageInfo]) {
	w.Len(len(m))
	for _, binding := range sortedKeys(m) {
		w.Uint32(binding)
		elems := m[binding]
		w.Len(len(elems))
		for _, elem := range sortedKeys(elems) {
			info := elems[elem]
			w.Uint32(elem)
			w.Uint64(uint64(info.Sampler))
			w.Uint64(uint64(info.View))
			w.Uint32(uint32(info.Layout))
		}
	}
}

// HashDescriptorSetLayout computes the cache key for a set layout request.
// The key covers the set index, the contributing modules in order, and each
// resource's identity fields. Resource names stay out of the key; they are
// diagnostics, not identity.
func HashDescriptorSetLayout(setIndex uint32, modules []*ShaderModule, resources []ShaderResource) uint64 {
	return fnvOf(func(w *wire.Writer, refs RefSink) {
		w.Uint32(setIndex)
		w.Len(len(modules))
		for _, m := range modules {
			refs.ShaderModuleRef(m)
		}
		w.Len(len(resources))
		for i := range resources {
			r := &resources[i]
			w.Uint32(r.Set)
			w.Uint32(r.Binding)
			w.Uint32(uint32(r.Type))
			w.Uint32(uint32(r.Mode))
			w.Uint32(r.ArraySize)
			w.Uint32(uint32(r.Stages))
		}
	})
}

// HashDescriptorPool computes the cache key for a pool request.
func HashDescriptorPool(layout *DescriptorSetLayout, poolSize uint32) uint64 {
	return fnvOf(func(w *wire.Writer, refs RefSink) {
		w.Uint64(layout.Hash())
		w.Uint32(poolSize)
	})
}

// HashDescriptorSet computes the cache key for a descriptor set request.
// The pool is deliberately absent: a set's identity is its layout plus the
// content it binds, which is also why a view swap forces a re-key.
func HashDescriptorSet(layout *DescriptorSetLayout, buffers BindingMap[driver.BufferInfo], images BindingMap[driver.ImageInfo]) uint64 {
	return fnvOf(func(w *wire.Writer, refs RefSink) {
		w.Uint64(layout.Hash())
		encodeBufferInfos(w, buffers)
		encodeImageInfos(w, images)
	})
}

// HashFramebuffer computes the cache key for a framebuffer request.
func HashFramebuffer(target *RenderTarget, renderPass *RenderPass) uint64 {
	return fnvOf(func(w *wire.Writer, refs RefSink) {
		w.Uint32(target.Extent.Width)
		w.Uint32(target.Extent.Height)
		w.Uint32(target.Layers)
		w.Len(len(target.Views))
		for _, v := range target.Views {
			w.Uint64(uint64(v))
		}
		refs.RenderPassRef(renderPass)
	})
}
