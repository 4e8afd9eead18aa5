package resource

import (
	"errors"
	"fmt"

	"github.com/DrGr4f1x/vkcache/driver"
)

// Layout errors.
var (
	// ErrDynamicWithUpdateAfterBind is returned when a set mixes dynamic
	// bindings with update-after-bind bindings. The two are mutually
	// exclusive within one set.
	ErrDynamicWithUpdateAfterBind = errors.New("resource: dynamic bindings are not allowed in a set with update-after-bind bindings")

	// ErrBindingFlagsMismatch is returned when explicitly supplied
	// per-binding flags do not cover every binding in the set.
	ErrBindingFlagsMismatch = errors.New("resource: binding flag count does not match binding count")
)

// resolveDescriptorType maps a reflected shader resource to the descriptor
// type it binds through. Resources without a binding point (stage inputs and
// outputs, push constants, specialization constants) return ok false and are
// skipped during layout construction.
func resolveDescriptorType(t ShaderResourceType, dynamic bool) (dt driver.DescriptorType, ok bool) {
	switch t {
	case ShaderResourceInputAttachment:
		return driver.DescriptorTypeInputAttachment, true
	case ShaderResourceImage:
		return driver.DescriptorTypeSampledImage, true
	case ShaderResourceImageSampler:
		return driver.DescriptorTypeCombinedImageSampler, true
	case ShaderResourceImageStorage:
		return driver.DescriptorTypeStorageImage, true
	case ShaderResourceSampler:
		return driver.DescriptorTypeSampler, true
	case ShaderResourceBufferUniform:
		if dynamic {
			return driver.DescriptorTypeUniformBufferDynamic, true
		}
		return driver.DescriptorTypeUniformBuffer, true
	case ShaderResourceBufferStorage:
		if dynamic {
			return driver.DescriptorTypeStorageBufferDynamic, true
		}
		return driver.DescriptorTypeStorageBuffer, true
	default:
		return 0, false
	}
}

// DescriptorSetLayout is the cached layout of one descriptor set index,
// derived from the shader resources bound to that set.
type DescriptorSetLayout struct {
	device driver.Device
	handle driver.DescriptorSetLayout
	hash   uint64

	setIndex uint32
	modules  []*ShaderModule

	bindings []driver.DescriptorSetLayoutBinding
	flags    []driver.DescriptorBindingFlags

	// byIndex and byName are two independent lookup tables into bindings.
	byIndex map[uint32]int
	byName  map[string]uint32

	updateAfterBind bool
}

// NewDescriptorSetLayout builds the layout for one set index from the
// resources bound to it. Resources without a binding point are skipped.
//
// By default each binding's flags derive from its resource mode. Callers may
// instead supply bindingFlags explicitly, one per binding in construction
// order; a supplied list that does not cover every binding fails with
// ErrBindingFlagsMismatch.
func NewDescriptorSetLayout(device driver.Device, setIndex uint32, modules []*ShaderModule, resources []ShaderResource, bindingFlags ...driver.DescriptorBindingFlags) (*DescriptorSetLayout, error) {
	l := &DescriptorSetLayout{
		device:   device,
		hash:     HashDescriptorSetLayout(setIndex, modules, resources),
		setIndex: setIndex,
		modules:  modules,
		byIndex:  make(map[uint32]int),
		byName:   make(map[string]uint32),
	}

	anyDynamic := false
	for _, r := range resources {
		dynamic := r.Mode == ShaderResourceModeDynamic
		dt, ok := resolveDescriptorType(r.Type, dynamic)
		if !ok {
			continue
		}
		if dynamic {
			anyDynamic = true
		}

		var flag driver.DescriptorBindingFlags
		if r.Mode == ShaderResourceModeUpdateAfterBind {
			flag = driver.DescriptorBindingUpdateAfterBind
			l.updateAfterBind = true
		}

		count := r.ArraySize
		if count == 0 {
			count = 1
		}
		l.byIndex[r.Binding] = len(l.bindings)
		l.byName[r.Name] = r.Binding
		l.bindings = append(l.bindings, driver.DescriptorSetLayoutBinding{
			Binding: r.Binding,
			Type:    dt,
			Count:   count,
			Stages:  r.Stages,
		})
		l.flags = append(l.flags, flag)
	}

	if len(bindingFlags) > 0 {
		if len(bindingFlags) != len(l.bindings) {
			return nil, ErrBindingFlagsMismatch
		}
		copy(l.flags, bindingFlags)
		l.updateAfterBind = false
		for _, f := range l.flags {
			if f&driver.DescriptorBindingUpdateAfterBind != 0 {
				l.updateAfterBind = true
			}
		}
	}

	if l.updateAfterBind && anyDynamic {
		return nil, ErrDynamicWithUpdateAfterBind
	}

	// Binding flags only reach the driver for update-after-bind layouts;
	// plain layouts pass none.
	var flags []driver.DescriptorBindingFlags
	if l.updateAfterBind {
		flags = l.flags
	}

	handle, err := device.CreateDescriptorSetLayout(l.bindings, flags)
	if err != nil {
		return nil, fmt.Errorf("resource: create descriptor set layout for set %d: %w", setIndex, err)
	}
	l.handle = handle

	slogger().Debug("created descriptor set layout",
		"set", setIndex,
		"bindings", len(l.bindings),
		"updateAfterBind", l.updateAfterBind)
	return l, nil
}

// Handle returns the driver layout handle.
func (l *DescriptorSetLayout) Handle() driver.DescriptorSetLayout { return l.handle }

// Hash returns the layout's content hash, its key in the cache.
func (l *DescriptorSetLayout) Hash() uint64 { return l.hash }

// SetIndex returns the descriptor set index the layout was built for.
func (l *DescriptorSetLayout) SetIndex() uint32 { return l.setIndex }

// Modules returns the shader modules the layout was derived from.
func (l *DescriptorSetLayout) Modules() []*ShaderModule { return l.modules }

// Bindings returns the layout's bindings in construction order. Callers must
// not modify the slice.
func (l *DescriptorSetLayout) Bindings() []driver.DescriptorSetLayoutBinding { return l.bindings }

// Binding looks up a binding by its numeric index.
func (l *DescriptorSetLayout) Binding(index uint32) (driver.DescriptorSetLayoutBinding, bool) {
	i, ok := l.byIndex[index]
	if !ok {
		return driver.DescriptorSetLayoutBinding{}, false
	}
	return l.bindings[i], true
}

// BindingByName looks up a binding by the shader resource name bound to it.
func (l *DescriptorSetLayout) BindingByName(name string) (driver.DescriptorSetLayoutBinding, bool) {
	index, ok := l.byName[name]
	if !ok {
		return driver.DescriptorSetLayoutBinding{}, false
	}
	return l.Binding(index)
}

// BindingFlags returns the flags of the binding at the given numeric index,
// zero when the binding carries none or does not exist.
func (l *DescriptorSetLayout) BindingFlags(index uint32) driver.DescriptorBindingFlags {
	i, ok := l.byIndex[index]
	if !ok {
		return 0
	}
	return l.flags[i]
}

// UpdateAfterBind reports whether any binding uses update-after-bind mode.
// Pools serving this layout must be created with the matching capability.
func (l *DescriptorSetLayout) UpdateAfterBind() bool { return l.updateAfterBind }

// Destroy releases the driver layout.
func (l *DescriptorSetLayout) Destroy() {
	if l.handle != 0 {
		l.device.DestroyDescriptorSetLayout(l.handle)
		l.handle = 0
	}
}
