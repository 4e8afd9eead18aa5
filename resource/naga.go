package resource

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every valid SPIR-V module.
const spirvMagic = 0x07230203

// ErrMalformedSPIRV is returned when the compiler output is not a whole
// number of words or carries the wrong magic number.
var ErrMalformedSPIRV = errors.New("resource: compiled SPIR-V is malformed")

// NagaCompiler compiles WGSL through the naga translator and reflects
// resource bindings from the source text.
//
// The zero value is ready to use.
type NagaCompiler struct{}

// Compile composes the variant with the source, translates WGSL to SPIR-V
// words, and returns the module's reflected resources sorted by set and
// binding.
func (NagaCompiler) Compile(stage gputypes.ShaderStage, source ShaderSource, entryPoint string, variant ShaderVariant) ([]uint32, []ShaderResource, error) {
	composed := composeSource(source, variant)

	spirvBytes, err := naga.Compile(composed)
	if err != nil {
		return nil, nil, fmt.Errorf("resource: naga compile %q: %w", source.Name, err)
	}

	code, err := spirvWords(spirvBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("resource: naga output for %q: %w", source.Name, err)
	}

	resources := reflectWGSL(composed, stage)
	return code, resources, nil
}

// composeSource prepends the variant's preamble and defines to the code,
// one line each, preserving define order.
func composeSource(source ShaderSource, variant ShaderVariant) string {
	if variant.Empty() {
		return source.Code
	}
	var b strings.Builder
	if variant.Preamble != "" {
		b.WriteString(variant.Preamble)
		b.WriteByte('\n')
	}
	for _, d := range variant.Defines {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	b.WriteString(source.Code)
	return b.String()
}

// spirvWords converts little-endian SPIR-V bytes to words and validates the
// module header.
func spirvWords(spirvBytes []byte) ([]uint32, error) {
	if len(spirvBytes) < 4 || len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedSPIRV, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	if code[0] != spirvMagic {
		return nil, fmt.Errorf("%w: magic word %#08x", ErrMalformedSPIRV, code[0])
	}
	return code, nil
}

// WGSL declaration patterns. Group-and-binding vars are the descriptor
// surface; push constant vars and override declarations have no binding
// point but still appear in the reflected list.
var (
	wgslBindingRE = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var\s*(?:<([^>]*)>)?\s*([A-Za-z_][A-Za-z0-9_]*)\s*:\s*([A-Za-z_][A-Za-z0-9_]*)`)
	wgslPushRE    = regexp.MustCompile(`var<push_constant>\s*([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	wgslOverRE    = regexp.MustCompile(`(?:@id\((\d+)\)\s*)?override\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// reflectWGSL scans composed WGSL source for resource declarations. It is a
// textual scan, not a parse: declarations inside block comments are counted.
// Sources that hide bindings behind comments should strip them first.
func reflectWGSL(src string, stage gputypes.ShaderStage) []ShaderResource {
	var out []ShaderResource

	for _, m := range wgslBindingRE.FindAllStringSubmatch(src, -1) {
		group, _ := strconv.ParseUint(m[1], 10, 32)
		binding, _ := strconv.ParseUint(m[2], 10, 32)
		space := strings.TrimSpace(m[3])
		name := m[4]
		typeName := m[5]

		res := ShaderResource{
			Stages:    stage,
			Type:      classifyWGSLVar(space, typeName),
			Set:       uint32(group),
			Binding:   uint32(binding),
			ArraySize: 1,
			Name:      name,
		}
		out = append(out, res)
	}

	for _, m := range wgslPushRE.FindAllStringSubmatch(src, -1) {
		out = append(out, ShaderResource{
			Stages:    stage,
			Type:      ShaderResourcePushConstant,
			ArraySize: 1,
			Name:      m[1],
		})
	}

	for _, m := range wgslOverRE.FindAllStringSubmatch(src, -1) {
		res := ShaderResource{
			Stages:    stage,
			Type:      ShaderResourceSpecializationConstant,
			ArraySize: 1,
			Name:      m[2],
		}
		if m[1] != "" {
			id, _ := strconv.ParseUint(m[1], 10, 32)
			res.ConstantID = uint32(id)
		}
		out = append(out, res)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Set != out[j].Set {
			return out[i].Set < out[j].Set
		}
		return out[i].Binding < out[j].Binding
	})
	return out
}

// classifyWGSLVar maps a WGSL address space and type name to a resource type.
func classifyWGSLVar(space, typeName string) ShaderResourceType {
	switch {
	case space == "uniform":
		return ShaderResourceBufferUniform
	case strings.HasPrefix(space, "storage"):
		return ShaderResourceBufferStorage
	case strings.HasPrefix(typeName, "texture_storage"):
		return ShaderResourceImageStorage
	case strings.HasPrefix(typeName, "texture"):
		return ShaderResourceImage
	case strings.HasPrefix(typeName, "sampler"):
		return ShaderResourceSampler
	default:
		return ShaderResourceImage
	}
}
