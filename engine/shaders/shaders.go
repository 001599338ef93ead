// Package shaders generates the WGSL sources of the normalization kernel and
// the UI pipeline variants and compiles them to SPIR-V.
package shaders

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/gogpu/naga"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/kernel"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
)

//go:embed templates/*.wgsl.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("shaders").
	Funcs(template.FuncMap{"add": func(a, b int) int { return a + b }}).
	ParseFS(templateFS, "templates/*.wgsl.tmpl"))

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

/**
 * @brief A generated shader: its WGSL source and, once compiled, SPIR-V words.
 */
type Module struct {
	Name  string
	WGSL  string
	SPIRV []uint32
}

type kernelParams struct {
	NumChannels     uint32
	ChannelRangeMax uint32
	FlattenByHeight bool
	NormalizeAll    bool
	WorkgroupSize   uint32
	Secondary       []string

	IDNumChannels     uint32
	IDChannelRangeMax uint32
	IDFlattenByHeight uint32
	IDNormalizeAll    uint32

	BindingSource uint32
	BindingTarget uint32
	BindingRegion uint32
}

// NormalizeKernelSource bakes the channel layout and options of k into WGSL.
func NormalizeKernelSource(k *kernel.Kernel) (string, error) {
	n := k.Layout().NumChannels()
	p := kernelParams{
		NumChannels:     n,
		ChannelRangeMax: k.Layout().ChannelRangeMax(),
		FlattenByHeight: k.FlattenOrder() == metadata.FlattenByHeight,
		NormalizeAll:    k.Normalization() == metadata.NormalizeAll,
		WorkgroupSize:   kernel.WorkgroupSize,
		Secondary:       []string{"y", "z", "w"}[:n-1],

		IDNumChannels:     vulkan.SPEC_CONSTANT_NUM_CHANNELS,
		IDChannelRangeMax: vulkan.SPEC_CONSTANT_CHANNEL_RANGE_MAX,
		IDFlattenByHeight: vulkan.SPEC_CONSTANT_FLATTEN_BY_HEIGHT,
		IDNormalizeAll:    vulkan.SPEC_CONSTANT_NORMALIZE_ALL,

		BindingSource: vulkan.KERNEL_BINDING_SOURCE,
		BindingTarget: vulkan.KERNEL_BINDING_TARGET,
		BindingRegion: vulkan.KERNEL_BINDING_REGION,
	}
	return execute("normalize.wgsl.tmpl", p)
}

type uiParams struct {
	pipeline.Capabilities
	PositionType   string
	ColorType      string
	Fallback       bool
	Sampled        bool
	TextureBinding uint32
}

// UISource generates the vertex and fragment entry points of one variant.
func UISource(caps pipeline.Capabilities) (string, error) {
	p := uiParams{
		Capabilities:   caps,
		PositionType:   "f32",
		ColorType:      fmt.Sprintf("vec%d<f32>", caps.ColorComponents),
		Fallback:       caps.TextureMode == pipeline.TextureModeFallback,
		Sampled:        caps.TextureMode == pipeline.TextureModeSampled,
		TextureBinding: vulkan.UI_BINDING_TEXTURE,
	}
	if caps.PositionFormat == pipeline.PositionInt16 {
		p.PositionType = "i32"
	}
	return execute("ui.wgsl.tmpl", p)
}

func execute(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", name, err)
	}
	return buf.String(), nil
}

// Compile turns WGSL into SPIR-V words.
func Compile(name, wgsl string) (*Module, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader %s: %w", name, err)
	}
	if len(spirvBytes)%4 != 0 || len(spirvBytes) < 4 {
		return nil, fmt.Errorf("shader %s: SPIR-V output has invalid length %d", name, len(spirvBytes))
	}
	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	if words[0] != SPIRVMagic {
		return nil, fmt.Errorf("shader %s: invalid SPIR-V magic 0x%08X", name, words[0])
	}
	return &Module{Name: name, WGSL: wgsl, SPIRV: words}, nil
}

// KernelModuleName names the module of a kernel specialization.
func KernelModuleName(k *kernel.Kernel) string {
	return fmt.Sprintf("normalize_%dch_%d_%s_%s", k.Layout().NumChannels(), k.Layout().ChannelRangeMax(), k.FlattenOrder(), k.Normalization())
}

// Generate produces the sources of every UI variant plus the kernel k,
// without compiling them.
func Generate(k *kernel.Kernel) ([]*Module, error) {
	var mods []*Module
	for _, caps := range pipeline.Variants() {
		src, err := UISource(caps)
		if err != nil {
			return nil, err
		}
		mods = append(mods, &Module{Name: caps.Name, WGSL: src})
	}
	src, err := NormalizeKernelSource(k)
	if err != nil {
		return nil, err
	}
	mods = append(mods, &Module{Name: KernelModuleName(k), WGSL: src})
	return mods, nil
}

// CompileAll compiles every module produced by Generate. Modules the compiler
// rejects are logged and kept with their WGSL only.
func CompileAll(k *kernel.Kernel) ([]*Module, error) {
	mods, err := Generate(k)
	if err != nil {
		return nil, err
	}
	for i, m := range mods {
		compiled, err := Compile(m.Name, m.WGSL)
		if err != nil {
			core.LogWarn("%s", err)
			continue
		}
		mods[i] = compiled
	}
	return mods, nil
}

// WriteModules writes <name>.wgsl and, when compiled, <name>.spv into dir.
func WriteModules(dir string, mods []*Module) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, m := range mods {
		if err := os.WriteFile(filepath.Join(dir, m.Name+".wgsl"), []byte(m.WGSL), 0o644); err != nil {
			return err
		}
		if len(m.SPIRV) == 0 {
			continue
		}
		out := make([]byte, 4*len(m.SPIRV))
		for i, w := range m.SPIRV {
			out[i*4] = byte(w)
			out[i*4+1] = byte(w >> 8)
			out[i*4+2] = byte(w >> 16)
			out[i*4+3] = byte(w >> 24)
		}
		if err := os.WriteFile(filepath.Join(dir, m.Name+".spv"), out, 0o644); err != nil {
			return err
		}
	}
	return nil
}
