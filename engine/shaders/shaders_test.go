package shaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/lumen/engine/kernel"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
)

func newKernel(t *testing.T, n, rangeMax uint32, opts ...kernel.Option) *kernel.Kernel {
	t.Helper()
	layout, err := metadata.NewChannelLayout(n, rangeMax)
	if err != nil {
		t.Fatal(err)
	}
	k, err := kernel.New(layout, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestNormalizeKernelSource(t *testing.T) {
	tests := []struct {
		name     string
		k        *kernel.Kernel
		contains []string
		absent   []string
	}{
		{
			name: "single channel",
			k:    newKernel(t, 1, 255),
			contains: []string{
				"@id(0) override NUM_CHANNELS: u32 = 1u;",
				"@id(1) override CHANNEL_RANGE_MAX: f32 = 255.0;",
				"@id(2) override FLATTEN_BY_HEIGHT: bool = false;",
				"@id(3) override NORMALIZE_ALL: bool = false;",
				"@workgroup_size(32, 32, 1)",
			},
			absent: []string{"color.y", "color.z", "color.w"},
		},
		{
			name: "four channels by height normalized",
			k:    newKernel(t, 4, 65535, kernel.WithFlattenOrder(metadata.FlattenByHeight), kernel.WithNormalization(metadata.NormalizeAll)),
			contains: []string{
				"FLATTEN_BY_HEIGHT: bool = true;",
				"NORMALIZE_ALL: bool = true;",
				"color.y = f32(source_samples[base + 1u]) / secondary_scale;",
				"color.w = f32(source_samples[base + 3u]) / secondary_scale;",
			},
		},
		{
			name:     "three channels",
			k:        newKernel(t, 3, 255),
			contains: []string{"color.z = f32(source_samples[base + 2u]) / secondary_scale;", "@group(0) @binding(2) var<uniform> region"},
			absent:   []string{"color.w"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NormalizeKernelSource(tt.k)
			if err != nil {
				t.Fatalf("NormalizeKernelSource() error = %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(src, s) {
					t.Errorf("source is missing %q:\n%s", s, src)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(src, s) {
					t.Errorf("source unexpectedly contains %q", s)
				}
			}
		})
	}
}

func TestUISource(t *testing.T) {
	tests := []struct {
		caps     pipeline.Capabilities
		contains []string
		absent   []string
	}{
		{pipeline.VariantA, []string{"position: vec2<f32>", "color: vec3<f32>", "vec4<f32>(in.color, 1.0)", "return FALLBACK_COLOR;"}, []string{"ui_texture", "uv"}},
		{pipeline.VariantB, []string{"position: vec2<i32>", "color: vec4<f32>"}, []string{"use_texture != 0u", "uv"}},
		{pipeline.VariantC, []string{"@location(2) uv: vec2<i32>", "textureLoad(ui_texture, texel, 0) * in.color", "@binding(0) var ui_texture"}, []string{"return FALLBACK_COLOR;"}},
	}
	for _, tt := range tests {
		t.Run(tt.caps.Name, func(t *testing.T) {
			src, err := UISource(tt.caps)
			if err != nil {
				t.Fatalf("UISource() error = %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(src, s) {
					t.Errorf("source is missing %q:\n%s", s, src)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(src, s) {
					t.Errorf("source unexpectedly contains %q", s)
				}
			}
		})
	}
}

func TestCompile(t *testing.T) {
	mods, err := Generate(newKernel(t, 3, 255))
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range mods {
		t.Run(m.Name, func(t *testing.T) {
			compiled, err := Compile(m.Name, m.WGSL)
			if err != nil {
				// the WGSL front end does not implement every feature yet
				t.Skipf("Skipping: naga could not compile %s: %v", m.Name, err)
			}
			if compiled.SPIRV[0] != SPIRVMagic {
				t.Errorf("invalid SPIR-V magic: 0x%08X", compiled.SPIRV[0])
			}
		})
	}
}

func TestWriteModules(t *testing.T) {
	dir := t.TempDir()
	mods := []*Module{
		{Name: "plain", WGSL: "// wgsl"},
		{Name: "compiled", WGSL: "// wgsl", SPIRV: []uint32{SPIRVMagic, 0x00010000}},
	}
	if err := WriteModules(filepath.Join(dir, "out"), mods); err != nil {
		t.Fatalf("WriteModules() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "plain.spv")); !os.IsNotExist(err) {
		t.Errorf("plain.spv should not exist, stat error = %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "out", "compiled.spv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 8 || b[0] != 0x03 || b[1] != 0x02 || b[2] != 0x23 || b[3] != 0x07 {
		t.Errorf("compiled.spv = % x", b)
	}
}

func TestKernelModuleName(t *testing.T) {
	first := newKernel(t, 3, 255)
	all := newKernel(t, 3, 255, kernel.WithNormalization(metadata.NormalizeAll))
	if got := KernelModuleName(first); got != "normalize_3ch_255_width_first" {
		t.Errorf("KernelModuleName() = %q", got)
	}
	if got := KernelModuleName(all); got != "normalize_3ch_255_width_all" {
		t.Errorf("KernelModuleName() = %q", got)
	}

	// kernels with different sources never share a module file
	srcFirst, err := NormalizeKernelSource(first)
	if err != nil {
		t.Fatal(err)
	}
	srcAll, err := NormalizeKernelSource(all)
	if err != nil {
		t.Fatal(err)
	}
	if srcFirst == srcAll {
		t.Fatal("normalization modes generated the same source")
	}
	dir := t.TempDir()
	mods := []*Module{{Name: KernelModuleName(first), WGSL: srcFirst}, {Name: KernelModuleName(all), WGSL: srcAll}}
	if err := WriteModules(dir, mods); err != nil {
		t.Fatal(err)
	}
	for _, m := range mods {
		b, err := os.ReadFile(filepath.Join(dir, m.Name+".wgsl"))
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != m.WGSL {
			t.Errorf("%s.wgsl was overwritten", m.Name)
		}
	}
}

func TestBuildManifest(t *testing.T) {
	k := newKernel(t, 4, 65535, kernel.WithFlattenOrder(metadata.FlattenByHeight))
	m, err := BuildManifest(k, math.UVec2{X: 65, Y: 32})
	if err != nil {
		t.Fatalf("BuildManifest() error = %v", err)
	}
	if len(m.Variants) != len(pipeline.Variants()) {
		t.Fatalf("got %d variants", len(m.Variants))
	}
	c := m.Variants[2]
	if c.Name != pipeline.VariantC.Name || c.Stride != 24 || len(c.Attributes) != 3 {
		t.Errorf("variant C = %+v", c)
	}
	if len(c.Bindings) != 1 || c.Bindings[0].Binding != vulkan.UI_BINDING_TEXTURE || c.Bindings[0].Type != "SAMPLED_IMAGE" {
		t.Errorf("variant C bindings = %+v", c.Bindings)
	}
	if c.Attributes[2].Format != "R16G16_SINT" || c.Attributes[2].Offset != 20 {
		t.Errorf("uv attribute = %+v", c.Attributes[2])
	}
	if c.PushConstantSize != metadata.PUSH_CONSTANT_SIZE {
		t.Errorf("push constant size = %d", c.PushConstantSize)
	}

	if m.Kernel.Module != KernelModuleName(k) {
		t.Errorf("kernel module = %q", m.Kernel.Module)
	}
	if got := m.Kernel.DispatchSize; len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 1 {
		t.Errorf("dispatch size = %v", got)
	}
	want := map[uint32]uint32{
		vulkan.SPEC_CONSTANT_NUM_CHANNELS:      4,
		vulkan.SPEC_CONSTANT_CHANNEL_RANGE_MAX: 65535,
		vulkan.SPEC_CONSTANT_FLATTEN_BY_HEIGHT: 1,
		vulkan.SPEC_CONSTANT_NORMALIZE_ALL:     0,
	}
	if len(m.Kernel.Constants) != len(want) {
		t.Fatalf("got %d constants", len(m.Kernel.Constants))
	}
	for _, c := range m.Kernel.Constants {
		if c.Value != want[c.ID] {
			t.Errorf("constant %d = %d, want %d", c.ID, c.Value, want[c.ID])
		}
	}

	// every constant id is declared by the generated kernel
	src, err := NormalizeKernelSource(k)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range m.Kernel.Constants {
		if !strings.Contains(src, fmt.Sprintf("@id(%d) override", c.ID)) {
			t.Errorf("kernel source does not declare constant %d", c.ID)
		}
	}

	dir := t.TempDir()
	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	var decoded Manifest
	if err := toml.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("failed to decode %s: %v", ManifestFile, err)
	}
	if decoded.Kernel.Module != m.Kernel.Module || len(decoded.Variants) != len(m.Variants) {
		t.Errorf("decoded manifest = %+v", decoded)
	}
}
