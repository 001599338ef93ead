package shaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/lumen/engine/kernel"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
)

// ManifestFile is written next to the exported modules.
const ManifestFile = "pipelines.toml"

/**
 * @brief Pipeline layouts of the exported modules, for a Vulkan host that
 * loads the .spv files.
 */
type Manifest struct {
	Kernel   KernelManifest    `toml:"kernel"`
	Variants []VariantManifest `toml:"variant"`
}

type KernelManifest struct {
	Module        string             `toml:"module"`
	WorkgroupSize []uint32           `toml:"workgroup_size"`
	TargetExtent  []uint32           `toml:"target_extent"`
	DispatchSize  []uint32           `toml:"dispatch_size"`
	Bindings      []BindingManifest  `toml:"binding"`
	Constants     []ConstantManifest `toml:"constant"`
}

type VariantManifest struct {
	Name               string              `toml:"name"`
	Module             string              `toml:"module"`
	Stride             uint32              `toml:"stride"`
	PushConstantOffset uint32              `toml:"push_constant_offset"`
	PushConstantSize   uint32              `toml:"push_constant_size"`
	Attributes         []AttributeManifest `toml:"attribute"`
	Bindings           []BindingManifest   `toml:"binding"`
}

type AttributeManifest struct {
	Location uint32 `toml:"location"`
	Offset   uint32 `toml:"offset"`
	Format   string `toml:"format"`
}

type BindingManifest struct {
	Binding uint32 `toml:"binding"`
	Type    string `toml:"type"`
}

// ConstantManifest is one specialization constant and its default value.
type ConstantManifest struct {
	ID    uint32 `toml:"id"`
	Value uint32 `toml:"value"`
}

// BuildManifest describes every UI variant and the kernel k. target sizes the
// kernel dispatch.
func BuildManifest(k *kernel.Kernel, target math.UVec2) (*Manifest, error) {
	m := &Manifest{}
	for _, caps := range pipeline.Variants() {
		desc, err := vulkan.DescribeUIPipeline(caps)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", caps.Name, err)
		}
		v := VariantManifest{
			Name:   caps.Name,
			Module: caps.Name,
			Stride: desc.Binding.Stride,
		}
		if len(desc.PushConstantRanges) > 0 {
			v.PushConstantOffset = desc.PushConstantRanges[0].Offset
			v.PushConstantSize = desc.PushConstantRanges[0].Size
		}
		for _, a := range desc.Attributes {
			v.Attributes = append(v.Attributes, AttributeManifest{
				Location: a.Location,
				Offset:   a.Offset,
				Format:   vulkan.FormatName(a.Format),
			})
		}
		for _, b := range desc.DescriptorBindings {
			v.Bindings = append(v.Bindings, BindingManifest{Binding: b.Binding, Type: vulkan.DescriptorTypeName(b.DescriptorType)})
		}
		m.Variants = append(m.Variants, v)
	}

	desc := vulkan.DescribeNormalizeKernel(k)
	dispatch := vulkan.DispatchSize(target)
	m.Kernel = KernelManifest{
		Module:        KernelModuleName(k),
		WorkgroupSize: desc.WorkgroupSize[:],
		TargetExtent:  []uint32{target.X, target.Y},
		DispatchSize:  dispatch[:],
	}
	for _, b := range desc.DescriptorBindings {
		m.Kernel.Bindings = append(m.Kernel.Bindings, BindingManifest{Binding: b.Binding, Type: vulkan.DescriptorTypeName(b.DescriptorType)})
	}
	for _, e := range desc.MapEntries {
		m.Kernel.Constants = append(m.Kernel.Constants, ConstantManifest{
			ID:    e.ConstantID,
			Value: binary.LittleEndian.Uint32(desc.Data[e.Offset:]),
		})
	}
	return m, nil
}

// WriteManifest encodes m as dir/ManifestFile.
func WriteManifest(dir string, m *Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ManifestFile, err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), b, 0o644)
}
