package vulkan

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/kernel"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Descriptor bindings of the normalization kernel.
const (
	KERNEL_BINDING_SOURCE uint32 = 0
	KERNEL_BINDING_TARGET uint32 = 1
	KERNEL_BINDING_REGION uint32 = 2
)

// Specialization constant ids of the normalization kernel.
const (
	SPEC_CONSTANT_NUM_CHANNELS uint32 = iota
	SPEC_CONSTANT_CHANNEL_RANGE_MAX
	SPEC_CONSTANT_FLATTEN_BY_HEIGHT
	SPEC_CONSTANT_NORMALIZE_ALL
)

/** @brief The texture slot sampled by the UI fragment stage. */
const UI_BINDING_TEXTURE uint32 = 0

/**
 * @brief Everything needed to build a VkPipeline for one UI variant, minus
 * the shader modules and render pass.
 */
type UIPipelineDescription struct {
	Variant            pipeline.Capabilities
	Binding            vk.VertexInputBindingDescription
	Attributes         []vk.VertexInputAttributeDescription
	PushConstantRanges []vk.PushConstantRange
	DescriptorBindings []vk.DescriptorSetLayoutBinding
	Topology           vk.PrimitiveTopology
	CullMode           vk.CullModeFlags
}

func formatSize(format vk.Format) (uint32, error) {
	switch format {
	case vk.FormatR16g16Sint:
		return 4, nil
	case vk.FormatR32g32Sfloat:
		return 8, nil
	case vk.FormatR32g32b32Sfloat:
		return 12, nil
	case vk.FormatR32g32b32a32Sfloat:
		return 16, nil
	}
	return 0, fmt.Errorf("unsupported vertex attribute format %d", format)
}

// DescribeUIPipeline maps a variant onto its vertex input layout, push-constant
// range and descriptor bindings.
func DescribeUIPipeline(caps pipeline.Capabilities) (*UIPipelineDescription, error) {
	formats := []vk.Format{}
	switch caps.PositionFormat {
	case pipeline.PositionFloat32:
		formats = append(formats, vk.FormatR32g32Sfloat)
	case pipeline.PositionInt16:
		formats = append(formats, vk.FormatR16g16Sint)
	default:
		return nil, fmt.Errorf("unknown position format %d", caps.PositionFormat)
	}
	switch caps.ColorComponents {
	case 3:
		formats = append(formats, vk.FormatR32g32b32Sfloat)
	case 4:
		formats = append(formats, vk.FormatR32g32b32a32Sfloat)
	default:
		return nil, fmt.Errorf("unsupported colour component count %d", caps.ColorComponents)
	}
	if caps.HasUV {
		formats = append(formats, vk.FormatR16g16Sint)
	}

	desc := &UIPipelineDescription{
		Variant:  caps,
		Topology: vk.PrimitiveTopologyTriangleList,
		// No culling: both windings are drawn.
		CullMode: vk.CullModeFlags(vk.CullModeNone),
	}

	offset := uint32(0)
	for location, format := range formats {
		size, err := formatSize(format)
		if err != nil {
			return nil, err
		}
		desc.Attributes = append(desc.Attributes, vk.VertexInputAttributeDescription{
			Location: uint32(location),
			Binding:  0,
			Format:   format,
			Offset:   offset,
		})
		offset += size
	}
	desc.Binding = vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    offset,
		InputRate: vk.VertexInputRateVertex,
	}

	desc.PushConstantRanges = []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		Offset:     metadata.PUSH_CONSTANT_TRANSFORM_OFFSET,
		Size:       uint32(metadata.GetAligned(uint64(metadata.PUSH_CONSTANT_SIZE), 4)),
	}}

	if caps.TextureMode == pipeline.TextureModeSampled {
		desc.DescriptorBindings = []vk.DescriptorSetLayoutBinding{{
			Binding:         UI_BINDING_TEXTURE,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}}
	}
	return desc, nil
}

/**
 * @brief Compute pipeline description of a normalization kernel instance.
 */
type KernelPipelineDescription struct {
	DescriptorBindings []vk.DescriptorSetLayoutBinding
	MapEntries         []vk.SpecializationMapEntry
	/** @brief Specialization values, 4 bytes each, little endian. */
	Data          []byte
	WorkgroupSize [3]uint32
}

// DescribeNormalizeKernel builds the bindings and specialization constants of k.
func DescribeNormalizeKernel(k *kernel.Kernel) *KernelPipelineDescription {
	compute := vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	desc := &KernelPipelineDescription{
		DescriptorBindings: []vk.DescriptorSetLayoutBinding{
			{Binding: KERNEL_BINDING_SOURCE, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: compute},
			{Binding: KERNEL_BINDING_TARGET, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: compute},
			{Binding: KERNEL_BINDING_REGION, DescriptorType: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: compute},
		},
		WorkgroupSize: [3]uint32{kernel.WorkgroupSize, kernel.WorkgroupSize, 1},
	}

	values := []uint32{
		SPEC_CONSTANT_NUM_CHANNELS:      k.Layout().NumChannels(),
		SPEC_CONSTANT_CHANNEL_RANGE_MAX: k.Layout().ChannelRangeMax(),
		SPEC_CONSTANT_FLATTEN_BY_HEIGHT: boolToUint(k.FlattenOrder() == metadata.FlattenByHeight),
		SPEC_CONSTANT_NORMALIZE_ALL:     boolToUint(k.Normalization() == metadata.NormalizeAll),
	}
	desc.Data = make([]byte, 4*len(values))
	for id, v := range values {
		binary.LittleEndian.PutUint32(desc.Data[4*id:], v)
		desc.MapEntries = append(desc.MapEntries, vk.SpecializationMapEntry{
			ConstantID: uint32(id),
			Offset:     uint32(4 * id),
			Size:       4,
		})
	}
	return desc
}

// SpecializationInfo points a vk.SpecializationInfo at the description's data,
// which must stay alive until the pipeline is created.
func (d *KernelPipelineDescription) SpecializationInfo() vk.SpecializationInfo {
	return vk.SpecializationInfo{
		MapEntryCount: uint32(len(d.MapEntries)),
		PMapEntries:   d.MapEntries,
		DataSize:      uint64(len(d.Data)),
		PData:         unsafe.Pointer(&d.Data[0]),
	}
}

// DispatchSize returns the vkCmdDispatch group counts covering extent.
func DispatchSize(extent math.UVec2) [3]uint32 {
	groups := kernel.GroupCount(extent)
	return [3]uint32{groups.X, groups.Y, 1}
}

// FormatName returns the Vulkan spelling of the vertex formats UI pipelines use.
func FormatName(format vk.Format) string {
	switch format {
	case vk.FormatR16g16Sint:
		return "R16G16_SINT"
	case vk.FormatR32g32Sfloat:
		return "R32G32_SFLOAT"
	case vk.FormatR32g32b32Sfloat:
		return "R32G32B32_SFLOAT"
	case vk.FormatR32g32b32a32Sfloat:
		return "R32G32B32A32_SFLOAT"
	}
	return fmt.Sprintf("FORMAT_%d", format)
}

// DescriptorTypeName returns the Vulkan spelling of the descriptor types used here.
func DescriptorTypeName(t vk.DescriptorType) string {
	switch t {
	case vk.DescriptorTypeSampledImage:
		return "SAMPLED_IMAGE"
	case vk.DescriptorTypeStorageBuffer:
		return "STORAGE_BUFFER"
	case vk.DescriptorTypeStorageImage:
		return "STORAGE_IMAGE"
	case vk.DescriptorTypeUniformBuffer:
		return "UNIFORM_BUFFER"
	}
	return fmt.Sprintf("DESCRIPTOR_TYPE_%d", t)
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
