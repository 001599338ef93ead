package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Image resource type. */
	ResourceTypeImage ResourceType = iota
	/** @brief Configuration resource type (TOML). */
	ResourceTypeConfig
	/** @brief Bitmap font resource type. */
	ResourceTypeBitmapFont
	/** @brief Scene script resource type (Lua). */
	ResourceTypeScene
	/** @brief Compiled SPIR-V shader module. */
	ResourceTypeShaderModule
	/** @brief Anything the asset manager does not know how to load. */
	ResourceTypeNone
)

func (rt ResourceType) String() string {
	switch rt {
	case ResourceTypeImage:
		return "image"
	case ResourceTypeConfig:
		return "config"
	case ResourceTypeBitmapFont:
		return "bitmap_font"
	case ResourceTypeScene:
		return "scene"
	case ResourceTypeShaderModule:
		return "shader_module"
	}
	return "none"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The type of the loader which handles this resource. */
	Type ResourceType
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource file in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}
