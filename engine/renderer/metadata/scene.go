package metadata

/** @brief The kind of a scene command. */
type SceneCommandKind int

const (
	SceneCommandClear SceneCommandKind = iota
	SceneCommandScissor
	SceneCommandRect
	SceneCommandImage
	SceneCommandText
)

func (k SceneCommandKind) String() string {
	return [...]string{"clear", "scissor", "rect", "image", "text"}[k]
}

/**
 * @brief One drawing instruction emitted by a scene script. Which fields are
 * meaningful depends on Kind.
 */
type SceneCommand struct {
	Kind SceneCommandKind
	/** @brief Destination rectangle for scissor, rect and image. */
	Rect Rect
	/** @brief Fill colour for rect and text, tint for image. */
	Color Color
	/** @brief Image asset name for image commands. */
	Image string
	/** @brief Source window in the image. Empty means the whole image. */
	Source Rect
	/** @brief Font asset name for text commands. */
	Font string
	Text string
	/** @brief Top-left corner of the first line for text commands. */
	Origin Point
}

/** @brief Parameters passed to a scene script. */
type SceneParams struct {
	Width  uint32
	Height uint32
	Frame  uint64
}

/** @brief The evaluated scene. */
type SceneData struct {
	Name     string
	Commands []SceneCommand
}
