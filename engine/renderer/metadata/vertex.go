package metadata

import "github.com/spaghettifunk/lumen/engine/math"

/**
 * @brief Represents a single UI vertex. The position encoding P is float32 or
 * int16 depending on the pipeline variant. UV holds texel coordinates and is
 * ignored by variants without texture coordinates.
 */
type Vertex[P math.Scalar] struct {
	/** @brief The position of the vertex. */
	Position [2]P
	/** @brief The colour of the vertex, used directly or as a tint. */
	Color math.Vec4
	/** @brief The texel coordinate of the vertex. */
	UV math.IVec2
}

// FloatVertex is the float position encoding.
type FloatVertex = Vertex[float32]

// IntVertex is the integer position encoding.
type IntVertex = Vertex[int16]

// NewFloatVertex builds a vertex from an RGB colour; alpha is fully opaque.
func NewFloatVertex(x, y float32, rgb math.Vec3) FloatVertex {
	return FloatVertex{Position: [2]float32{x, y}, Color: rgb.ToVec4(1)}
}

// NewIntVertex builds a vertex with an RGBA colour and no texture coordinate.
func NewIntVertex(p Point, c Color) IntVertex {
	return IntVertex{Position: [2]int16{p.X, p.Y}, Color: c.Vec4()}
}

// NewTexturedVertex builds a vertex with an RGBA tint and a texel coordinate.
func NewTexturedVertex(p Point, c Color, uv Point) IntVertex {
	return IntVertex{Position: [2]int16{p.X, p.Y}, Color: c.Vec4(), UV: math.IVec2{X: uv.X, Y: uv.Y}}
}
