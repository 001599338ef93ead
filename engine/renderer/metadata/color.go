package metadata

import "github.com/spaghettifunk/lumen/engine/math"

/** @brief A linear RGBA colour. */
type Color struct {
	R float32
	G float32
	B float32
	A float32
}

var (
	BLACK = Color{R: 0, G: 0, B: 0, A: 1}
	WHITE = Color{R: 1, G: 1, B: 1, A: 1}
	RED   = Color{R: 1, G: 0, B: 0, A: 1}
	GREEN = Color{R: 0, G: 1, B: 0, A: 1}
	BLUE  = Color{R: 0, G: 0, B: 1, A: 1}
)

func (c Color) ToArray() [4]float32 {
	return [4]float32{c.R, c.G, c.B, c.A}
}

func (c Color) Vec4() math.Vec4 {
	return math.Vec4{X: c.R, Y: c.G, Z: c.B, W: c.A}
}

func ColorFromVec4(v math.Vec4) Color {
	return Color{R: v.X, G: v.Y, B: v.Z, A: v.W}
}
