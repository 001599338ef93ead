package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

// IVec2 is a 2D vector of signed 16-bit integers, the integer vertex encoding.
type IVec2 struct {
	X, Y int16
}

// UVec2 is a 2D vector of unsigned 32-bit integers, used for extents and offsets.
type UVec2 struct {
	X, Y uint32
}
