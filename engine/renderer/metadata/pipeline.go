package metadata

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/lumen/engine/math"
)

const (
	/** @brief Byte offset of the transform (scale, translate) in the push-constant block. */
	PUSH_CONSTANT_TRANSFORM_OFFSET uint32 = 0
	/** @brief Size in bytes of the transform: two vec2 of float32. */
	PUSH_CONSTANT_TRANSFORM_SIZE uint32 = 16
	/** @brief Byte offset of the draw flags, right after the transform. */
	PUSH_CONSTANT_FLAGS_OFFSET uint32 = PUSH_CONSTANT_TRANSFORM_OFFSET + PUSH_CONSTANT_TRANSFORM_SIZE
	/** @brief Size in bytes of the draw flags: one uint32. */
	PUSH_CONSTANT_FLAGS_SIZE uint32 = 4
	/** @brief Total size of the push-constant block shared by both stages. */
	PUSH_CONSTANT_SIZE uint32 = PUSH_CONSTANT_FLAGS_OFFSET + PUSH_CONSTANT_FLAGS_SIZE
)

/**
 * @brief Per-draw orthographic transform: clip = position*Scale + Translate.
 */
type Transform struct {
	Scale     math.Vec2
	Translate math.Vec2
}

// IdentityTransform leaves positions untouched.
func IdentityTransform() Transform {
	return Transform{Scale: math.Vec2{X: 1, Y: 1}}
}

// PixelTransform maps pixel coordinates of a width×height target onto clip
// space, (0,0) landing on (-1,-1) and (width,height) on (1,1).
func PixelTransform(width, height uint32) Transform {
	return Transform{
		Scale:     math.Vec2{X: 2 / float32(width), Y: 2 / float32(height)},
		Translate: math.Vec2{X: -1, Y: -1},
	}
}

// Apply runs the transform on a position.
func (t Transform) Apply(p math.Vec2) math.Vec2 {
	return p.Mul(t.Scale).Add(t.Translate)
}

/**
 * @brief Per-draw flags read by the fragment stage.
 */
type DrawFlags struct {
	/** @brief Non-zero selects the texture colour source. */
	UseTexture uint32
}

/**
 * @brief The push-constant block shared by vertex and fragment stages.
 */
type PushConstants struct {
	Transform Transform
	Flags     DrawFlags
}

// Encode lays the block out exactly as the shaders expect it.
func (pc PushConstants) Encode() [PUSH_CONSTANT_SIZE]byte {
	var out [PUSH_CONSTANT_SIZE]byte
	le := binary.LittleEndian
	le.PutUint32(out[0:], gomath.Float32bits(pc.Transform.Scale.X))
	le.PutUint32(out[4:], gomath.Float32bits(pc.Transform.Scale.Y))
	le.PutUint32(out[8:], gomath.Float32bits(pc.Transform.Translate.X))
	le.PutUint32(out[12:], gomath.Float32bits(pc.Transform.Translate.Y))
	le.PutUint32(out[PUSH_CONSTANT_FLAGS_OFFSET:], pc.Flags.UseTexture)
	return out
}

func DecodePushConstants(b []byte) (PushConstants, error) {
	if len(b) < int(PUSH_CONSTANT_SIZE) {
		return PushConstants{}, fmt.Errorf("push constant block too short: %d bytes", len(b))
	}
	le := binary.LittleEndian
	f := func(off int) float32 { return gomath.Float32frombits(le.Uint32(b[off:])) }
	return PushConstants{
		Transform: Transform{
			Scale:     math.Vec2{X: f(0), Y: f(4)},
			Translate: math.Vec2{X: f(8), Y: f(12)},
		},
		Flags: DrawFlags{UseTexture: le.Uint32(b[PUSH_CONSTANT_FLAGS_OFFSET:])},
	}, nil
}
