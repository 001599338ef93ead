// Package pipeline implements the UI draw pipeline: a vertex stage applying a
// 2D transform, triangle rasterization and a fragment stage choosing between a
// vertex colour and a tinted texture sample.
package pipeline

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/systems"
)

// FallbackColor is written by pipelines that cannot sample a texture when a
// draw nevertheless requests one. Opaque magenta makes such draws obvious.
var FallbackColor = math.Vec4{X: 1, Y: 0, Z: 1, W: 1}

/** @brief How the fragment stage treats DrawFlags.UseTexture. */
type TextureMode int

const (
	/** @brief UseTexture selects FallbackColor. */
	TextureModeFallback TextureMode = iota
	/** @brief UseTexture is ignored, the vertex colour is always used. */
	TextureModeIgnored
	/** @brief UseTexture selects texel(uv) * colour. */
	TextureModeSampled
)

/** @brief Vertex position encodings. */
type PositionFormat int

const (
	PositionFloat32 PositionFormat = iota
	PositionInt16
)

/**
 * @brief Describes what a pipeline variant reads from its vertices and how
 * it resolves colour.
 */
type Capabilities struct {
	Name           string
	PositionFormat PositionFormat
	/** @brief 3 for RGB inputs (alpha forced to 1), 4 for RGBA. */
	ColorComponents uint32
	HasUV           bool
	TextureMode     TextureMode
}

var (
	// VariantA takes float positions and RGB colours and cannot sample.
	VariantA = Capabilities{Name: "ui_float_rgb", PositionFormat: PositionFloat32, ColorComponents: 3, TextureMode: TextureModeFallback}
	// VariantB takes integer positions and RGBA colours, always solid.
	VariantB = Capabilities{Name: "ui_int_rgba", PositionFormat: PositionInt16, ColorComponents: 4, TextureMode: TextureModeIgnored}
	// VariantC takes integer positions, RGBA colours and texel coordinates.
	VariantC = Capabilities{Name: "ui_int_rgba_uv", PositionFormat: PositionInt16, ColorComponents: 4, HasUV: true, TextureMode: TextureModeSampled}
)

// Variants lists every pipeline variant.
func Variants() []Capabilities {
	return []Capabilities{VariantA, VariantB, VariantC}
}

type Option func(*options)

type options struct {
	jobs *systems.JobSystem
}

// WithJobSystem rasterizes tiles on js instead of the calling goroutine.
func WithJobSystem(js *systems.JobSystem) Option {
	return func(o *options) { o.jobs = js }
}

/**
 * @brief One pipeline instance, generic over the position scalar.
 */
type Pipeline[P math.Scalar] struct {
	caps Capabilities
	jobs *systems.JobSystem
}

func newPipeline[P math.Scalar](caps Capabilities, opts []Option) *Pipeline[P] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline[P]{caps: caps, jobs: o.jobs}
}

func NewVariantA(opts ...Option) *Pipeline[float32] {
	return newPipeline[float32](VariantA, opts)
}

func NewVariantB(opts ...Option) *Pipeline[int16] {
	return newPipeline[int16](VariantB, opts)
}

func NewVariantC(opts ...Option) *Pipeline[int16] {
	return newPipeline[int16](VariantC, opts)
}

func (p *Pipeline[P]) Capabilities() Capabilities {
	return p.caps
}

/**
 * @brief The output of the vertex stage, interpolated across a triangle.
 */
type VertexOutput struct {
	/** @brief Clip-space position, z = 0 and w = 1. */
	Clip  math.Vec4
	Color math.Vec4
	/** @brief Texel coordinate, zero for variants without uv. */
	UV math.Vec2
}

// VertexStage transforms the position and forwards colour and uv.
func (p *Pipeline[P]) VertexStage(v metadata.Vertex[P], pc metadata.PushConstants) VertexOutput {
	pos := pc.Transform.Apply(math.NewVec2FromScalars(v.Position[0], v.Position[1]))
	out := VertexOutput{
		Clip:  math.Vec4{X: pos.X, Y: pos.Y, Z: 0, W: 1},
		Color: v.Color,
	}
	if p.caps.ColorComponents < 4 {
		out.Color.W = 1
	}
	if p.caps.HasUV {
		out.UV = math.NewVec2FromScalars(v.UV.X, v.UV.Y)
	}
	return out
}

// FragmentStage resolves the final colour of one fragment.
func (p *Pipeline[P]) FragmentStage(in VertexOutput, pc metadata.PushConstants, texture *metadata.Image) math.Vec4 {
	if pc.Flags.UseTexture == 0 {
		return in.Color
	}
	switch p.caps.TextureMode {
	case TextureModeIgnored:
		return in.Color
	case TextureModeSampled:
		if texture == nil {
			return FallbackColor
		}
		return Sample(texture, in.UV).Mul(in.Color)
	}
	return FallbackColor
}

// Sample reads the texel containing uv, nearest filtering with clamp-to-edge.
func Sample(texture *metadata.Image, uv math.Vec2) math.Vec4 {
	if texture.Width == 0 || texture.Height == 0 {
		return math.Vec4{}
	}
	x := clampTexel(uv.X, texture.Width)
	y := clampTexel(uv.Y, texture.Height)
	return texture.Texel(x, y)
}

func clampTexel(v float32, size uint32) uint32 {
	if !(v >= 0) {
		return 0
	}
	if v >= float32(size) {
		return size - 1
	}
	return uint32(v)
}
