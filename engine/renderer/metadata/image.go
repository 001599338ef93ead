package metadata

import (
	"image"
	"image/color"

	"github.com/spaghettifunk/lumen/engine/math"
)

/**
 * @brief A structure to hold image resource data.
 */
type ImageResourceData struct {
	/** @brief The decoded raw pixels. */
	Pixels *PixelBuffer
	/** @brief Whether the source file declared an sRGB colour space. */
	SRGB bool
}

/** @brief Parameters used when loading an image. */
type ImageResourceParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
	/** @brief Keep 16-bit samples instead of reducing them to 8 bits. */
	Keep16Bit bool
}

/**
 * @brief A writable 2D image of float32 RGBA texels. Used both as the
 * normalization target and as the sampled texture / framebuffer of the UI
 * pipeline. Values are not clamped.
 */
type Image struct {
	/** @brief The image Width. */
	Width uint32
	/** @brief The image Height. */
	Height uint32
	/** @brief RGBA texels, row-major, 4 floats per texel. */
	Pix []float32
}

func NewImage(width, height uint32) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float32, int(width)*int(height)*4),
	}
}

// Covers reports whether the image is at least offset+extent in size.
func (img *Image) Covers(offset, extent math.UVec2) bool {
	return uint64(offset.X)+uint64(extent.X) <= uint64(img.Width) &&
		uint64(offset.Y)+uint64(extent.Y) <= uint64(img.Height)
}

// PixOffset returns the index of the first float of texel (x, y).
func (img *Image) PixOffset(x, y uint32) int {
	return (int(y)*int(img.Width) + int(x)) * 4
}

func (img *Image) Texel(x, y uint32) math.Vec4 {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+4 : i+4]
	return math.Vec4{X: p[0], Y: p[1], Z: p[2], W: p[3]}
}

func (img *Image) SetTexel(x, y uint32, c math.Vec4) {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = c.X, c.Y, c.Z, c.W
}

func (img *Image) Fill(c math.Vec4) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.X, c.Y, c.Z, c.W
	}
}

func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Pix: make([]float32, len(img.Pix))}
	copy(out.Pix, img.Pix)
	return out
}

func (img *Image) ColorModel() color.Model {
	return color.NRGBA64Model
}

func (img *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(img.Width), int(img.Height))
}

// At converts the texel to 16-bit non-premultiplied colour, clamping to [0, 1].
func (img *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= int(img.Width) || y >= int(img.Height) {
		return color.NRGBA64{}
	}
	t := img.Texel(uint32(x), uint32(y))
	return color.NRGBA64{
		R: unorm16(t.X),
		G: unorm16(t.Y),
		B: unorm16(t.Z),
		A: unorm16(t.W),
	}
}

func unorm16(v float32) uint16 {
	return uint16(math.Clamp(v, 0, 1)*0xffff + 0.5)
}
