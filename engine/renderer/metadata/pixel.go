package metadata

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
)

const (
	/** @brief The default number of interleaved channels per source pixel. */
	DEFAULT_NUM_CHANNELS uint32 = 3
	/** @brief The default maximum raw value of a single channel (8-bit). */
	DEFAULT_CHANNEL_RANGE_MAX uint32 = 255
	/** @brief The largest supported channel count. */
	MAX_NUM_CHANNELS uint32 = 4
)

/**
 * @brief Describes how many channels are interleaved per source pixel and the
 * largest raw value a channel can hold. Fixed when a kernel instance is built.
 */
type ChannelLayout struct {
	numChannels     uint32
	channelRangeMax uint32
}

// NewChannelLayout validates and builds an immutable channel layout.
func NewChannelLayout(numChannels, channelRangeMax uint32) (ChannelLayout, error) {
	if numChannels < 1 || numChannels > MAX_NUM_CHANNELS {
		return ChannelLayout{}, fmt.Errorf("%w: got %d", core.ErrInvalidChannelCount, numChannels)
	}
	if channelRangeMax == 0 {
		return ChannelLayout{}, core.ErrInvalidChannelRange
	}
	return ChannelLayout{numChannels: numChannels, channelRangeMax: channelRangeMax}, nil
}

// DefaultChannelLayout is 3 channels of 8-bit samples.
func DefaultChannelLayout() ChannelLayout {
	return ChannelLayout{numChannels: DEFAULT_NUM_CHANNELS, channelRangeMax: DEFAULT_CHANNEL_RANGE_MAX}
}

func (cl ChannelLayout) NumChannels() uint32 {
	return cl.numChannels
}

func (cl ChannelLayout) ChannelRangeMax() uint32 {
	return cl.channelRangeMax
}

func (cl ChannelLayout) String() string {
	return fmt.Sprintf("%dch/max%d", cl.numChannels, cl.channelRangeMax)
}

/**
 * @brief Selects how a (col, row) pair is flattened into a pixel index.
 */
type FlattenOrder int

const (
	/** @brief Row-major by width: row*width + col. */
	FlattenByWidth FlattenOrder = iota
	/** @brief Multiplies the row by the extent height: row*height + col. Matches the legacy kernels. */
	FlattenByHeight
)

// ParseFlattenOrder maps "width" or "height" onto a FlattenOrder.
func ParseFlattenOrder(s string) (FlattenOrder, error) {
	switch s {
	case "", "width":
		return FlattenByWidth, nil
	case "height":
		return FlattenByHeight, nil
	}
	return FlattenByWidth, fmt.Errorf("%w: %q", core.ErrInvalidFlattenOrder, s)
}

func (o FlattenOrder) String() string {
	if o == FlattenByHeight {
		return "height"
	}
	return "width"
}

// Pixel returns the flattened pixel index of (col, row) inside extent.
func (o FlattenOrder) Pixel(col, row uint32, extent math.UVec2) uint64 {
	stride := extent.X
	if o == FlattenByHeight {
		stride = extent.Y
	}
	return uint64(row)*uint64(stride) + uint64(col)
}

// RequiredSamples is the minimum source length for a copy of extent with
// numChannels interleaved channels.
func (o FlattenOrder) RequiredSamples(extent math.UVec2, numChannels uint32) uint64 {
	if extent.X == 0 || extent.Y == 0 {
		return 0
	}
	last := o.Pixel(extent.X-1, extent.Y-1, extent)
	return (last + 1) * uint64(numChannels)
}

/**
 * @brief Selects which channels are divided by the channel range max.
 */
type ChannelNormalization int

const (
	/** @brief Only the first (red) channel is normalized, the others are passed through raw. */
	NormalizeFirstOnly ChannelNormalization = iota
	/** @brief Every present channel is normalized. */
	NormalizeAll
)

// ParseChannelNormalization maps "first" or "all" onto a ChannelNormalization.
func ParseChannelNormalization(s string) (ChannelNormalization, error) {
	switch s {
	case "", "first":
		return NormalizeFirstOnly, nil
	case "all":
		return NormalizeAll, nil
	}
	return NormalizeFirstOnly, fmt.Errorf("%w: %q", core.ErrInvalidNormalization, s)
}

func (n ChannelNormalization) String() string {
	if n == NormalizeAll {
		return "all"
	}
	return "first"
}

/**
 * @brief Per-dispatch description of the copy window.
 */
type CopyRegion struct {
	/** @brief Width and height of the source image. */
	SourceExtent math.UVec2
	/** @brief Where the source lands in the target image. */
	TargetOffset math.UVec2
}

/**
 * @brief Channel layout and bit depth of a PixelBuffer.
 */
type Layout uint8

const (
	LayoutR8 Layout = iota
	LayoutRG8
	LayoutRGB8
	LayoutRGBA8
	LayoutR16
	LayoutRG16
	LayoutRGB16
	LayoutRGBA16
)

// Channels returns the number of interleaved channels.
func (l Layout) Channels() uint32 {
	return uint32(l%4) + 1
}

// BitDepth returns 8 or 16.
func (l Layout) BitDepth() uint32 {
	if l >= LayoutR16 {
		return 16
	}
	return 8
}

func (l Layout) BytesPerSample() int {
	return int(l.BitDepth() / 8)
}

func (l Layout) BytesPerPixel() int {
	return int(l.Channels()) * l.BytesPerSample()
}

// RangeMax returns the largest raw value of a single sample.
func (l Layout) RangeMax() uint32 {
	return 1<<l.BitDepth() - 1
}

// ChannelLayout returns the kernel channel layout matching this pixel layout.
func (l Layout) ChannelLayout() ChannelLayout {
	return ChannelLayout{numChannels: l.Channels(), channelRangeMax: l.RangeMax()}
}

func (l Layout) String() string {
	names := [...]string{"R8", "RG8", "RGB8", "RGBA8", "R16", "RG16", "RGB16", "RGBA16"}
	if int(l) < len(names) {
		return names[l]
	}
	return fmt.Sprintf("Layout(%d)", uint8(l))
}

/**
 * @brief Interleaved raw pixels as decoded from an image file. 16-bit samples are big endian.
 */
type PixelBuffer struct {
	layout Layout
	extent Extent
	bytes  []byte
}

func NewPixelBuffer(layout Layout, extent Extent, bytes []byte) (*PixelBuffer, error) {
	if layout > LayoutRGBA16 {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedImage, layout)
	}
	want := layout.BytesPerPixel() * extent.Area()
	if want != len(bytes) {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", core.ErrPixelBufferSize, want, len(bytes))
	}
	return &PixelBuffer{layout: layout, extent: extent, bytes: bytes}, nil
}

func (pb *PixelBuffer) Layout() Layout {
	return pb.layout
}

func (pb *PixelBuffer) Extent() Extent {
	return pb.extent
}

func (pb *PixelBuffer) Bytes() []byte {
	return pb.bytes
}

func (pb *PixelBuffer) sample(i int) uint32 {
	if pb.layout.BitDepth() == 16 {
		return uint32(pb.bytes[2*i])<<8 | uint32(pb.bytes[2*i+1])
	}
	return uint32(pb.bytes[i])
}

// Samples widens every channel sample to uint32, row-major by width.
func (pb *PixelBuffer) Samples() []uint32 {
	n := len(pb.bytes) / pb.layout.BytesPerSample()
	out := make([]uint32, n)
	for i := range out {
		out[i] = pb.sample(i)
	}
	return out
}

// SubSamples extracts the samples inside rect, which is clipped to the buffer.
// The returned extent is the size of the clipped window.
func (pb *PixelBuffer) SubSamples(rect Rect) ([]uint32, Extent) {
	r := rect.Intersect(pb.extent.Rect())
	w, h := int(r.Width()), int(r.Height())
	if w <= 0 || h <= 0 {
		return nil, Extent{}
	}
	ch := int(pb.layout.Channels())
	stride := int(pb.extent.Width) * ch
	out := make([]uint32, 0, w*h*ch)
	for y := int(r.Top); y < int(r.Bottom); y++ {
		start := y*stride + int(r.Left)*ch
		for i := start; i < start+w*ch; i++ {
			out = append(out, pb.sample(i))
		}
	}
	return out, Extent{Width: int16(w), Height: int16(h)}
}
