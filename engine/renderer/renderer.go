package renderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/kernel"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/systems"
)

// ImageHandle identifies an image owned by a Renderer.
type ImageHandle uuid.UUID

// NilImage never refers to an image.
var NilImage ImageHandle

func (h ImageHandle) String() string {
	return uuid.UUID(h).String()
}

/**
 * @brief One copy of a pixel buffer window into a target image.
 */
type ImageCopy struct {
	/** @brief Window of the source buffer. Empty means the whole buffer. */
	Source metadata.Rect
	/** @brief Where the top-left corner of Source lands in the target. May be negative. */
	Target metadata.Point
}

type Option func(*Renderer)

// WithJobSystem spreads kernel workgroups and raster tiles over js.
func WithJobSystem(js *systems.JobSystem) Option {
	return func(r *Renderer) { r.jobs = js }
}

// WithFlattenOrder selects the flatten order of every normalization kernel.
func WithFlattenOrder(order metadata.FlattenOrder) Option {
	return func(r *Renderer) { r.order = order }
}

// WithNormalization selects which channels the kernels normalize.
func WithNormalization(n metadata.ChannelNormalization) Option {
	return func(r *Renderer) { r.normalization = n }
}

// WithBackend replaces the software backend.
func WithBackend(b RendererBackend) Option {
	return func(r *Renderer) { r.backend = b }
}

// Renderer owns images by handle, uploads pixel buffers into them through
// the normalization kernel and draws command lists into them.
type Renderer struct {
	backend       RendererBackend
	jobs          *systems.JobSystem
	order         metadata.FlattenOrder
	normalization metadata.ChannelNormalization

	mu      sync.RWMutex
	images  map[ImageHandle]*metadata.Image
	kernels map[metadata.ChannelLayout]*kernel.Kernel
}

func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{
		order:   metadata.FlattenByWidth,
		images:  make(map[ImageHandle]*metadata.Image),
		kernels: make(map[metadata.ChannelLayout]*kernel.Kernel),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.backend == nil {
		r.backend = newSoftwareBackend(r.jobs)
	}
	if err := r.backend.Initialize(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Shutdown() error {
	r.mu.Lock()
	r.images = make(map[ImageHandle]*metadata.Image)
	r.kernels = make(map[metadata.ChannelLayout]*kernel.Kernel)
	r.mu.Unlock()
	return r.backend.Shutdown()
}

// CreateImage allocates a transparent black image.
func (r *Renderer) CreateImage(extent metadata.Extent) (ImageHandle, error) {
	if extent.Width <= 0 || extent.Height <= 0 {
		return NilImage, fmt.Errorf("%w: got %dx%d", core.ErrInvalidExtent, extent.Width, extent.Height)
	}
	h := ImageHandle(uuid.New())
	img := metadata.NewImage(uint32(extent.Width), uint32(extent.Height))

	r.mu.Lock()
	r.images[h] = img
	r.mu.Unlock()
	return h, nil
}

func (r *Renderer) DestroyImage(h ImageHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[h]; !ok {
		return fmt.Errorf("%w: image %s", core.ErrInvalidHandle, h)
	}
	delete(r.images, h)
	return nil
}

func (r *Renderer) Image(h ImageHandle) (*metadata.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	img, ok := r.images[h]
	if !ok {
		return nil, fmt.Errorf("%w: image %s", core.ErrInvalidHandle, h)
	}
	return img, nil
}

func (r *Renderer) kernelFor(layout metadata.ChannelLayout) (*kernel.Kernel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.kernels[layout]; ok {
		return k, nil
	}
	opts := []kernel.Option{kernel.WithFlattenOrder(r.order), kernel.WithNormalization(r.normalization)}
	if r.jobs != nil {
		opts = append(opts, kernel.WithJobSystem(r.jobs))
	}
	k, err := kernel.New(layout, opts...)
	if err != nil {
		return nil, err
	}
	r.kernels[layout] = k
	return k, nil
}

// CopyPixels runs one kernel dispatch per op. Parts of an op that fall
// outside the source buffer or the target image are skipped.
func (r *Renderer) CopyPixels(ctx context.Context, src *metadata.PixelBuffer, dst ImageHandle, ops []ImageCopy) error {
	img, err := r.Image(dst)
	if err != nil {
		return err
	}
	k, err := r.kernelFor(src.Layout().ChannelLayout())
	if err != nil {
		return err
	}

	srcBounds := toRectangle(src.Extent().Rect())
	for _, op := range ops {
		window := srcBounds
		if !op.Source.IsEmpty() {
			window = toRectangle(op.Source).Intersect(srcBounds)
		}
		if window.Empty() {
			continue
		}
		at := image.Pt(int(op.Target.X), int(op.Target.Y))
		placed := window.Sub(window.Min).Add(at).Intersect(img.Bounds())
		if placed.Empty() {
			continue
		}
		window = placed.Sub(at).Add(window.Min)

		samples, extent := src.SubSamples(fromRectangle(window))
		samples = flatten(samples, extent, src.Layout().Channels(), r.order)
		region := metadata.CopyRegion{
			SourceExtent: math.UVec2{X: uint32(extent.Width), Y: uint32(extent.Height)},
			TargetOffset: math.UVec2{X: uint32(placed.Min.X), Y: uint32(placed.Min.Y)},
		}
		if err := r.backend.Dispatch(ctx, k, region, samples, img); err != nil {
			return err
		}
	}
	return nil
}

// Draw clears target to opaque black and renders every batch of list.
func (r *Renderer) Draw(ctx context.Context, target ImageHandle, list *DrawCommandList) error {
	img, err := r.Image(target)
	if err != nil {
		return err
	}
	img.Fill(metadata.BLACK.Vec4())

	base := metadata.PushConstants{Transform: metadata.PixelTransform(img.Width, img.Height)}
	for _, b := range list.Batches() {
		var scissor image.Rectangle
		if b.HasScissor {
			scissor = toRectangle(b.Scissor).Intersect(img.Bounds())
			if scissor.Empty() {
				continue
			}
		}
		pc := base
		var texture *metadata.Image
		if b.Textured() {
			if b.Texture == target {
				return fmt.Errorf("%w: image %s is both texture and target", core.ErrInvalidHandle, target)
			}
			if texture, err = r.Image(b.Texture); err != nil {
				return err
			}
			pc.Flags.UseTexture = 1
		}
		if err := r.backend.DrawBatch(ctx, img, b, pc, texture, scissor); err != nil {
			return err
		}
	}
	return nil
}

// GetImagePixels reads an image back as 8-bit colour clamped to [0, 1].
func (r *Renderer) GetImagePixels(h ImageHandle) (*image.NRGBA, error) {
	img, err := r.Image(h)
	if err != nil {
		return nil, err
	}
	out := image.NewNRGBA(img.Bounds())
	for y := uint32(0); y < img.Height; y++ {
		for x := uint32(0); x < img.Width; x++ {
			t := img.Texel(x, y)
			out.SetNRGBA(int(x), int(y), color.NRGBA{R: unorm8(t.X), G: unorm8(t.Y), B: unorm8(t.Z), A: unorm8(t.W)})
		}
	}
	return out, nil
}

func unorm8(v float32) uint8 {
	return uint8(math.Clamp(v, 0, 1)*255 + 0.5)
}

// toRectangle keeps an inverted rect empty instead of canonicalizing it.
func toRectangle(r metadata.Rect) image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(int(r.Left), int(r.Top)),
		Max: image.Pt(int(r.Right), int(r.Bottom)),
	}
}

func fromRectangle(r image.Rectangle) metadata.Rect {
	return metadata.Rect{Left: int16(r.Min.X), Top: int16(r.Min.Y), Right: int16(r.Max.X), Bottom: int16(r.Max.Y)}
}

// flatten places row-major samples where the kernel reads them. Under
// FlattenByHeight two pixels of a non-square window can share a slot and the
// later one wins.
func flatten(samples []uint32, extent metadata.Extent, channels uint32, order metadata.FlattenOrder) []uint32 {
	if order == metadata.FlattenByWidth {
		return samples
	}
	ext := math.UVec2{X: uint32(extent.Width), Y: uint32(extent.Height)}
	ch := uint64(channels)
	out := make([]uint32, order.RequiredSamples(ext, channels))
	for row := uint32(0); row < ext.Y; row++ {
		for col := uint32(0); col < ext.X; col++ {
			from := (uint64(row)*uint64(ext.X) + uint64(col)) * ch
			to := order.Pixel(col, row, ext) * ch
			copy(out[to:to+ch], samples[from:from+ch])
		}
	}
	return out
}
