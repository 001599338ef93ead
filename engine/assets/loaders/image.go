package loaders

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Images are addressed with 16-bit signed coordinates.
const (
	MAX_IMAGE_WIDTH  = 32767
	MAX_IMAGE_HEIGHT = 32767
)

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	typedParams, _ := params.(*metadata.ImageResourceParams)
	if typedParams == nil {
		typedParams = &metadata.ImageResourceParams{}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	pixels, err := DecodeImage(file, typedParams)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	srgb, err := DeclaresSRGB(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}

	return &metadata.Resource{
		Type:     metadata.ResourceTypeImage,
		Name:     info.Name(),
		FullPath: path,
		DataSize: uint64(info.Size()),
		Data:     &metadata.ImageResourceData{Pixels: pixels, SRGB: srgb},
	}, nil
}

func (il *ImageLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// DecodeImage decodes any registered image format into a PixelBuffer. The
// size is checked from the header before the pixels are decoded.
func DecodeImage(r io.ReadSeeker, params *metadata.ImageResourceParams) (*metadata.PixelBuffer, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedImage, err)
	}
	if cfg.Width > MAX_IMAGE_WIDTH || cfg.Height > MAX_IMAGE_HEIGHT {
		return nil, fmt.Errorf("%w: %s image is %dx%d", core.ErrImageTooLarge, format, cfg.Width, cfg.Height)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return ToPixelBuffer(img, params)
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// DeclaresSRGB reports whether r is a PNG carrying an sRGB chunk. Any other
// image has an unknown colour space and reports false.
func DeclaresSRGB(r io.Reader) (bool, error) {
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil || !bytes.Equal(sig, pngSignature) {
		return false, nil
	}
	var header [8]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return false, fmt.Errorf("%w: truncated PNG chunk", core.ErrUnsupportedImage)
		}
		length := binary.BigEndian.Uint32(header[:4])
		switch string(header[4:]) {
		case "sRGB":
			return true, nil
		// sRGB must precede the image data
		case "IDAT", "IEND":
			return false, nil
		}
		// chunk data plus its CRC
		if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
			return false, fmt.Errorf("%w: truncated PNG chunk", core.ErrUnsupportedImage)
		}
	}
}

type opaquer interface {
	Opaque() bool
}

// layoutFor picks the smallest layout that keeps the information of img.
func layoutFor(img image.Image, keep16 bool) metadata.Layout {
	deep := false
	gray := false
	switch img.(type) {
	case *image.Gray:
		gray = true
	case *image.Gray16:
		gray, deep = true, true
	case *image.RGBA64, *image.NRGBA64:
		deep = true
	}
	deep = deep && keep16

	opaque := false
	if o, ok := img.(opaquer); ok {
		opaque = o.Opaque()
	}

	var layout metadata.Layout
	switch {
	case gray:
		layout = metadata.LayoutR8
	case opaque:
		layout = metadata.LayoutRGB8
	default:
		layout = metadata.LayoutRGBA8
	}
	if deep {
		layout += metadata.LayoutR16
	}
	return layout
}

// ToPixelBuffer converts img to interleaved non-premultiplied samples.
func ToPixelBuffer(img image.Image, params *metadata.ImageResourceParams) (*metadata.PixelBuffer, error) {
	if params == nil {
		params = &metadata.ImageResourceParams{}
	}
	b := img.Bounds()
	if b.Dx() > MAX_IMAGE_WIDTH || b.Dy() > MAX_IMAGE_HEIGHT {
		return nil, fmt.Errorf("%w: %dx%d", core.ErrImageTooLarge, b.Dx(), b.Dy())
	}
	layout := layoutFor(img, params.Keep16Bit)

	src := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	channels := int(layout.Channels())
	deep := layout.BitDepth() == 16
	out := make([]byte, 0, b.Dx()*b.Dy()*layout.BytesPerPixel())
	for y := 0; y < b.Dy(); y++ {
		row := y
		if params.FlipY {
			row = b.Dy() - 1 - y
		}
		for x := 0; x < b.Dx(); x++ {
			i := src.PixOffset(x, row)
			// NRGBA64 stores each channel as two big endian bytes
			for c := 0; c < channels; c++ {
				hi, lo := src.Pix[i+2*c], src.Pix[i+2*c+1]
				if deep {
					out = append(out, hi, lo)
				} else {
					out = append(out, hi)
				}
			}
		}
	}
	extent := metadata.Extent{Width: int16(b.Dx()), Height: int16(b.Dy())}
	return metadata.NewPixelBuffer(layout, extent, out)
}
