package loaders

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeImageLayouts(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(1, 0, color.Gray{Y: 200})

	opaque := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			opaque.SetNRGBA(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(20 * y), B: 30, A: 255})
			translucent.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
		}
	}

	deep := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	deep.SetNRGBA64(0, 0, color.NRGBA64{R: 0x1234, G: 0x5678, B: 0x9abc, A: 0x8000})

	tests := []struct {
		name    string
		img     image.Image
		params  *metadata.ImageResourceParams
		layout  metadata.Layout
		samples []uint32
	}{
		{"gray", gray, nil, metadata.LayoutR8, []uint32{0, 200}},
		{"opaque rgb", opaque, nil, metadata.LayoutRGB8, []uint32{0, 0, 30, 10, 0, 30, 0, 20, 30, 10, 20, 30}},
		{"flipped", opaque, &metadata.ImageResourceParams{FlipY: true}, metadata.LayoutRGB8, []uint32{0, 20, 30, 10, 20, 30, 0, 0, 30, 10, 0, 30}},
		{"alpha", translucent, nil, metadata.LayoutRGBA8, []uint32{10, 20, 30, 128}},
		{"16 bit kept", deep, &metadata.ImageResourceParams{Keep16Bit: true}, metadata.LayoutRGBA16, []uint32{0x1234, 0x5678, 0x9abc, 0x8000}},
		{"16 bit reduced", deep, nil, metadata.LayoutRGBA8, []uint32{0x12, 0x56, 0x9a, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb, err := DecodeImage(bytes.NewReader(encodePNG(t, tt.img)), tt.params)
			if err != nil {
				t.Fatalf("DecodeImage() error = %v", err)
			}
			if pb.Layout() != tt.layout {
				t.Fatalf("layout = %s, want %s", pb.Layout(), tt.layout)
			}
			got := pb.Samples()
			for i, want := range tt.samples {
				if got[i] != want {
					t.Errorf("sample[%d] = %d, want %d", i, got[i], want)
				}
			}
		})
	}
}

func TestDecodeImageBMP(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	pb, err := DecodeImage(bytes.NewReader(buf.Bytes()), nil)
	if err != nil {
		t.Fatalf("DecodeImage(bmp) error = %v", err)
	}
	if pb.Extent() != (metadata.Extent{Width: 3, Height: 2}) {
		t.Errorf("extent = %+v", pb.Extent())
	}
}

func TestDecodeImageRejects(t *testing.T) {
	wide := encodePNG(t, image.NewGray(image.Rect(0, 0, MAX_IMAGE_WIDTH+1, 1)))
	if _, err := DecodeImage(bytes.NewReader(wide), nil); !errors.Is(err, core.ErrImageTooLarge) {
		t.Errorf("DecodeImage(too wide) error = %v, want ErrImageTooLarge", err)
	}
	if _, err := DecodeImage(strings.NewReader("not an image"), nil); !errors.Is(err, core.ErrUnsupportedImage) {
		t.Errorf("DecodeImage(garbage) error = %v, want ErrUnsupportedImage", err)
	}
}

func TestImageLoader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pixel.png", encodePNG(t, image.NewGray(image.Rect(0, 0, 4, 3))))
	loader := &ImageLoader{}
	res, err := loader.Load(path, metadata.ResourceTypeImage, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	data := res.Data.(*metadata.ImageResourceData)
	if data.Pixels.Extent() != (metadata.Extent{Width: 4, Height: 3}) {
		t.Errorf("extent = %+v", data.Pixels.Extent())
	}
	if err := loader.Unload(res); err != nil || res.Data != nil {
		t.Errorf("Unload() = %v, data %v", err, res.Data)
	}
}

// withSRGBChunk inserts an sRGB chunk right after the IHDR chunk of a PNG.
func withSRGBChunk(t *testing.T, encoded []byte) []byte {
	t.Helper()
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if len(encoded) < ihdrEnd || string(encoded[12:16]) != "IHDR" {
		t.Fatal("unexpected PNG layout")
	}
	chunk := []byte{0, 0, 0, 1, 's', 'R', 'G', 'B', 0}
	crc := make([]byte, 4)
	binary.BigEndian.PutUint32(crc, crc32.ChecksumIEEE(chunk[4:]))
	out := append([]byte{}, encoded[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, crc...)
	return append(out, encoded[ihdrEnd:]...)
}

func TestImageLoaderColorSpace(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	var bmpBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, img); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"plain.png", encodePNG(t, img), false},
		{"srgb.png", withSRGBChunk(t, encodePNG(t, img)), true},
		{"plain.bmp", bmpBuf.Bytes(), false},
	}
	loader := &ImageLoader{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := loader.Load(writeFile(t, dir, tt.name, tt.data), metadata.ResourceTypeImage, nil)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := res.Data.(*metadata.ImageResourceData).SRGB; got != tt.want {
				t.Errorf("SRGB = %v, want %v", got, tt.want)
			}
		})
	}

	truncated := encodePNG(t, img)[:20]
	if _, err := DeclaresSRGB(bytes.NewReader(truncated)); !errors.Is(err, core.ErrUnsupportedImage) {
		t.Errorf("DeclaresSRGB(truncated) error = %v", err)
	}
}

type testConfig struct {
	Application struct {
		Name string `toml:"name"`
	} `toml:"application"`
	Kernel struct {
		NumChannels uint32 `toml:"num_channels"`
	} `toml:"kernel"`
}

func TestConfigLoader(t *testing.T) {
	dir := t.TempDir()
	loader := &ConfigLoader{}

	good := writeFile(t, dir, "good.toml", []byte("[application]\nname = \"demo\"\n\n[kernel]\nnum_channels = 4\n"))
	var cfg testConfig
	if _, err := loader.Load(good, metadata.ResourceTypeConfig, &cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Application.Name != "demo" || cfg.Kernel.NumChannels != 4 {
		t.Errorf("decoded %+v", cfg)
	}

	unknown := writeFile(t, dir, "unknown.toml", []byte("[kernel]\nchannels = 4\n"))
	if _, err := loader.Load(unknown, metadata.ResourceTypeConfig, &testConfig{}); err == nil {
		t.Error("expected an error for an unknown key")
	}

	broken := writeFile(t, dir, "broken.toml", []byte("[kernel\n"))
	if _, err := loader.Load(broken, metadata.ResourceTypeConfig, &testConfig{}); err == nil {
		t.Error("expected an error for malformed TOML")
	}
}

func TestEvaluateScene(t *testing.T) {
	src := `
clear()
scissor(0, 0, WIDTH, HEIGHT)
for i = 0, 1 do
  rect(i * 10, 5, 8, 8, 1, 0, 0)
end
image("logo", 1, 2, 3, 4, 5, 6, 7, 8)
text("mono", 4, 20, "hi " .. FRAME, 0, 1, 0, 0.5)
`
	scene, err := EvaluateScene(context.Background(), "demo", src, &metadata.SceneParams{Width: 64, Height: 32, Frame: 7})
	if err != nil {
		t.Fatalf("EvaluateScene() error = %v", err)
	}
	kinds := []metadata.SceneCommandKind{
		metadata.SceneCommandClear, metadata.SceneCommandScissor,
		metadata.SceneCommandRect, metadata.SceneCommandRect,
		metadata.SceneCommandImage, metadata.SceneCommandText,
	}
	if len(scene.Commands) != len(kinds) {
		t.Fatalf("got %d commands, want %d", len(scene.Commands), len(kinds))
	}
	for i, k := range kinds {
		if scene.Commands[i].Kind != k {
			t.Errorf("command %d = %s, want %s", i, scene.Commands[i].Kind, k)
		}
	}
	if got := scene.Commands[1].Rect; got != metadata.NewRect(0, 0, 64, 32) {
		t.Errorf("scissor = %+v", got)
	}
	if got := scene.Commands[3]; got.Rect != metadata.NewRect(10, 5, 8, 8) || got.Color != metadata.RED {
		t.Errorf("second rect = %+v", got)
	}
	if got := scene.Commands[4]; got.Image != "logo" || got.Source != metadata.NewRect(5, 6, 7, 8) {
		t.Errorf("image = %+v", got)
	}
	if got := scene.Commands[5]; got.Text != "hi 7" || got.Font != "mono" || got.Color.A != 0.5 {
		t.Errorf("text = %+v", got)
	}
}

func TestEvaluateSceneErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "rect(("},
		{"out of range", "rect(40000, 0, 1, 1, 1, 1, 1)"},
		{"negative size", "rect(0, 0, -1, 1, 1, 1, 1)"},
		{"missing colour", "rect(0, 0, 1, 1)"},
		{"sandboxed", "dofile('/etc/passwd')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EvaluateScene(context.Background(), tt.name, tt.src, &metadata.SceneParams{}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSceneLoaderTimeout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "spin.lua", []byte("while true do end"))
	loader := &SceneLoader{Timeout: 50 * time.Millisecond}
	if _, err := loader.Load(path, metadata.ResourceTypeScene, nil); err == nil {
		t.Error("expected the endless script to be cancelled")
	}
}

const testFont = `info face="Test" size=16 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=18 base=14 scaleW=16 scaleH=16 pages=1 packed=0 alphaChnl=0 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="test_0.png"
chars count=2
char id=65   x=0     y=0     width=8     height=10    xoffset=0     yoffset=4     xadvance=9     page=0  chnl=15
char id=32   x=8     y=0     width=0     height=0     xoffset=0     yoffset=0     xadvance=4     page=0  chnl=15
kernings count=1
kerning first=65  second=65  amount=-1
`

func TestBitmapFontLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_0.png", encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 16, 16))))
	path := writeFile(t, dir, "test.fnt", []byte(testFont))

	loader := &BitmapFontLoader{}
	res, err := loader.Load(path, metadata.ResourceTypeBitmapFont, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	data := res.Data.(*metadata.BitmapFontResourceData)
	font := data.Data
	if font.Face != "Test" || font.LineHeight != 18 || font.Baseline != 14 {
		t.Errorf("font metrics = %+v", font)
	}
	a := font.Glyph('A')
	if a == nil || a.Width != 8 || a.XAdvance != 9 || a.YOffset != 4 {
		t.Fatalf("glyph A = %+v", a)
	}
	if got := font.Kerning('A', 'A'); got != -1 {
		t.Errorf("kerning = %d, want -1", got)
	}
	if font.TabXAdvance != 16 {
		t.Errorf("tab advance = %v, want 16", font.TabXAdvance)
	}
	if len(data.PagePixels) != 1 || data.PagePixels[0].Extent() != (metadata.Extent{Width: 16, Height: 16}) {
		t.Errorf("pages = %+v", data.PagePixels)
	}
}

func TestShaderModuleLoader(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "ui.spv", []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	loader := &ShaderModuleLoader{}
	res, err := loader.Load(good, metadata.ResourceTypeShaderModule, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	words := res.Data.([]uint32)
	if res.Name != "ui" || len(words) != 2 || words[0] != 0x07230203 || words[1] != 0x00010000 {
		t.Errorf("resource = %+v", res)
	}

	for name, data := range map[string][]byte{
		"short.spv": {0x03, 0x02},
		"magic.spv": {0xde, 0xad, 0xbe, 0xef},
	} {
		if _, err := loader.Load(writeFile(t, dir, name, data), metadata.ResourceTypeShaderModule, nil); err == nil {
			t.Errorf("Load(%s) expected an error", name)
		}
	}
}
