package kernel

import (
	"context"
	"errors"
	"testing"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/systems"
)

var sentinel = math.Vec4{X: -1, Y: -1, Z: -1, W: -1}

func mustLayout(t *testing.T, n, rangeMax uint32) metadata.ChannelLayout {
	t.Helper()
	l, err := metadata.NewChannelLayout(n, rangeMax)
	if err != nil {
		t.Fatalf("NewChannelLayout(%d, %d) error = %v", n, rangeMax, err)
	}
	return l
}

func mustKernel(t *testing.T, l metadata.ChannelLayout, opts ...Option) *Kernel {
	t.Helper()
	k, err := New(l, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return k
}

func filledImage(w, h uint32) *metadata.Image {
	img := metadata.NewImage(w, h)
	img.Fill(sentinel)
	return img
}

func region(w, h, ox, oy uint32) metadata.CopyRegion {
	return metadata.CopyRegion{
		SourceExtent: math.UVec2{X: w, Y: h},
		TargetOffset: math.UVec2{X: ox, Y: oy},
	}
}

func TestNewRejectsZeroLayout(t *testing.T) {
	if _, err := New(metadata.ChannelLayout{}); !errors.Is(err, core.ErrInvalidChannelCount) {
		t.Errorf("New(zero layout) error = %v, want ErrInvalidChannelCount", err)
	}
}

func TestGroupCount(t *testing.T) {
	tests := []struct {
		extent math.UVec2
		want   math.UVec2
	}{
		{math.UVec2{X: 0, Y: 0}, math.UVec2{X: 0, Y: 0}},
		{math.UVec2{X: 1, Y: 1}, math.UVec2{X: 1, Y: 1}},
		{math.UVec2{X: 32, Y: 32}, math.UVec2{X: 1, Y: 1}},
		{math.UVec2{X: 33, Y: 64}, math.UVec2{X: 2, Y: 2}},
		{math.UVec2{X: 100, Y: 31}, math.UVec2{X: 4, Y: 1}},
	}
	for _, tt := range tests {
		if got := GroupCount(tt.extent); got != tt.want {
			t.Errorf("GroupCount(%v) = %v, want %v", tt.extent, got, tt.want)
		}
	}
}

func TestDispatchChannelRules(t *testing.T) {
	tests := []struct {
		name string
		n    uint32
		norm metadata.ChannelNormalization
		src  []uint32
		want math.Vec4
	}{
		{
			name: "three channels normalize all",
			n:    3, norm: metadata.NormalizeAll,
			src:  []uint32{10, 20, 30},
			want: math.Vec4{X: 10.0 / 255, Y: 20.0 / 255, Z: 30.0 / 255, W: 1},
		},
		{
			name: "three channels first only keeps raw secondaries",
			n:    3, norm: metadata.NormalizeFirstOnly,
			src:  []uint32{10, 20, 30},
			want: math.Vec4{X: 10.0 / 255, Y: 20, Z: 30, W: 1},
		},
		{
			name: "single channel defaults",
			n:    1,
			src:  []uint32{255},
			want: math.Vec4{X: 1, Y: 0, Z: 0, W: 1},
		},
		{
			name: "two channels default blue and alpha",
			n:    2, norm: metadata.NormalizeAll,
			src:  []uint32{0, 255},
			want: math.Vec4{X: 0, Y: 1, Z: 0, W: 1},
		},
		{
			name: "values above range are not clamped",
			n:    1,
			src:  []uint32{510},
			want: math.Vec4{X: 2, Y: 0, Z: 0, W: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := mustKernel(t, mustLayout(t, tt.n, 255), WithNormalization(tt.norm))
			dst := filledImage(1, 1)
			if err := k.Dispatch(context.Background(), region(1, 1, 0, 0), tt.src, dst); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if got := dst.Texel(0, 0); !got.Compare(tt.want, 1e-6) {
				t.Errorf("texel = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDispatchFourChannelsReadsConsecutiveSamples(t *testing.T) {
	k := mustKernel(t, mustLayout(t, 4, 255))
	dst := filledImage(2, 1)
	src := []uint32{0, 1, 2, 3, 51, 5, 6, 7}
	if err := k.Dispatch(context.Background(), region(2, 1, 0, 0), src, dst); err != nil {
		t.Fatal(err)
	}
	want := math.Vec4{X: 51.0 / 255, Y: 5, Z: 6, W: 7}
	if got := dst.Texel(1, 0); !got.Compare(want, 1e-6) {
		t.Errorf("texel(1,0) = %+v, want %+v", got, want)
	}
}

func TestDispatchWritesExactlyTheTargetWindow(t *testing.T) {
	js, err := systems.NewJobSystem(4, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	const w, h, ox, oy = 37, 33, 5, 3
	const rangeMax = 1 << 20
	src := make([]uint32, w*h)
	for i := range src {
		src[i] = uint32(i)
	}
	k := mustKernel(t, mustLayout(t, 1, rangeMax), WithJobSystem(js))
	dst := filledImage(50, 40)
	if err := k.Dispatch(context.Background(), region(w, h, ox, oy), src, dst); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	for y := uint32(0); y < dst.Height; y++ {
		for x := uint32(0); x < dst.Width; x++ {
			got := dst.Texel(x, y)
			inside := x >= ox && x < ox+w && y >= oy && y < oy+h
			if !inside {
				if got != sentinel {
					t.Fatalf("texel(%d,%d) outside the window was written: %+v", x, y, got)
				}
				continue
			}
			i := (y-oy)*w + (x - ox)
			want := math.Vec4{X: float32(i) / rangeMax, W: 1}
			if got != want {
				t.Fatalf("texel(%d,%d) = %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func TestDispatchFlattenOrders(t *testing.T) {
	const w, h = 3, 2
	src := []uint32{0, 1, 2, 3, 4, 5}
	tests := []struct {
		order  metadata.FlattenOrder
		stride uint32
	}{
		{metadata.FlattenByWidth, w},
		{metadata.FlattenByHeight, h},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			k := mustKernel(t, mustLayout(t, 1, 255), WithFlattenOrder(tt.order))
			dst := filledImage(w, h)
			if err := k.Dispatch(context.Background(), region(w, h, 0, 0), src, dst); err != nil {
				t.Fatal(err)
			}
			for row := uint32(0); row < h; row++ {
				for col := uint32(0); col < w; col++ {
					want := float32(src[row*tt.stride+col]) / 255
					if got := dst.Texel(col, row).X; got != want {
						t.Errorf("texel(%d,%d).X = %v, want %v", col, row, got, want)
					}
				}
			}
		})
	}
}

func TestDispatchIsIdempotent(t *testing.T) {
	k := mustKernel(t, mustLayout(t, 3, 255), WithNormalization(metadata.NormalizeAll))
	src := make([]uint32, 40*40*3)
	for i := range src {
		src[i] = uint32(i % 256)
	}
	first := filledImage(40, 40)
	r := region(40, 40, 0, 0)
	if err := k.Dispatch(context.Background(), r, src, first); err != nil {
		t.Fatal(err)
	}
	second := first.Clone()
	if err := k.Dispatch(context.Background(), r, src, second); err != nil {
		t.Fatal(err)
	}
	for i := range first.Pix {
		if first.Pix[i] != second.Pix[i] {
			t.Fatalf("Pix[%d] changed between dispatches: %v != %v", i, first.Pix[i], second.Pix[i])
		}
	}
}

func TestDispatchEmptyExtent(t *testing.T) {
	k := mustKernel(t, metadata.DefaultChannelLayout())
	dst := filledImage(4, 4)
	if err := k.Dispatch(context.Background(), region(0, 0, 0, 0), nil, dst); err != nil {
		t.Fatalf("Dispatch(empty) error = %v", err)
	}
	for i, v := range dst.Pix {
		if v != -1 {
			t.Fatalf("Pix[%d] = %v after empty dispatch", i, v)
		}
	}
}

func TestDispatchValidation(t *testing.T) {
	k := mustKernel(t, metadata.DefaultChannelLayout())
	tests := []struct {
		name   string
		region metadata.CopyRegion
		src    []uint32
		dst    *metadata.Image
		want   error
	}{
		{"nil target", region(1, 1, 0, 0), make([]uint32, 3), nil, core.ErrNilTarget},
		{"target too small", region(2, 2, 1, 0), make([]uint32, 12), metadata.NewImage(2, 2), core.ErrTargetTooSmall},
		{"source too short", region(2, 2, 0, 0), make([]uint32, 11), metadata.NewImage(2, 2), core.ErrSourceTooShort},
		{"ok", region(2, 2, 0, 0), make([]uint32, 12), metadata.NewImage(2, 2), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := k.Dispatch(context.Background(), tt.region, tt.src, tt.dst)
			if !errors.Is(err, tt.want) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInvokeOutsideExtentIsInactive(t *testing.T) {
	k := mustKernel(t, metadata.DefaultChannelLayout())
	dst := filledImage(4, 4)
	k.Invoke(math.UVec2{X: 2, Y: 0}, region(2, 2, 0, 0), make([]uint32, 12), dst)
	k.Invoke(math.UVec2{X: 0, Y: 2}, region(2, 2, 0, 0), make([]uint32, 12), dst)
	for i, v := range dst.Pix {
		if v != -1 {
			t.Fatalf("Pix[%d] = %v, inactive worker wrote", i, v)
		}
	}
}

func TestDispatchHonoursCancellation(t *testing.T) {
	k := mustKernel(t, mustLayout(t, 1, 255))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := k.Dispatch(ctx, region(64, 64, 0, 0), make([]uint32, 64*64), metadata.NewImage(64, 64))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Dispatch() error = %v, want context.Canceled", err)
	}
}
