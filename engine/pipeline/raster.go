package pipeline

import (
	"context"
	"fmt"
	"image"
	gomath "math"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Framebuffer tiles are TileSize×TileSize pixels and each is owned by a
// single worker during a draw.
const TileSize = 64

/**
 * @brief The per-draw state besides geometry.
 */
type DrawState struct {
	PushConstants metadata.PushConstants
	/** @brief The image bound at the texture slot, may be nil. */
	Texture *metadata.Image
	/** @brief Fragments outside Scissor are discarded. Empty means the whole target. */
	Scissor image.Rectangle
}

type screenVertex struct {
	x, y  float32
	color math.Vec4
	uv    math.Vec2
}

type triangle struct {
	v            [3]screenVertex
	area         float32
	minX, minY   int
	maxX, maxY   int
	ownsEdge     [3]bool
	edgeFunction [3]func(px, py float32) float32
}

// Draw renders an indexed triangle list into target with the given push
// constants and optional texture.
func (p *Pipeline[P]) Draw(ctx context.Context, target *metadata.Image, vertices []metadata.Vertex[P], indices []uint16, pc metadata.PushConstants, texture *metadata.Image) error {
	return p.DrawWithState(ctx, target, vertices, indices, DrawState{PushConstants: pc, Texture: texture})
}

// DrawWithState is Draw with an explicit scissor rectangle.
func (p *Pipeline[P]) DrawWithState(ctx context.Context, target *metadata.Image, vertices []metadata.Vertex[P], indices []uint16, state DrawState) error {
	if target == nil {
		return core.ErrNilTarget
	}
	for i, idx := range indices {
		if int(idx) >= len(vertices) {
			return fmt.Errorf("%w: indices[%d] = %d with %d vertices", core.ErrInvalidIndex, i, idx, len(vertices))
		}
	}
	if p.caps.TextureMode == TextureModeSampled && state.PushConstants.Flags.UseTexture != 0 && state.Texture == nil {
		return core.ErrMissingTexture
	}

	clip := target.Bounds()
	if !state.Scissor.Empty() {
		clip = clip.Intersect(state.Scissor)
	}
	if clip.Empty() || len(indices) < 3 {
		return nil
	}

	clock := core.NewClock()
	clock.Start()
	defer func() {
		clock.Stop()
		core.MetricsRecord(core.MetricStageDraw, clock.Elapsed())
	}()

	w, h := float32(target.Width), float32(target.Height)
	screen := make([]screenVertex, len(vertices))
	for i, v := range vertices {
		out := p.VertexStage(v, state.PushConstants)
		screen[i] = screenVertex{
			x:     (out.Clip.X*0.5 + 0.5) * w,
			y:     (out.Clip.Y*0.5 + 0.5) * h,
			color: out.Color,
			uv:    out.UV,
		}
	}

	tris := make([]triangle, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		if t, ok := setupTriangle(screen[indices[i]], screen[indices[i+1]], screen[indices[i+2]], clip); ok {
			tris = append(tris, t)
		}
	}
	if len(tris) == 0 {
		return nil
	}

	tiles := tilesOf(clip)
	if p.jobs == nil {
		for _, tile := range tiles {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.rasterizeTile(tile, tris, target, state)
		}
		return nil
	}
	work := make([]func(), len(tiles))
	for i, tile := range tiles {
		work[i] = func() { p.rasterizeTile(tile, tris, target, state) }
	}
	return p.jobs.Run(ctx, metadata.JOB_TYPE_DISPATCH, work)
}

func tilesOf(r image.Rectangle) []image.Rectangle {
	var out []image.Rectangle
	for y := r.Min.Y; y < r.Max.Y; y += TileSize {
		for x := r.Min.X; x < r.Max.X; x += TileSize {
			out = append(out, image.Rect(x, y, x+TileSize, y+TileSize).Intersect(r))
		}
	}
	return out
}

func edge(a, b screenVertex) func(px, py float32) float32 {
	return func(px, py float32) float32 {
		return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
	}
}

// owns breaks ties for pixel centres lying exactly on an edge. The predicate
// is antisymmetric so two triangles sharing an edge never both claim it.
func owns(a, b screenVertex) bool {
	dx, dy := b.x-a.x, b.y-a.y
	return dy > 0 || (dy == 0 && dx < 0)
}

func setupTriangle(v0, v1, v2 screenVertex, clip image.Rectangle) (triangle, bool) {
	area := edge(v0, v1)(v2.x, v2.y)
	if area == 0 || gomath.IsNaN(float64(area)) || gomath.IsInf(float64(area), 0) {
		return triangle{}, false
	}
	// No culling: both windings are drawn.
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}
	t := triangle{v: [3]screenVertex{v0, v1, v2}, area: area}
	t.edgeFunction = [3]func(px, py float32) float32{edge(v1, v2), edge(v2, v0), edge(v0, v1)}
	t.ownsEdge = [3]bool{owns(v1, v2), owns(v2, v0), owns(v0, v1)}

	t.minX = clampPixel(math.Min3(v0.x, v1.x, v2.x), clip.Min.X, clip.Max.X, gomath.Floor)
	t.minY = clampPixel(math.Min3(v0.y, v1.y, v2.y), clip.Min.Y, clip.Max.Y, gomath.Floor)
	t.maxX = clampPixel(math.Max3(v0.x, v1.x, v2.x), clip.Min.X, clip.Max.X, gomath.Ceil)
	t.maxY = clampPixel(math.Max3(v0.y, v1.y, v2.y), clip.Min.Y, clip.Max.Y, gomath.Ceil)
	if t.minX >= t.maxX || t.minY >= t.maxY {
		return triangle{}, false
	}
	return t, true
}

func clampPixel(v float32, lo, hi int, round func(float64) float64) int {
	f := math.Clamp(round(float64(v)), float64(lo), float64(hi))
	return int(f)
}

func (p *Pipeline[P]) rasterizeTile(tile image.Rectangle, tris []triangle, target *metadata.Image, state DrawState) {
	for ti := range tris {
		t := &tris[ti]
		x0, x1 := max(t.minX, tile.Min.X), min(t.maxX, tile.Max.X)
		y0, y1 := max(t.minY, tile.Min.Y), min(t.maxY, tile.Max.Y)
		for y := y0; y < y1; y++ {
			cy := float32(y) + 0.5
			for x := x0; x < x1; x++ {
				cx := float32(x) + 0.5
				var w [3]float32
				inside := true
				for e := 0; e < 3; e++ {
					w[e] = t.edgeFunction[e](cx, cy)
					if w[e] < 0 || (w[e] == 0 && !t.ownsEdge[e]) {
						inside = false
						break
					}
				}
				if !inside {
					continue
				}
				l0, l1, l2 := w[0]/t.area, w[1]/t.area, w[2]/t.area
				in := VertexOutput{
					Color: math.Barycentric(t.v[0].color, t.v[1].color, t.v[2].color, l0, l1, l2),
					UV: math.Vec2{
						X: l0*t.v[0].uv.X + l1*t.v[1].uv.X + l2*t.v[2].uv.X,
						Y: l0*t.v[0].uv.Y + l1*t.v[1].uv.Y + l2*t.v[2].uv.Y,
					},
				}
				target.SetTexel(uint32(x), uint32(y), p.FragmentStage(in, state.PushConstants, state.Texture))
			}
		}
	}
}
