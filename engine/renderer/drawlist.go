package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Indices are 16 bit, so a single list never holds more than this.
const (
	MAX_VERTICES = 65536
	MAX_INDICES  = 65536
)

/**
 * @brief A run of consecutive commands that share texture and scissor and can
 * be submitted with one draw call.
 */
type DrawBatch struct {
	/** @brief The sampled image, NilImage for solid geometry. */
	Texture ImageHandle
	/** @brief Clip rectangle, only valid when HasScissor is set. */
	Scissor    metadata.Rect
	HasScissor bool
	Vertices   []metadata.IntVertex
	Indices    []uint16
}

func (b *DrawBatch) Textured() bool {
	return b.Texture != NilImage
}

/**
 * @brief A bitmap font ready for drawing: its metrics and one image per atlas
 * page, indexed by page id.
 */
type Font struct {
	Data  *metadata.FontData
	Pages []ImageHandle
}

// DrawCommandList records UI draw commands as batched triangle lists.
type DrawCommandList struct {
	batches     []*DrawBatch
	scissor     metadata.Rect
	hasScissor  bool
	numVertices int
	numIndices  int
}

func NewDrawCommandList() *DrawCommandList {
	return &DrawCommandList{}
}

// Clear drops every recorded command and the current scissor.
func (l *DrawCommandList) Clear() {
	l.batches = nil
	l.scissor = metadata.Rect{}
	l.hasScissor = false
	l.numVertices = 0
	l.numIndices = 0
}

// Scissor clips every following command to rect.
func (l *DrawCommandList) Scissor(rect metadata.Rect) {
	l.scissor = rect
	l.hasScissor = true
}

// ResetScissor lets following commands cover the whole target again.
func (l *DrawCommandList) ResetScissor() {
	l.scissor = metadata.Rect{}
	l.hasScissor = false
}

func (l *DrawCommandList) Batches() []*DrawBatch {
	return l.batches
}

func (l *DrawCommandList) NumVertices() int {
	return l.numVertices
}

func (l *DrawCommandList) NumIndices() int {
	return l.numIndices
}

// DrawRect fills rect with a solid colour.
func (l *DrawCommandList) DrawRect(rect metadata.Rect, color metadata.Color) error {
	if rect.IsEmpty() {
		return nil
	}
	if err := l.reserve(1); err != nil {
		return err
	}
	l.appendQuad(l.batchFor(NilImage), rect, color, metadata.Rect{})
	return nil
}

// DrawImage maps the texel window src of image onto rect, tinted by tint.
func (l *DrawCommandList) DrawImage(rect metadata.Rect, image ImageHandle, src metadata.Rect, tint metadata.Color) error {
	if rect.IsEmpty() {
		return nil
	}
	if image == NilImage {
		return fmt.Errorf("%w: draw image without an image", core.ErrInvalidHandle)
	}
	if err := l.reserve(1); err != nil {
		return err
	}
	l.appendQuad(l.batchFor(image), rect, tint, src)
	return nil
}

// DrawText lays text out from origin, the top-left corner of the first line,
// and draws one textured quad per visible glyph.
func (l *DrawCommandList) DrawText(font *Font, origin metadata.Point, text string, color metadata.Color) error {
	if font == nil || font.Data == nil {
		return fmt.Errorf("%w: draw text without a font", core.ErrInvalidHandle)
	}

	type placed struct {
		glyph *metadata.FontGlyph
		rect  metadata.Rect
	}
	var quads []placed

	x, y := int32(origin.X), int32(origin.Y)
	var prev rune
	for _, r := range text {
		switch r {
		case '\n':
			x = int32(origin.X)
			y += font.Data.LineHeight
			prev = 0
			continue
		case '\t':
			x += int32(font.Data.TabXAdvance)
			prev = 0
			continue
		}
		g := font.Data.Glyph(r)
		if g == nil {
			continue
		}
		if prev != 0 {
			x += int32(font.Data.Kerning(prev, g.Codepoint))
		}
		if g.Width > 0 && g.Height > 0 {
			if int(g.PageID) >= len(font.Pages) {
				return fmt.Errorf("%w: glyph %q uses missing font page %d", core.ErrInvalidHandle, g.Codepoint, g.PageID)
			}
			rect := metadata.NewRect(int16(x+int32(g.XOffset)), int16(y+int32(g.YOffset)), int16(g.Width), int16(g.Height))
			quads = append(quads, placed{glyph: g, rect: rect})
		}
		x += int32(g.XAdvance)
		prev = g.Codepoint
	}

	// all or nothing
	if err := l.reserve(len(quads)); err != nil {
		return err
	}
	for _, q := range quads {
		l.appendQuad(l.batchFor(font.Pages[q.glyph.PageID]), q.rect, color, q.glyph.Source())
	}
	return nil
}

func (l *DrawCommandList) reserve(quads int) error {
	if l.numVertices+4*quads > MAX_VERTICES || l.numIndices+6*quads > MAX_INDICES {
		return fmt.Errorf("%w: %d vertices and %d indices recorded", core.ErrTooManyVertices, l.numVertices, l.numIndices)
	}
	return nil
}

// batchFor returns the last batch when it matches texture and scissor,
// otherwise it opens a new one.
func (l *DrawCommandList) batchFor(texture ImageHandle) *DrawBatch {
	if n := len(l.batches); n > 0 {
		last := l.batches[n-1]
		if last.Texture == texture && last.HasScissor == l.hasScissor && last.Scissor == l.scissor {
			return last
		}
	}
	b := &DrawBatch{Texture: texture, Scissor: l.scissor, HasScissor: l.hasScissor}
	l.batches = append(l.batches, b)
	return b
}

func (l *DrawCommandList) appendQuad(b *DrawBatch, rect metadata.Rect, color metadata.Color, src metadata.Rect) {
	base := uint16(len(b.Vertices))
	b.Vertices = append(b.Vertices,
		metadata.NewTexturedVertex(rect.TopLeft(), color, src.TopLeft()),
		metadata.NewTexturedVertex(rect.TopRight(), color, src.TopRight()),
		metadata.NewTexturedVertex(rect.BottomRight(), color, src.BottomRight()),
		metadata.NewTexturedVertex(rect.BottomLeft(), color, src.BottomLeft()),
	)
	b.Indices = append(b.Indices, base, base+1, base+2, base, base+2, base+3)
	l.numVertices += 4
	l.numIndices += 6
}
