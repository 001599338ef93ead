package metadata

/** @brief A single glyph of a bitmap font atlas. */
type FontGlyph struct {
	Codepoint rune
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	PageID    uint8
}

// Source returns the glyph's rectangle in the atlas page.
func (g *FontGlyph) Source() Rect {
	return NewRect(int16(g.X), int16(g.Y), int16(g.Width), int16(g.Height))
}

type FontKerning struct {
	Codepoint0 rune
	Codepoint1 rune
	Amount     int16
}

type BitmapFontPage struct {
	ID   int
	File string
}

/**
 * @brief Metrics and glyph table of a loaded bitmap font.
 */
type FontData struct {
	Face       string
	Size       uint32
	LineHeight int32
	Baseline   int32
	AtlasSizeX int32
	AtlasSizeY int32
	Glyphs     map[rune]*FontGlyph
	Kernings   map[[2]rune]int16
	/** @brief Advance used for '\t', four spaces wide when the font has a space glyph. */
	TabXAdvance float32
}

// Glyph returns the glyph of r, falling back to '?' and then nil.
func (fd *FontData) Glyph(r rune) *FontGlyph {
	if g, ok := fd.Glyphs[r]; ok {
		return g
	}
	return fd.Glyphs['?']
}

// Kerning returns the kerning amount between two consecutive codepoints.
func (fd *FontData) Kerning(first, second rune) int16 {
	return fd.Kernings[[2]rune{first, second}]
}

/**
 * @brief The result of loading a bitmap font: metrics plus the decoded atlas pages.
 */
type BitmapFontResourceData struct {
	Data  *FontData
	Pages []*BitmapFontPage
	/** @brief Decoded atlas pages, indexed like Pages. */
	PagePixels []*PixelBuffer
}
