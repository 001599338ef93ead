package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/fzipp/bmfont"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// BitmapFontLoader reads AngelCode .fnt descriptors and decodes their atlas
// pages, which are looked up next to the descriptor.
type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	resourceData, err := fl.importFNTFile(path)
	if err != nil {
		return nil, err
	}

	for _, page := range resourceData.Pages {
		pagePath := filepath.Join(filepath.Dir(path), page.File)
		f, err := os.Open(pagePath)
		if err != nil {
			return nil, fmt.Errorf("bitmap font %s: %w", path, err)
		}
		pixels, err := DecodeImage(f, &metadata.ImageResourceParams{})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("bitmap font %s page %d: %w", path, page.ID, err)
		}
		resourceData.PagePixels = append(resourceData.PagePixels, pixels)
	}

	return &metadata.Resource{
		Type:     metadata.ResourceTypeBitmapFont,
		Name:     resourceData.Data.Face,
		FullPath: path,
		DataSize: uint64(info.Size()),
		Data:     resourceData,
	}, nil
}

func (fl *BitmapFontLoader) Unload(resource *metadata.Resource) error {
	if data, ok := resource.Data.(*metadata.BitmapFontResourceData); ok && data != nil {
		data.Data.Glyphs = nil
		data.Data.Kernings = nil
		data.Pages = nil
		data.PagePixels = nil
	}
	resource.Data = nil
	resource.DataSize = 0
	resource.FullPath = ""
	return nil
}

func (fl *BitmapFontLoader) importFNTFile(path string) (*metadata.BitmapFontResourceData, error) {
	desc, err := bmfont.LoadDescriptor(path)
	if err != nil {
		return nil, err
	}

	outData := &metadata.BitmapFontResourceData{
		Data: &metadata.FontData{
			Face:       desc.Info.Face,
			Size:       uint32(desc.Info.Size),
			LineHeight: int32(desc.Common.LineHeight),
			Baseline:   int32(desc.Common.Base),
			AtlasSizeX: int32(desc.Common.ScaleW),
			AtlasSizeY: int32(desc.Common.ScaleH),
			Glyphs:     make(map[rune]*metadata.FontGlyph, len(desc.Chars)),
			Kernings:   make(map[[2]rune]int16, len(desc.Kerning)),
		},
	}

	for _, p := range desc.Pages {
		outData.Pages = append(outData.Pages, &metadata.BitmapFontPage{ID: p.ID, File: p.File})
	}
	slices.SortFunc(outData.Pages, func(a, b *metadata.BitmapFontPage) int { return a.ID - b.ID })

	for _, g := range desc.Chars {
		outData.Data.Glyphs[g.ID] = &metadata.FontGlyph{
			Codepoint: g.ID,
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		}
	}

	for p, k := range desc.Kerning {
		outData.Data.Kernings[[2]rune{p.First, p.Second}] = int16(k.Amount)
	}

	if space, ok := outData.Data.Glyphs[' ']; ok {
		outData.Data.TabXAdvance = float32(space.XAdvance) * 4
	} else {
		outData.Data.TabXAdvance = float32(outData.Data.Size) * 4
	}

	return outData, nil
}
