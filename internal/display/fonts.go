package display

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"
)

// Size tiers 1-4 come from the command language, 5 and 6 are used by presets
const (
	MinTier = 1
	MaxTier = 6
)

// tierHeights is the line height in pixels of each size tier
var tierHeights = [MaxTier + 1]int{0, 6, 8, 11, 13, 16, 20}

// Fonts holds one face per size tier
type Fonts struct {
	faces   [MaxTier + 1]font.Face
	heights [MaxTier + 1]int
	ascents [MaxTier + 1]int
}

// LoadFonts builds faces from a TrueType file, or from the embedded Go Bold
// font when path is empty
func LoadFonts(path string) (*Fonts, error) {
	data := gobold.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font: %w", err)
		}
		data = b
	}
	ttf, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	f := &Fonts{}
	for tier := MinTier; tier <= MaxTier; tier++ {
		h := tierHeights[tier]
		face := truetype.NewFace(ttf, &truetype.Options{
			Size:    float64(h),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		f.faces[tier] = face
		f.heights[tier] = h
		f.ascents[tier] = capHeight(face)
	}
	return f, nil
}

// BasicFonts uses the fixed 7x13 bitmap face for every tier. It needs no
// font data at all.
func BasicFonts() *Fonts {
	f := &Fonts{}
	face := basicfont.Face7x13
	for tier := MinTier; tier <= MaxTier; tier++ {
		f.faces[tier] = face
		f.heights[tier] = face.Height
		f.ascents[tier] = face.Ascent
	}
	return f
}

// capHeight measures how far capitals reach above the baseline
func capHeight(face font.Face) int {
	b, _ := font.BoundString(face, "H")
	return (-b.Min.Y).Ceil()
}

func clampTier(tier int) int {
	switch {
	case tier < MinTier:
		return MinTier
	case tier > MaxTier:
		return MaxTier
	}
	return tier
}

// Face returns the face for a size tier
func (f *Fonts) Face(tier int) font.Face {
	return f.faces[clampTier(tier)]
}

// Height returns the line height of a size tier in pixels
func (f *Fonts) Height(tier int) int {
	return f.heights[clampTier(tier)]
}

// Measure returns the advance width of s in pixels
func (f *Fonts) Measure(tier int, s string) int {
	return font.MeasureString(f.Face(tier), s).Ceil()
}

// Draw renders s with its top-left corner at (x, top) and returns the
// advance width. Pixels outside dst are clipped.
func (f *Fonts) Draw(dst *image.RGBA, tier int, x, top int, s string, c color.Color) int {
	tier = clampTier(tier)
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: f.faces[tier],
		Dot:  fixed.P(x, top+f.ascents[tier]),
	}
	d.DrawString(s)
	return (d.Dot.X - fixed.I(x)).Ceil()
}
