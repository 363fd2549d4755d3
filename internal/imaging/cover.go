package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultCoverColor is the editor's default mask fill.
const DefaultCoverColor = "#FFEBA2"

// ParseFill parses a "#RRGGBB" colour for mask fills.
func ParseFill(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid cover color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// RenderCover draws each rect as a filled mask over a copy of img.
//
// Rects are 0-based from the image's top-left corner and are clipped to the
// image; empty rects are skipped. Opacity is clamped to [0, 1], where 1 hides
// the covered text completely. The source image is not modified.
func RenderCover(img image.Image, rects []image.Rectangle, fill color.Color, opacity float64) *image.NRGBA {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}

	out := imaging.Clone(img)
	frame := out.Bounds()
	for _, r := range rects {
		r = r.Intersect(frame)
		if r.Empty() {
			continue
		}
		mask := imaging.New(r.Dx(), r.Dy(), fill)
		out = imaging.Overlay(out, mask, r.Min, opacity)
	}
	return out
}

// PrepareForOCR converts an image to grayscale, which makes Tesseract's
// binarization more stable on coloured diagrams.
func PrepareForOCR(img image.Image) *image.Gray {
	return effect.Grayscale(img)
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
