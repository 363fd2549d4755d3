package imaging

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestParseFill(t *testing.T) {
	got, err := ParseFill("#FFEBA2")
	if err != nil {
		t.Fatalf("ParseFill failed: %v", err)
	}
	want := color.NRGBA{R: 0xFF, G: 0xEB, B: 0xA2, A: 0xFF}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	for _, bad := range []string{"", "FFEBA2", "#GGGGGG", "#FFF0"} {
		if _, err := ParseFill(bad); err == nil {
			t.Errorf("ParseFill(%q) should fail", bad)
		}
	}
}

func TestRenderCover(t *testing.T) {
	src := solidImage(100, 50, color.White)
	fill := color.NRGBA{R: 255, A: 255}

	out := RenderCover(src, []image.Rectangle{image.Rect(10, 10, 30, 20)}, fill, 1.0)

	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 50 {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
	if got := out.NRGBAAt(15, 15); got != fill {
		t.Errorf("inside mask: got %+v, want %+v", got, fill)
	}
	if got := out.NRGBAAt(5, 5); got.R != 255 || got.G != 255 || got.B != 255 {
		t.Errorf("outside mask should be untouched: got %+v", got)
	}
	if got := src.RGBAAt(15, 15); got.G != 255 {
		t.Error("source image must not be modified")
	}
}

func TestRenderCover_ClipsAndSkips(t *testing.T) {
	src := solidImage(20, 20, color.Black)
	fill := color.NRGBA{G: 255, A: 255}

	rects := []image.Rectangle{
		image.Rect(15, 15, 40, 40), // partially outside
		image.Rect(50, 50, 60, 60), // fully outside
		image.Rect(5, 5, 5, 10),    // empty
	}
	out := RenderCover(src, rects, fill, 1.0)

	if got := out.NRGBAAt(19, 19); got != fill {
		t.Errorf("clipped mask should still cover the overlap: got %+v", got)
	}
	if got := out.NRGBAAt(5, 7); got.G != 0 {
		t.Errorf("empty rect should draw nothing: got %+v", got)
	}
}

func TestRenderCover_Opacity(t *testing.T) {
	src := solidImage(10, 10, color.Black)
	fill := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	half := RenderCover(src, []image.Rectangle{image.Rect(0, 0, 10, 10)}, fill, 0.5)
	got := half.NRGBAAt(5, 5)
	if got.R < 120 || got.R > 135 {
		t.Errorf("half opacity should blend to mid gray, got %+v", got)
	}

	none := RenderCover(src, []image.Rectangle{image.Rect(0, 0, 10, 10)}, fill, -1)
	if got := none.NRGBAAt(5, 5); got.R != 0 {
		t.Errorf("negative opacity clamps to 0, got %+v", got)
	}
}

func TestPrepareForOCR(t *testing.T) {
	src := solidImage(8, 8, color.RGBA{R: 255, A: 255})
	gray := PrepareForOCR(src)
	if gray.Bounds() != src.Bounds() {
		t.Errorf("bounds changed: %v", gray.Bounds())
	}
	if y := gray.GrayAt(3, 3).Y; y == 0 || y == 255 {
		t.Errorf("red should map to an intermediate gray, got %d", y)
	}
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.png")
	if err := SavePNG(path, solidImage(12, 7, color.White)); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	cache := NewImageCache(1)
	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("saved file should load: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 7 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}

	if err := SavePNG(filepath.Join(t.TempDir(), "missing", "dir", "x.png"), solidImage(1, 1, color.White)); err == nil {
		t.Error("SavePNG should fail when the directory does not exist")
	}
	_ = os.Remove(path)
}
