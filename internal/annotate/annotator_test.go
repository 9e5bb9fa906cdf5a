package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/creditscan/screening-worker/internal/ocr"
)

func whiteCanvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func rectSpan(x0, y0, x1, y1 int) ocr.TextSpan {
	return ocr.TextSpan{
		Text: "张伟",
		Position: ocr.Polygon{
			{X: float64(x0), Y: float64(y0)},
			{X: float64(x1), Y: float64(y0)},
			{X: float64(x1), Y: float64(y1)},
			{X: float64(x0), Y: float64(y1)},
		},
		Confidence: 0.9,
	}
}

func TestAnnotateNoSpansLeavesPixelsUntouched(t *testing.T) {
	src := whiteCanvas(60, 40)
	out := NewAnnotator().Annotate(src, nil, "张伟")

	if out == src {
		t.Fatal("annotated image must be a copy, not the source")
	}
	if len(out.Pix) != len(src.Pix) {
		t.Fatalf("pixel buffer length %d, want %d", len(out.Pix), len(src.Pix))
	}
	for i := range out.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel %d changed with no spans to draw", i)
		}
	}
}

func TestAnnotateDrawsHighlightBox(t *testing.T) {
	// 100x100 source: scale = 1, so padding is (10, 5) and stroke is 2.
	// A span covering (20,10)-(40,20) expands to the rect (10,5)-(50,25).
	src := whiteCanvas(100, 100)
	out := NewAnnotator().Annotate(src, []ocr.TextSpan{rectSpan(20, 10, 40, 20)}, "张伟")

	red := color.RGBA{R: 255, A: 255}
	edgePoints := []image.Point{
		{X: 10, Y: 5},  // top-left corner
		{X: 49, Y: 5},  // top-right corner
		{X: 30, Y: 6},  // inside top stroke
		{X: 10, Y: 24}, // bottom-left corner
		{X: 11, Y: 15}, // inside left stroke
	}
	for _, p := range edgePoints {
		if got := out.RGBAAt(p.X, p.Y); got != red {
			t.Fatalf("pixel (%d,%d) = %v, want highlight %v", p.X, p.Y, got, red)
		}
	}

	interiorPoints := []image.Point{
		{X: 30, Y: 15}, // box interior stays untouched
		{X: 5, Y: 5},   // outside the box
		{X: 80, Y: 80},
	}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, p := range interiorPoints {
		if got := out.RGBAAt(p.X, p.Y); got != white {
			t.Fatalf("pixel (%d,%d) = %v, want untouched white", p.X, p.Y, got)
		}
	}
}

func TestAnnotateDoesNotMutateSource(t *testing.T) {
	src := whiteCanvas(100, 100)
	NewAnnotator().Annotate(src, []ocr.TextSpan{rectSpan(20, 10, 40, 20)}, "张伟")

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if got := src.RGBAAt(10, 5); got != white {
		t.Fatalf("source pixel mutated: %v", got)
	}
}

func TestAnnotateClipsBoxAtImageEdge(t *testing.T) {
	// A span hugging the top-left corner pushes the padded rect past the
	// origin; drawing must clip instead of indexing out of bounds.
	src := whiteCanvas(100, 100)
	out := NewAnnotator().Annotate(src, []ocr.TextSpan{rectSpan(0, 0, 15, 8)}, "张伟")

	// The padded rect is (-10,-5)-(25,13): the top and left strokes fall
	// wholly outside and vanish; the bottom and right strokes clip to the
	// visible area.
	red := color.RGBA{R: 255, A: 255}
	if got := out.RGBAAt(0, 12); got != red {
		t.Fatalf("clipped bottom stroke pixel = %v, want highlight", got)
	}
	if got := out.RGBAAt(24, 0); got != red {
		t.Fatalf("clipped right stroke pixel = %v, want highlight", got)
	}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if got := out.RGBAAt(0, 0); got != white {
		t.Fatalf("corner outside any visible stroke = %v, want untouched", got)
	}
}

func TestAnnotateSkipsMalformedSpan(t *testing.T) {
	src := whiteCanvas(60, 40)
	malformed := ocr.TextSpan{
		Text:     "张伟",
		Position: ocr.Polygon{{X: 1, Y: 1}, {X: 5, Y: 5}},
	}
	out := NewAnnotator().Annotate(src, []ocr.TextSpan{malformed}, "张伟")

	for i := range out.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel %d changed for a span with too few points", i)
		}
	}
}
