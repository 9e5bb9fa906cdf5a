/**
 * Evidence annotation
 *
 * Draws highlight boxes over the spans where the matched name was found.
 * Pure geometry: each span's polygon is reduced to a bounding box, padded in
 * proportion to its size, and stroked in red on a copy of the source image.
 * Annotation is best-effort; a malformed span is logged and skipped.
 */

package annotate

import (
	"image"
	"image/color"
	"math"

	apperrors "github.com/creditscan/screening-worker/internal/errors"
	"github.com/creditscan/screening-worker/internal/imaging"
	"github.com/creditscan/screening-worker/internal/logging"
	"github.com/creditscan/screening-worker/internal/ocr"
)

var highlight = color.RGBA{R: 255, A: 255}

// Annotator draws evidence highlights on processed images.
type Annotator struct {
	logger *logging.Logger
}

func NewAnnotator() *Annotator {
	return &Annotator{logger: logging.NewLogger("annotate")}
}

// Annotate returns a copy of img with a padded highlight rectangle around
// every matched span. An empty span list yields a pixel-identical copy; the
// input image is never mutated.
func (a *Annotator) Annotate(img *image.RGBA, matchedSpans []ocr.TextSpan, matchedName string) *image.RGBA {
	out := imaging.Clone(img)

	for _, span := range matchedSpans {
		minX, minY, maxX, maxY, ok := span.Position.Bounds()
		if !ok {
			spanErr := apperrors.NewMalformedSpanError("", len(span.Position))
			a.logger.Warn("Skipping span with unsupported geometry",
				"name", matchedName, "text", span.Text, "error", spanErr)
			continue
		}

		width := maxX - minX
		height := maxY - minY
		centerX := (minX + maxX) / 2
		centerY := (minY + maxY) / 2

		// Padding grows with the text box so highlights stay readable on
		// high-resolution scans.
		scale := math.Max(width, height) / 100
		padX := math.Max(10, math.Round(20*scale))
		padY := math.Max(5, math.Round(10*scale))
		stroke := int(math.Max(2, math.Round(2*scale)))

		rect := image.Rect(
			int(math.Round(centerX-width/2-padX)),
			int(math.Round(centerY-height/2-padY)),
			int(math.Round(centerX+width/2+padX)),
			int(math.Round(centerY+height/2+padY)),
		)
		drawRectOutline(out, rect, stroke)
	}

	return out
}

// drawRectOutline strokes the rectangle border with the given width, clipped
// to the image bounds.
func drawRectOutline(img *image.RGBA, rect image.Rectangle, stroke int) {
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+stroke), // top
		image.Rect(rect.Min.X, rect.Max.Y-stroke, rect.Max.X, rect.Max.Y), // bottom
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+stroke, rect.Max.Y), // left
		image.Rect(rect.Max.X-stroke, rect.Min.Y, rect.Max.X, rect.Max.Y), // right
	}
	for _, edge := range edges {
		fillRect(img, edge.Intersect(img.Bounds()))
	}
}

func fillRect(img *image.RGBA, rect image.Rectangle) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, highlight)
		}
	}
}
