/**
 * OCR contract for the screening pipeline
 *
 * The recognition engine is an opaque, possibly non-reentrant capability
 * behind the Engine interface; the pipeline is testable with a stub that
 * returns fixed spans. Engines report their admissible concurrency so the
 * orchestrator never runs more parallel inferences than the engine tolerates.
 */

package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Point is one polygon vertex in pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Polygon is the quadrilateral around a recognized text fragment, in reading
// order starting at the top-left corner.
type Polygon []Point

// UnmarshalJSON accepts both wire shapes emitted by recognition engines:
// four [x,y] pairs, or eight raw coordinates flattened into one array.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	var nested [][]float64
	if err := json.Unmarshal(data, &nested); err == nil {
		points := make(Polygon, 0, len(nested))
		for _, pair := range nested {
			if len(pair) != 2 {
				return fmt.Errorf("polygon point must have 2 coordinates, got %d", len(pair))
			}
			points = append(points, Point{X: pair[0], Y: pair[1]})
		}
		*p = points
		return nil
	}

	var flat []float64
	if err := json.Unmarshal(data, &flat); err == nil {
		if len(flat)%2 != 0 {
			return fmt.Errorf("flat polygon must have an even number of coordinates, got %d", len(flat))
		}
		points := make(Polygon, 0, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			points = append(points, Point{X: flat[i], Y: flat[i+1]})
		}
		*p = points
		return nil
	}

	return fmt.Errorf("polygon must be an array of [x,y] pairs or a flat coordinate array")
}

// MarshalJSON always emits the nested four-pair shape.
func (p Polygon) MarshalJSON() ([]byte, error) {
	nested := make([][]float64, 0, len(p))
	for _, pt := range p {
		nested = append(nested, []float64{pt.X, pt.Y})
	}
	return json.Marshal(nested)
}

// Bounds returns the axis-aligned bounding box of the polygon. ok is false
// when the polygon does not have exactly four vertices.
func (p Polygon) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if len(p) != 4 {
		return 0, 0, 0, 0, false
	}
	minX, maxX = p[0].X, p[0].X
	minY, maxY = p[0].Y, p[0].Y
	for _, pt := range p[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}
	return minX, minY, maxX, maxY, true
}

// TextSpan is one recognized text fragment with its source location and
// confidence, immutable once produced by the engine.
type TextSpan struct {
	Text       string  `json:"text"`
	Position   Polygon `json:"position"`
	Confidence float64 `json:"confidence"`
}

// Options carries engine selectors through the pipeline opaquely. Engines map
// what they can and ignore the rest.
type Options struct {
	// Language is the screening-surface language tag ("ch" or "en").
	Language string
	// UseAccelerator requests hardware acceleration where the engine
	// supports it; DeviceIndex selects the device.
	UseAccelerator bool
	DeviceIndex    int
	// DetLimitSideLen caps the longest image side before detection; larger
	// inputs are downscaled, never cropped. Zero disables the cap.
	DetLimitSideLen int
	// AngleClassification enables text-angle correction where supported.
	AngleClassification bool
}

// Engine is the recognition collaborator contract: one encoded image in, a
// sequence of positioned text spans out.
type Engine interface {
	Name() string
	// Concurrency reports the number of concurrent inferences the engine
	// admits; zero means unbounded.
	Concurrency() int
	Recognize(ctx context.Context, image []byte, opts Options) ([]TextSpan, error)
	Close() error
}

// FullText joins span texts in reading order, newline-separated, producing
// the text block the name matcher scores.
func FullText(spans []TextSpan) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n")
}
