/**
 * Tesseract recognition engine
 *
 * Default OCR provider using the gosseract client. A fresh client is created
 * per inference because a single Tesseract client must not run concurrent
 * recognitions; per-call clients make the engine safe under the pipeline's
 * worker pool.
 */

package ocr

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"strings"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/creditscan/screening-worker/internal/errors"
	"github.com/creditscan/screening-worker/internal/imaging"
)

// languageTags maps screening-surface language tags to Tesseract traineddata
// names. Unknown tags pass through untouched.
var languageTags = map[string]string{
	"ch": "chi_sim",
	"en": "eng",
}

// TesseractEngine implements Engine using gosseract.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs the Tesseract engine and probes it with a
// tiny inference so missing binaries or traineddata surface as a fatal
// ENGINE_INIT_FAILED before any job is accepted.
func NewTesseractEngine(opts Options) (*TesseractEngine, error) {
	e := &TesseractEngine{clientFactory: gosseract.NewClient}
	if err := e.probe(opts); err != nil {
		return nil, apperrors.NewEngineInitError(e.Name(), err)
	}
	return e, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Concurrency admits one inference per CPU core; each call owns its client.
func (e *TesseractEngine) Concurrency() int { return runtime.NumCPU() }

func (e *TesseractEngine) Close() error { return nil }

// Recognize performs OCR on one encoded image and returns line-level spans
// with four-point positions and confidences in [0,1].
func (e *TesseractEngine) Recognize(ctx context.Context, imageData []byte, opts Options) ([]TextSpan, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	prepared, err := e.prepare(imageData, opts)
	if err != nil {
		return nil, err
	}

	client := e.clientFactory()
	defer client.Close()

	if err := e.configure(client, opts); err != nil {
		return nil, err
	}
	if err := client.SetImageFromBytes(prepared); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize text lines: %w", err)
	}

	spans := make([]TextSpan, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		spans = append(spans, TextSpan{
			Text: text,
			Position: Polygon{
				{X: float64(b.Box.Min.X), Y: float64(b.Box.Min.Y)},
				{X: float64(b.Box.Max.X), Y: float64(b.Box.Min.Y)},
				{X: float64(b.Box.Max.X), Y: float64(b.Box.Max.Y)},
				{X: float64(b.Box.Min.X), Y: float64(b.Box.Max.Y)},
			},
			Confidence: b.Confidence / 100.0,
		})
	}
	return spans, nil
}

// prepare normalizes the input and caps its longest side per the detection
// limit, mirroring the preprocessing the recognition models were tuned for.
func (e *TesseractEngine) prepare(imageData []byte, opts Options) ([]byte, error) {
	if opts.DetLimitSideLen <= 0 {
		return imageData, nil
	}
	decoded, err := imaging.Decode(imageData)
	if err != nil {
		return nil, fmt.Errorf("decode for recognition: %w", err)
	}
	capped := imaging.CapSideLength(decoded, opts.DetLimitSideLen)
	if capped == decoded {
		return imageData, nil
	}
	return imaging.EncodePNG(capped)
}

func (e *TesseractEngine) configure(client *gosseract.Client, opts Options) error {
	lang := opts.Language
	if mapped, ok := languageTags[lang]; ok {
		lang = mapped
	}
	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			return fmt.Errorf("set language %q: %w", lang, err)
		}
	}
	// Tesseract has no accelerator or angle-classification knobs; those
	// selectors are accepted and ignored here.
	return nil
}

// probe runs a minimal recognition to verify the installation end to end.
func (e *TesseractEngine) probe(opts Options) error {
	blank := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	blank.Set(16, 16, color.RGBA{A: 0xff})
	data, err := imaging.EncodePNG(blank)
	if err != nil {
		return err
	}

	client := e.clientFactory()
	defer client.Close()
	if err := e.configure(client, opts); err != nil {
		return err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return fmt.Errorf("probe set image: %w", err)
	}
	if _, err := client.Text(); err != nil {
		return fmt.Errorf("probe recognition: %w", err)
	}
	return nil
}
