/**
 * Screening pipeline orchestrator
 *
 * Drives one batch end to end through strictly sequential stages:
 *
 *   Uploaded -> Deduplicated -> Recognized -> Matched -> Annotated -> Partitioned
 *
 * Deduplication is single-threaded (each image compares against all
 * previously accepted fingerprints). Recognition, matching, and annotation
 * are independent per image and fan out to a bounded worker pool; the OCR
 * inference is the unit of work. Results are re-joined to the deduplicated
 * order, so output order is deterministic regardless of scheduling.
 *
 * Per-image errors degrade that image to an unmatched result with no spans;
 * only engine initialization failures abort a run.
 */

package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"
	"runtime"
	"sync"

	"github.com/creditscan/screening-worker/internal/annotate"
	"github.com/creditscan/screening-worker/internal/dedup"
	apperrors "github.com/creditscan/screening-worker/internal/errors"
	"github.com/creditscan/screening-worker/internal/matching"
	"github.com/creditscan/screening-worker/internal/ocr"
)

// ImageUpload is one raw uploaded image buffer entering the pipeline.
type ImageUpload struct {
	ID       string
	Filename string
	Data     []byte
}

// Request describes one screening batch.
type Request struct {
	JobID      string
	UserID     string
	TargetName string

	// SimilarityThreshold in [80,100]; zero means use the configured default.
	SimilarityThreshold int
	// NameMatchThreshold in [60,100]; zero means use the configured default.
	NameMatchThreshold int

	Images []ImageUpload
}

// ProcessedImage is one unique image after matching: the (possibly annotated)
// raster, the verdict, and the spans holding the matched name.
type ProcessedImage struct {
	ID           string
	Filename     string
	Image        *image.RGBA
	IsMatch      bool
	MatchedName  string
	MatchedSpans []ocr.TextSpan
	Err          *apperrors.ScreeningError
}

// Stats carries the batch bookkeeping counts. Failures are tracked apart from
// match counts so totals stay reportable when some images failed.
type Stats struct {
	Submitted      int `json:"submitted"`
	DecodeFailures int `json:"decode_failures"`
	Duplicates     int `json:"duplicates"`
	Unique         int `json:"unique"`
	Matched        int `json:"matched"`
	Unmatched      int `json:"unmatched"`
	Failures       int `json:"failures"`
}

// Result partitions a processed batch. Both sequences preserve the
// deduplicated order.
type Result struct {
	Matched   []ProcessedImage
	Unmatched []ProcessedImage
	Stats     Stats
}

// ProgressFunc receives per-stage progress events for a job.
type ProgressFunc func(jobID, stage string, done, total int)

// OrchestratorConfig wires the orchestrator's collaborators and defaults. No
// process-wide state: thresholds and engine options are explicit values.
type OrchestratorConfig struct {
	Engine    ocr.Engine
	Annotator *annotate.Annotator

	Concurrency int
	OCROptions  ocr.Options

	DefaultSimilarityThreshold int
	DefaultNameMatchThreshold  int

	OnProgress ProgressFunc
}

// Orchestrator composes the pipeline components over one batch at a time.
type Orchestrator struct {
	engine      ocr.Engine
	annotator   *annotate.Annotator
	concurrency int
	ocrOptions  ocr.Options

	defaultSimilarity int
	defaultNameMatch  int

	onProgress ProgressFunc
}

// NewOrchestrator validates the configuration and builds an orchestrator.
func NewOrchestrator(cfg *OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("Engine is required")
	}

	annotator := cfg.Annotator
	if annotator == nil {
		annotator = annotate.NewAnnotator()
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if cores := runtime.NumCPU(); concurrency > cores {
		concurrency = cores
	}
	// Never exceed what the engine admits; many OCR engines are not
	// reentrant across concurrent inferences on one model instance.
	if admissible := cfg.Engine.Concurrency(); admissible > 0 && concurrency > admissible {
		concurrency = admissible
	}

	defaultSimilarity := cfg.DefaultSimilarityThreshold
	if defaultSimilarity == 0 {
		defaultSimilarity = 95
	}
	defaultNameMatch := cfg.DefaultNameMatchThreshold
	if defaultNameMatch == 0 {
		defaultNameMatch = 80
	}

	return &Orchestrator{
		engine:            cfg.Engine,
		annotator:         annotator,
		concurrency:       concurrency,
		ocrOptions:        cfg.OCROptions,
		defaultSimilarity: defaultSimilarity,
		defaultNameMatch:  defaultNameMatch,
		onProgress:        cfg.OnProgress,
	}, nil
}

// ProcessBatch runs one batch through every stage and returns the partitioned
// result. Cancellation is honored between images; on cancellation the batch
// is discarded and the context error returned.
func (o *Orchestrator) ProcessBatch(ctx context.Context, req *Request) (*Result, error) {
	similarity := req.SimilarityThreshold
	if similarity == 0 {
		similarity = o.defaultSimilarity
	}
	nameThreshold := req.NameMatchThreshold
	if nameThreshold == 0 {
		nameThreshold = o.defaultNameMatch
	}
	if nameThreshold < 60 || nameThreshold > 100 {
		return nil, fmt.Errorf("name match threshold must be between 60 and 100, got %d", nameThreshold)
	}

	log.Printf("[Job %s] Step 1: Deduplicating %d uploaded images (similarity=%d)",
		req.JobID, len(req.Images), similarity)

	filter, err := dedup.NewFilter(similarity)
	if err != nil {
		return nil, fmt.Errorf("invalid similarity threshold: %w", err)
	}

	sources := make([]dedup.SourceImage, 0, len(req.Images))
	for _, up := range req.Images {
		sources = append(sources, dedup.SourceImage{ID: up.ID, Filename: up.Filename, Data: up.Data})
	}
	filtered := filter.FilterUnique(sources)
	o.reportProgress(req.JobID, "deduplicated", len(filtered.Unique), len(req.Images))

	log.Printf("[Job %s] Step 2: Recognizing and matching %d unique images (workers=%d, threshold=%d)",
		req.JobID, len(filtered.Unique), o.concurrency, nameThreshold)

	processed, err := o.processUnique(ctx, req, filtered.Unique, nameThreshold)
	if err != nil {
		return nil, err
	}

	log.Printf("[Job %s] Step 3: Partitioning %d processed images", req.JobID, len(processed))

	result := &Result{
		Stats: Stats{
			Submitted:      filtered.Submitted,
			DecodeFailures: len(filtered.DecodeFailures),
			Duplicates:     filtered.Duplicates,
			Unique:         len(filtered.Unique),
		},
	}
	for _, p := range processed {
		if p.Err != nil {
			result.Stats.Failures++
		}
		if p.IsMatch {
			result.Matched = append(result.Matched, p)
		} else {
			result.Unmatched = append(result.Unmatched, p)
		}
	}
	result.Stats.Matched = len(result.Matched)
	result.Stats.Unmatched = len(result.Unmatched)
	o.reportProgress(req.JobID, "partitioned", len(processed), len(processed))

	log.Printf("[Job %s] Batch complete: matched=%d, unmatched=%d, duplicates=%d, failures=%d",
		req.JobID, result.Stats.Matched, result.Stats.Unmatched,
		result.Stats.Duplicates, result.Stats.Failures)
	return result, nil
}

// processUnique fans recognition+matching+annotation out to the worker pool
// and re-joins results by index so the deduplicated order is preserved.
func (o *Orchestrator) processUnique(ctx context.Context, req *Request, unique []dedup.UniqueImage, nameThreshold int) ([]ProcessedImage, error) {
	results := make([]ProcessedImage, len(unique))

	var (
		wg   sync.WaitGroup
		done sync.WaitGroup
		sem  = make(chan struct{}, o.concurrency)
		prog = make(chan int)
	)

	done.Add(1)
	go func() {
		defer done.Done()
		completed := 0
		for range prog {
			completed++
			o.reportProgress(req.JobID, "recognized", completed, len(unique))
		}
	}()

	for i := range unique {
		wg.Add(1)
		go func(idx int, img dedup.UniqueImage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// Cancellation is honored between images, never mid-image.
			if ctx.Err() != nil {
				return
			}
			results[idx] = o.processOne(ctx, req, img, nameThreshold)
			prog <- 1
		}(i, unique[i])
	}

	wg.Wait()
	close(prog)
	done.Wait()

	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return nil, apperrors.NewProcessingTimeoutError(req.JobID, 0, err)
		}
		return nil, err
	}
	return results, nil
}

// processOne handles a single unique image: OCR, name matching, span
// selection, and annotation of matches. Failures degrade the image to an
// unmatched result instead of aborting the batch.
func (o *Orchestrator) processOne(ctx context.Context, req *Request, img dedup.UniqueImage, nameThreshold int) ProcessedImage {
	out := ProcessedImage{
		ID:       img.ID,
		Filename: img.Filename,
		Image:    img.Decoded,
	}

	spans, err := o.engine.Recognize(ctx, img.Data, o.ocrOptions)
	if err != nil {
		recErr := apperrors.NewRecognitionFailedError(req.JobID, img.ID, err)
		log.Printf("[Job %s] Recognition failed for %s: %v", req.JobID, img.Filename, recErr)
		out.Err = recErr
		return out
	}

	verdict := matching.Match(req.TargetName, ocr.FullText(spans), nameThreshold)
	if !verdict.IsMatch {
		log.Printf("[Job %s] No name match in %s (candidates=%d)",
			req.JobID, img.Filename, len(verdict.Candidates))
		return out
	}

	matchedSpans := make([]ocr.TextSpan, 0, len(spans))
	for _, span := range spans {
		if matching.SpanMatchesName(span.Text, verdict.MatchedName) {
			matchedSpans = append(matchedSpans, span)
		}
	}

	log.Printf("[Job %s] Matched %q as %q in %s (spans=%d, score=%.1f)",
		req.JobID, req.TargetName, verdict.MatchedName, img.Filename,
		len(matchedSpans), verdict.Candidates[0].Score)

	out.IsMatch = true
	out.MatchedName = verdict.MatchedName
	out.MatchedSpans = matchedSpans
	out.Image = o.annotator.Annotate(img.Decoded, matchedSpans, verdict.MatchedName)
	return out
}

func (o *Orchestrator) reportProgress(jobID, stage string, done, total int) {
	if o.onProgress != nil {
		o.onProgress(jobID, stage, done, total)
	}
}
