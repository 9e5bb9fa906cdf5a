/**
 * Duplicate filter for submitted image batches
 *
 * The same document is frequently photographed or rescanned several times
 * within one submission. Each incoming image is fingerprinted and compared
 * against every previously accepted fingerprint; anything within the allowed
 * Hamming distance is dropped before OCR runs.
 *
 * Threshold semantics are inverted on purpose: the threshold is a similarity
 * percentage in [80,100], and an image is a duplicate when the minimum
 * distance found is < (100 - threshold). Raising the threshold therefore
 * shrinks the tolerated distance.
 */

package dedup

import (
	"fmt"
	"image"

	apperrors "github.com/creditscan/screening-worker/internal/errors"
	"github.com/creditscan/screening-worker/internal/imaging"
	"github.com/creditscan/screening-worker/internal/logging"
)

// SourceImage is one uploaded image prior to deduplication.
type SourceImage struct {
	ID       string
	Filename string
	Data     []byte
}

// UniqueImage is an accepted image with its decoded raster and fingerprint,
// carried forward so later stages do not decode twice.
type UniqueImage struct {
	SourceImage
	Decoded *image.RGBA
	Hash    imaging.Fingerprint
}

// FilterResult reports the unique subset plus bookkeeping counts. Decode
// failures are tracked separately so batch counts stay reportable even when
// some images were unreadable.
type FilterResult struct {
	Unique         []UniqueImage
	Submitted      int
	Duplicates     int
	DecodeFailures []*apperrors.ScreeningError
}

// Filter removes visually near-duplicate images from a batch.
type Filter struct {
	threshold int
	logger    *logging.Logger
}

// NewFilter creates a duplicate filter. The similarity threshold must lie in
// [80,100].
func NewFilter(similarityThreshold int) (*Filter, error) {
	if similarityThreshold < 80 || similarityThreshold > 100 {
		return nil, fmt.Errorf("similarity threshold must be between 80 and 100, got %d", similarityThreshold)
	}
	return &Filter{
		threshold: similarityThreshold,
		logger:    logging.NewLogger("dedup"),
	}, nil
}

// MaxDistance returns the largest Hamming distance still treated as a
// duplicate. It never increases as the threshold increases.
func (f *Filter) MaxDistance() int {
	return 100 - f.threshold - 1
}

// FilterUnique returns the order-preserving subsequence of images deemed
// visually unique. Comparison against previously accepted fingerprints is
// inherently sequential, so the filter runs single-threaded; batches are
// small user submissions, and the O(n^2) fingerprint comparisons are cheap
// next to a single OCR inference.
func (f *Filter) FilterUnique(images []SourceImage) *FilterResult {
	result := &FilterResult{Submitted: len(images)}
	accepted := make([]UniqueImage, 0, len(images))

	for _, src := range images {
		decoded, err := imaging.Decode(src.Data)
		if err != nil {
			decodeErr := apperrors.NewDecodeFailedError(src.ID, src.Filename, err)
			f.logger.Warn("Skipping undecodable image", "image", src.Filename, "error", err)
			result.DecodeFailures = append(result.DecodeFailures, decodeErr)
			continue
		}

		hash := imaging.AverageHash(decoded)

		duplicateOf := ""
		for _, prev := range accepted {
			if hash.Distance(prev.Hash) <= f.MaxDistance() {
				duplicateOf = prev.Filename
				break
			}
		}

		if duplicateOf != "" {
			f.logger.Info("Skipping near-duplicate image",
				"image", src.Filename, "duplicate_of", duplicateOf, "hash", hash)
			result.Duplicates++
			continue
		}

		f.logger.Debug("Accepted unique image", "image", src.Filename, "hash", hash)
		accepted = append(accepted, UniqueImage{
			SourceImage: src,
			Decoded:     decoded,
			Hash:        hash,
		})
	}

	result.Unique = accepted
	f.logger.Info("Deduplication complete",
		"submitted", result.Submitted,
		"unique", len(result.Unique),
		"duplicates", result.Duplicates,
		"decode_failures", len(result.DecodeFailures))
	return result
}
