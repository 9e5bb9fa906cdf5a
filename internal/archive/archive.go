/**
 * Result archive packaging
 *
 * Packages a partitioned batch into one downloadable zip with two top-level
 * groups. Entry naming is deterministic and follows the partition order:
 *
 *   matched/matched_1.png, matched/matched_2.png, ...
 *   unmatched/unmatched_1.png, ...
 */

package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image/png"

	apperrors "github.com/creditscan/screening-worker/internal/errors"
	"github.com/creditscan/screening-worker/internal/pipeline"
)

// Build packages matched and unmatched images into an in-memory zip archive.
func Build(jobID string, result *pipeline.Result) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeGroup(zw, "matched", result.Matched); err != nil {
		return nil, apperrors.NewArchiveFailedError(jobID, err)
	}
	if err := writeGroup(zw, "unmatched", result.Unmatched); err != nil {
		return nil, apperrors.NewArchiveFailedError(jobID, err)
	}

	if err := zw.Close(); err != nil {
		return nil, apperrors.NewArchiveFailedError(jobID, err)
	}
	return buf.Bytes(), nil
}

func writeGroup(zw *zip.Writer, group string, images []pipeline.ProcessedImage) error {
	for i, p := range images {
		name := fmt.Sprintf("%s/%s_%d.png", group, group, i+1)
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create entry %s: %w", name, err)
		}
		if err := png.Encode(w, p.Image); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
	}
	return nil
}
