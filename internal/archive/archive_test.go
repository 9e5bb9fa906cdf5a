package archive

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/creditscan/screening-worker/internal/pipeline"
)

func solidImage(w, h int, r uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+3] = 255
	}
	return img
}

func processed(id string, img *image.RGBA) pipeline.ProcessedImage {
	return pipeline.ProcessedImage{ID: id, Filename: id + ".png", Image: img}
}

func TestBuildEntryNamesFollowPartitionOrder(t *testing.T) {
	result := &pipeline.Result{
		Matched: []pipeline.ProcessedImage{
			processed("m1", solidImage(4, 4, 10)),
			processed("m2", solidImage(4, 4, 20)),
		},
		Unmatched: []pipeline.ProcessedImage{
			processed("u1", solidImage(4, 4, 30)),
		},
	}

	data, err := Build("job-1", result)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	wantNames := []string{
		"matched/matched_1.png",
		"matched/matched_2.png",
		"unmatched/unmatched_1.png",
	}
	if len(zr.File) != len(wantNames) {
		t.Fatalf("entry count = %d, want %d", len(zr.File), len(wantNames))
	}
	for i, f := range zr.File {
		if f.Name != wantNames[i] {
			t.Fatalf("entry %d = %q, want %q", i, f.Name, wantNames[i])
		}
	}
}

func TestBuildEntriesDecodeBackToSource(t *testing.T) {
	src := solidImage(4, 4, 200)
	result := &pipeline.Result{Matched: []pipeline.ProcessedImage{processed("m1", src)}}

	data, err := Build("job-2", result)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	decoded, err := png.Decode(rc)
	if err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if got := decoded.Bounds(); got != src.Bounds() {
		t.Fatalf("entry bounds = %v, want %v", got, src.Bounds())
	}
}

func TestBuildEmptyResult(t *testing.T) {
	data, err := Build("job-3", &pipeline.Result{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 0 {
		t.Fatalf("empty result produced %d entries", len(zr.File))
	}
}
