/**
 * Image decoding and normalization
 *
 * Uploaded buffers arrive in whatever encoding the submitter produced; every
 * image is normalized to RGBA before it enters the pipeline so downstream
 * stages never see a palette or YCbCr raster.
 */

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// Decode parses encoded image bytes and normalizes the result to RGBA.
func Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return ToRGBA(img), nil
}

// ToRGBA converts any image to RGBA. The input pixels are copied; the source
// is never aliased.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		out := image.NewRGBA(rgba.Bounds())
		draw.Draw(out, out.Bounds(), rgba, rgba.Bounds().Min, draw.Src)
		return out
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

// Clone returns an independent copy of an RGBA image.
func Clone(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

// CapSideLength downscales img so that its longest side does not exceed limit.
// Images already within the limit are returned unchanged. Aspect ratio is
// preserved; the image is resized, never cropped.
func CapSideLength(img *image.RGBA, limit int) *image.RGBA {
	if limit <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= limit {
		return img
	}
	ratio := float64(limit) / float64(longest)
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

// EncodePNG serializes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
