/**
 * Perceptual hashing ("average hash")
 *
 * The fingerprint summarizes the visual content of an image in 64 bits:
 * grayscale, downsample to an 8x8 grid, threshold each cell against the grid
 * mean. Visually similar images differ in few bits, so near-duplicate
 * detection reduces to Hamming distance.
 */

package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math/bits"

	xdraw "golang.org/x/image/draw"
)

const hashGridSize = 8

// Fingerprint is a 64-bit average hash of an image's downsampled grayscale
// content. Identical pixel content always yields an identical fingerprint.
type Fingerprint uint64

// AverageHash computes the 64-bit average hash of an image. Any color model
// is accepted; the input is resized (never cropped) to the hash grid.
func AverageHash(img image.Image) Fingerprint {
	grid := image.NewRGBA(image.Rect(0, 0, hashGridSize, hashGridSize))
	xdraw.ApproxBiLinear.Scale(grid, grid.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	var levels [hashGridSize * hashGridSize]uint8
	var sum uint32
	for y := 0; y < hashGridSize; y++ {
		for x := 0; x < hashGridSize; x++ {
			g := color.GrayModel.Convert(grid.At(x, y)).(color.Gray)
			levels[y*hashGridSize+x] = g.Y
			sum += uint32(g.Y)
		}
	}
	mean := float64(sum) / float64(len(levels))

	var hash Fingerprint
	for i, v := range levels {
		if float64(v) >= mean {
			hash |= 1 << uint(len(levels)-1-i)
		}
	}
	return hash
}

// Distance returns the Hamming distance to another fingerprint.
func (f Fingerprint) Distance(other Fingerprint) int {
	return bits.OnesCount64(uint64(f ^ other))
}

// String renders the fingerprint as 16 hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}
