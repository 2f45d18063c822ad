/**
 * Image Preprocessor for Receipt OCR
 *
 * Produces an ordered list of candidate processed images from raw bytes.
 * Always emits a grayscale baseline; with enhancement enabled it adds
 * denoised/thresholded, contrast-enhanced, locally-thresholded and deskewed
 * variants so the recognition ensemble can pick whichever survives the
 * photo conditions best.
 */

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	apperrors "github.com/receiptflow/receipt-worker/internal/errors"
)

const (
	// Receipts OCR best around this height; smaller images are upscaled.
	targetHeight = 1200

	// Deskew is skipped when the estimated angle is below this, in degrees.
	minDeskewAngle = 0.5
)

// Preprocess decodes raw image bytes and returns the candidate variants in
// a fixed generation order. It fails only when the bytes cannot be decoded.
func Preprocess(data []byte, enhance bool) ([]ImageVariant, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewDecodeError(err)
	}

	gray := toGray(imaging.Grayscale(src))
	if gray.Bounds().Dy() < targetHeight {
		gray = toGray(imaging.Resize(gray, 0, targetHeight, imaging.Lanczos))
	}

	variants := []ImageVariant{{Image: gray, Method: MethodGrayscale}}
	if !enhance {
		return variants, nil
	}

	threshold := otsuThreshold(gray)

	denoised := bilateralFilter(gray, 2, 25.0)
	variants = append(variants, ImageVariant{
		Image:  binarize(denoised, otsuThreshold(denoised)),
		Method: MethodBilateralOtsu,
	})
	equalized := clahe(gray, 8, 2.0)
	variants = append(variants, ImageVariant{
		Image:  binarize(equalized, otsuThreshold(equalized)),
		Method: MethodCLAHEOtsu,
	})
	variants = append(variants, ImageVariant{
		Image:  adaptiveGaussianThreshold(gray, 2.0, 2),
		Method: MethodAdaptiveGaussian,
	})

	if deskewed, ok := deskew(gray, threshold); ok {
		variants = append(variants, ImageVariant{Image: deskewed, Method: MethodDeskewed})
	}

	return variants, nil
}

// toGray converts any decoded image into an 8-bit grayscale buffer.
func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	bounds := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return out
}

// otsuThreshold computes the global Otsu threshold of a grayscale image.
func otsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	for _, p := range g.Pix {
		hist[p]++
	}
	return otsuFromHistogram(hist, len(g.Pix))
}

func otsuFromHistogram(hist [256]int, total int) uint8 {
	if total == 0 {
		return 128
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumBack, weightBack float64
	var maxVariance float64
	var threshold uint8
	for t := 0; t < 256; t++ {
		weightBack += float64(hist[t])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(t) * float64(hist[t])
		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore
		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > maxVariance {
			maxVariance = variance
			threshold = uint8(t)
		}
	}
	return threshold
}

// binarize maps pixels above the threshold to white and the rest to black.
func binarize(g *image.Gray, threshold uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		if p > threshold {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

// bilateralFilter applies an edge-preserving smoothing pass: each pixel is
// replaced by a weighted mean of its neighborhood where the weight falls off
// with both spatial distance and intensity difference, so print edges survive
// while sensor noise is averaged out.
func bilateralFilter(g *image.Gray, radius int, sigmaColor float64) *image.Gray {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(bounds)

	sigmaSpace := float64(radius)
	var colorLUT [256]float64
	for d := 0; d < 256; d++ {
		colorLUT[d] = math.Exp(-float64(d*d) / (2 * sigmaColor * sigmaColor))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := g.GrayAt(x, y).Y
			var weightSum, valueSum float64
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					neighbor := g.GrayAt(nx, ny).Y
					spatial := math.Exp(-float64(dx*dx+dy*dy) / (2 * sigmaSpace * sigmaSpace))
					diff := int(center) - int(neighbor)
					if diff < 0 {
						diff = -diff
					}
					weight := spatial * colorLUT[diff]
					weightSum += weight
					valueSum += weight * float64(neighbor)
				}
			}
			out.SetGray(x, y, color.Gray{Y: uint8(valueSum/weightSum + 0.5)})
		}
	}
	return out
}

// clahe performs contrast-limited adaptive histogram equalization over a grid
// of tiles, interpolating between neighboring tile mappings to avoid seams.
// Used for low-contrast or faded receipts.
func clahe(g *image.Gray, tiles int, clipLimit float64) *image.Gray {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if tiles < 1 {
		tiles = 1
	}
	tileW := (w + tiles - 1) / tiles
	tileH := (h + tiles - 1) / tiles

	// Per-tile equalization lookup tables.
	luts := make([][][256]uint8, tiles)
	for ty := 0; ty < tiles; ty++ {
		luts[ty] = make([][256]uint8, tiles)
		for tx := 0; tx < tiles; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := minInt(x0+tileW, w), minInt(y0+tileH, h)

			var hist [256]float64
			count := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[g.GrayAt(x, y).Y]++
					count++
				}
			}
			if count == 0 {
				continue
			}

			// Clip the histogram and redistribute the excess uniformly.
			limit := clipLimit * float64(count) / 256.0
			var excess float64
			for i := range hist {
				if hist[i] > limit {
					excess += hist[i] - limit
					hist[i] = limit
				}
			}
			redistribute := excess / 256.0
			var cdf float64
			for i := range hist {
				cdf += hist[i] + redistribute
				luts[ty][tx][i] = uint8(math.Min(255, cdf*255.0/float64(count)))
			}
		}
	}

	// Bilinear interpolation between the four surrounding tile mappings.
	out := image.NewGray(bounds)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clampInt(int(math.Floor(fy)), 0, tiles-1)
		ty1 := clampInt(ty0+1, 0, tiles-1)
		wy := fy - math.Floor(fy)
		if fy < 0 {
			wy = 0
		}
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clampInt(int(math.Floor(fx)), 0, tiles-1)
			tx1 := clampInt(tx0+1, 0, tiles-1)
			wx := fx - math.Floor(fx)
			if fx < 0 {
				wx = 0
			}

			p := g.GrayAt(x, y).Y
			top := (1-wx)*float64(luts[ty0][tx0][p]) + wx*float64(luts[ty0][tx1][p])
			bottom := (1-wx)*float64(luts[ty1][tx0][p]) + wx*float64(luts[ty1][tx1][p])
			out.SetGray(x, y, color.Gray{Y: uint8((1-wy)*top + wy*bottom + 0.5)})
		}
	}
	return out
}

// adaptiveGaussianThreshold binarizes against a Gaussian-smoothed local mean,
// which tolerates uneven lighting across the receipt. offset plays the role
// of the usual constant C subtracted from the local mean.
func adaptiveGaussianThreshold(g *image.Gray, sigma float64, offset int) *image.Gray {
	local := toGray(imaging.Blur(g, sigma))
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		if int(p) > int(local.Pix[i])-offset {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

// deskew estimates the dominant rotation of the foreground (ink) pixel mass
// from its second moments and rotates the image upright. Angles are
// normalized so a near-vertical estimate maps back into (-45, 45]. Returns
// false when the estimate is negligible or unusable; deskew is best-effort
// and never fatal.
func deskew(g *image.Gray, threshold uint8) (deskewed *image.Gray, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			deskewed, ok = nil, false
		}
	}()

	angle, err := estimateSkewAngle(g, threshold)
	if err != nil || math.Abs(angle) < minDeskewAngle {
		return nil, false
	}

	rotated := imaging.Rotate(g, angle, color.White)
	return toGray(rotated), true
}

// estimateSkewAngle fits the principal axis of the dark-pixel distribution.
func estimateSkewAngle(g *image.Gray, threshold uint8) (float64, error) {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// Sample the grid; full resolution adds nothing to a moment estimate.
	step := maxInt(1, minInt(w, h)/512)

	var n, sumX, sumY float64
	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			if g.GrayAt(x, y).Y < threshold {
				n++
				sumX += float64(x)
				sumY += float64(y)
			}
		}
	}
	if n < 64 {
		return 0, fmt.Errorf("too few foreground pixels for skew estimation (%d)", int(n))
	}

	meanX, meanY := sumX/n, sumY/n
	var covXX, covYY, covXY float64
	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			if g.GrayAt(x, y).Y < threshold {
				dx, dy := float64(x)-meanX, float64(y)-meanY
				covXX += dx * dx
				covYY += dy * dy
				covXY += dx * dy
			}
		}
	}

	angle := 0.5 * math.Atan2(2*covXY, covXX-covYY) * 180 / math.Pi

	// A near-vertical principal axis means the text block is rotated ~90 deg;
	// fold it back into the (-45, 45] range.
	if angle > 45 {
		angle = angle - 90
	} else if angle < -45 {
		angle = angle + 90
	}
	return angle, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
