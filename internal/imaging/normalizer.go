// Package imaging prepares document photos for OCR. The normalizer
// denoises, boosts contrast and straightens skewed scans while keeping
// the output canvas the same size as the input.
package imaging

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"meditranslate/internal/logger"
)

const (
	denoiseStrength     = 10
	denoiseTemplateSize = 7
	denoiseSearchSize   = 21

	claheClipLimit = 2.0
	claheTileSize  = 8

	cannyLowThreshold  = 50
	cannyHighThreshold = 150
	houghVoteThreshold = 200

	// Skew angles outside this band are left alone: below the minimum
	// the scan is already straight, above the maximum the Hough lines
	// are more likely furniture edges than text baselines.
	minSkewDegrees = 0.5
	maxSkewDegrees = 15.0
)

// Normalizer cleans up document photos before OCR.
type Normalizer struct {
	log zerolog.Logger
}

// NewNormalizer creates a new image normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		log: logger.WithComponent("imaging"),
	}
}

// Normalize runs the full preparation pipeline on src and returns a
// 3-channel image of the same size together with the skew angle that
// was corrected (0 when no rotation was applied).
//
// With highContrast set the contrast stage uses Otsu binarization,
// which helps faded prints; otherwise CLAHE is used to keep gray
// detail intact.
//
// Normalize never fails: if any stage panics the input is returned
// unchanged so the caller can still attempt OCR on the raw photo.
func (n *Normalizer) Normalize(src gocv.Mat, highContrast bool) (out gocv.Mat, skew float64) {
	if src.Empty() {
		return src.Clone(), 0
	}

	defer func() {
		if r := recover(); r != nil {
			n.log.Error().
				Interface("panic", r).
				Bool("high_contrast", highContrast).
				Msg("Image normalization failed, falling back to original image")
			out = src.Clone()
			skew = 0
		}
	}()

	var gray gocv.Mat
	if src.Channels() >= 3 {
		gray = gocv.NewMat()
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	} else {
		gray = src.Clone()
	}
	defer gray.Close()

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoisingWithParams(gray, &denoised, denoiseStrength, denoiseTemplateSize, denoiseSearchSize)

	contrast := gocv.NewMat()
	defer contrast.Close()
	if highContrast {
		gocv.Threshold(denoised, &contrast, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	} else {
		clahe := gocv.NewCLAHEWithParams(claheClipLimit, image.Pt(claheTileSize, claheTileSize))
		clahe.Apply(denoised, &contrast)
		clahe.Close()
	}

	straightened, skew := n.deskew(contrast)
	defer straightened.Close()

	out = gocv.NewMat()
	gocv.CvtColor(straightened, &out, gocv.ColorGrayToBGR)

	n.log.Debug().
		Bool("high_contrast", highContrast).
		Float64("skew_degrees", skew).
		Int("width", out.Cols()).
		Int("height", out.Rows()).
		Msg("Image normalized")

	return out, skew
}

// NormalizeBytes decodes an encoded image, normalizes it and returns
// the result as PNG bytes. Unlike Normalize it can fail, but only on
// undecodable input or a failed encode.
func (n *Normalizer) NormalizeBytes(data []byte, highContrast bool) ([]byte, float64, error) {
	const op = "NormalizeBytes"

	src, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, 0, NewImagingError(op, ErrUndecodableImage, err.Error())
	}
	defer src.Close()

	if src.Empty() {
		return nil, 0, NewImagingError(op, ErrUndecodableImage, "decoded image is empty")
	}

	processed, skew := n.Normalize(src, highContrast)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, 0, NewImagingError(op, ErrEncodeFailed, err.Error())
	}
	defer buf.Close()

	encoded := make([]byte, buf.Len())
	copy(encoded, buf.GetBytes())

	return encoded, skew, nil
}

// deskew estimates the dominant skew of a grayscale page from its Hough
// lines and rotates it straight. The returned Mat is always a fresh
// allocation, even when no rotation was needed.
func (n *Normalizer) deskew(gray gocv.Mat) (gocv.Mat, float64) {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLowThreshold, cannyHighThreshold)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, 1, math.Pi/180, houghVoteThreshold)

	if lines.Empty() || lines.Rows() == 0 {
		return gray.Clone(), 0
	}

	angles := make([]float64, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		line := lines.GetVecfAt(i, 0)
		if len(line) < 2 {
			continue
		}
		theta := float64(line[1])
		angles = append(angles, theta*180/math.Pi-90)
	}
	if len(angles) == 0 {
		return gray.Clone(), 0
	}

	skew := median(angles)
	if math.Abs(skew) < minSkewDegrees || math.Abs(skew) > maxSkewDegrees {
		n.log.Debug().
			Float64("skew_degrees", skew).
			Int("line_count", len(angles)).
			Msg("Skipping deskew, angle outside correction band")
		return gray.Clone(), 0
	}

	center := image.Pt(gray.Cols()/2, gray.Rows()/2)
	rotation := gocv.GetRotationMatrix2D(center, skew, 1.0)
	defer rotation.Close()

	rotated := gocv.NewMat()
	gocv.WarpAffineWithParams(gray, &rotated, rotation,
		image.Pt(gray.Cols(), gray.Rows()),
		gocv.InterpolationCubic, gocv.BorderConstant,
		color.RGBA{R: 255, G: 255, B: 255, A: 0})

	return rotated, skew
}

// median returns the statistical median, averaging the two middle
// values for even-length input.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
