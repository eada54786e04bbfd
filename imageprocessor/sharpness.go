package imageprocessor

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Sharpness loads the image and returns its Laplacian variance.
// Higher values mean more edge energy, i.e. a sharper image. The measure
// is deterministic for a given decoded image.
func (h *Hasher) Sharpness(path string) (float64, error) {
	img, err := h.registry.LoadImage(path)
	if err != nil {
		return 0, err
	}
	defer img.Close()

	return ComputeSharpness(img)
}

// ComputeSharpness computes the variance of the Laplacian of a grayscale image
func ComputeSharpness(img gocv.Mat) (float64, error) {
	if img.Empty() {
		return 0, fmt.Errorf("cannot compute sharpness for empty image")
	}

	lap := gocv.NewMat()
	defer lap.Close()

	gocv.Laplacian(img, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	// Compute variance manually
	var sum, count float64
	for y := 0; y < lap.Rows(); y++ {
		for x := 0; x < lap.Cols(); x++ {
			sum += lap.GetDoubleAt(y, x)
			count++
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("cannot compute sharpness for zero-size image")
	}
	mean := sum / count

	var variance float64
	for y := 0; y < lap.Rows(); y++ {
		for x := 0; x < lap.Cols(); x++ {
			d := lap.GetDoubleAt(y, x) - mean
			variance += d * d
		}
	}

	return variance / count, nil
}
