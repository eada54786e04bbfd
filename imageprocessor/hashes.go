package imageprocessor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"os"
	"sort"

	"imagededup/types"

	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"
)

// Hasher computes content hashes and perceptual fingerprints for image files.
// It is safe to call concurrently across distinct files: the registry is
// read-only after construction and every computation is independent.
type Hasher struct {
	registry *ImageLoaderRegistry
}

// NewHasher creates a hasher with the default loader registry
func NewHasher() *Hasher {
	return &Hasher{registry: NewImageLoaderRegistry()}
}

// ContentHash computes the hex SHA-256 digest of the file's raw bytes.
// A transient read failure is retried once before a HashComputeError is
// returned.
func (h *Hasher) ContentHash(path string) (string, error) {
	digest, err := hashFileBytes(path)
	if err != nil {
		// One retry for transient I/O failures
		digest, err = hashFileBytes(path)
	}
	if err != nil {
		return "", &types.HashComputeError{Path: path, Err: err}
	}
	return digest, nil
}

// hashFileBytes streams the file through SHA-256
func hashFileBytes(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Fingerprint loads the image and computes the fingerprint of the given kind.
// Files that cannot be decoded yield a DecodeError.
func (h *Hasher) Fingerprint(path string, kind types.FingerprintKind) (types.Fingerprint, error) {
	img, err := h.registry.LoadImage(path)
	if err != nil {
		return 0, &types.DecodeError{Path: path, Err: err}
	}
	defer img.Close()

	fp, err := ComputeFingerprint(img, kind)
	if err != nil {
		return 0, &types.DecodeError{Path: path, Err: err}
	}
	return fp, nil
}

// CanLoad reports whether any registered loader handles the file
func (h *Hasher) CanLoad(path string) bool {
	return h.registry.CanLoadFile(path)
}

// LoadImage loads the file as a grayscale Mat through the registry
func (h *Hasher) LoadImage(path string) (gocv.Mat, error) {
	return h.registry.LoadImage(path)
}

// ComputeFingerprint computes the fingerprint of the given kind for a
// loaded grayscale image
func ComputeFingerprint(img gocv.Mat, kind types.FingerprintKind) (types.Fingerprint, error) {
	if img.Empty() {
		return 0, fmt.Errorf("cannot compute %s fingerprint for empty image", kind)
	}

	switch kind {
	case types.FingerprintAverage:
		return computeAverageFingerprint(img)
	case types.FingerprintDifference:
		return computeDifferenceFingerprint(img)
	case types.FingerprintPerceptual:
		return computePerceptualFingerprint(img)
	case types.FingerprintWavelet:
		return computeWaveletFingerprint(img)
	default:
		return 0, fmt.Errorf("unknown fingerprint kind: %s", kind)
	}
}

// computeAverageFingerprint calculates the 8x8 mean-threshold hash
func computeAverageFingerprint(img gocv.Mat) (types.Fingerprint, error) {
	stdImg, err := img.ToImage()
	if err != nil {
		return 0, fmt.Errorf("cannot convert image for average hash: %v", err)
	}

	hash, err := goimagehash.AverageHash(stdImg)
	if err != nil {
		return 0, fmt.Errorf("cannot compute average hash: %v", err)
	}

	return types.Fingerprint(hash.GetHash()), nil
}

// computeDifferenceFingerprint calculates the horizontal gradient hash
func computeDifferenceFingerprint(img gocv.Mat) (types.Fingerprint, error) {
	stdImg, err := img.ToImage()
	if err != nil {
		return 0, fmt.Errorf("cannot convert image for difference hash: %v", err)
	}

	hash, err := goimagehash.DifferenceHash(stdImg)
	if err != nil {
		return 0, fmt.Errorf("cannot compute difference hash: %v", err)
	}

	return types.Fingerprint(hash.GetHash()), nil
}

// computePerceptualFingerprint computes a DCT-based hash: resize to 32x32,
// transform, keep the 8x8 low-frequency block, threshold against its median
func computePerceptualFingerprint(img gocv.Mat) (types.Fingerprint, error) {
	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(img, &resized, image.Point{X: 32, Y: 32}, 0, 0, gocv.InterpolationLinear)

	// Convert to float for DCT
	floatImg := gocv.NewMat()
	defer floatImg.Close()
	resized.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(floatImg, &dct, 0)

	// Extract 8x8 low frequency components
	lowFreq := dct.Region(image.Rect(0, 0, 8, 8))
	defer lowFreq.Close()

	values := make([]float64, 0, 64)
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			values = append(values, float64(lowFreq.GetFloatAt(y, x)))
		}
	}

	median := calculateMedian(values)

	var bits uint64
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			bits <<= 1
			if float64(lowFreq.GetFloatAt(y, x)) >= median {
				bits |= 1
			}
		}
	}

	return types.Fingerprint(bits), nil
}

// computeWaveletFingerprint computes a Haar-wavelet hash: resize to 64x64,
// apply a three-level 2D Haar decomposition, threshold the 8x8 approximation
// band against its median. Stable under recompression and resizing.
func computeWaveletFingerprint(img gocv.Mat) (types.Fingerprint, error) {
	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(img, &resized, image.Point{X: 64, Y: 64}, 0, 0, gocv.InterpolationLinear)

	// Pull pixels into a float grid for the transform
	grid := make([][]float64, 64)
	for y := 0; y < 64; y++ {
		grid[y] = make([]float64, 64)
		for x := 0; x < 64; x++ {
			grid[y][x] = float64(resized.GetUCharAt(y, x))
		}
	}

	// Three decomposition levels: 64 -> 32 -> 16 -> 8
	for size := 64; size > 8; size /= 2 {
		haarStep(grid, size)
	}

	// Collect the 8x8 approximation band; the DC coefficient carries
	// overall brightness, not structure, so it is excluded
	values := make([]float64, 0, 63)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if y == 0 && x == 0 {
				continue
			}
			values = append(values, grid[y][x])
		}
	}
	median := calculateMedian(values)

	var bits uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			bits <<= 1
			if y == 0 && x == 0 {
				continue
			}
			if grid[y][x] >= median {
				bits |= 1
			}
		}
	}

	return types.Fingerprint(bits), nil
}

// haarStep applies one level of the 2D Haar transform to the top-left
// size x size region, leaving averages in the top-left quadrant
func haarStep(grid [][]float64, size int) {
	half := size / 2
	row := make([]float64, size)

	// Rows: averages left, details right
	for y := 0; y < size; y++ {
		copy(row, grid[y][:size])
		for x := 0; x < half; x++ {
			grid[y][x] = (row[2*x] + row[2*x+1]) / 2
			grid[y][half+x] = (row[2*x] - row[2*x+1]) / 2
		}
	}

	// Columns: averages top, details bottom
	col := make([]float64, size)
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			col[y] = grid[y][x]
		}
		for y := 0; y < half; y++ {
			grid[y][x] = (col[2*y] + col[2*y+1]) / 2
			grid[half+y][x] = (col[2*y] - col[2*y+1]) / 2
		}
	}
}

// calculateMedian returns the median of a float slice
func calculateMedian(values []float64) float64 {
	valuesCopy := make([]float64, len(values))
	copy(valuesCopy, values)

	sort.Float64s(valuesCopy)

	length := len(valuesCopy)
	if length == 0 {
		return 0
	}
	if length%2 == 0 {
		return (valuesCopy[length/2-1] + valuesCopy[length/2]) / 2
	}

	return valuesCopy[length/2]
}
