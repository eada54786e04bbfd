package imageprocessor

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// ImageLoader interface defines methods for image loading
type ImageLoader interface {
	// CanLoad determines if this loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads an image as grayscale and returns the gocv.Mat representation
	LoadImage(path string) (gocv.Mat, error)
}

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Formats this loader can handle
	SupportedFormats []FormatType
}

// CanLoad checks if this loader supports the file's format
func (l *BaseImageLoader) CanLoad(path string) bool {
	format := GetFileFormat(path)

	for _, supported := range l.SupportedFormats {
		if format == supported {
			return fileExists(path)
		}
	}

	return false
}

// DefaultLoadImage provides a standard grayscale loading implementation
func (l *BaseImageLoader) DefaultLoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return img, fmt.Errorf("failed to load image: %s", path)
	}
	return img, nil
}

// StandardImageLoader handles common image formats like JPEG, PNG, etc.
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatBMP,
				FormatWEBP,
			},
		},
	}
}

// LoadImage loads a standard image format
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	return l.DefaultLoadImage(path)
}

// TiffImageLoader specializes in TIFF format loading
type TiffImageLoader struct {
	BaseImageLoader
}

// NewTiffImageLoader creates a new TIFF image loader
func NewTiffImageLoader() *TiffImageLoader {
	return &TiffImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{FormatTIFF},
		},
	}
}

// LoadImage implements specialized loading for TIFF images.
// OpenCV handles most TIFF variants; multi-page files yield the first page.
func (l *TiffImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return img, fmt.Errorf("failed to load TIFF image: %s", path)
	}
	return img, nil
}

// Utility functions for loaders

// fileExists checks if a file exists and is accessible
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// hasFileContent checks if a file exists and has a non-zero size
func hasFileContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
