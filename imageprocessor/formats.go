package imageprocessor

import (
	"path/filepath"
	"strings"
)

// FormatType represents a known image format type
type FormatType string

// Known image format constants
const (
	FormatUnknown FormatType = "unknown"
	FormatJPEG    FormatType = "jpeg"
	FormatPNG     FormatType = "png"
	FormatGIF     FormatType = "gif"
	FormatTIFF    FormatType = "tiff"
	FormatBMP     FormatType = "bmp"
	FormatWEBP    FormatType = "webp"
	FormatRAW     FormatType = "raw"
)

// Map of extensions to format types
var formatExtensions = map[string]FormatType{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".bmp":  FormatBMP,
	".webp": FormatWEBP,

	// RAW formats, loaded through their embedded previews
	".cr2": FormatRAW,
	".cr3": FormatRAW,
	".nef": FormatRAW,
	".arw": FormatRAW,
	".dng": FormatRAW,
	".raf": FormatRAW,
}

// IsImageFile checks if a file is a supported image based on extension
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, supported := formatExtensions[ext]
	return supported
}

// GetFileFormat returns the format type based on file extension
func GetFileFormat(path string) FormatType {
	ext := strings.ToLower(filepath.Ext(path))
	format, exists := formatExtensions[ext]
	if !exists {
		return FormatUnknown
	}
	return format
}

// IsRawFormat checks if a file is in RAW format
func IsRawFormat(path string) bool {
	return GetFileFormat(path) == FormatRAW
}

// GetSupportedExtensions returns all supported image file extensions
func GetSupportedExtensions() []string {
	extensions := make([]string, 0, len(formatExtensions))
	for ext := range formatExtensions {
		extensions = append(extensions, ext)
	}
	return extensions
}
