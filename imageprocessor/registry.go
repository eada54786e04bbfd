package imageprocessor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"imagededup/logging"

	"gocv.io/x/gocv"
)

// ImageLoaderRegistry maintains a registry of image loaders
type ImageLoaderRegistry struct {
	loaders       map[string]ImageLoader
	defaultLoader ImageLoader
	mutex         sync.RWMutex
}

// NewImageLoaderRegistry creates a new image loader registry
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	registry.registerStandardLoaders()
	registry.registerSpecializedLoaders()

	return registry
}

// registerStandardLoaders registers loaders for standard image formats
func (r *ImageLoaderRegistry) registerStandardLoaders() {
	standardLoader := NewStandardImageLoader()

	r.RegisterLoader(".jpg", standardLoader)
	r.RegisterLoader(".jpeg", standardLoader)
	r.RegisterLoader(".png", standardLoader)
	r.RegisterLoader(".bmp", standardLoader)
	r.RegisterLoader(".gif", standardLoader)
	r.RegisterLoader(".webp", standardLoader)

	r.defaultLoader = standardLoader
}

// registerSpecializedLoaders registers loaders for specialized formats
func (r *ImageLoaderRegistry) registerSpecializedLoaders() {
	tiffLoader := NewTiffImageLoader()
	r.RegisterLoader(".tif", tiffLoader)
	r.RegisterLoader(".tiff", tiffLoader)

	// RAW formats only hash reliably through their embedded previews,
	// which requires exiftool on the PATH
	if checkExiftoolAvailable() {
		rawLoader := NewRawPreviewLoader()
		for ext, format := range formatExtensions {
			if format == FormatRAW {
				r.RegisterLoader(ext, rawLoader)
			}
		}
		logging.LogInfo("Registered RAW preview loader (exiftool available)")
	} else {
		logging.LogWarning("exiftool not available, RAW files will be skipped by perceptual layers")
	}
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ext = strings.ToLower(ext)
	r.loaders[ext] = loader
}

// GetLoader returns the appropriate loader for the given path
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ext := strings.ToLower(filepath.Ext(path))
	if loader, ok := r.loaders[ext]; ok {
		return loader
	}

	return r.defaultLoader
}

// CanLoadFile checks if any registered loader can handle the given file
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ext := strings.ToLower(filepath.Ext(path))
	_, ok := r.loaders[ext]
	return ok
}

// LoadImage loads an image using the appropriate registered loader
func (r *ImageLoaderRegistry) LoadImage(path string) (gocv.Mat, error) {
	loader := r.GetLoader(path)
	if loader == nil {
		return gocv.NewMat(), fmt.Errorf("no suitable loader found for: %s", path)
	}

	return loader.LoadImage(path)
}
