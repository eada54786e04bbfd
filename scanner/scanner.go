package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/types"
)

// ScanOptions defines the options for scanning a dataset directory
type ScanOptions struct {
	// Directory is the dataset root to scan
	Directory string

	// QuarantineDir is the subdirectory name that holds already-demoted
	// duplicates; it is excluded from the scan so repeated runs converge
	QuarantineDir string
}

// SidecarExtension is the caption sidecar extension: an image's caption
// lives next to it with the same basename and this extension
const SidecarExtension = ".txt"

// ScanDirectory walks the dataset directory and builds one ImageRecord per
// image file, with byte size, pixel dimensions, and sidecar discovery done
// up front. Records come back sorted by path so downstream processing is
// deterministic regardless of filesystem order.
func ScanDirectory(options ScanOptions) ([]*types.ImageRecord, error) {
	info, err := os.Stat(options.Directory)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %s: %v", options.Directory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", options.Directory)
	}

	var records []*types.ImageRecord

	err = filepath.Walk(options.Directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.LogWarning("Error accessing path %s: %v", path, err)
			return nil // Skip files that can't be accessed
		}

		if info.IsDir() {
			// Never descend into the quarantine directory
			if options.QuarantineDir != "" && info.Name() == options.QuarantineDir && path != options.Directory {
				return filepath.SkipDir
			}
			return nil
		}

		if !imageprocessor.IsImageFile(path) {
			return nil
		}

		record := &types.ImageRecord{
			Path: path,
			Size: info.Size(),
		}

		// Header-only probe; full decode failures are discovered later
		// by the perceptual layers
		if w, h, probeErr := imageprocessor.ProbeDimensions(path); probeErr == nil {
			record.Width = w
			record.Height = h
		} else {
			logging.DebugLog("Cannot probe dimensions of %s: %v", path, probeErr)
		}

		record.SidecarPath = FindSidecar(path)

		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %v", options.Directory, err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})

	return records, nil
}

// FindSidecar returns the path of the caption sidecar for an image, or ""
// when none exists
func FindSidecar(imagePath string) string {
	ext := filepath.Ext(imagePath)
	sidecar := strings.TrimSuffix(imagePath, ext) + SidecarExtension
	if _, err := os.Stat(sidecar); err != nil {
		return ""
	}
	return sidecar
}
