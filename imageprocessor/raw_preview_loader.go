package imageprocessor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"imagededup/logging"

	"github.com/barasher/go-exiftool"

	"gocv.io/x/gocv"
)

// RawPreviewLoader loads RAW camera files through the JPEG preview that the
// camera embeds in them, extracted with exiftool. Hashing the preview keeps
// RAW files comparable with their exported JPEGs.
type RawPreviewLoader struct {
	BaseImageLoader
	TempDir string
}

// NewRawPreviewLoader creates a loader for RAW formats backed by exiftool
func NewRawPreviewLoader() *RawPreviewLoader {
	return &RawPreviewLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{FormatRAW},
		},
		TempDir: os.TempDir(),
	}
}

// Preview tags in order of preference; larger previews hash closer to the
// camera's own JPEG output
var previewTags = []string{
	"JpgFromRaw",
	"PreviewImage",
	"OtherImage",
	"ThumbnailImage",
}

// LoadImage extracts the embedded preview and loads it as grayscale
func (l *RawPreviewLoader) LoadImage(path string) (gocv.Mat, error) {
	for _, tag := range previewTags {
		tempFile := filepath.Join(l.TempDir, fmt.Sprintf("raw_preview_%s_%s.jpg",
			filepath.Base(path), tag))

		if err := extractPreviewTag(path, tempFile, tag); err == nil && hasFileContent(tempFile) {
			img := gocv.IMRead(tempFile, gocv.IMReadGrayScale)
			os.Remove(tempFile) // Clean up

			if !img.Empty() {
				logging.DebugLog("Extracted %s preview from %s", tag, path)
				return img, nil
			}
		}
	}

	return gocv.NewMat(), fmt.Errorf("failed to extract any preview from RAW file: %s", path)
}

// extractPreviewTag extracts one binary preview tag into outputPath
func extractPreviewTag(path, outputPath, tag string) error {
	// go-exiftool does not support binary tag extraction, so shell out
	cmd := exec.Command("exiftool", "-b", "-"+tag, path)
	output, err := cmd.Output()
	if err != nil {
		return err
	}
	if len(output) == 0 {
		return fmt.Errorf("empty %s tag in %s", tag, path)
	}
	return os.WriteFile(outputPath, output, 0644)
}

// checkExiftoolAvailable reports whether exiftool can be started
func checkExiftoolAvailable() bool {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return false
	}
	et.Close()
	return true
}
