package imageprocessor

import (
	"imagededup/logging"

	"github.com/barasher/go-exiftool"
)

// ExifProbe derives an opaque quality signal from a file's metadata richness.
// Camera originals carry dozens of EXIF tags; stripped re-saves and web
// downloads carry few or none. The scorer consumes the tag count as an
// external signal and tolerates its absence.
type ExifProbe struct {
	et *exiftool.Exiftool
}

// NewExifProbe starts a long-lived exiftool process. Returns an error when
// exiftool is not installed; callers fall back to intrinsic metrics only.
func NewExifProbe() (*ExifProbe, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, err
	}
	return &ExifProbe{et: et}, nil
}

// Signal returns the number of metadata tags found in the file.
// ok is false when extraction fails; the record then scores on intrinsic
// metrics alone.
func (p *ExifProbe) Signal(path string) (float64, bool) {
	infos := p.et.ExtractMetadata(path)
	if len(infos) == 0 {
		return 0, false
	}
	if infos[0].Err != nil {
		logging.DebugLog("EXIF probe failed for %s: %v", path, infos[0].Err)
		return 0, false
	}
	return float64(len(infos[0].Fields)), true
}

// Close stops the underlying exiftool process
func (p *ExifProbe) Close() {
	if p.et != nil {
		p.et.Close()
	}
}
