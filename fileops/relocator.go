package fileops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"imagededup/types"
)

// Relocator moves demoted images and their caption sidecars into the
// quarantine directory. It is used single-threaded so destination collision
// resolution and the reclaimed-bytes counter need no locking.
type Relocator struct {
	quarantineDir  string
	bytesReclaimed int64
}

// NewRelocator creates a relocator targeting the given quarantine directory
func NewRelocator(quarantineDir string) *Relocator {
	return &Relocator{quarantineDir: quarantineDir}
}

// QuarantineDir returns the destination directory for demoted files
func (r *Relocator) QuarantineDir() string {
	return r.quarantineDir
}

// BytesReclaimed returns the cumulative size of relocated image files
func (r *Relocator) BytesReclaimed() int64 {
	return r.bytesReclaimed
}

// MoveResult describes where an image and its sidecar ended up
type MoveResult struct {
	ImageDest   string
	SidecarDest string
	Bytes       int64
}

// Move relocates an image and, if present, its sidecar into quarantine as
// one logical operation. The preferred destination keeps the original
// basename; collisions are resolved with a deterministic numeric suffix,
// never by overwriting. When one half moves and the other fails, a
// PartialRelocationError names the half that succeeded.
func (r *Relocator) Move(imagePath, sidecarPath, preferredDest string) (MoveResult, error) {
	var result MoveResult

	if err := os.MkdirAll(r.quarantineDir, 0755); err != nil {
		return result, fmt.Errorf("cannot create quarantine directory %s: %v", r.quarantineDir, err)
	}

	imageDest, sidecarDest := r.resolveDestination(preferredDest, sidecarPath != "")

	info, err := os.Stat(imagePath)
	if err != nil {
		return result, fmt.Errorf("cannot stat %s: %v", imagePath, err)
	}

	if err := moveFile(imagePath, imageDest); err != nil {
		return result, &types.PartialRelocationError{
			ImagePath:   imagePath,
			SidecarPath: sidecarPath,
			Err:         err,
		}
	}

	result.ImageDest = imageDest
	result.Bytes = info.Size()
	r.bytesReclaimed += info.Size()

	if sidecarPath != "" {
		if err := moveFile(sidecarPath, sidecarDest); err != nil {
			// The image is already in quarantine; report the orphaned
			// sidecar rather than aborting the session
			return result, &types.PartialRelocationError{
				ImagePath:   imagePath,
				SidecarPath: sidecarPath,
				ImageMoved:  true,
				Err:         err,
			}
		}
		result.SidecarDest = sidecarDest
	}

	return result, nil
}

// resolveDestination finds a free destination for the image, and when a
// sidecar travels along, a matching free sidecar name. The pair always
// shares a basename so captions stay discoverable next to their images.
func (r *Relocator) resolveDestination(preferredDest string, hasSidecar bool) (string, string) {
	dir := filepath.Dir(preferredDest)
	base := filepath.Base(preferredDest)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for counter := 0; ; counter++ {
		candidateStem := stem
		if counter > 0 {
			candidateStem = fmt.Sprintf("%s_%d", stem, counter)
		}

		imageDest := filepath.Join(dir, candidateStem+ext)
		sidecarDest := filepath.Join(dir, candidateStem+".txt")

		if pathExists(imageDest) {
			continue
		}
		if hasSidecar && pathExists(sidecarDest) {
			continue
		}

		return imageDest, sidecarDest
	}
}

// moveFile renames a file, falling back to copy-and-remove when the
// destination is on a different filesystem
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	return os.Remove(src)
}

// pathExists checks if a path exists
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
