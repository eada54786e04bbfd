package types

import (
	"errors"
	"fmt"
)

// ErrSessionAborted signals a user-initiated stop. It is not a failure:
// the session returns a summary reflecting the work done so far.
var ErrSessionAborted = errors.New("session aborted by user")

// DecodeError marks a file that could not be decoded as an image.
// The file is excluded from perceptual layers but may still exact-match.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HashComputeError marks a transient I/O failure while hashing a file.
// The hash is retried once before this is reported and the file excluded.
type HashComputeError struct {
	Path string
	Err  error
}

func (e *HashComputeError) Error() string {
	return fmt.Sprintf("cannot hash %s: %v", e.Path, e.Err)
}

func (e *HashComputeError) Unwrap() error { return e.Err }

// ScoringFallbackError marks a record whose quality metrics could not be
// recomputed. The record is scored as lowest priority, never fatal.
type ScoringFallbackError struct {
	Path string
	Err  error
}

func (e *ScoringFallbackError) Error() string {
	return fmt.Sprintf("cannot score %s, treating as lowest quality: %v", e.Path, e.Err)
}

func (e *ScoringFallbackError) Unwrap() error { return e.Err }

// PartialRelocationError reports an image/sidecar pair where one half moved
// and the other did not. The session surfaces it and continues.
type PartialRelocationError struct {
	ImagePath    string
	SidecarPath  string
	ImageMoved   bool
	SidecarMoved bool
	Err          error
}

func (e *PartialRelocationError) Error() string {
	switch {
	case e.ImageMoved && !e.SidecarMoved:
		return fmt.Sprintf("image %s moved but sidecar %s did not: %v", e.ImagePath, e.SidecarPath, e.Err)
	case !e.ImageMoved && e.SidecarMoved:
		return fmt.Sprintf("sidecar %s moved but image %s did not: %v", e.SidecarPath, e.ImagePath, e.Err)
	default:
		return fmt.Sprintf("relocation of %s failed: %v", e.ImagePath, e.Err)
	}
}

func (e *PartialRelocationError) Unwrap() error { return e.Err }
