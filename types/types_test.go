package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDistance(t *testing.T) {
	assert.Equal(t, 0, Fingerprint(0).Distance(Fingerprint(0)))
	assert.Equal(t, 1, Fingerprint(0).Distance(Fingerprint(1)))
	assert.Equal(t, 64, Fingerprint(0).Distance(Fingerprint(^uint64(0))))

	// Distance is symmetric
	a := Fingerprint(0xDEADBEEF12345678)
	b := Fingerprint(0x12345678DEADBEEF)
	assert.Equal(t, a.Distance(b), b.Distance(a))
}

func TestImageRecordPixelArea(t *testing.T) {
	r := &ImageRecord{Width: 1920, Height: 1080}
	assert.Equal(t, int64(2073600), r.PixelArea())

	// Unprobed dimensions yield zero area, not a panic
	assert.Equal(t, int64(0), (&ImageRecord{}).PixelArea())
}

func TestImageRecordFingerprints(t *testing.T) {
	r := &ImageRecord{Path: "/data/a.png"}

	_, ok := r.Fingerprint(FingerprintAverage)
	assert.False(t, ok)

	r.SetFingerprint(FingerprintAverage, Fingerprint(42))
	fp, ok := r.Fingerprint(FingerprintAverage)
	require.True(t, ok)
	assert.Equal(t, Fingerprint(42), fp)

	// Kinds are independent
	_, ok = r.Fingerprint(FingerprintWavelet)
	assert.False(t, ok)
}

func TestImageRecordHasSidecar(t *testing.T) {
	assert.False(t, (&ImageRecord{Path: "/data/a.png"}).HasSidecar())
	assert.True(t, (&ImageRecord{Path: "/data/a.png", SidecarPath: "/data/a.txt"}).HasSidecar())
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("truncated file")

	var err error = &DecodeError{Path: "/data/a.png", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/data/a.png")

	err = &HashComputeError{Path: "/data/b.png", Err: cause}
	assert.ErrorIs(t, err, cause)

	err = &ScoringFallbackError{Path: "/data/c.png", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestPartialRelocationError(t *testing.T) {
	cause := errors.New("permission denied")
	err := &PartialRelocationError{
		ImagePath:   "/data/a.png",
		SidecarPath: "/data/a.txt",
		ImageMoved:  true,
		Err:         cause,
	}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/data/a.txt")
}
