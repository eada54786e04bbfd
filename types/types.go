package types

import "math/bits"

// FingerprintKind names a perceptual fingerprint algorithm
type FingerprintKind string

const (
	// FingerprintAverage is the 8x8 mean-threshold hash (broad similarity layer)
	FingerprintAverage FingerprintKind = "average"
	// FingerprintDifference is the gradient hash (structural layer)
	FingerprintDifference FingerprintKind = "difference"
	// FingerprintWavelet is the Haar-wavelet hash (compression/resize layer)
	FingerprintWavelet FingerprintKind = "wavelet"
	// FingerprintPerceptual is the 32x32 DCT hash (near-exact layer)
	FingerprintPerceptual FingerprintKind = "perceptual"
)

// Fingerprint is a fixed-width 64-bit perceptual signature
type Fingerprint uint64

// Distance returns the Hamming distance between two fingerprints
func (f Fingerprint) Distance(other Fingerprint) int {
	return bits.OnesCount64(uint64(f) ^ uint64(other))
}

// ImageRecord holds everything known about one scanned image file.
// A record is created by the scanner, has hashes attached by exactly one
// worker at a time, and must not be reused after its file has been relocated.
type ImageRecord struct {
	Path        string `json:"path"`
	SidecarPath string `json:"sidecar_path,omitempty"`
	Size        int64  `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`

	// ContentHash is the hex SHA-256 of the raw bytes, filled lazily
	ContentHash string `json:"content_hash,omitempty"`

	// Fingerprints is populated incrementally as detection layers run;
	// a kind is never recomputed once present
	Fingerprints map[FingerprintKind]Fingerprint `json:"fingerprints,omitempty"`

	// DecodeFailed marks a file that could not be decoded as an image;
	// such records are excluded from perceptual layers
	DecodeFailed bool `json:"decode_failed,omitempty"`

	// HashFailed marks a file whose content hash could not be computed
	// even after a retry; it is excluded from the exact layer too
	HashFailed bool `json:"hash_failed,omitempty"`
}

// PixelArea returns the total pixel count of the image
func (r *ImageRecord) PixelArea() int64 {
	return int64(r.Width) * int64(r.Height)
}

// Fingerprint returns the stored fingerprint of the given kind, if present
func (r *ImageRecord) Fingerprint(kind FingerprintKind) (Fingerprint, bool) {
	fp, ok := r.Fingerprints[kind]
	return fp, ok
}

// SetFingerprint attaches a computed fingerprint to the record.
// Safe under the hashing pool because each record is written by one worker.
func (r *ImageRecord) SetFingerprint(kind FingerprintKind, fp Fingerprint) {
	if r.Fingerprints == nil {
		r.Fingerprints = make(map[FingerprintKind]Fingerprint)
	}
	r.Fingerprints[kind] = fp
}

// HasSidecar reports whether a caption sidecar was found at scan time
func (r *ImageRecord) HasSidecar() bool {
	return r.SidecarPath != ""
}

// DuplicateGroup is a set of records connected by one detection layer.
// Within a session each record belongs to at most one group, and a group
// always has at least two members.
type DuplicateGroup struct {
	Layer   string
	Members []*ImageRecord
}

// Relocation pairs a losing record with its quarantine destination
type Relocation struct {
	Record      *ImageRecord
	Destination string
}

// ResolutionPlan is a side-effect-free decision for one duplicate group:
// a single keeper, ordered relocations for every other member, and a
// human-readable reason for the choice
type ResolutionPlan struct {
	Group       *DuplicateGroup
	Keeper      *ImageRecord
	Relocations []Relocation
	Reason      string
}

// SessionSummary aggregates the outcome of one deduplication session
type SessionSummary struct {
	SessionID      string
	Scanned        int
	GroupsFound    int
	Kept           int
	Moved          int
	BytesReclaimed int64
	MovedByLayer   map[string]int
	SkippedGroups  int
	SkippedLayers  int
	Errors         int
	Aborted        bool
}

// NewSessionSummary returns an empty summary ready for accumulation
func NewSessionSummary(sessionID string) *SessionSummary {
	return &SessionSummary{
		SessionID:    sessionID,
		MovedByLayer: make(map[string]int),
	}
}
