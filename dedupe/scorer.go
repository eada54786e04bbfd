package dedupe

import (
	"imagededup/imageprocessor"
	"imagededup/types"
)

// SignalFunc supplies an optional external quality signal for a file, such
// as an object-detector confidence or a metadata-richness probe. The second
// return value is false when no signal is available.
type SignalFunc func(path string) (float64, bool)

// Quality is a totally ordered quality value for one record. Comparison
// priority: pixel area, external signal, sharpness, byte size, and finally
// the path as a deterministic tie-break. A degraded quality (pixel data
// could not be reloaded) always loses.
type Quality struct {
	Area      int64
	Signal    float64
	HasSignal bool
	Sharpness float64
	Size      int64
	Path      string
	Degraded  bool
}

// Better reports whether q ranks strictly above other
func (q Quality) Better(other Quality) bool {
	if q.Degraded != other.Degraded {
		return !q.Degraded
	}
	if q.Area != other.Area {
		return q.Area > other.Area
	}
	if q.HasSignal && other.HasSignal && q.Signal != other.Signal {
		return q.Signal > other.Signal
	}
	if q.Sharpness != other.Sharpness {
		return q.Sharpness > other.Sharpness
	}
	if q.Size != other.Size {
		return q.Size > other.Size
	}
	return q.Path < other.Path
}

// Scorer computes Quality values for records. Scoring runs single-threaded
// after grouping, so the scorer needs no internal locking.
type Scorer struct {
	hasher *imageprocessor.Hasher
	signal SignalFunc
}

// NewScorer creates a scorer; signal may be nil when no external signal
// provider is configured
func NewScorer(hasher *imageprocessor.Hasher, signal SignalFunc) *Scorer {
	return &Scorer{hasher: hasher, signal: signal}
}

// Score computes the quality of one record, reloading pixel data for the
// sharpness measure. When the pixels cannot be reloaded the record is
// scored as lowest priority and a ScoringFallbackError is returned along
// with the degraded quality.
func (s *Scorer) Score(record *types.ImageRecord) (Quality, error) {
	q := Quality{
		Area: record.PixelArea(),
		Size: record.Size,
		Path: record.Path,
	}

	if s.signal != nil {
		if v, ok := s.signal(record.Path); ok {
			q.Signal = v
			q.HasSignal = true
		}
	}

	sharpness, err := s.hasher.Sharpness(record.Path)
	if err != nil {
		q.Degraded = true
		return q, &types.ScoringFallbackError{Path: record.Path, Err: err}
	}
	q.Sharpness = sharpness

	return q, nil
}
