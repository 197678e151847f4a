package vision

import (
	"fmt"
	"image"
	"math"

	"github.com/your-org/kiosk/internal/models"
)

// MatchResult is the outcome of matching one frame against the roster.
type MatchResult struct {
	// FaceFound is false when the frame had no detectable face; the other
	// fields are then meaningless.
	FaceFound bool
	// Matched is true when the closest roster entry is also within
	// tolerance. The closest of a set of bad matches does not count.
	Matched   bool
	BestIndex int
	PersonID  int64
	PictureID int64
	// Encoding is the probe face's encoding, kept for storage when the
	// match leads to a recorded time entry.
	Encoding []float32
}

// Matcher identifies the primary face in a frame against a roster of known
// encodings using Euclidean distance.
type Matcher struct {
	detector  *Detector
	embedder  *Embedder
	tolerance float32
}

func NewMatcher(detector *Detector, embedder *Embedder, tolerance float64) *Matcher {
	return &Matcher{
		detector:  detector,
		embedder:  embedder,
		tolerance: float32(tolerance),
	}
}

// Match locates the primary face, encodes it and compares it against every
// roster entry. The best match is the arg-min distance, accepted only when
// that distance is also below tolerance.
func (m *Matcher) Match(img image.Image, roster []models.RosterEntry) (MatchResult, error) {
	bounds := img.Bounds()
	detInput := preprocessForDetection(img, m.detector.inputW, m.detector.inputH)

	face, err := m.detector.PrimaryFace(detInput, bounds.Dx(), bounds.Dy())
	if err != nil {
		return MatchResult{}, fmt.Errorf("detect face: %w", err)
	}
	if face == nil {
		return MatchResult{}, nil
	}

	crop := cropFace(img, face.BBox)
	if crop == nil {
		return MatchResult{}, nil
	}

	encoding, err := m.embedder.Encode(preprocessForEmbedding(crop, m.embedder.inputW, m.embedder.inputH))
	if err != nil {
		return MatchResult{}, fmt.Errorf("encode face: %w", err)
	}

	result := MatchResult{FaceFound: true, Encoding: encoding}

	best, ok := BestMatch(roster, encoding, m.tolerance)
	if ok {
		result.Matched = true
		result.BestIndex = best
		result.PersonID = roster[best].PersonID
		result.PictureID = roster[best].PictureID
	}

	return result, nil
}

// EncodeFace locates the primary face in img and returns its encoding, or
// nil when no face is detectable. Used by enrollment, which needs encodings
// without a roster to match against.
func (m *Matcher) EncodeFace(img image.Image) ([]float32, error) {
	bounds := img.Bounds()
	detInput := preprocessForDetection(img, m.detector.inputW, m.detector.inputH)

	face, err := m.detector.PrimaryFace(detInput, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, fmt.Errorf("detect face: %w", err)
	}
	if face == nil {
		return nil, nil
	}

	crop := cropFace(img, face.BBox)
	if crop == nil {
		return nil, nil
	}

	return m.embedder.Encode(preprocessForEmbedding(crop, m.embedder.inputW, m.embedder.inputH))
}

// BestMatch returns the index of the roster entry closest to probe and
// whether that entry is within tolerance. An empty roster never matches.
func BestMatch(roster []models.RosterEntry, probe []float32, tolerance float32) (int, bool) {
	if len(roster) == 0 {
		return 0, false
	}

	bestIdx := 0
	bestDist := float32(math.Inf(1))
	for i, entry := range roster {
		d := EuclideanDistance(entry.Encoding, probe)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}

	return bestIdx, bestDist < tolerance
}

// EuclideanDistance computes the L2 distance between two encodings.
// Mismatched lengths compare as infinitely far apart.
func EuclideanDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return float32(math.Inf(1))
	}
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
