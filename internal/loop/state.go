package loop

import (
	"time"

	"github.com/your-org/kiosk/internal/camera"
)

// DetectionState is the loop's working memory: the three detector flags,
// their timestamps, and the identity captured by the last successful face
// match. The loop owns it exclusively; nothing else writes to it.
type DetectionState struct {
	MaskDetected   bool
	FaceRecognized bool
	TempOK         bool

	LastMaskCheck time.Time
	LastFaceCheck time.Time
	LastTempCheck time.Time
	// MaskSeenAt and FaceSeenAt anchor their flags' freshness windows; each
	// flag is cleared once its window elapses regardless of later
	// detections.
	MaskSeenAt  time.Time
	FaceSeenAt  time.Time
	LastWelcome time.Time

	PersonID  int64
	BestIndex int
	Encoding  []float32
	Frame     *camera.Frame
}

// Reset clears every flag and captured identity and pins every timestamp to
// now, so the next iterations sit in the post-welcome cooldown. Applied after
// every door decision, granted or rejected.
func (s *DetectionState) Reset(now time.Time) {
	*s = DetectionState{
		LastMaskCheck: now,
		LastFaceCheck: now,
		LastTempCheck: now,
		MaskSeenAt:    now,
		FaceSeenAt:    now,
		LastWelcome:   now,
	}
}

// intervalPassed is the loop's single notion of "cadence elapsed": strictly
// greater than, never greater-or-equal.
func intervalPassed(now, since time.Time, interval time.Duration) bool {
	return now.Sub(since) > interval
}
