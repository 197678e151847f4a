package vision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/kiosk/internal/models"
)

func TestEuclideanDistance(t *testing.T) {
	assert.InDelta(t, 0.0, EuclideanDistance([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 5.0, EuclideanDistance([]float32{0, 0}, []float32{3, 4}), 1e-6)
	assert.True(t, math.IsInf(float64(EuclideanDistance([]float32{1}, []float32{1, 2})), 1),
		"length mismatch compares as infinitely far")
}

func TestBestMatch(t *testing.T) {
	roster := []models.RosterEntry{
		{PersonID: 1, Encoding: []float32{1.0, 0.0}},
		{PersonID: 2, Encoding: []float32{0.0, 1.0}},
		{PersonID: 3, Encoding: []float32{0.1, 0.9}},
	}

	t.Run("picks arg-min within tolerance", func(t *testing.T) {
		idx, ok := BestMatch(roster, []float32{0.08, 0.92}, 0.5)
		assert.True(t, ok)
		assert.Equal(t, 2, idx)
	})

	t.Run("tie keeps the first entry", func(t *testing.T) {
		// (0.05, 0.95) is equidistant from entries 1 and 2.
		idx, ok := BestMatch(roster, []float32{0.05, 0.95}, 0.5)
		assert.True(t, ok)
		assert.Equal(t, 1, idx)
	})

	t.Run("closest of all bad matches does not count", func(t *testing.T) {
		_, ok := BestMatch(roster, []float32{10, 10}, 0.5)
		assert.False(t, ok)
	})

	t.Run("empty roster never matches", func(t *testing.T) {
		_, ok := BestMatch(nil, []float32{0, 0}, 0.5)
		assert.False(t, ok)
	})

	t.Run("distance equal to tolerance is rejected", func(t *testing.T) {
		single := []models.RosterEntry{{PersonID: 1, Encoding: []float32{0, 0}}}
		_, ok := BestMatch(single, []float32{0.5, 0}, 0.5)
		assert.False(t, ok)

		_, ok = BestMatch(single, []float32{0.49, 0}, 0.5)
		assert.True(t, ok)
	})
}
