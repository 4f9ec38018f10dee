package calibration

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitSigmoid(t *testing.T) {
	// higher score means more positives
	var scores []float64
	var y []int
	for i := 0; i < 100; i++ {
		s := float64(i) / 100
		scores = append(scores, s)
		if i%10 < int(s*10) {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	s := FitSigmoid(scores, y)
	assert.Less(t, s.A, 0.0, "increasing map has a negative slope in Platt form")

	low, high := s.Apply(0.05), s.Apply(0.95)
	assert.Less(t, low, high)
	assert.Greater(t, low, 0.0)
	assert.Less(t, high, 1.0)
	assert.InDelta(t, 0.5, s.Apply(0.5), 0.1)
}

func TestFitIsotonic(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	y := []int{0, 1, 0, 0, 1, 1}

	iso := FitIsotonic(scores, y)
	assert.Equal(t, scores, iso.X)
	// 0.2 and 0.3, 0.4 violate order and pool to 1/3
	assert.InDeltaSlice(t, []float64{0, 1.0 / 3, 1.0 / 3, 1.0 / 3, 1, 1}, iso.Y, 1e-12)
	assert.True(t, sort.Float64sAreSorted(iso.Y))

	assert.Equal(t, 0.0, iso.Apply(-1), "clipped below")
	assert.Equal(t, 1.0, iso.Apply(2), "clipped above")
	assert.InDelta(t, 1.0/6, iso.Apply(0.15), 1e-12, "interpolated")
	assert.InDelta(t, 1.0/3, iso.Apply(0.3), 1e-12)
}

func TestFitIsotonicTies(t *testing.T) {
	iso := FitIsotonic([]float64{0.5, 0.5, 0.9, 0.1}, []int{1, 0, 1, 0})
	assert.Equal(t, []float64{0.1, 0.5, 0.9}, iso.X)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, iso.Y, 1e-12)
}

func TestFit(t *testing.T) {
	scores := []float64{0.1, 0.4, 0.6, 0.9}
	y := []int{0, 0, 1, 1}

	for _, method := range []string{MethodSigmoid, MethodIsotonic} {
		c, err := Fit(method, scores, y)
		require.NoError(t, err, method)
		assert.Equal(t, method, c.Method)
		assert.Less(t, c.Apply(0.1), c.Apply(0.9), method)
	}

	_, err := Fit("beta", scores, y)
	assert.Error(t, err)
	_, err = Fit(MethodSigmoid, nil, nil)
	assert.Error(t, err)
	_, err = Fit(MethodSigmoid, scores, y[:2])
	assert.Error(t, err)
}

func TestBrier(t *testing.T) {
	assert.Equal(t, 0.0, Brier([]float64{1, 0}, []int{1, 0}))
	assert.InDelta(t, 0.25, Brier([]float64{0.5, 0.5}, []int{1, 0}), 1e-12)
	assert.InDelta(t, 1.0, Brier([]float64{0, 1}, []int{1, 0}), 1e-12)
	assert.False(t, math.IsNaN(Brier(nil, nil)))
}

func TestStratifiedFolds(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 0, 1, 1, 1}
	folds, err := StratifiedFolds(y, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := make(map[int]bool)
	for _, fold := range folds {
		pos := 0
		for _, i := range fold {
			assert.False(t, seen[i], "row in two folds")
			seen[i] = true
			pos += y[i]
		}
		assert.Len(t, fold, 3)
		assert.Equal(t, 1, pos)
	}
	assert.Len(t, seen, len(y))

	train := Complement(len(y), folds[0])
	assert.Len(t, train, 6)

	_, err = StratifiedFolds(y, 4)
	assert.Error(t, err, "three positives cannot fill four folds")
	_, err = StratifiedFolds(y, 1)
	assert.Error(t, err)
}
