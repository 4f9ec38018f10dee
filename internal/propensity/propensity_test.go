package propensity

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/leadscore/internal/params"
)

// leads with more engagement convert more often
func synthetic(n int) ([][]float64, []int) {
	rng := rand.New(rand.NewPCG(17, 0))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		engagement := rng.Float64()
		X[i] = []float64{engagement, rng.Float64(), rng.NormFloat64()}
		if rng.Float64() < 0.1+0.6*engagement {
			y[i] = 1
		}
	}
	return X, y
}

func estimator() params.EstimatorParams {
	return params.EstimatorParams{
		NEstimators:      20,
		MaxDepth:         5,
		MinSamplesLeaf:   5,
		MaxFeatures:      "sqrt",
		SamplingStrategy: "balanced",
		RandomState:      42,
	}
}

func TestTrainUncalibrated(t *testing.T) {
	X, y := synthetic(300)
	m, err := Train(X, y, estimator(), params.CalibrationParams{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, m.Members, 1)
	assert.Nil(t, m.Members[0].Calibrator)

	probs, err := m.Predict([][]float64{{0.95, 0.5, 0}, {0.05, 0.5, 0}})
	require.NoError(t, err)
	assert.Greater(t, probs[0], probs[1])
}

func TestTrainCalibrated(t *testing.T) {
	X, y := synthetic(300)

	for _, method := range []string{"sigmoid", "isotonic"} {
		t.Run(method, func(t *testing.T) {
			m, err := Train(X, y, estimator(), params.CalibrationParams{Method: method, CV: 3}, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, method, m.Method)
			require.Len(t, m.Members, 3)
			for _, member := range m.Members {
				assert.NotNil(t, member.Calibrator)
			}

			probs, err := m.Predict(X)
			require.NoError(t, err)
			for _, p := range probs {
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
			}
		})
	}
}

func TestTrainDeterministic(t *testing.T) {
	X, y := synthetic(200)
	cal := params.CalibrationParams{Method: "isotonic", CV: 2}

	a, err := Train(X, y, estimator(), cal, zerolog.Nop())
	require.NoError(t, err)
	b, err := Train(X, y, estimator(), cal, zerolog.Nop())
	require.NoError(t, err)

	pa, err := a.Predict(X[:20])
	require.NoError(t, err)
	pb, err := b.Predict(X[:20])
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestTrainTooFewPerFold(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}}
	y := []int{0, 0, 0, 1}
	_, err := Train(X, y, estimator(), params.CalibrationParams{Method: "sigmoid", CV: 2}, zerolog.Nop())
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	X, y := synthetic(300)
	m, err := Train(X, y, estimator(), params.CalibrationParams{Method: "sigmoid", CV: 3}, zerolog.Nop())
	require.NoError(t, err)

	r, err := Check(m, X, y, params.Quality{MaxBrier: 0.3, MinSamples: 100})
	require.NoError(t, err)
	assert.Equal(t, 300, r.Rows)
	assert.Greater(t, r.Positives, 0)
	assert.Greater(t, r.Brier, 0.0)
	assert.Less(t, r.Brier, 0.3)

	_, err = Check(m, X, y, params.Quality{MaxBrier: 0.01})
	assert.ErrorIs(t, err, ErrQuality)

	_, err = Check(m, X, y, params.Quality{MinSamples: 1000})
	assert.ErrorIs(t, err, ErrQuality)

	// zero thresholds disable the checks
	_, err = Check(m, X, y, params.Quality{})
	assert.NoError(t, err)
}

func TestTrainLogsThroughGivenLogger(t *testing.T) {
	X, y := synthetic(120)
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("run_id", "run-7").Logger()

	_, err := Train(X, y, estimator(), params.CalibrationParams{Method: "sigmoid", CV: 2}, logger)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"run_id":"run-7"`)
	assert.Contains(t, out, `"component":"propensity"`)
	assert.Contains(t, out, "Calibrated classifier trained")
}
