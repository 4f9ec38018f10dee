package propensity

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/leadscore/internal/calibration"
	"github.com/wonny/leadscore/internal/forest"
	"github.com/wonny/leadscore/internal/params"
)

// ErrQuality is returned by Check when a retrained model misses its thresholds
var ErrQuality = errors.New("model below quality threshold")

// Member is one fitted classifier with its calibrator (nil when uncalibrated)
type Member struct {
	Forest     *forest.Forest          `json:"forest"`
	Calibrator *calibration.Calibrator `json:"calibrator,omitempty"`
}

// Model is the booking propensity classifier.
// With calibration it is the average over cv (forest, calibrator) pairs, each forest
// fitted on cv-1 folds and calibrated on the held-out fold.
type Model struct {
	Method  string   `json:"method,omitempty"`
	Members []Member `json:"members"`
}

// Train fits the classifier on the model matrix X and 0/1 labels y
func Train(X [][]float64, y []int, est params.EstimatorParams, cal params.CalibrationParams, logger zerolog.Logger) (*Model, error) {
	logger = logger.With().Str("component", "propensity").Logger()

	cfg := forest.Config{
		NEstimators:    est.NEstimators,
		MaxDepth:       est.MaxDepth,
		MinSamplesLeaf: est.MinSamplesLeaf,
		MaxFeatures:    est.MaxFeatures,
		Balanced:       est.SamplingStrategy != "none",
		Seed:           est.RandomState,
	}

	if !cal.Enabled() {
		f, err := forest.FitClassifier(X, y, cfg)
		if err != nil {
			return nil, fmt.Errorf("fit classifier: %w", err)
		}
		logger.Info().Int("rows", len(X)).Int("trees", len(f.Trees)).Msg("Classifier trained without calibration")
		return &Model{Members: []Member{{Forest: f}}}, nil
	}

	folds, err := calibration.StratifiedFolds(y, cal.CV)
	if err != nil {
		return nil, fmt.Errorf("calibration folds: %w", err)
	}

	m := &Model{Method: cal.Method}
	for k, test := range folds {
		train := calibration.Complement(len(X), test)

		f, err := forest.FitClassifier(rows(X, train), labels(y, train), cfg)
		if err != nil {
			return nil, fmt.Errorf("fold %d: fit classifier: %w", k, err)
		}

		scores, err := f.PredictAll(rows(X, test))
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", k, err)
		}
		c, err := calibration.Fit(cal.Method, scores, labels(y, test))
		if err != nil {
			return nil, fmt.Errorf("fold %d: calibrate: %w", k, err)
		}

		m.Members = append(m.Members, Member{Forest: f, Calibrator: c})
	}

	logger.Info().
		Int("rows", len(X)).
		Str("method", cal.Method).
		Int("cv", cal.CV).
		Msg("Calibrated classifier trained")

	return m, nil
}

// Predict returns the booking probability of every row of X
func (m *Model) Predict(X [][]float64) ([]float64, error) {
	if len(m.Members) == 0 {
		return nil, errors.New("propensity model has no members")
	}

	out := make([]float64, len(X))
	for _, member := range m.Members {
		scores, err := member.Forest.PredictAll(X)
		if err != nil {
			return nil, err
		}
		for i, s := range scores {
			if member.Calibrator != nil {
				s = member.Calibrator.Apply(s)
			}
			out[i] += s
		}
	}

	n := float64(len(m.Members))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}

// Report summarises a quality check
type Report struct {
	Rows      int     `json:"rows"`
	Positives int     `json:"positives"`
	Brier     float64 `json:"brier"`
}

// Check scores the model on X and fails with ErrQuality when the sample is too small
// or the Brier score is above max_brier (0 disables each check)
func Check(m *Model, X [][]float64, y []int, q params.Quality) (Report, error) {
	r := Report{Rows: len(y)}
	for _, v := range y {
		r.Positives += v
	}

	if q.MinSamples > 0 && r.Rows < q.MinSamples {
		return r, fmt.Errorf("%w: %d rows, need %d", ErrQuality, r.Rows, q.MinSamples)
	}

	probs, err := m.Predict(X)
	if err != nil {
		return r, err
	}
	r.Brier = calibration.Brier(probs, y)

	if q.MaxBrier > 0 && r.Brier > q.MaxBrier {
		return r, fmt.Errorf("%w: brier %.4f > %.4f", ErrQuality, r.Brier, q.MaxBrier)
	}
	return r, nil
}

func rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func labels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
