package valuation

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/leadscore/internal/forest"
	"github.com/wonny/leadscore/internal/params"
)

// ErrNoTarget is returned by Train when no row has a known booking value
var ErrNoTarget = errors.New("no rows with a known booking value")

// Model estimates the potential booking value of a lead
type Model struct {
	Inputs []int          `json:"inputs"` // 모델 행렬에서 사용하는 컬럼
	Forest *forest.Forest `json:"forest"`
}

// Train fits a random forest regressor on the rows whose target is known (not NaN).
// inputs selects the columns of X the regressor sees.
func Train(X [][]float64, target []float64, inputs []int, p params.ValueParams, logger zerolog.Logger) (*Model, error) {
	if len(X) != len(target) {
		return nil, fmt.Errorf("%d rows but %d targets", len(X), len(target))
	}
	if len(inputs) == 0 {
		return nil, errors.New("value model has no input columns")
	}

	var (
		rows [][]float64
		y    []float64
	)
	for i, v := range target {
		if math.IsNaN(v) {
			continue
		}
		rows = append(rows, pick(X[i], inputs))
		y = append(y, v)
	}
	if len(y) == 0 {
		return nil, ErrNoTarget
	}

	f, err := forest.FitRegressor(rows, y, forest.Config{
		NEstimators:    p.NEstimators,
		MaxDepth:       p.MaxDepth,
		MinSamplesLeaf: p.MinSamplesLeaf,
		MaxFeatures:    "all",
		Seed:           p.RandomState,
	})
	if err != nil {
		return nil, fmt.Errorf("fit regressor: %w", err)
	}

	logger.Info().
		Str("component", "valuation").
		Int("rows", len(y)).
		Int("skipped", len(target)-len(y)).
		Msg("Value model trained")

	return &Model{Inputs: append([]int(nil), inputs...), Forest: f}, nil
}

// Predict returns the estimated booking value of every row of X
func (m *Model) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		for _, c := range m.Inputs {
			if c >= len(x) {
				return nil, fmt.Errorf("row %d has %d columns, value model reads column %d", i, len(x), c)
			}
		}
		out[i] = m.Forest.Predict(pick(x, m.Inputs))
	}
	return out, nil
}

// Booked returns the transaction total of the leads with at least one booking and NaN
// for the others. Both inputs are per lead; NaN bookings count as none.
func Booked(bookings, totals []float64) []float64 {
	out := make([]float64, len(bookings))
	for i, n := range bookings {
		out[i] = math.NaN()
		if !math.IsNaN(n) && n > 0 && i < len(totals) {
			out[i] = totals[i]
		}
	}
	return out
}

// Correct prefers the observed value of a lead over the estimate when it is known
func Correct(estimates, observed []float64) []float64 {
	out := make([]float64, len(estimates))
	for i, v := range estimates {
		if i < len(observed) && !math.IsNaN(observed[i]) {
			v = observed[i]
		}
		out[i] = v
	}
	return out
}

func pick(x []float64, cols []int) []float64 {
	out := make([]float64, len(cols))
	for j, c := range cols {
		out[j] = x[c]
	}
	return out
}
