package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Config holds the ensemble hyperparameters
type Config struct {
	NEstimators    int
	MaxDepth       int // 0 = unlimited
	MinSamplesLeaf int
	MaxFeatures    string // sqrt, log2, all
	Balanced       bool   // classification only: undersample the majority class per tree
	Seed           uint64
}

// Forest is a bagged ensemble of CART trees; predictions are the mean over trees
type Forest struct {
	Trees    []Tree `json:"trees"`
	Features int    `json:"features"`
}

// FitClassifier fits a random forest on 0/1 labels. Predict returns P(y=1).
func FitClassifier(X [][]float64, y []int, cfg Config) (*Forest, error) {
	if err := checkShape(X, len(y), cfg); err != nil {
		return nil, err
	}

	target := make([]float64, len(y))
	var pos, neg []int
	for i, v := range y {
		switch v {
		case 0:
			neg = append(neg, i)
		case 1:
			pos = append(pos, i)
			target[i] = 1
		default:
			return nil, fmt.Errorf("label %d at row %d: want 0 or 1", v, i)
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return nil, errors.New("training labels contain a single class")
	}

	return fit(X, target, cfg, func(rng *rand.Rand) []int {
		if cfg.Balanced {
			return balancedBootstrap(pos, neg, rng)
		}
		return bootstrap(len(y), rng)
	})
}

// FitRegressor fits a random forest on continuous targets
func FitRegressor(X [][]float64, y []float64, cfg Config) (*Forest, error) {
	if err := checkShape(X, len(y), cfg); err != nil {
		return nil, err
	}
	return fit(X, y, cfg, func(rng *rand.Rand) []int {
		return bootstrap(len(y), rng)
	})
}

func fit(X [][]float64, y []float64, cfg Config, sample func(*rand.Rand) []int) (*Forest, error) {
	mtry, err := maxFeatures(cfg.MaxFeatures, len(X[0]))
	if err != nil {
		return nil, err
	}

	f := &Forest{Trees: make([]Tree, cfg.NEstimators), Features: len(X[0])}
	for i := range f.Trees {
		// 트리별 독립 스트림: 같은 seed → 같은 forest
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
		f.Trees[i] = grow(X, y, sample(rng), cfg, mtry, rng)
	}
	return f, nil
}

// Predict returns the mean tree output for one row
func (f *Forest) Predict(x []float64) float64 {
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// PredictAll scores every row of X
func (f *Forest) PredictAll(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != f.Features {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(x), f.Features)
		}
		out[i] = f.Predict(x)
	}
	return out, nil
}

func checkShape(X [][]float64, n int, cfg Config) error {
	if len(X) == 0 {
		return errors.New("no training rows")
	}
	if len(X) != n {
		return fmt.Errorf("%d rows but %d targets", len(X), n)
	}
	width := len(X[0])
	if width == 0 {
		return errors.New("no features")
	}
	for i, x := range X {
		if len(x) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(x), width)
		}
		for _, v := range x {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d contains a non-finite value", i)
			}
		}
	}
	if cfg.NEstimators <= 0 {
		return errors.New("n_estimators must be > 0")
	}
	return nil
}

func maxFeatures(mode string, p int) (int, error) {
	switch mode {
	case "", "sqrt":
		return max(1, int(math.Sqrt(float64(p)))), nil
	case "log2":
		return max(1, int(math.Log2(float64(p)))), nil
	case "all":
		return p, nil
	default:
		return 0, fmt.Errorf("unknown max_features %q", mode)
	}
}

func bootstrap(n int, rng *rand.Rand) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = rng.IntN(n)
	}
	return out
}

// balancedBootstrap undersamples the majority class to the minority size without
// replacement, then bootstraps the balanced set
func balancedBootstrap(pos, neg []int, rng *rand.Rand) []int {
	minority, majority := pos, neg
	if len(minority) > len(majority) {
		minority, majority = majority, minority
	}

	picked := make([]int, len(majority))
	copy(picked, majority)
	rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })

	balanced := make([]int, 0, 2*len(minority))
	balanced = append(balanced, minority...)
	balanced = append(balanced, picked[:len(minority)]...)

	out := make([]int, len(balanced))
	for i := range out {
		out[i] = balanced[rng.IntN(len(balanced))]
	}
	return out
}
