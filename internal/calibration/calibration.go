package calibration

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Methods
const (
	MethodSigmoid  = "sigmoid"
	MethodIsotonic = "isotonic"
)

// Calibrator maps raw classifier scores to calibrated probabilities.
// Exactly one of Sigmoid and Isotonic is set.
type Calibrator struct {
	Method   string    `json:"method"`
	Sigmoid  *Sigmoid  `json:"sigmoid,omitempty"`
	Isotonic *Isotonic `json:"isotonic,omitempty"`
}

// Fit learns a calibrator of the given method from held-out scores and labels
func Fit(method string, scores []float64, y []int) (*Calibrator, error) {
	if len(scores) == 0 {
		return nil, errors.New("no calibration samples")
	}
	if len(scores) != len(y) {
		return nil, fmt.Errorf("%d scores but %d labels", len(scores), len(y))
	}

	switch method {
	case MethodSigmoid:
		s := FitSigmoid(scores, y)
		return &Calibrator{Method: method, Sigmoid: &s}, nil
	case MethodIsotonic:
		iso := FitIsotonic(scores, y)
		return &Calibrator{Method: method, Isotonic: &iso}, nil
	default:
		return nil, fmt.Errorf("unknown calibration method %q", method)
	}
}

// Apply calibrates one score
func (c *Calibrator) Apply(score float64) float64 {
	switch {
	case c.Sigmoid != nil:
		return c.Sigmoid.Apply(score)
	case c.Isotonic != nil:
		return c.Isotonic.Apply(score)
	}
	return score
}

// Sigmoid is Platt scaling: p = 1 / (1 + exp(A*score + B))
type Sigmoid struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// FitSigmoid fits Platt scaling with smoothed targets by Newton's method with backtracking
func FitSigmoid(scores []float64, y []int) Sigmoid {
	var prior0, prior1 float64
	for _, v := range y {
		if v == 1 {
			prior1++
		} else {
			prior0++
		}
	}

	hi := (prior1 + 1) / (prior1 + 2)
	lo := 1 / (prior0 + 2)
	t := make([]float64, len(y))
	for i, v := range y {
		if v == 1 {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)

	a, b := 0.0, math.Log((prior0+1)/(prior1+1))
	fval := plattLoss(scores, t, a, b)

	for it := 0; it < maxIter; it++ {
		h11, h22, h21 := sigma, sigma, 0.0
		g1, g2 := 0.0, 0.0
		for i, f := range scores {
			z := f*a + b
			var p, q float64
			if z >= 0 {
				p = math.Exp(-z) / (1 + math.Exp(-z))
				q = 1 / (1 + math.Exp(-z))
			} else {
				p = 1 / (1 + math.Exp(z))
				q = math.Exp(z) / (1 + math.Exp(z))
			}
			d2 := p * q
			h11 += f * f * d2
			h22 += d2
			h21 += f * d2
			d1 := t[i] - p
			g1 += f * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		da := -(h22*g1 - h21*g2) / det
		db := -(-h21*g1 + h11*g2) / det
		gd := g1*da + g2*db

		step := 1.0
		for step >= minStep {
			na, nb := a+step*da, b+step*db
			nf := plattLoss(scores, t, na, nb)
			if nf < fval+1e-4*step*gd {
				a, b, fval = na, nb, nf
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}

	return Sigmoid{A: a, B: b}
}

func plattLoss(scores, t []float64, a, b float64) float64 {
	loss := 0.0
	for i, f := range scores {
		z := f*a + b
		if z >= 0 {
			loss += t[i]*z + math.Log1p(math.Exp(-z))
		} else {
			loss += (t[i]-1)*z + math.Log1p(math.Exp(z))
		}
	}
	return loss
}

// Apply maps a score through the fitted sigmoid
func (s Sigmoid) Apply(score float64) float64 {
	return 1 / (1 + math.Exp(s.A*score+s.B))
}

// Isotonic is a non-decreasing step function fitted by pool adjacent violators,
// interpolated linearly between knots and clipped outside them
type Isotonic struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// FitIsotonic fits a non-decreasing map from scores to label frequency
func FitIsotonic(scores []float64, y []int) Isotonic {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return scores[idx[i]] < scores[idx[j]] })

	// 동일 score는 하나의 블록으로 합침
	type block struct {
		x, sum, weight float64
	}
	var blocks []block
	for _, i := range idx {
		v := float64(y[i])
		if n := len(blocks); n > 0 && blocks[n-1].x == scores[i] {
			blocks[n-1].sum += v
			blocks[n-1].weight++
			continue
		}
		blocks = append(blocks, block{x: scores[i], sum: v, weight: 1})
	}

	xs := make([]float64, len(blocks))
	means := make([]float64, len(blocks))
	weights := make([]float64, len(blocks))
	for i, b := range blocks {
		xs[i] = b.x
		means[i] = b.sum / b.weight
		weights[i] = b.weight
	}

	return Isotonic{X: xs, Y: pav(means, weights)}
}

// pav returns the weighted least-squares non-decreasing fit of values
func pav(values, weights []float64) []float64 {
	type pool struct {
		mean, weight float64
		count        int
	}
	pools := make([]pool, 0, len(values))
	for i, v := range values {
		pools = append(pools, pool{mean: v, weight: weights[i], count: 1})
		for n := len(pools); n > 1 && pools[n-2].mean > pools[n-1].mean; n = len(pools) {
			a, b := pools[n-2], pools[n-1]
			w := a.weight + b.weight
			pools[n-2] = pool{mean: (a.mean*a.weight + b.mean*b.weight) / w, weight: w, count: a.count + b.count}
			pools = pools[:n-1]
		}
	}

	out := make([]float64, 0, len(values))
	for _, p := range pools {
		for k := 0; k < p.count; k++ {
			out = append(out, p.mean)
		}
	}
	return out
}

// Apply interpolates the fitted step function at score
func (iso Isotonic) Apply(score float64) float64 {
	n := len(iso.X)
	switch {
	case n == 0:
		return score
	case score <= iso.X[0]:
		return iso.Y[0]
	case score >= iso.X[n-1]:
		return iso.Y[n-1]
	}

	j := sort.SearchFloat64s(iso.X, score)
	if iso.X[j] == score {
		return iso.Y[j]
	}
	x0, x1 := iso.X[j-1], iso.X[j]
	y0, y1 := iso.Y[j-1], iso.Y[j]
	return y0 + (y1-y0)*(score-x0)/(x1-x0)
}

// Brier returns the mean squared difference between probabilities and 0/1 outcomes
func Brier(probs []float64, y []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	diff := make([]float64, len(probs))
	for i, p := range probs {
		diff[i] = p - float64(y[i])
	}
	return floats.Dot(diff, diff) / float64(len(diff))
}
