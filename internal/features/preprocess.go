package features

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/leadscore/internal/params"
)

// MissingCategory stands in for NULL categorical values
const MissingCategory = "(missing)"

// NumericalColumn: median imputation then standard scaling
type NumericalColumn struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoricalColumn: one-hot encoding. Categories below the frequency threshold share
// one infrequent indicator; categories unseen at fit time encode as all zeros.
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	Infrequent []string `json:"infrequent,omitempty"`
}

// Preprocessor turns a frame into the model matrix. Fitted on training data only.
type Preprocessor struct {
	Numerical   []NumericalColumn   `json:"numerical"`
	Categorical []CategoricalColumn `json:"categorical"`
}

// Fit learns imputation, scaling and encoding from the training frame
func Fit(f *Frame, spec params.Features) (*Preprocessor, error) {
	if f.Len() == 0 {
		return nil, fmt.Errorf("cannot fit preprocessor on an empty frame")
	}

	p := &Preprocessor{}
	for _, name := range spec.Numerical {
		values, err := f.Float(name)
		if err != nil {
			return nil, err
		}
		p.Numerical = append(p.Numerical, fitNumerical(name, values))
	}

	minCount := spec.MinFrequency * float64(f.Len())
	for _, name := range spec.Categorical {
		values, err := f.Text(name)
		if err != nil {
			return nil, err
		}
		p.Categorical = append(p.Categorical, fitCategorical(name, values, minCount))
	}
	return p, nil
}

func fitNumerical(name string, values []float64) NumericalColumn {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}

	col := NumericalColumn{Name: name, Scale: 1}
	if len(present) == 0 {
		return col
	}
	col.Median = median(present)

	imputed := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			v = col.Median
		}
		imputed[i] = v
	}
	mean, std := stat.PopMeanStdDev(imputed, nil)
	col.Mean = mean
	if std > 0 {
		col.Scale = std
	}
	return col
}

func fitCategorical(name string, values []string, minCount float64) CategoricalColumn {
	counts := make(map[string]int)
	for _, v := range values {
		counts[category(v)]++
	}

	col := CategoricalColumn{Name: name}
	for c, n := range counts {
		if float64(n) < minCount {
			col.Infrequent = append(col.Infrequent, c)
		} else {
			col.Categories = append(col.Categories, c)
		}
	}
	sort.Strings(col.Categories)
	sort.Strings(col.Infrequent)
	return col
}

// Width returns the number of output columns
func (p *Preprocessor) Width() int {
	w := len(p.Numerical)
	for _, c := range p.Categorical {
		w += len(c.Categories)
		if len(c.Infrequent) > 0 {
			w++
		}
	}
	return w
}

// FeatureNames returns the output column names, e.g. searches, lead_platform=ios
func (p *Preprocessor) FeatureNames() []string {
	names, _ := p.layout()
	return names
}

// Indices returns the output columns not derived from the excluded source features
func (p *Preprocessor) Indices(exclude ...string) []int {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	_, sources := p.layout()
	out := make([]int, 0, len(sources))
	for i, src := range sources {
		if !skip[src] {
			out = append(out, i)
		}
	}
	return out
}

func (p *Preprocessor) layout() (names, sources []string) {
	for _, c := range p.Numerical {
		names = append(names, c.Name)
		sources = append(sources, c.Name)
	}
	for _, c := range p.Categorical {
		for _, cat := range c.Categories {
			names = append(names, c.Name+"="+cat)
			sources = append(sources, c.Name)
		}
		if len(c.Infrequent) > 0 {
			names = append(names, c.Name+"=infrequent")
			sources = append(sources, c.Name)
		}
	}
	return names, sources
}

// Transform builds the model matrix, one row per lead in frame order
func (p *Preprocessor) Transform(f *Frame) ([][]float64, error) {
	width := p.Width()
	X := make([][]float64, f.Len())
	for i := range X {
		X[i] = make([]float64, width)
	}

	offset := 0
	for _, c := range p.Numerical {
		values, err := f.Float(c.Name)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if math.IsNaN(v) {
				v = c.Median
			}
			X[i][offset] = (v - c.Mean) / c.Scale
		}
		offset++
	}

	for _, c := range p.Categorical {
		values, err := f.Text(c.Name)
		if err != nil {
			return nil, err
		}

		slots := make(map[string]int, len(c.Categories)+len(c.Infrequent))
		for j, cat := range c.Categories {
			slots[cat] = offset + j
		}
		width := len(c.Categories)
		if len(c.Infrequent) > 0 {
			for _, cat := range c.Infrequent {
				slots[cat] = offset + width
			}
			width++
		}

		for i, v := range values {
			if j, ok := slots[category(v)]; ok {
				X[i][j] = 1
			}
		}
		offset += width
	}

	return X, nil
}

// Select keeps the given columns of X
func Select(X [][]float64, cols []int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		r := make([]float64, len(cols))
		for j, c := range cols {
			r[j] = row[c]
		}
		out[i] = r
	}
	return out
}

func category(v string) string {
	if v == "" {
		return MissingCategory
	}
	return v
}

// median interpolates between the two middle values of an even sample
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	// Empirical returns the lower middle value
	m := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if n := len(sorted); n%2 == 0 {
		m = (m + sorted[n/2]) / 2
	}
	return m
}
