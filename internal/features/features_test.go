package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/leadscore/internal/params"
	"github.com/wonny/leadscore/pkg/database"
)

func countsTable() *database.Table {
	return &database.Table{
		Columns: []string{"userId", "leadCreateEventId", "lead_platform", "sessions", "searches"},
		Rows: [][]any{
			{"u1", "e1", "ios", int64(3), int64(5)},
			{"u2", "e2", "web", int64(1), int64(0)},
			{"u3", "e3", nil, int64(2), int64(1)},
			{"u4", "e4", "web", int64(0), int64(0)},
		},
	}
}

func medianTable() *database.Table {
	// u4 missing, u3 NULL, extra lead u9 unknown to the frame
	return &database.Table{
		Columns: []string{"userId", "leadCreateEventId", "median_booking_value"},
		Rows: [][]any{
			{"u2", "e2", 100.0},
			{"u1", "e1", 300.0},
			{"u3", "e3", nil},
			{"u9", "e9", 50.0},
		},
	}
}

func TestFrameJoin(t *testing.T) {
	f, err := FromTable(countsTable())
	require.NoError(t, err)
	require.NoError(t, f.Join(medianTable()))

	assert.Equal(t, 4, f.Len())
	assert.Equal(t, Key{"u1", "e1"}, f.Keys()[0])
	assert.Equal(t, []string{"lead_platform", "sessions", "searches", "median_booking_value"}, f.Columns())

	values, err := f.Float("median_booking_value")
	require.NoError(t, err)
	assert.Equal(t, 300.0, values[0])
	assert.Equal(t, 100.0, values[1])
	assert.True(t, math.IsNaN(values[2]))
	assert.True(t, math.IsNaN(values[3]))

	platforms, err := f.Text("lead_platform")
	require.NoError(t, err)
	assert.Equal(t, []string{"ios", "web", "", "web"}, platforms)

	_, err = f.Float("nope")
	assert.Error(t, err)
}

func TestFrameRejectsDuplicates(t *testing.T) {
	dup := countsTable()
	dup.Rows = append(dup.Rows, []any{"u1", "e1", "ios", int64(1), int64(1)})
	_, err := FromTable(dup)
	assert.Error(t, err)

	f, err := FromTable(countsTable())
	require.NoError(t, err)
	// same column twice
	assert.Error(t, f.Join(countsTable()))
}

func TestFrameRequiresKeys(t *testing.T) {
	_, err := FromTable(&database.Table{Columns: []string{"userId", "sessions"}})
	assert.Error(t, err)
}

func testFeatures() params.Features {
	return params.Features{
		Numerical:    []string{"sessions", "median_booking_value"},
		Categorical:  []string{"lead_platform"},
		MinFrequency: 0.3,
	}
}

func TestPreprocessorFit(t *testing.T) {
	f, err := FromTable(countsTable())
	require.NoError(t, err)
	require.NoError(t, f.Join(medianTable()))

	p, err := Fit(f, testFeatures())
	require.NoError(t, err)

	sessions := p.Numerical[0]
	assert.InDelta(t, 1.5, sessions.Median, 1e-12)
	assert.InDelta(t, 1.5, sessions.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), sessions.Scale, 1e-12)

	// median of {300, 100} imputes u3 and u4
	value := p.Numerical[1]
	assert.InDelta(t, 200.0, value.Median, 1e-12)
	assert.InDelta(t, 200.0, value.Mean, 1e-12)

	// 0.3 * 4 = 1.2: ios and missing appear once
	platform := p.Categorical[0]
	assert.Equal(t, []string{"web"}, platform.Categories)
	assert.Equal(t, []string{MissingCategory, "ios"}, platform.Infrequent)

	assert.Equal(t, 4, p.Width())
	assert.Equal(t, []string{"sessions", "median_booking_value", "lead_platform=web", "lead_platform=infrequent"}, p.FeatureNames())
	assert.Equal(t, []int{0, 2, 3}, p.Indices("median_booking_value"))
}

func TestPreprocessorTransform(t *testing.T) {
	train, err := FromTable(countsTable())
	require.NoError(t, err)
	require.NoError(t, train.Join(medianTable()))
	p, err := Fit(train, testFeatures())
	require.NoError(t, err)

	X, err := p.Transform(train)
	require.NoError(t, err)
	require.Len(t, X, 4)

	// u1: sessions 3, value 300, ios (infrequent)
	assert.InDelta(t, (3-1.5)/math.Sqrt(1.25), X[0][0], 1e-12)
	assert.Equal(t, []float64{0, 1}, X[0][2:])
	// u2: web
	assert.Equal(t, []float64{1, 0}, X[1][2:])
	// u3: imputed value is centred
	assert.InDelta(t, 0.0, X[2][1], 1e-12)

	// unseen category encodes as zeros
	scoring := &database.Table{
		Columns: []string{"userId", "leadCreateEventId", "lead_platform", "sessions", "median_booking_value"},
		Rows:    [][]any{{"u7", "e7", "android", int64(1), nil}},
	}
	f, err := FromTable(scoring)
	require.NoError(t, err)
	X, err = p.Transform(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, X[0][2:])

	sel := Select(X, []int{0, 2})
	assert.Equal(t, [][]float64{{X[0][0], X[0][2]}}, sel)
}

func TestFitEmptyFrame(t *testing.T) {
	f, err := FromTable(&database.Table{Columns: []string{"userId", "leadCreateEventId", "sessions"}})
	require.NoError(t, err)
	_, err = Fit(f, params.Features{Numerical: []string{"sessions"}})
	assert.Error(t, err)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 7.0, median([]float64{7}))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 120.5, median([]float64{121, 120}))

	in := []float64{5, 1, 3}
	median(in)
	assert.Equal(t, []float64{5, 1, 3}, in, "input is not reordered")
}

func TestFrameFilter(t *testing.T) {
	f, err := FromTable(countsTable())
	require.NoError(t, err)
	require.NoError(t, f.Join(&database.Table{
		Columns: []string{"userId", "leadCreateEventId", "window_closed"},
		Rows: [][]any{
			{"u1", "e1", true},
			{"u2", "e2", false},
			{"u3", "e3", "true"},
		},
	}))

	closed, err := f.Bool("window_closed")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false}, closed, "missing lead reads as false")

	kept, err := f.Filter(closed)
	require.NoError(t, err)
	assert.Equal(t, 2, kept.Len())
	assert.Equal(t, []Key{{"u1", "e1"}, {"u3", "e3"}}, kept.Keys())
	assert.Equal(t, f.Columns(), kept.Columns())

	sessions, err := kept.Float("sessions")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2}, sessions)

	// joins still address rows by key after filtering
	require.NoError(t, kept.Join(medianTable()))
	values, err := kept.Float("median_booking_value")
	require.NoError(t, err)
	assert.Equal(t, 300.0, values[0])
	assert.True(t, math.IsNaN(values[1]))

	_, err = f.Filter([]bool{true})
	assert.Error(t, err)
}
