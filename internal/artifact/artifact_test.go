package artifact

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/leadscore/internal/calibration"
	"github.com/wonny/leadscore/internal/features"
	"github.com/wonny/leadscore/internal/forest"
	"github.com/wonny/leadscore/internal/propensity"
	"github.com/wonny/leadscore/pkg/objectstore"
)

func testBundle() *Bundle {
	tree := forest.Tree{Nodes: []forest.Node{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
		{Left: -1, Right: -1, Value: 0.2},
		{Left: -1, Right: -1, Value: 0.9},
	}}
	return &Bundle{
		ModelID:            "lead-propensity",
		Version:            "v1",
		RunID:              NewRunID(),
		LookbackWindowDays: 30,
		Preprocessor: &features.Preprocessor{
			Numerical: []features.NumericalColumn{{Name: "searches", Median: 1, Mean: 0, Scale: 1}},
		},
		Propensity: &propensity.Model{
			Method: calibration.MethodIsotonic,
			Members: []propensity.Member{{
				Forest:     &forest.Forest{Trees: []forest.Tree{tree}, Features: 1},
				Calibrator: &calibration.Calibrator{Method: calibration.MethodIsotonic, Isotonic: &calibration.Isotonic{X: []float64{0.2, 0.9}, Y: []float64{0.1, 0.7}}},
			}},
		},
		TrainedAt: time.Date(2022, 6, 30, 3, 15, 0, 0, time.UTC),
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "models/lead-propensity_v1_default.json", DefaultKey("lead-propensity", "v1"))
	day := time.Date(2022, 6, 30, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "models/versions/lead-propensity_v1_2022-06-30.json", HistoryKey("lead-propensity", "v1", day))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	b := testBundle()
	key, err := Save(ctx, store, b)
	require.NoError(t, err)
	assert.Equal(t, DefaultKey("lead-propensity", "v1"), key)

	_, err = store.Get(ctx, "models/versions/lead-propensity_v1_2022-06-30.json")
	require.NoError(t, err, "history copy written")

	loaded, err := Load(ctx, store, "lead-propensity", "v1")
	require.NoError(t, err)
	assert.Equal(t, b.RunID, loaded.RunID)
	assert.Equal(t, FormatVersion, loaded.Format)
	assert.True(t, b.TrainedAt.Equal(loaded.TrainedAt))

	X := [][]float64{{0.1}, {0.8}, {0.5}}
	want, err := b.Propensity.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Propensity.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.InDeltaSlice(t, []float64{0.1, 0.7, 0.1}, got, 1e-12)
}

func TestLoadNotFound(t *testing.T) {
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = Load(context.Background(), store, "lead-propensity", "v9")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestLoadRejectsOtherFormat(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	raw := `{"format": 99, "model_id": "lead-propensity", "version": "v1"}`
	require.NoError(t, store.Put(ctx, DefaultKey("lead-propensity", "v1"), []byte(raw)))

	_, err = Load(ctx, store, "lead-propensity", "v1")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestSaveRequiresModels(t *testing.T) {
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	b := testBundle()
	b.Propensity = nil
	_, err = Save(context.Background(), store, b)
	assert.Error(t, err)
}

func TestSaveLogsThroughContextLogger(t *testing.T) {
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).With().Str("run_id", "run-3").Logger().WithContext(context.Background())
	_, err = Save(ctx, store, testBundle())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"run_id":"run-3"`)
	assert.Contains(t, buf.String(), "Model artifact saved")
}
