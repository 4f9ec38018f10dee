package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
general:
  model-id: lead-propensity
  version: v2
  lookback_window_days: 30
  conversion_window_days: 14
  features:
    numerical: [sessions, searches]
run_mode:
  predict:
    dates_process_range_days: 1
  train:
    dates_process_range_days: 90
`

func TestLoad(t *testing.T) {
	f, err := Load("testdata/params.yaml")
	require.NoError(t, err)

	assert.Equal(t, "lead-propensity", f.General.ModelID)
	assert.Equal(t, "v1", f.General.Version)
	assert.Equal(t, 30, f.General.LookbackWindowDays)
	assert.Equal(t, 14, f.General.ConversionWindowDays)
	assert.Equal(t, []string{"lead_platform"}, f.General.Features.Categorical)
	assert.Equal(t, 1, f.RunMode.Predict.DatesProcessRangeDays)
	assert.Equal(t, 180, f.RunMode.Train.DatesProcessRangeDays)
	assert.Equal(t, "isotonic", f.RunMode.Train.CalibrationParams.Method)
	assert.Equal(t, 3, f.RunMode.Train.CalibrationParams.CV)
	assert.Equal(t, uint64(42), f.RunMode.Train.EstimatorParams.RandomState)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load("testdata/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookback_windows_days")
}

func TestLoadRejectsExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".yaml")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseDefaults(t *testing.T) {
	f, err := Parse([]byte(minimal))
	require.NoError(t, err)

	e := f.RunMode.Train.EstimatorParams
	assert.Equal(t, 100, e.NEstimators)
	assert.Equal(t, 1, e.MinSamplesLeaf)
	assert.Equal(t, "sqrt", e.MaxFeatures)
	assert.Equal(t, "balanced", e.SamplingStrategy)
	assert.Equal(t, 100, f.RunMode.Train.ValueParams.NEstimators)
	assert.InDelta(t, 0.05, f.General.Features.MinFrequency, 1e-12)
	assert.False(t, f.RunMode.Train.CalibrationParams.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *File)
		field  string
	}{
		{"missing model id", func(f *File) { f.General.ModelID = "" }, "general.model-id"},
		{"missing version", func(f *File) { f.General.Version = "" }, "general.version"},
		{"zero lookback", func(f *File) { f.General.LookbackWindowDays = 0 }, "general.lookback_window_days"},
		{"negative conversion window", func(f *File) { f.General.ConversionWindowDays = -1 }, "general.conversion_window_days"},
		{"no numerical features", func(f *File) { f.General.Features.Numerical = nil }, "general.features.numerical"},
		{"predict range", func(f *File) { f.RunMode.Predict.DatesProcessRangeDays = 0 }, "run_mode.predict.dates_process_range_days"},
		{"bad calibration method", func(f *File) { f.RunMode.Train.CalibrationParams.Method = "beta" }, "run_mode.train.calibration_params.method"},
		{"single fold", func(f *File) {
			f.RunMode.Train.CalibrationParams = CalibrationParams{Method: "sigmoid", CV: 1}
		}, "run_mode.train.calibration_params.cv"},
		{"bad sampling", func(f *File) { f.RunMode.Train.EstimatorParams.SamplingStrategy = "smote" }, "run_mode.train.estimator_params.sampling_strategy"},
		{"key column as feature", func(f *File) {
			f.General.Features.Categorical = []string{"userId"}
		}, "general.features"},
		{"duplicate feature", func(f *File) {
			f.General.Features.Categorical = []string{"sessions"}
		}, "general.features"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(minimal))
			require.NoError(t, err)

			tt.mutate(f)

			err = Validate(f)
			require.Error(t, err)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestResolve(t *testing.T) {
	f, err := Load("testdata/params.yaml")
	require.NoError(t, err)

	train, err := f.Resolve("train")
	require.NoError(t, err)
	assert.Equal(t, "train", train.Mode)
	assert.Equal(t, 180, train.DatesProcessRangeDays)
	assert.Equal(t, 30, train.LookbackWindowDays)
	assert.Equal(t, 200, train.Estimator.NEstimators)
	assert.True(t, train.Calibration.Enabled())

	predict, err := f.Resolve("predict")
	require.NoError(t, err)
	assert.Equal(t, 1, predict.DatesProcessRangeDays)
	assert.Equal(t, train.LookbackWindowDays, predict.LookbackWindowDays)
	assert.True(t, predict.CorrectAvailable)
	assert.Zero(t, predict.Estimator.NEstimators)

	_, err = f.Resolve("test")
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	f, err := Load("testdata/params.yaml")
	require.NoError(t, err)

	hash, err := Hash(f)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	again, err := Hash(f)
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	f.General.Version = "v2"
	changed, err := Hash(f)
	require.NoError(t, err)
	assert.NotEqual(t, hash, changed)
}
