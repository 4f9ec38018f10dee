package params

// File is the model parameter file (params.yaml)
// ⭐ SSOT: 모델 파라미터는 이 구조체로만 읽음
type File struct {
	General General  `yaml:"general" json:"general"`
	RunMode RunModes `yaml:"run_mode" json:"run_mode"`
}

// General holds settings shared by every run mode
type General struct {
	ModelID              string   `yaml:"model-id" json:"model-id" validate:"required"`
	Version              string   `yaml:"version" json:"version" validate:"required"`
	LookbackWindowDays   int      `yaml:"lookback_window_days" json:"lookback_window_days" validate:"required,gt=0"`
	ConversionWindowDays int      `yaml:"conversion_window_days" json:"conversion_window_days" validate:"required,gt=0"` // 학습 라벨 전용
	Features             Features `yaml:"features" json:"features"`
}

// Features lists the model inputs by preprocessing family
type Features struct {
	Numerical    []string `yaml:"numerical" json:"numerical" validate:"min=1,dive,required"`
	Categorical  []string `yaml:"categorical" json:"categorical" validate:"dive,required"`
	MinFrequency float64  `yaml:"min_frequency" json:"min_frequency" validate:"gte=0,lt=1"` // 미만 빈도 카테고리는 infrequent로 묶음
}

// All returns numerical then categorical feature names
func (f Features) All() []string {
	out := make([]string, 0, len(f.Numerical)+len(f.Categorical))
	out = append(out, f.Numerical...)
	return append(out, f.Categorical...)
}

// RunModes holds one block per run mode
type RunModes struct {
	Predict PredictParams `yaml:"predict" json:"predict"`
	Train   TrainParams   `yaml:"train" json:"train"`
}

type PredictParams struct {
	DatesProcessRangeDays int  `yaml:"dates_process_range_days" json:"dates_process_range_days" validate:"required,gt=0"`
	CorrectAvailable      bool `yaml:"correct_available" json:"correct_available"`
}

type TrainParams struct {
	DatesProcessRangeDays int               `yaml:"dates_process_range_days" json:"dates_process_range_days" validate:"required,gt=0"`
	EstimatorParams       EstimatorParams   `yaml:"estimator_params" json:"estimator_params"`
	CalibrationParams     CalibrationParams `yaml:"calibration_params" json:"calibration_params"`
	ValueParams           ValueParams       `yaml:"value_params" json:"value_params"`
	Quality               Quality           `yaml:"quality" json:"quality"`
}

// EstimatorParams configures the balanced random forest classifier
type EstimatorParams struct {
	NEstimators      int    `yaml:"n_estimators" json:"n_estimators" validate:"gte=0"`
	MaxDepth         int    `yaml:"max_depth" json:"max_depth" validate:"gte=0"` // 0 = 무제한
	MinSamplesLeaf   int    `yaml:"min_samples_leaf" json:"min_samples_leaf" validate:"gte=0"`
	MaxFeatures      string `yaml:"max_features" json:"max_features" validate:"omitempty,oneof=sqrt log2 all"`
	SamplingStrategy string `yaml:"sampling_strategy" json:"sampling_strategy" validate:"omitempty,oneof=balanced none"`
	RandomState      uint64 `yaml:"random_state" json:"random_state"`
}

// CalibrationParams configures probability calibration. Empty method = uncalibrated.
type CalibrationParams struct {
	Method string `yaml:"method" json:"method" validate:"omitempty,oneof=sigmoid isotonic"`
	CV     int    `yaml:"cv" json:"cv" validate:"gte=0"`
}

// Enabled reports whether calibration was requested
func (c CalibrationParams) Enabled() bool {
	return c.Method != ""
}

// ValueParams configures the booking value regressor
type ValueParams struct {
	NEstimators    int    `yaml:"n_estimators" json:"n_estimators" validate:"gte=0"`
	MaxDepth       int    `yaml:"max_depth" json:"max_depth" validate:"gte=0"`
	MinSamplesLeaf int    `yaml:"min_samples_leaf" json:"min_samples_leaf" validate:"gte=0"`
	RandomState    uint64 `yaml:"random_state" json:"random_state"`
}

// Quality holds the acceptance thresholds of a retrained model
type Quality struct {
	MaxBrier   float64 `yaml:"max_brier" json:"max_brier" validate:"gte=0,lte=1"` // 0 = 검사 안 함
	MinSamples int     `yaml:"min_samples" json:"min_samples" validate:"gte=0"`
}

// Settings is the flattened view of one run mode: general merged with run_mode[mode]
type Settings struct {
	Mode                  string
	ModelID               string
	Version               string
	LookbackWindowDays    int
	ConversionWindowDays  int
	Features              Features
	DatesProcessRangeDays int

	// predict
	CorrectAvailable bool

	// train
	Estimator   EstimatorParams
	Calibration CalibrationParams
	Value       ValueParams
	Quality     Quality
}
