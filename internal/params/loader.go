package params

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// defaults
const (
	defaultNEstimators  = 100
	defaultMinLeaf      = 1
	defaultMaxFeatures  = "sqrt"
	defaultSampling     = "balanced"
	defaultMinFrequency = 0.05
)

// Load reads the parameter file, fills defaults and validates it
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("parameter file %s: expected .yaml or .yml extension", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a parameter document already in memory
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}

	applyDefaults(&f)

	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Resolve merges general with the block of the given run mode
func (f *File) Resolve(mode string) (Settings, error) {
	s := Settings{
		Mode:                 mode,
		ModelID:              f.General.ModelID,
		Version:              f.General.Version,
		LookbackWindowDays:   f.General.LookbackWindowDays,
		ConversionWindowDays: f.General.ConversionWindowDays,
		Features:             f.General.Features,
	}

	switch mode {
	case "train":
		t := f.RunMode.Train
		s.DatesProcessRangeDays = t.DatesProcessRangeDays
		s.Estimator = t.EstimatorParams
		s.Calibration = t.CalibrationParams
		s.Value = t.ValueParams
		s.Quality = t.Quality
	case "predict":
		p := f.RunMode.Predict
		s.DatesProcessRangeDays = p.DatesProcessRangeDays
		s.CorrectAvailable = p.CorrectAvailable
	default:
		return Settings{}, fmt.Errorf("no run_mode block for %q", mode)
	}
	return s, nil
}

// Hash generates SHA256 hash from File (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(f *File) (string, error) {
	jsonBytes, err := json.Marshal(f)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

func applyDefaults(f *File) {
	if f.General.Features.MinFrequency == 0 {
		f.General.Features.MinFrequency = defaultMinFrequency
	}

	e := &f.RunMode.Train.EstimatorParams
	if e.NEstimators == 0 {
		e.NEstimators = defaultNEstimators
	}
	if e.MinSamplesLeaf == 0 {
		e.MinSamplesLeaf = defaultMinLeaf
	}
	if e.MaxFeatures == "" {
		e.MaxFeatures = defaultMaxFeatures
	}
	if e.SamplingStrategy == "" {
		e.SamplingStrategy = defaultSampling
	}

	v := &f.RunMode.Train.ValueParams
	if v.NEstimators == 0 {
		v.NEstimators = defaultNEstimators
	}
	if v.MinSamplesLeaf == 0 {
		v.MinSamplesLeaf = defaultMinLeaf
	}
}
