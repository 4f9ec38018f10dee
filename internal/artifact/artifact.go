package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/leadscore/internal/features"
	"github.com/wonny/leadscore/internal/params"
	"github.com/wonny/leadscore/internal/propensity"
	"github.com/wonny/leadscore/internal/valuation"
	"github.com/wonny/leadscore/pkg/objectstore"
)

// FormatVersion is bumped when the bundle layout changes incompatibly
const FormatVersion = 1

var (
	// ErrArtifactNotFound is returned by Load when no model was trained for the id/version
	ErrArtifactNotFound = errors.New("model artifact not found")
	// ErrFormat is returned by Load for a bundle written by an incompatible release
	ErrFormat = errors.New("unsupported artifact format")
)

// Bundle is everything a predict run needs, written once per training run
// ⭐ SSOT: train → predict 간 유일한 전달 경로
type Bundle struct {
	Format             int                    `json:"format"`
	ModelID            string                 `json:"model_id"`
	Version            string                 `json:"version"`
	RunID              string                 `json:"run_id"`
	ParamsHash         string                 `json:"params_hash"`
	LookbackWindowDays int                    `json:"lookback_window_days"`
	Features           params.Features        `json:"features"`
	FeatureNames       []string               `json:"feature_names"`
	Preprocessor       *features.Preprocessor `json:"preprocessor"`
	Propensity         *propensity.Model      `json:"propensity"`
	Value              *valuation.Model       `json:"value,omitempty"`
	Quality            propensity.Report      `json:"quality"`
	DateFrom           time.Time              `json:"date_from"`
	DateTo             time.Time              `json:"date_to"`
	TrainedAt          time.Time              `json:"trained_at"`
}

// NewRunID returns a fresh identifier for a pipeline run
func NewRunID() string {
	return uuid.NewString()
}

// DefaultKey is the object read by predict runs
func DefaultKey(modelID, version string) string {
	return fmt.Sprintf("models/%s_%s_default.json", modelID, version)
}

// HistoryKey keeps one copy per training day
func HistoryKey(modelID, version string, day time.Time) string {
	return fmt.Sprintf("models/versions/%s_%s_%s.json", modelID, version, day.UTC().Format("2006-01-02"))
}

// Save writes the bundle to its history key and then to the default key.
// Returns the default key. Logs through the logger attached to ctx, if any.
func Save(ctx context.Context, store objectstore.Store, b *Bundle) (string, error) {
	if b.ModelID == "" || b.Version == "" {
		return "", errors.New("bundle needs model id and version")
	}
	if b.Propensity == nil || b.Preprocessor == nil {
		return "", errors.New("bundle needs a preprocessor and a propensity model")
	}
	b.Format = FormatVersion

	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}

	history := HistoryKey(b.ModelID, b.Version, b.TrainedAt)
	if err := store.Put(ctx, history, data); err != nil {
		return "", fmt.Errorf("write %s: %w", history, err)
	}

	key := DefaultKey(b.ModelID, b.Version)
	if err := store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("component", "artifact").
		Str("key", key).
		Str("history", history).
		Int("bytes", len(data)).
		Msg("Model artifact saved")

	return key, nil
}

// Load reads the default artifact of a model id and version
func Load(ctx context.Context, store objectstore.Store, modelID, version string) (*Bundle, error) {
	key := DefaultKey(modelID, version)

	data, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if b.Format != FormatVersion {
		return nil, fmt.Errorf("%w: %s has format %d, want %d", ErrFormat, key, b.Format, FormatVersion)
	}
	if b.Propensity == nil || b.Preprocessor == nil {
		return nil, fmt.Errorf("%s: incomplete artifact", key)
	}
	return &b, nil
}
