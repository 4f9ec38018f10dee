package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/leadscore/internal/artifact"
	"github.com/wonny/leadscore/internal/features"
	"github.com/wonny/leadscore/internal/params"
	"github.com/wonny/leadscore/internal/propensity"
	"github.com/wonny/leadscore/internal/queries"
	"github.com/wonny/leadscore/internal/valuation"
	"github.com/wonny/leadscore/pkg/database"
	"github.com/wonny/leadscore/pkg/objectstore"
)

// ErrSkew is returned when a predict run would aggregate features over a different
// lookback window than the model was trained with
var ErrSkew = errors.New("train/serve skew")

// Columns produced by the query collection
const (
	bookingsColumn     = "bookings"
	bookingValueColumn = "booking_value"
	windowClosedColumn = "window_closed"
	medianColumn       = "median_booking_value"
)

// Warehouse is the part of the data connector the pipeline uses
type Warehouse interface {
	Query(ctx context.Context, query string, params map[string]any) (*database.Table, error)
	Execute(ctx context.Context, query string, params map[string]any) (int64, error)
	ExecuteMany(ctx context.Context, query string, batch []map[string]any) (int64, error)
}

// Runner executes one train or predict run
// ⭐ 단일 실행: 연결은 호출자가 열고 닫음
type Runner struct {
	warehouse   Warehouse
	store       objectstore.Store
	queries     *queries.Collection
	params      *params.File
	outputTable string
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRunner wires a runner. outputTable is the write-back table of predict runs.
func NewRunner(wh Warehouse, store objectstore.Store, qs *queries.Collection, p *params.File, outputTable string, logger zerolog.Logger) *Runner {
	return &Runner{
		warehouse:   wh,
		store:       store,
		queries:     qs,
		params:      p,
		outputTable: outputTable,
		logger:      logger,
		now:         time.Now,
	}
}

// Result summarises a finished run
type Result struct {
	Mode        Mode
	Range       DateRange
	RunID       string
	Leads       int
	Positives   int     // train
	Brier       float64 // train
	ArtifactKey string  // train
	Written     int64   // predict
}

// Run executes mode for the leads created in the window ending at execTime
func (r *Runner) Run(ctx context.Context, mode Mode, execTime time.Time) (*Result, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	settings, err := r.params.Resolve(string(mode))
	if err != nil {
		return nil, err
	}

	res := &Result{
		Mode:  mode,
		Range: NewDateRange(execTime, settings.DatesProcessRangeDays),
		RunID: artifact.NewRunID(),
	}

	logger := r.logger.With().Str("mode", string(mode)).Str("run_id", res.RunID).Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().
		Time("from", res.Range.From).
		Time("to", res.Range.To).
		Msg("Processing leads in date range")

	switch mode {
	case ModeTrain:
		err = r.train(ctx, settings, res)
	default:
		err = r.predict(ctx, settings, execTime, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) train(ctx context.Context, s params.Settings, res *Result) error {
	logger := zerolog.Ctx(ctx)

	frame, err := r.loadFeatures(ctx, res.Range, s.LookbackWindowDays)
	if err != nil {
		return err
	}

	labels, err := r.fetch(ctx, queries.LeadsConversions, map[string]any{
		"datetime_from":          res.Range.From,
		"datetime_to":            res.Range.To,
		"conversion_window_days": s.ConversionWindowDays,
	})
	if err != nil {
		return err
	}
	if err := frame.Join(labels); err != nil {
		return fmt.Errorf("join labels: %w", err)
	}

	// 전환 윈도우가 아직 열린 리드는 라벨이 확정되지 않음
	closed, err := frame.Bool(windowClosedColumn)
	if err != nil {
		return err
	}
	total := frame.Len()
	if frame, err = frame.Filter(closed); err != nil {
		return err
	}
	if skipped := total - frame.Len(); skipped > 0 {
		logger.Info().
			Int("skipped", skipped).
			Int("conversion_window_days", s.ConversionWindowDays).
			Msg("Leads with an open conversion window left out of training")
	}

	res.Leads = frame.Len()
	if res.Leads == 0 {
		return fmt.Errorf("no leads in %s to train on", res.Range)
	}

	bookings, err := frame.Float(bookingsColumn)
	if err != nil {
		return err
	}
	y := make([]int, len(bookings))
	for i, b := range bookings {
		if !math.IsNaN(b) && b > 0 {
			y[i] = 1
			res.Positives++
		}
	}
	logger.Info().Int("leads", res.Leads).Int("converted", res.Positives).Msg("Loaded target for training")

	pre, err := features.Fit(frame, s.Features)
	if err != nil {
		return fmt.Errorf("fit preprocessor: %w", err)
	}
	X, err := pre.Transform(frame)
	if err != nil {
		return err
	}

	model, err := propensity.Train(X, y, s.Estimator, s.Calibration, *logger)
	if err != nil {
		return fmt.Errorf("train propensity model: %w", err)
	}
	report, err := propensity.Check(model, X, y, s.Quality)
	if err != nil {
		return err
	}
	res.Brier = report.Brier
	logger.Info().Float64("brier", report.Brier).Msg("Propensity model trained")

	target, err := frame.Float(medianColumn)
	if err != nil {
		return err
	}
	value, err := valuation.Train(X, target, pre.Indices(medianColumn), s.Value, *logger)
	if err != nil {
		return fmt.Errorf("train value model: %w", err)
	}

	hash, err := params.Hash(r.params)
	if err != nil {
		return err
	}

	key, err := artifact.Save(ctx, r.store, &artifact.Bundle{
		ModelID:            s.ModelID,
		Version:            s.Version,
		RunID:              res.RunID,
		ParamsHash:         hash,
		LookbackWindowDays: s.LookbackWindowDays,
		Features:           s.Features,
		FeatureNames:       pre.FeatureNames(),
		Preprocessor:       pre,
		Propensity:         model,
		Value:              value,
		Quality:            report,
		DateFrom:           res.Range.From,
		DateTo:             res.Range.To,
		TrainedAt:          r.now().UTC(),
	})
	if err != nil {
		return err
	}
	res.ArtifactKey = key
	return nil
}

func (r *Runner) predict(ctx context.Context, s params.Settings, execTime time.Time, res *Result) error {
	logger := zerolog.Ctx(ctx)

	bundle, err := artifact.Load(ctx, r.store, s.ModelID, s.Version)
	if err != nil {
		return err
	}
	if bundle.LookbackWindowDays != s.LookbackWindowDays {
		return fmt.Errorf("%w: model trained with lookback_window_days=%d, configured %d",
			ErrSkew, bundle.LookbackWindowDays, s.LookbackWindowDays)
	}
	if !slices.Equal(bundle.Features.All(), s.Features.All()) {
		logger.Warn().
			Strs("model", bundle.Features.All()).
			Strs("configured", s.Features.All()).
			Msg("Configured features differ from the model; scoring with the model's features")
	}
	logger.Info().
		Str("model_run_id", bundle.RunID).
		Time("trained_at", bundle.TrainedAt).
		Msg("Model artifact loaded")

	frame, err := r.loadFeatures(ctx, res.Range, s.LookbackWindowDays)
	if err != nil {
		return err
	}
	res.Leads = frame.Len()

	idents := map[string]string{"output_table": r.outputTable}
	create, err := r.expand(queries.CreateLeadScores, idents)
	if err != nil {
		return err
	}
	if _, err := r.warehouse.Execute(ctx, create, nil); err != nil {
		return fmt.Errorf("create %s: %w", r.outputTable, err)
	}

	if res.Leads == 0 {
		logger.Warn().Msg("No leads to score")
		return nil
	}

	X, err := bundle.Preprocessor.Transform(frame)
	if err != nil {
		return err
	}
	probs, err := bundle.Propensity.Predict(X)
	if err != nil {
		return fmt.Errorf("predict propensity: %w", err)
	}

	values := make([]float64, len(probs))
	for i := range values {
		values[i] = math.NaN()
	}
	if bundle.Value != nil {
		if values, err = bundle.Value.Predict(X); err != nil {
			return fmt.Errorf("predict value: %w", err)
		}
	}
	// 검색 중앙값이 있으면 그대로 사용, 없는 리드만 회귀 추정값
	observed, err := frame.Float(medianColumn)
	if err != nil {
		return err
	}
	values = valuation.Correct(values, observed)

	if s.CorrectAvailable {
		booked, err := r.bookedValues(ctx, frame, res.Range, s.ConversionWindowDays)
		if err != nil {
			return err
		}
		values = valuation.Correct(values, booked)
	}

	insert, err := r.queries.Get(queries.InsertLeadScore)
	if err != nil {
		return err
	}
	stmt, err := insert.Expand(idents)
	if err != nil {
		return err
	}

	scoredAt := r.now().UTC()
	batch := make([]map[string]any, 0, len(probs))
	for i, key := range frame.Keys() {
		var value any
		if !math.IsNaN(values[i]) {
			value = values[i]
		}
		row, err := insert.Bind(map[string]any{
			"user_id":                key.UserID,
			"lead_create_event_id":   key.LeadCreateEventID,
			"model_id":               s.ModelID,
			"version":                s.Version,
			"run_id":                 res.RunID,
			"conversion_probability": probs[i],
			"booking_value":          value,
			"exec_time":              execTime,
			"scored_at":              scoredAt,
		})
		if err != nil {
			return err
		}
		batch = append(batch, row)
	}

	n, err := r.warehouse.ExecuteMany(ctx, stmt, batch)
	if err != nil {
		return fmt.Errorf("write scores to %s: %w", r.outputTable, err)
	}
	res.Written = n

	logger.Info().Int("leads", res.Leads).Int64("written", n).Str("table", r.outputTable).Msg("Lead scores written")
	return nil
}

// loadFeatures assembles the feature frame of the leads in rng
func (r *Runner) loadFeatures(ctx context.Context, rng DateRange, lookbackDays int) (*features.Frame, error) {
	values := map[string]any{
		"datetime_from":        rng.From,
		"datetime_to":          rng.To,
		"lookback_window_days": lookbackDays,
	}

	counts, err := r.fetch(ctx, queries.LeadsEventsCount, values)
	if err != nil {
		return nil, err
	}
	frame, err := features.FromTable(counts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", queries.LeadsEventsCount, err)
	}

	medians, err := r.fetch(ctx, queries.LeadsMedianValue, values)
	if err != nil {
		return nil, err
	}
	if err := frame.Join(medians); err != nil {
		return nil, fmt.Errorf("%s: %w", queries.LeadsMedianValue, err)
	}

	zerolog.Ctx(ctx).Info().Int("leads", frame.Len()).Msg("Loaded engagement data")
	return frame, nil
}

// bookedValues returns the transaction total of the leads in frame that already
// booked before rng.To, NaN for the others
func (r *Runner) bookedValues(ctx context.Context, frame *features.Frame, rng DateRange, conversionDays int) ([]float64, error) {
	conversions, err := r.fetch(ctx, queries.LeadsConversions, map[string]any{
		"datetime_from":          rng.From,
		"datetime_to":            rng.To,
		"conversion_window_days": conversionDays,
	})
	if err != nil {
		return nil, err
	}
	if err := frame.Join(conversions); err != nil {
		return nil, fmt.Errorf("%s: %w", queries.LeadsConversions, err)
	}

	bookings, err := frame.Float(bookingsColumn)
	if err != nil {
		return nil, err
	}
	totals, err := frame.Float(bookingValueColumn)
	if err != nil {
		return nil, err
	}
	booked := valuation.Booked(bookings, totals)

	corrected := 0
	for _, v := range booked {
		if !math.IsNaN(v) {
			corrected++
		}
	}
	zerolog.Ctx(ctx).Info().Int("leads", corrected).Msg("Booking values corrected from transactions")
	return booked, nil
}

func (r *Runner) fetch(ctx context.Context, name string, values map[string]any) (*database.Table, error) {
	tmpl, err := r.queries.Get(name)
	if err != nil {
		return nil, err
	}
	bound, err := tmpl.Bind(values)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	table, err := r.warehouse.Query(ctx, tmpl.Query, bound)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	zerolog.Ctx(ctx).Debug().
		Str("query", name).
		Int("rows", table.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Query executed")
	return table, nil
}

func (r *Runner) expand(name string, idents map[string]string) (string, error) {
	tmpl, err := r.queries.Get(name)
	if err != nil {
		return "", err
	}
	return tmpl.Expand(idents)
}
