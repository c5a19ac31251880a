package usecase

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/accuracy"
	"FinCast/internal/services/features"
	"FinCast/internal/services/inference"
	"FinCast/internal/services/session"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

// ModelLoader loads the current model of an instrument.
type ModelLoader interface {
	Load(ctx context.Context, instrument string) (*models.Model, error)
}

type AssemblerConfig struct {
	LookbackDays   int
	AccuracyWindow int
}

// ForecastAssembler combines history, features, the stored model and the
// session clock into one ForecastRecord. It keeps no state between calls.
type ForecastAssembler struct {
	market    domrepo.MarketData
	extractor *features.Extractor
	models    ModelLoader
	engine    *inference.Engine
	clock     *session.Clock
	cfg       AssemblerConfig
	l         *applogger.Logger
}

func NewForecastAssembler(market domrepo.MarketData, extractor *features.Extractor, loader ModelLoader, clock *session.Clock, cfg AssemblerConfig, l *applogger.Logger) *ForecastAssembler {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 365
	}
	if cfg.AccuracyWindow <= 0 {
		cfg.AccuracyWindow = accuracy.DefaultWindow
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastAssembler{
		market:    market,
		extractor: extractor,
		models:    loader,
		engine:    inference.NewEngine(extractor.Schema()),
		clock:     clock,
		cfg:       cfg,
		l:         l.With("assembler"),
	}
}

// Assemble produces the forecast for instrument as of now. Any failing step
// aborts the whole assembly.
func (a *ForecastAssembler) Assemble(ctx context.Context, instrument string, now time.Time) (models.ForecastRecord, error) {
	rec, _, err := a.assemble(ctx, instrument, now)
	return rec, err
}

func (a *ForecastAssembler) assemble(ctx context.Context, instrument string, now time.Time) (models.ForecastRecord, models.PriceSeries, error) {
	start := time.Now()
	from, to := util.LookbackWindow(now.In(a.clock.Location()), a.cfg.LookbackDays)

	series, err := a.market.History(ctx, instrument, from, to)
	if err != nil {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: %w: %w", instrument, models.ErrDataUnavailable, err)
	}
	if series.Empty() {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: no price history: %w", instrument, models.ErrDataUnavailable)
	}

	table, err := a.extractor.Derive(series)
	if err != nil {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: %w", instrument, err)
	}
	complete := table.Complete()
	if len(complete) == 0 {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: no complete feature row: %w", instrument, models.ErrInsufficientData)
	}

	model, err := a.models.Load(ctx, instrument)
	if err != nil {
		return models.ForecastRecord{}, series, err
	}

	predicted, err := a.engine.Predict(model, complete[len(complete)-1])
	if err != nil {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: %w", instrument, err)
	}

	open := a.clock.IsOpen(now)
	back := 0
	if open {
		back = 1
	}
	reference, ok := series.CloseFromEnd(back)
	if !ok {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: session open needs two closes, have %d: %w",
			instrument, series.Len(), models.ErrInsufficientData)
	}
	if reference == 0 {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: reference close is zero: %w", instrument, models.ErrDivisionByZero)
	}
	change := util.Round2((predicted - reference) / reference * 100)

	window := accuracy.Trailing(complete, a.cfg.AccuracyWindow)
	fitted, err := a.engine.PredictMany(model, window)
	if err != nil {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: %w", instrument, err)
	}
	mape, err := accuracy.MAPE(window.Closes(), fitted)
	if err != nil {
		return models.ForecastRecord{}, series, fmt.Errorf("assemble %s: %w", instrument, err)
	}

	rec := models.ForecastRecord{
		Instrument:       instrument,
		PredictedClose:   predicted,
		ReferenceClose:   reference,
		PercentageChange: change,
		AccuracyMAPE:     mape,
		ApplicableDate:   a.clock.ApplicableDate(now),
		SessionOpen:      open,
		GeneratedAt:      now,
	}
	a.l.Debug("forecast.assemble ok",
		applogger.String("symbol", instrument),
		applogger.Int("bars", series.Len()),
		applogger.Float64("predicted", predicted),
		applogger.Bool("session_open", open),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return rec, series, nil
}
