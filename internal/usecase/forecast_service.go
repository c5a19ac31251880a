package usecase

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/session"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

// ForecastService serves forecasts for catalog instruments. A cached view is
// reused while the applicable date and session state are unchanged.
type ForecastService struct {
	catalog   *models.Catalog
	assembler *ForecastAssembler
	clock     *session.Clock
	cache     domrepo.Cache
	cacheTTL  time.Duration
	publisher domrepo.EventPublisher
	history   domrepo.ForecastLog
	metrics   domrepo.Metrics
	l         *applogger.Logger
	now       func() time.Time
}

// ForecastServiceDeps groups the optional collaborators; nil fields are skipped.
type ForecastServiceDeps struct {
	Cache     domrepo.Cache
	CacheTTL  time.Duration
	Publisher domrepo.EventPublisher
	History   domrepo.ForecastLog
	Metrics   domrepo.Metrics
	Logger    *applogger.Logger
}

func NewForecastService(catalog *models.Catalog, assembler *ForecastAssembler, clock *session.Clock, deps ForecastServiceDeps) *ForecastService {
	l := deps.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastService{
		catalog:   catalog,
		assembler: assembler,
		clock:     clock,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		publisher: deps.Publisher,
		history:   deps.History,
		metrics:   deps.Metrics,
		l:         l.With("forecast"),
		now:       time.Now,
	}
}

// ForecastCacheKey is the cache key of a served view,
// e.g. "forecast:BBCA.JK:2024-12-31:closed".
func ForecastCacheKey(symbol string, date models.Date, open bool) string {
	state := "closed"
	if open {
		state = "open"
	}
	return cache.GenerateKeyWithParams("forecast", symbol, date, state)
}

// ForecastCachePattern matches every cached view of symbol.
func ForecastCachePattern(symbol string) string {
	return cache.BuildPattern(cache.GenerateKey("forecast", symbol) + ":")
}

func (s *ForecastService) Forecast(ctx context.Context, symbol string) (models.ForecastView, error) {
	start := time.Now()
	inst, err := s.catalog.Lookup(symbol)
	if err != nil {
		s.recordError(err)
		return models.ForecastView{}, err
	}

	now := s.now()
	key := ForecastCacheKey(inst.Symbol, s.clock.ApplicableDate(now), s.clock.IsOpen(now))
	if s.cache != nil {
		var cached models.ForecastView
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	rec, series, err := s.assembler.assemble(ctx, inst.Symbol, now)
	if err != nil {
		s.recordError(err)
		s.l.Warn("forecast.assemble failed",
			applogger.String("symbol", inst.Symbol),
			applogger.String("kind", string(models.KindOf(err))),
			applogger.Error(err),
		)
		return models.ForecastView{}, err
	}
	view := models.ForecastView{Record: rec, Name: inst.Name, Chart: models.ChartFromSeries(series)}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view, s.cacheTTL); err != nil {
			s.l.Warn("forecast cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.RecordForecast(inst.Symbol, rec.PredictedClose, rec.AccuracyMAPE)
		s.metrics.RecordLatency("forecast", time.Since(start).Seconds())
	}
	if s.publisher != nil {
		if err := s.publisher.PublishForecast(ctx, rec); err != nil {
			s.l.Warn("forecast publish failed", applogger.String("symbol", inst.Symbol), applogger.Error(err))
		}
	}
	if s.history != nil {
		if err := s.history.SaveForecast(ctx, rec); err != nil {
			s.l.Warn("forecast log failed", applogger.String("symbol", inst.Symbol), applogger.Error(err))
		}
	}
	s.l.Info("forecast served",
		applogger.String("symbol", inst.Symbol),
		applogger.Float64("predicted_close", rec.PredictedClose),
		applogger.Float64("percentage_change", rec.PercentageChange),
		applogger.Float64("accuracy_mape", rec.AccuracyMAPE),
		applogger.String("applicable_date", rec.ApplicableDate.String()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return view, nil
}

// Instruments lists the catalog for the dashboard.
func (s *ForecastService) Instruments() []models.Instrument {
	return s.catalog.All()
}

func (s *ForecastService) recordError(err error) {
	if s.metrics != nil {
		s.metrics.RecordError(string(models.KindOf(err)))
	}
}
