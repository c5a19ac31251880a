package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/features"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

// ErrTrainingInProgress is returned when another run holds the instrument's lock.
var ErrTrainingInProgress = errors.New("training already in progress")

// Locker serialises training runs per instrument across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type TrainerConfig struct {
	LookbackDays int
	Workers      int
	LockTTL      time.Duration
	// Location is the exchange timezone the lookback window is computed in.
	Location *time.Location
}

// TrainerDeps groups the optional collaborators; nil fields are skipped.
type TrainerDeps struct {
	Publisher domrepo.EventPublisher
	Cache     domrepo.Cache
	Locker    Locker
	Metrics   domrepo.Metrics
	Logger    *applogger.Logger
}

// Trainer fetches history, fits and persists models for catalog instruments.
type Trainer struct {
	catalog   *models.Catalog
	market    domrepo.MarketData
	extractor *features.Extractor
	store     *ModelStore
	cfg       TrainerConfig
	deps      TrainerDeps
	l         *applogger.Logger
	now       func() time.Time
}

func NewTrainer(catalog *models.Catalog, market domrepo.MarketData, extractor *features.Extractor, store *ModelStore, cfg TrainerConfig, deps TrainerDeps) *Trainer {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 365
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	l := deps.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &Trainer{
		catalog:   catalog,
		market:    market,
		extractor: extractor,
		store:     store,
		cfg:       cfg,
		deps:      deps,
		l:         l.With("trainer"),
		now:       time.Now,
	}
}

// TrainInstrument retrains and replaces the model of one instrument.
func (t *Trainer) TrainInstrument(ctx context.Context, symbol string) (models.TrainingReport, error) {
	start := time.Now()
	inst, err := t.catalog.Lookup(symbol)
	if err != nil {
		return models.TrainingReport{}, err
	}

	if t.deps.Locker != nil {
		lockKey := cache.GenerateKey("train", inst.Symbol)
		ok, err := t.deps.Locker.TryLock(ctx, lockKey, t.cfg.LockTTL)
		if err != nil {
			return models.TrainingReport{}, fmt.Errorf("train %s: lock: %w", inst.Symbol, err)
		}
		if !ok {
			return models.TrainingReport{}, fmt.Errorf("train %s: %w", inst.Symbol, ErrTrainingInProgress)
		}
		defer func() { _ = t.deps.Locker.Unlock(context.WithoutCancel(ctx), lockKey) }()
	}

	from, to := util.LookbackWindow(t.now().In(t.cfg.Location), t.cfg.LookbackDays)
	series, err := t.market.History(ctx, inst.Symbol, from, to)
	if err != nil {
		return models.TrainingReport{}, t.fail(inst.Symbol, fmt.Errorf("train %s: %w: %w", inst.Symbol, models.ErrDataUnavailable, err))
	}
	if series.Empty() {
		return models.TrainingReport{}, t.fail(inst.Symbol, fmt.Errorf("train %s: no price history: %w", inst.Symbol, models.ErrDataUnavailable))
	}
	table, err := t.extractor.Derive(series)
	if err != nil {
		return models.TrainingReport{}, t.fail(inst.Symbol, fmt.Errorf("train %s: %w", inst.Symbol, err))
	}
	model, err := t.store.Train(inst.Symbol, table)
	if err != nil {
		return models.TrainingReport{}, t.fail(inst.Symbol, err)
	}
	id, err := t.store.Save(ctx, model)
	if err != nil {
		return models.TrainingReport{}, t.fail(inst.Symbol, fmt.Errorf("train %s: save: %w", inst.Symbol, err))
	}

	rep := models.TrainingReport{
		Instrument:      inst.Symbol,
		ArtifactID:      id,
		Examples:        model.Meta.Examples,
		TrainExamples:   model.Meta.TrainExamples,
		HoldoutExamples: model.Meta.HoldoutExamples,
		HoldoutMAPE:     model.Meta.HoldoutMAPE,
		TrainedAt:       model.Meta.TrainedAt,
	}

	if t.deps.Cache != nil {
		if err := t.deps.Cache.DeleteByPattern(ctx, ForecastCachePattern(inst.Symbol)); err != nil {
			t.l.Warn("forecast cache invalidation failed", applogger.String("symbol", inst.Symbol), applogger.Error(err))
		}
	}
	if t.deps.Metrics != nil {
		t.deps.Metrics.RecordModelTrained(inst.Symbol, rep.Examples)
		t.deps.Metrics.RecordLatency("train", time.Since(start).Seconds())
	}
	if t.deps.Publisher != nil {
		if err := t.deps.Publisher.PublishModelTrained(ctx, rep); err != nil {
			t.l.Warn("model trained publish failed", applogger.String("symbol", inst.Symbol), applogger.Error(err))
		}
	}

	fields := []applogger.Field{
		applogger.String("symbol", inst.Symbol),
		applogger.String("artifact", string(id)),
		applogger.Int("examples", rep.Examples),
		applogger.Int("holdout", rep.HoldoutExamples),
		applogger.Duration("duration_ms", time.Since(start)),
	}
	if rep.HoldoutMAPE != nil {
		fields = append(fields, applogger.Float64("holdout_mape", *rep.HoldoutMAPE))
	}
	t.l.Info("model trained", fields...)
	return rep, nil
}

// TrainAll trains every catalog instrument with a bounded worker pool.
// Successful reports are returned in catalog order alongside the joined
// errors of the failures.
func (t *Trainer) TrainAll(ctx context.Context) ([]models.TrainingReport, error) {
	symbols := t.catalog.Symbols()
	reports := make([]*models.TrainingReport, len(symbols))
	errs := make([]error, len(symbols))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(t.cfg.Workers, len(symbols)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rep, err := t.TrainInstrument(ctx, symbols[i])
				if err != nil {
					errs[i] = err
					continue
				}
				reports[i] = &rep
			}
		}()
	}
	for i := range symbols {
		select {
		case jobs <- i:
		case <-ctx.Done():
			errs[i] = ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	out := make([]models.TrainingReport, 0, len(symbols))
	for _, r := range reports {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, errors.Join(errs...)
}

func (t *Trainer) fail(symbol string, err error) error {
	if t.deps.Metrics != nil {
		t.deps.Metrics.RecordError(string(models.KindOf(err)))
	}
	t.l.Error("model training failed",
		applogger.String("symbol", symbol),
		applogger.String("kind", string(models.KindOf(err))),
		applogger.Error(err),
	)
	return err
}
