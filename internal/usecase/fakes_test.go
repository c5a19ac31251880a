package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/features"
	"FinCast/internal/services/session"
)

type fakeMarket struct {
	mu     sync.Mutex
	calls  int
	series map[string]models.PriceSeries
	err    error
	from   time.Time
	to     time.Time
}

func (f *fakeMarket) History(_ context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.from, f.to = from, to
	if f.err != nil {
		return models.PriceSeries{Symbol: symbol}, f.err
	}
	s := f.series[symbol]
	s.Symbol = symbol
	return s, nil
}

type memArtifacts struct {
	mu     sync.Mutex
	models map[string]*models.Model
}

func newMemArtifacts() *memArtifacts { return &memArtifacts{models: map[string]*models.Model{}} }

func (m *memArtifacts) Key(instrument string) models.ArtifactID { return models.ArtifactID(instrument) }

func (m *memArtifacts) Save(_ context.Context, model *models.Model) (models.ArtifactID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[model.Instrument] = model
	return m.Key(model.Instrument), nil
}

func (m *memArtifacts) Load(_ context.Context, instrument string) (*models.Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	model, ok := m.models[instrument]
	if !ok {
		return nil, fmt.Errorf("%s: %w", instrument, models.ErrModelNotFound)
	}
	return model, nil
}

func (m *memArtifacts) Exists(_ context.Context, instrument string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.models[instrument]
	return ok, nil
}

func (m *memArtifacts) Delete(_ context.Context, instrument string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.models, instrument)
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	forecasts []models.ForecastRecord
	trained   []models.TrainingReport
}

func (p *recordingPublisher) PublishForecast(_ context.Context, rec models.ForecastRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forecasts = append(p.forecasts, rec)
	return nil
}

func (p *recordingPublisher) PublishModelTrained(_ context.Context, rep models.TrainingReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trained = append(p.trained, rep)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type countingMetrics struct {
	mu        sync.Mutex
	forecasts int
	trained   int
	errors    map[string]int
}

func newCountingMetrics() *countingMetrics { return &countingMetrics{errors: map[string]int{}} }

func (c *countingMetrics) RecordForecast(string, float64, float64) {
	c.mu.Lock()
	c.forecasts++
	c.mu.Unlock()
}

func (c *countingMetrics) RecordModelTrained(string, int) {
	c.mu.Lock()
	c.trained++
	c.mu.Unlock()
}

func (c *countingMetrics) RecordError(kind string) {
	c.mu.Lock()
	c.errors[kind]++
	c.mu.Unlock()
}

func (c *countingMetrics) RecordLatency(string, float64) {}

// dailySeries returns n bars starting 2024-12-01 with a deterministic wiggle.
func dailySeries(symbol string, n int) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol}
	d := models.Date{Year: 2024, Month: time.December, Day: 1}
	c := 9000.0
	for i := 0; i < n; i++ {
		c += float64((i*37)%11) - 5
		s.Bars = append(s.Bars, models.PriceBar{Date: d, Open: c, High: c + 10, Low: c - 10, Close: c, Volume: 1000})
		d = d.AddDays(1)
	}
	return s
}

func jakartaClock(t *testing.T) *session.Clock {
	t.Helper()
	c, err := session.NewClock(session.DefaultTimezone, session.DefaultCloseTime)
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	return c
}

func wib(t *testing.T, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(session.DefaultTimezone)
	if err != nil {
		t.Fatalf("tz: %v", err)
	}
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

func testCatalog(t *testing.T, symbols ...string) *models.Catalog {
	t.Helper()
	items := make([]models.Instrument, len(symbols))
	for i, s := range symbols {
		items[i] = models.Instrument{Symbol: s, Name: "Name " + s}
	}
	c, err := models.NewCatalog(items)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func testStore(artifacts *memArtifacts) *ModelStore {
	cfg := DefaultModelStoreConfig()
	cfg.Estimators = 25
	return NewModelStore(artifacts, features.NewExtractor(features.DefaultEMASpan).Schema(), cfg)
}

// trainInto fits and saves a model for series into artifacts.
func trainInto(t *testing.T, store *ModelStore, series models.PriceSeries) *models.Model {
	t.Helper()
	table, err := features.NewExtractor(features.DefaultEMASpan).Derive(series)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	m, err := store.Train(series.Symbol, table)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := store.Save(context.Background(), m); err != nil {
		t.Fatalf("save: %v", err)
	}
	return m
}
