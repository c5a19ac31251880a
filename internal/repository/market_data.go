package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

// ReadThroughMarketData serves history from a local PriceStore and refreshes
// it from the upstream provider at most once per refresh interval per symbol.
// When the upstream fails, stored bars are served if any exist.
type ReadThroughMarketData struct {
	upstream domrepo.MarketData
	store    domrepo.PriceStore
	refresh  time.Duration
	l        *applogger.Logger
	now      func() time.Time

	mu        sync.Mutex
	refreshed map[string]time.Time
}

func NewReadThroughMarketData(upstream domrepo.MarketData, store domrepo.PriceStore, refresh time.Duration, l *applogger.Logger) *ReadThroughMarketData {
	if l == nil {
		l = applogger.Nop()
	}
	return &ReadThroughMarketData{
		upstream:  upstream,
		store:     store,
		refresh:   refresh,
		l:         l.With("market_data"),
		now:       time.Now,
		refreshed: make(map[string]time.Time),
	}
}

func (m *ReadThroughMarketData) History(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	if m.fresh(symbol) {
		stored, err := m.store.History(ctx, symbol, from, to)
		if err == nil && !stored.Empty() {
			return stored, nil
		}
		if err != nil {
			m.l.Warn("price store read failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}

	series, err := m.upstream.History(ctx, symbol, from, to)
	if err != nil {
		stored, serr := m.store.History(ctx, symbol, from, to)
		if serr == nil && !stored.Empty() {
			m.l.Warn("upstream failed, serving stored bars",
				applogger.String("symbol", symbol),
				applogger.Int("bars", stored.Len()),
				applogger.Error(err),
			)
			return stored, nil
		}
		return models.PriceSeries{Symbol: symbol}, fmt.Errorf("history %s: %w", symbol, err)
	}
	if !series.Empty() {
		if err := m.store.SaveBars(ctx, series); err != nil {
			m.l.Warn("persist bars failed", applogger.String("symbol", symbol), applogger.Error(err))
		} else {
			m.mark(symbol)
		}
	}
	return series, nil
}

func (m *ReadThroughMarketData) fresh(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.refreshed[symbol]
	return ok && m.now().Sub(at) < m.refresh
}

func (m *ReadThroughMarketData) mark(symbol string) {
	m.mu.Lock()
	m.refreshed[symbol] = m.now()
	m.mu.Unlock()
}

// MemoryPriceStore is an in-process PriceStore used when ClickHouse is disabled.
type MemoryPriceStore struct {
	mu   sync.RWMutex
	bars map[string]map[models.Date]models.PriceBar
}

func NewMemoryPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{bars: make(map[string]map[models.Date]models.PriceBar)}
}

func (s *MemoryPriceStore) History(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo, hi := models.DateOf(from), models.DateOf(to)
	out := models.PriceSeries{Symbol: symbol}
	for d, b := range s.bars[symbol] {
		if d.Before(lo) || hi.Before(d) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	out.Sort()
	return out, nil
}

func (s *MemoryPriceStore) SaveBars(ctx context.Context, series models.PriceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.bars[series.Symbol]
	if !ok {
		m = make(map[models.Date]models.PriceBar)
		s.bars[series.Symbol] = m
	}
	for _, b := range series.Bars {
		m[b.Date] = b
	}
	return nil
}

// NopForecastLog discards forecasts when no durable log is configured.
type NopForecastLog struct{}

func (NopForecastLog) SaveForecast(context.Context, models.ForecastRecord) error { return nil }
