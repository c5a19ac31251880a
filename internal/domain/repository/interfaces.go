package repository

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// MarketData supplies daily price history. An empty series is a valid
// answer; callers decide whether that is an error.
type MarketData interface {
	History(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
}

// PriceStore persists daily bars.
type PriceStore interface {
	MarketData
	SaveBars(ctx context.Context, series models.PriceSeries) error
}

// ArtifactStore is a key-value-by-instrument store for trained models.
type ArtifactStore interface {
	Key(instrument string) models.ArtifactID
	Save(ctx context.Context, m *models.Model) (models.ArtifactID, error)
	Load(ctx context.Context, instrument string) (*models.Model, error)
	Exists(ctx context.Context, instrument string) (bool, error)
	Delete(ctx context.Context, instrument string) error
}

// EventPublisher emits domain events to downstream consumers.
type EventPublisher interface {
	PublishForecast(ctx context.Context, rec models.ForecastRecord) error
	PublishModelTrained(ctx context.Context, rep models.TrainingReport) error
	Close() error
}

// ForecastLog keeps an append-only history of served forecasts.
type ForecastLog interface {
	SaveForecast(ctx context.Context, rec models.ForecastRecord) error
}

// Cache is the subset of cache operations the use cases need.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type Metrics interface {
	RecordForecast(symbol string, predicted, mape float64)
	RecordModelTrained(symbol string, examples int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
