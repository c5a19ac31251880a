package service

import (
	"context"

	"FinCast/internal/domain/models"
)

// Forecaster produces the forecast view for one instrument.
type Forecaster interface {
	Forecast(ctx context.Context, symbol string) (models.ForecastView, error)
}

// ModelTrainer (re)trains per-instrument models.
type ModelTrainer interface {
	TrainInstrument(ctx context.Context, symbol string) (models.TrainingReport, error)
	TrainAll(ctx context.Context) ([]models.TrainingReport, error)
}
