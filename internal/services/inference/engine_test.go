package inference

import (
	"errors"
	"testing"

	"FinCast/internal/domain/models"
)

type linear struct{ width int }

func (l linear) Predict(x []float64) (float64, error) { return x[0] + 1, nil }
func (l linear) NumFeatures() int                     { return l.width }

func model(width int, schema models.FeatureSchema) *models.Model {
	return &models.Model{Instrument: "BBCA.JK", Schema: schema, Regressor: linear{width: width}}
}

func row(close float64) models.FeatureRow {
	return models.FeatureRow{Close: close, EMA: close, Return: 0.01, HasReturn: true}
}

func TestPredict(t *testing.T) {
	schema := models.NewFeatureSchema(10)
	e := NewEngine(schema)
	got, err := e.Predict(model(3, schema), row(100))
	if err != nil || got != 101 {
		t.Fatalf("expected 101, got %v (%v)", got, err)
	}
}

func TestPredictRejectsIncompleteRow(t *testing.T) {
	schema := models.NewFeatureSchema(10)
	e := NewEngine(schema)
	r := row(100)
	r.HasReturn = false
	if _, err := e.Predict(model(3, schema), r); !errors.Is(err, models.ErrInvalidFeature) {
		t.Fatalf("expected ErrInvalidFeature, got %v", err)
	}
}

func TestPredictRejectsSchemaDrift(t *testing.T) {
	e := NewEngine(models.NewFeatureSchema(10))
	if _, err := e.Predict(model(3, models.NewFeatureSchema(20)), row(1)); !errors.Is(err, models.ErrInvalidFeature) {
		t.Fatalf("expected ErrInvalidFeature for span drift, got %v", err)
	}
	if _, err := e.Predict(model(2, models.NewFeatureSchema(10)), row(1)); !errors.Is(err, models.ErrInvalidFeature) {
		t.Fatalf("expected ErrInvalidFeature for width drift, got %v", err)
	}
}

func TestPredictMany(t *testing.T) {
	schema := models.NewFeatureSchema(10)
	e := NewEngine(schema)
	out, err := e.PredictMany(model(3, schema), models.FeatureTable{row(1), row(2), row(3)})
	if err != nil {
		t.Fatalf("PredictMany: %v", err)
	}
	if len(out) != 3 || out[2] != 4 {
		t.Fatalf("unexpected predictions %v", out)
	}
	if _, err := e.PredictMany(nil, nil); !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}
