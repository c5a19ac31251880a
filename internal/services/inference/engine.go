package inference

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// Engine applies a trained model to feature rows of a fixed schema.
type Engine struct {
	schema models.FeatureSchema
}

func NewEngine(schema models.FeatureSchema) *Engine {
	return &Engine{schema: schema}
}

// Predict returns the model's next-close estimate for one complete row.
func (e *Engine) Predict(m *models.Model, row models.FeatureRow) (float64, error) {
	if err := e.check(m); err != nil {
		return 0, err
	}
	return e.predict(m, row)
}

// PredictMany predicts every row in order; the first failing row aborts.
func (e *Engine) PredictMany(m *models.Model, rows models.FeatureTable) ([]float64, error) {
	if err := e.check(m); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		v, err := e.predict(m, r)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, r.Date, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *Engine) check(m *models.Model) error {
	if m == nil || m.Regressor == nil {
		return fmt.Errorf("inference: %w", models.ErrModelNotFound)
	}
	if !m.Schema.Equal(e.schema) {
		return fmt.Errorf("inference: model schema %q, engine schema %q: %w", m.Schema, e.schema, models.ErrInvalidFeature)
	}
	if m.Regressor.NumFeatures() != e.schema.Width() {
		return fmt.Errorf("inference: model expects %d features, schema has %d: %w",
			m.Regressor.NumFeatures(), e.schema.Width(), models.ErrInvalidFeature)
	}
	return nil
}

func (e *Engine) predict(m *models.Model, row models.FeatureRow) (float64, error) {
	if !row.Complete() {
		return 0, fmt.Errorf("inference: incomplete row %s: %w", row.Date, models.ErrInvalidFeature)
	}
	v, err := m.Regressor.Predict(row.Vector())
	if err != nil {
		return 0, fmt.Errorf("inference: %v: %w", err, models.ErrInvalidFeature)
	}
	return v, nil
}
