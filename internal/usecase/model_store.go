package usecase

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/accuracy"
	"FinCast/internal/services/forest"
	"FinCast/internal/services/inference"
)

// ModelStoreConfig controls training.
type ModelStoreConfig struct {
	Estimators int
	Seed       uint64
	TestRatio  float64
	Workers    int
}

func DefaultModelStoreConfig() ModelStoreConfig {
	return ModelStoreConfig{Estimators: forest.DefaultEstimators, Seed: forest.DefaultSeed, TestRatio: 0.2}
}

// ModelStore trains, persists and loads one model per instrument.
type ModelStore struct {
	artifacts domrepo.ArtifactStore
	schema    models.FeatureSchema
	engine    *inference.Engine
	cfg       ModelStoreConfig
	now       func() time.Time
}

func NewModelStore(artifacts domrepo.ArtifactStore, schema models.FeatureSchema, cfg ModelStoreConfig) *ModelStore {
	return &ModelStore{
		artifacts: artifacts,
		schema:    schema,
		engine:    inference.NewEngine(schema),
		cfg:       cfg,
		now:       time.Now,
	}
}

// BuildExamples pairs every complete row with the close of the row that
// follows it. The last row has no label and is dropped.
func BuildExamples(table models.FeatureTable) []models.TrainingExample {
	out := make([]models.TrainingExample, 0, len(table))
	for i := 0; i+1 < len(table); i++ {
		if !table[i].Complete() {
			continue
		}
		out = append(out, models.TrainingExample{Row: table[i], Label: table[i+1].Close})
	}
	return out
}

// SplitTrainHoldout deterministically partitions examples. The holdout gets
// ceil(ratio*n) examples, but the training side always keeps at least one.
// Examples are ordered by date before shuffling so the split does not depend
// on the caller's ordering.
func SplitTrainHoldout(examples []models.TrainingExample, ratio float64, seed uint64) (train, holdout []models.TrainingExample) {
	n := len(examples)
	if n == 0 {
		return nil, nil
	}
	sorted := slices.Clone(examples)
	slices.SortStableFunc(sorted, func(a, b models.TrainingExample) int {
		switch {
		case a.Row.Date.Before(b.Row.Date):
			return -1
		case b.Row.Date.Before(a.Row.Date):
			return 1
		}
		return 0
	})

	nTest := int(math.Ceil(ratio * float64(n)))
	if nTest < 0 {
		nTest = 0
	}
	if n-nTest < 1 {
		nTest = n - 1
	}
	perm := rand.New(rand.NewPCG(seed, 0x5eed)).Perm(n)
	for i, j := range perm {
		if i < nTest {
			holdout = append(holdout, sorted[j])
		} else {
			train = append(train, sorted[j])
		}
	}
	return train, holdout
}

// Train fits a model for instrument on table. The holdout subset is scored
// for reporting only.
func (s *ModelStore) Train(instrument string, table models.FeatureTable) (*models.Model, error) {
	examples := BuildExamples(table)
	if len(examples) < 1 {
		return nil, fmt.Errorf("train %s: %d rows give no labelled example: %w", instrument, len(table), models.ErrInsufficientData)
	}
	train, holdout := SplitTrainHoldout(examples, s.cfg.TestRatio, s.cfg.Seed)

	X := make([][]float64, len(train))
	y := make([]float64, len(train))
	for i, ex := range train {
		X[i] = ex.Row.Vector()
		y[i] = ex.Label
	}
	f, err := forest.Fit(X, y, forest.Params{
		Estimators:     s.cfg.Estimators,
		Seed:           s.cfg.Seed,
		MinSamplesLeaf: 1,
		Workers:        s.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", instrument, err)
	}

	m := &models.Model{
		Instrument: instrument,
		Schema:     s.schema,
		Regressor:  f,
		Meta: models.ModelMeta{
			Estimators:      len(f.Trees),
			Seed:            s.cfg.Seed,
			TestRatio:       s.cfg.TestRatio,
			Examples:        len(examples),
			TrainExamples:   len(train),
			HoldoutExamples: len(holdout),
			FirstDate:       examples[0].Row.Date,
			LastDate:        examples[len(examples)-1].Row.Date,
			TrainedAt:       s.now().UTC(),
		},
	}
	m.Meta.HoldoutMAPE = s.score(m, holdout)
	return m, nil
}

func (s *ModelStore) score(m *models.Model, holdout []models.TrainingExample) *float64 {
	if len(holdout) == 0 {
		return nil
	}
	rows := make(models.FeatureTable, len(holdout))
	actual := make([]float64, len(holdout))
	for i, ex := range holdout {
		rows[i] = ex.Row
		actual[i] = ex.Label
	}
	pred, err := s.engine.PredictMany(m, rows)
	if err != nil {
		return nil
	}
	v, err := accuracy.MAPE(actual, pred)
	if err != nil {
		return nil
	}
	return &v
}

func (s *ModelStore) Save(ctx context.Context, m *models.Model) (models.ArtifactID, error) {
	return s.artifacts.Save(ctx, m)
}

func (s *ModelStore) Load(ctx context.Context, instrument string) (*models.Model, error) {
	return s.artifacts.Load(ctx, instrument)
}

func (s *ModelStore) Exists(ctx context.Context, instrument string) (bool, error) {
	return s.artifacts.Exists(ctx, instrument)
}

// ArtifactKey returns the artifact id an instrument is stored under.
func (s *ModelStore) ArtifactKey(instrument string) models.ArtifactID {
	return s.artifacts.Key(instrument)
}

func (s *ModelStore) Schema() models.FeatureSchema { return s.schema }
