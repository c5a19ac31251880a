package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"FinCast/internal/domain/models"
	"FinCast/internal/repository"
	"FinCast/internal/services/features"
)

func derive(t *testing.T, s models.PriceSeries) models.FeatureTable {
	t.Helper()
	table, err := features.NewExtractor(10).Derive(s)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return table
}

func TestBuildExamplesPairsNextClose(t *testing.T) {
	table := derive(t, dailySeries("X", 5))
	ex := BuildExamples(table)
	// row 0 has no return, row 4 has no label
	if len(ex) != 3 {
		t.Fatalf("expected 3 examples, got %d", len(ex))
	}
	for i, e := range ex {
		if e.Row.Date != table[i+1].Date || e.Label != table[i+2].Close {
			t.Fatalf("example %d mislabelled: %+v", i, e)
		}
	}
}

func TestSplitTrainHoldout(t *testing.T) {
	ex := BuildExamples(derive(t, dailySeries("X", 12)))
	if len(ex) != 10 {
		t.Fatalf("expected 10 examples, got %d", len(ex))
	}
	train, hold := SplitTrainHoldout(ex, 0.2, 42)
	if len(train) != 8 || len(hold) != 2 {
		t.Fatalf("unexpected split %d/%d", len(train), len(hold))
	}
	seen := map[models.Date]bool{}
	for _, e := range append(append([]models.TrainingExample{}, train...), hold...) {
		if seen[e.Row.Date] {
			t.Fatalf("example %s appears twice", e.Row.Date)
		}
		seen[e.Row.Date] = true
	}

	shuffled := append([]models.TrainingExample{}, ex...)
	rand.New(rand.NewPCG(1, 2)).Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	_, hold2 := SplitTrainHoldout(shuffled, 0.2, 42)
	for i := range hold {
		if hold[i].Row.Date != hold2[i].Row.Date {
			t.Fatalf("split depends on input order")
		}
	}
}

func TestSplitKeepsOneTrainingExample(t *testing.T) {
	ex := BuildExamples(derive(t, dailySeries("X", 3)))
	train, hold := SplitTrainHoldout(ex, 0.2, 42)
	if len(train) != 1 || len(hold) != 0 {
		t.Fatalf("expected 1/0 split, got %d/%d", len(train), len(hold))
	}
}

func TestTrainSingleExample(t *testing.T) {
	store := testStore(newMemArtifacts())
	table := derive(t, dailySeries("X", 3))
	m, err := store.Train("X", table)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	got, err := m.Regressor.Predict(table[2].Vector())
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != table[2].Close {
		t.Fatalf("single-example model must predict its label %v, got %v", table[2].Close, got)
	}
	if m.Meta.Examples != 1 || m.Meta.HoldoutMAPE != nil {
		t.Fatalf("unexpected meta %+v", m.Meta)
	}
}

func TestTrainInsufficientData(t *testing.T) {
	store := testStore(newMemArtifacts())
	for _, n := range []int{0, 1, 2} {
		var table models.FeatureTable
		if n > 0 {
			table = derive(t, dailySeries("X", n))
		}
		if _, err := store.Train("X", table); !errors.Is(err, models.ErrInsufficientData) {
			t.Fatalf("%d rows: expected ErrInsufficientData, got %v", n, err)
		}
	}
}

func TestTrainSaveLoadDeterministic(t *testing.T) {
	ctx := context.Background()
	files, err := repository.NewFileArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	cfg := DefaultModelStoreConfig()
	cfg.Estimators = 30
	store := NewModelStore(files, models.NewFeatureSchema(10), cfg)
	table := derive(t, dailySeries("BBCA.JK", 60))
	probe := table[len(table)-1].Vector()

	var first float64
	for run := 0; run < 3; run++ {
		m, err := store.Train("BBCA.JK", table)
		if err != nil {
			t.Fatalf("train: %v", err)
		}
		if _, err := store.Save(ctx, m); err != nil {
			t.Fatalf("save: %v", err)
		}
		loaded, err := store.Load(ctx, "BBCA.JK")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		got, err := loaded.Regressor.Predict(probe)
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if run == 0 {
			first = got
			if loaded.Meta.HoldoutMAPE == nil {
				t.Fatalf("expected holdout score")
			}
			continue
		}
		if got != first {
			t.Fatalf("run %d predicted %v, first run %v", run, got, first)
		}
	}
	if store.ArtifactKey("BBCA.JK") != "BBCA.JK" {
		t.Fatalf("unexpected artifact key")
	}
}

func TestLoadMissingModel(t *testing.T) {
	store := testStore(newMemArtifacts())
	if _, err := store.Load(context.Background(), "NOPE"); !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}
