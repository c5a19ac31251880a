package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/features"
	"FinCast/pkg/util"
)

func newAssembler(t *testing.T, market *fakeMarket, store *ModelStore) *ForecastAssembler {
	t.Helper()
	return NewForecastAssembler(market, features.NewExtractor(10), store, jakartaClock(t), AssemblerConfig{}, nil)
}

func TestAssembleAfterClose(t *testing.T) {
	series := dailySeries("BBCA.JK", 15)
	market := &fakeMarket{series: map[string]models.PriceSeries{"BBCA.JK": series}}
	store := testStore(newMemArtifacts())
	trainInto(t, store, series)
	a := newAssembler(t, market, store)

	now := wib(t, 2024, time.December, 15, 17, 0)
	rec, err := a.Assemble(context.Background(), "BBCA.JK", now)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	last := series.Bars[14].Close
	if rec.ReferenceClose != last {
		t.Fatalf("closed session must reference the last close %v, got %v", last, rec.ReferenceClose)
	}
	if rec.ApplicableDate.String() != "2024-12-16" || rec.SessionOpen {
		t.Fatalf("unexpected date/session %s %v", rec.ApplicableDate, rec.SessionOpen)
	}
	if math.IsNaN(rec.PredictedClose) || rec.PredictedClose <= 0 {
		t.Fatalf("unexpected prediction %v", rec.PredictedClose)
	}
	want := util.Round2((rec.PredictedClose - last) / last * 100)
	if rec.PercentageChange != want {
		t.Fatalf("percentage change %v, want %v", rec.PercentageChange, want)
	}
	if rec.AccuracyMAPE < 0 {
		t.Fatalf("negative MAPE %v", rec.AccuracyMAPE)
	}
}

func TestAssembleDuringSession(t *testing.T) {
	series := dailySeries("BBCA.JK", 15)
	market := &fakeMarket{series: map[string]models.PriceSeries{"BBCA.JK": series}}
	store := testStore(newMemArtifacts())
	trainInto(t, store, series)
	a := newAssembler(t, market, store)

	rec, err := a.Assemble(context.Background(), "BBCA.JK", wib(t, 2024, time.December, 15, 10, 0))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if rec.ReferenceClose != series.Bars[13].Close {
		t.Fatalf("open session must reference the previous close, got %v", rec.ReferenceClose)
	}
	if rec.ApplicableDate.String() != "2024-12-15" || !rec.SessionOpen {
		t.Fatalf("unexpected date/session %s %v", rec.ApplicableDate, rec.SessionOpen)
	}
}

func TestAssembleIdempotent(t *testing.T) {
	series := dailySeries("TLKM.JK", 40)
	market := &fakeMarket{series: map[string]models.PriceSeries{"TLKM.JK": series}}
	store := testStore(newMemArtifacts())
	trainInto(t, store, series)
	a := newAssembler(t, market, store)
	now := wib(t, 2024, time.December, 20, 9, 15)

	first, err := a.Assemble(context.Background(), "TLKM.JK", now)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	second, err := a.Assemble(context.Background(), "TLKM.JK", now)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if first != second {
		t.Fatalf("assembly not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestAssembleErrors(t *testing.T) {
	now := wib(t, 2024, time.December, 15, 17, 0)
	store := testStore(newMemArtifacts())

	empty := newAssembler(t, &fakeMarket{}, store)
	if _, err := empty.Assemble(context.Background(), "X", now); !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}

	down := newAssembler(t, &fakeMarket{err: errors.New("timeout")}, store)
	if _, err := down.Assemble(context.Background(), "X", now); !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable on provider error, got %v", err)
	}

	one := newAssembler(t, &fakeMarket{series: map[string]models.PriceSeries{"X": dailySeries("X", 1)}}, store)
	if _, err := one.Assemble(context.Background(), "X", now); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}

	noModel := newAssembler(t, &fakeMarket{series: map[string]models.PriceSeries{"X": dailySeries("X", 15)}}, store)
	_, err := noModel.Assemble(context.Background(), "X", now)
	if !errors.Is(err, models.ErrModelNotFound) || models.KindOf(err) != models.KindModelNotFound {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestAssembleZeroReference(t *testing.T) {
	series := dailySeries("Z", 15)
	store := testStore(newMemArtifacts())
	trainInto(t, store, series)
	series.Bars[14].Close = 0
	a := newAssembler(t, &fakeMarket{series: map[string]models.PriceSeries{"Z": series}}, store)
	_, err := a.Assemble(context.Background(), "Z", wib(t, 2024, time.December, 15, 17, 0))
	if !errors.Is(err, models.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}
