package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/pkg/cache"
)

func TestForecastServiceServesAndCaches(t *testing.T) {
	series := dailySeries("BBCA.JK", 30)
	market := &fakeMarket{series: map[string]models.PriceSeries{"BBCA.JK": series}}
	store := testStore(newMemArtifacts())
	trainInto(t, store, series)

	mc := cache.NewMemoryCache()
	defer mc.Close()
	pub := &recordingPublisher{}
	met := newCountingMetrics()
	svc := NewForecastService(testCatalog(t, "BBCA.JK"), newAssembler(t, market, store), jakartaClock(t), ForecastServiceDeps{
		Cache:     mc,
		CacheTTL:  time.Minute,
		Publisher: pub,
		Metrics:   met,
	})
	svc.now = func() time.Time { return wib(t, 2024, time.December, 30, 18, 0) }

	view, err := svc.Forecast(context.Background(), "BBCA.JK")
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if view.Name != "Name BBCA.JK" || len(view.Chart) != 30 {
		t.Fatalf("unexpected view name=%q chart=%d", view.Name, len(view.Chart))
	}
	if view.Record.ApplicableDate.String() != "2024-12-31" {
		t.Fatalf("unexpected applicable date %s", view.Record.ApplicableDate)
	}

	again, err := svc.Forecast(context.Background(), "BBCA.JK")
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if market.calls != 1 {
		t.Fatalf("second request should be served from cache, market calls=%d", market.calls)
	}
	if again.Record.PredictedClose != view.Record.PredictedClose || again.Record.ApplicableDate != view.Record.ApplicableDate {
		t.Fatalf("cached view differs: %+v vs %+v", again.Record, view.Record)
	}
	if len(pub.forecasts) != 1 || met.forecasts != 1 {
		t.Fatalf("expected one published forecast and one metric, got %d/%d", len(pub.forecasts), met.forecasts)
	}
}

func TestForecastServiceUnknownSymbol(t *testing.T) {
	met := newCountingMetrics()
	svc := NewForecastService(testCatalog(t, "BBCA.JK"), newAssembler(t, &fakeMarket{}, testStore(newMemArtifacts())), jakartaClock(t), ForecastServiceDeps{Metrics: met})
	_, err := svc.Forecast(context.Background(), "AAPL")
	if !errors.Is(err, models.ErrUnknownInstrument) {
		t.Fatalf("expected ErrUnknownInstrument, got %v", err)
	}
	if met.errors[string(models.KindUnknownInstrument)] != 1 {
		t.Fatalf("expected error metric, got %v", met.errors)
	}
}

func TestForecastServiceModelMissing(t *testing.T) {
	market := &fakeMarket{series: map[string]models.PriceSeries{"TLKM.JK": dailySeries("TLKM.JK", 20)}}
	met := newCountingMetrics()
	svc := NewForecastService(testCatalog(t, "TLKM.JK"), newAssembler(t, market, testStore(newMemArtifacts())), jakartaClock(t), ForecastServiceDeps{Metrics: met})
	_, err := svc.Forecast(context.Background(), "TLKM.JK")
	if !errors.Is(err, models.ErrModelNotFound) || !models.Recoverable(err) {
		t.Fatalf("expected recoverable ErrModelNotFound, got %v", err)
	}
	if met.errors[string(models.KindModelNotFound)] != 1 {
		t.Fatalf("expected MODEL_NOT_FOUND metric, got %v", met.errors)
	}
}

func TestForecastCacheKeys(t *testing.T) {
	key := ForecastCacheKey("BBCA.JK", models.Date{Year: 2024, Month: 12, Day: 31}, true)
	if key != "forecast:BBCA.JK:2024-12-31:open" {
		t.Fatalf("unexpected key %q", key)
	}
	if p := ForecastCachePattern("BBCA.JK"); p != "forecast:BBCA.JK:*" {
		t.Fatalf("unexpected pattern %q", p)
	}
}
