package di

import (
	"testing"

	internalrepo "FinCast/internal/repository"
	"FinCast/pkg/cache"
	"FinCast/pkg/config"
	applogger "FinCast/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Model.Dir = t.TempDir()
	return cfg
}

func TestProvideCatalogKeepsOrder(t *testing.T) {
	cfg := testConfig(t)
	catalog, err := ProvideCatalog(cfg)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	syms := catalog.Symbols()
	if len(syms) != len(config.DefaultInstruments) || syms[0] != config.DefaultInstruments[0].Symbol {
		t.Fatalf("unexpected symbols %v", syms)
	}

	cfg.Instruments = append(cfg.Instruments, cfg.Instruments[0])
	if _, err := ProvideCatalog(cfg); err == nil {
		t.Fatalf("expected duplicate instrument error")
	}
}

func TestProvidersFallBackWithoutInfrastructure(t *testing.T) {
	cfg := testConfig(t)
	l := applogger.Nop()

	ch, cleanup, err := ProvideClickHouseClient(cfg, l)
	if err != nil || ch != nil {
		t.Fatalf("clickhouse disabled should yield nil client, got %v %v", ch, err)
	}
	cleanup()

	if _, ok := ProvidePriceStore(nil, l).(*internalrepo.MemoryPriceStore); !ok {
		t.Fatalf("expected memory price store")
	}
	if _, ok := ProvideForecastLog(nil, l).(internalrepo.NopForecastLog); !ok {
		t.Fatalf("expected nop forecast log")
	}

	rc, err := ProvideRedisCache(cfg)
	if err != nil || rc != nil {
		t.Fatalf("redis disabled should yield nil, got %v %v", rc, err)
	}
	svc, closeCache := ProvideCache(cfg, nil, l)
	defer closeCache()
	if _, ok := svc.(*cache.MemoryCache); !ok {
		t.Fatalf("expected memory cache, got %T", svc)
	}

	producer, err := ProvideKafkaProducer(cfg)
	if err != nil || producer != nil {
		t.Fatalf("kafka disabled should yield nil producer, got %v %v", producer, err)
	}
	pub, closePub := ProvideEventPublisher(cfg, nil, l)
	defer closePub()
	if _, ok := pub.(internalrepo.NopPublisher); !ok {
		t.Fatalf("expected nop publisher, got %T", pub)
	}
	consumer, err := ProvideKafkaConsumer(cfg, nil, l)
	if err != nil || consumer != nil {
		t.Fatalf("kafka disabled should yield nil consumer, got %v %v", consumer, err)
	}
}

func TestProvideArtifactStoreUsesModelDir(t *testing.T) {
	cfg := testConfig(t)
	store, err := ProvideArtifactStore(cfg, applogger.Nop())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	if id := store.Key("BBCA.JK"); id == "" {
		t.Fatalf("empty artifact key")
	}
}
