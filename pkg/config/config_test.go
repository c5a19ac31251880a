package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 || c.Market.Timezone != "Asia/Jakarta" || c.Market.CloseTime != "16:30" {
		t.Fatalf("unexpected defaults: %+v %+v", c.Server, c.Market)
	}
	if c.Model.Estimators != 100 || c.Model.Seed != 42 || c.Model.TestRatio != 0.2 || c.Model.EMASpan != 10 || c.Model.AccuracyWindow != 10 {
		t.Fatalf("unexpected model defaults: %+v", c.Model)
	}
	if c.Forecast.CacheTTL != 5*time.Minute || !c.Metrics.Enabled {
		t.Fatalf("unexpected forecast/metrics defaults")
	}
	if len(c.Instruments) != 10 || c.Instruments[2].Symbol != "BBCA.JK" {
		t.Fatalf("expected default catalog, got %+v", c.Instruments)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
metrics:
  enabled: false
model:
  dir: /var/lib/fincast
  estimators: 50
forecast:
  cache_ttl: 90s
instruments:
  - symbol: BBCA.JK
    name: Bank Central Asia Tbk (BBCA)
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.IsProduction() || c.Metrics.Enabled {
		t.Fatalf("yaml values should win over defaults")
	}
	if c.Model.Dir != "/var/lib/fincast" || c.Model.Estimators != 50 || c.Model.Seed != 42 {
		t.Fatalf("unexpected model section: %+v", c.Model)
	}
	if c.Forecast.CacheTTL != 90*time.Second {
		t.Fatalf("unexpected cache ttl %v", c.Forecast.CacheTTL)
	}
	if len(c.Instruments) != 1 {
		t.Fatalf("configured catalog should replace the default, got %d", len(c.Instruments))
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("INSTRUMENTS", "BBCA.JK=Bank Central Asia, TLKM.JK")
	c, err := LoadWithEnv("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9191 {
		t.Fatalf("unexpected port %d", c.Server.Port)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 {
		t.Fatalf("unexpected kafka %+v", c.Kafka)
	}
	if len(c.Instruments) != 2 || c.Instruments[0].Name != "Bank Central Asia" || c.Instruments[1].Name != "TLKM.JK" {
		t.Fatalf("unexpected instruments %+v", c.Instruments)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"close time": "market:\n  close_time: \"25h\"\n",
		"test ratio": "model:\n  test_ratio: 1.5\n",
		"estimators": "model:\n  estimators: -1\n",
		"kafka":      "kafka:\n  enabled: true\n",
		"symbol":     "instruments:\n  - name: nameless\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
