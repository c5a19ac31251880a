package features

import (
	"errors"
	"math"
	"testing"

	"FinCast/internal/domain/models"
)

func seriesOf(closes ...float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: "TEST"}
	d := models.Date{Year: 2024, Month: 10, Day: 1}
	for _, c := range closes {
		s.Bars = append(s.Bars, models.PriceBar{Date: d, Open: c, High: c, Low: c, Close: c})
		d = d.AddDays(1)
	}
	return s
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDeriveHandFixture(t *testing.T) {
	table, err := NewExtractor(10).Derive(seriesOf(100, 102, 101, 103, 104))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(table) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(table))
	}
	// alpha = 2/11, ema[0] = 100
	wantEMA := []float64{100, 1104.0 / 11, 12158.0 / 121, 134348.0 / 1331, 1485980.0 / 14641}
	wantRet := []float64{0, 0.02, -1.0 / 102, 2.0 / 101, 1.0 / 103}
	for i, r := range table {
		if !near(r.EMA, wantEMA[i]) {
			t.Fatalf("row %d: ema %v, want %v", i, r.EMA, wantEMA[i])
		}
		if i == 0 {
			if r.HasReturn || r.Complete() {
				t.Fatalf("row 0 must have undefined return")
			}
			continue
		}
		if !r.HasReturn || !near(r.Return, wantRet[i]) {
			t.Fatalf("row %d: return %v (%v), want %v", i, r.Return, r.HasReturn, wantRet[i])
		}
	}
}

func TestDeriveRecursiveDefinition(t *testing.T) {
	closes := []float64{10, 11, 9, 12, 13, 12.5, 14, 15, 13, 16, 17, 18}
	table, err := NewExtractor(10).Derive(seriesOf(closes...))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	alpha := Alpha(10)
	for i := 1; i < len(table); i++ {
		want := alpha*table[i].Close + (1-alpha)*table[i-1].EMA
		if table[i].EMA != want {
			t.Fatalf("row %d: ema %v violates recursion (want %v)", i, table[i].EMA, want)
		}
	}
	ema := EMA(closes, 10)
	for i := range ema {
		if ema[i] != table[i].EMA {
			t.Fatalf("EMA helper diverges at %d", i)
		}
	}
}

func TestDeriveEmptySeries(t *testing.T) {
	_, err := NewExtractor(10).Derive(models.PriceSeries{Symbol: "X"})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestDeriveKeepsFirstRowAndCompleteFilters(t *testing.T) {
	table, err := NewExtractor(10).Derive(seriesOf(5))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(table) != 1 || table[0].EMA != 5 {
		t.Fatalf("unexpected single-row table %+v", table)
	}
	if len(table.Complete()) != 0 {
		t.Fatalf("single row cannot be complete")
	}
}

func TestSimpleReturnsZeroPrevious(t *testing.T) {
	rets, skipped := SimpleReturns([]float64{0, 5, 10})
	if len(rets) != 2 || rets[1] != 1 {
		t.Fatalf("unexpected returns %v", rets)
	}
	if len(skipped) != 1 || skipped[0] != 1 {
		t.Fatalf("unexpected skipped %v", skipped)
	}
}

func TestDeriveZeroPreviousCloseLeavesReturnUndefined(t *testing.T) {
	table, err := NewExtractor(10).Derive(seriesOf(0, 5, 10))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if table[1].HasReturn {
		t.Fatalf("row 1 follows a zero close and must have no return")
	}
	rets, _ := SimpleReturns([]float64{0, 5, 10})
	if !table[2].HasReturn || table[2].Return != rets[1] {
		t.Fatalf("row 2 return %v, want %v", table[2].Return, rets[1])
	}
	if len(table.Complete()) != 1 {
		t.Fatalf("expected one complete row, got %d", len(table.Complete()))
	}
}

func TestSchemaNamesSpan(t *testing.T) {
	s := NewExtractor(10).Schema()
	if s.String() != "close,ema10,return" {
		t.Fatalf("unexpected schema %s", s)
	}
	if NewExtractor(0).Schema().EMASpan != DefaultEMASpan {
		t.Fatalf("expected default span")
	}
}
