package format

import (
	"math"
	"testing"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		v    float64
		spec Spec
		want string
	}{
		{9525, IDR, "Rp 9.525,00"},
		{1234567.891, IDR, "Rp 1.234.567,89"},
		{-250.5, IDR, "-Rp 250,50"},
		{1234.5, USD, "$1,234.50"},
		{math.NaN(), IDR, "-"},
	}
	for _, c := range cases {
		if got := Currency(c.v, c.spec); got != c.want {
			t.Fatalf("Currency(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(1.25, IDR); got != "1,25%" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Percent(-0.5, USD); got != "-0.50%" {
		t.Fatalf("unexpected %q", got)
	}
}
