package accuracy

import (
	"errors"
	"testing"

	"FinCast/internal/domain/models"
)

func TestMAPE(t *testing.T) {
	cases := []struct {
		name      string
		actual    []float64
		predicted []float64
		want      float64
	}{
		{"single", []float64{100}, []float64{110}, 10},
		{"exact", []float64{100, 200}, []float64{100, 200}, 0},
		{"ten percent", []float64{100, 200}, []float64{110, 180}, 10},
		{"rounded", []float64{3}, []float64{2}, 33.33},
		{"under prediction", []float64{50}, []float64{0}, 100},
	}
	for _, tc := range cases {
		got, err := MAPE(tc.actual, tc.predicted)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestMAPEErrors(t *testing.T) {
	if _, err := MAPE(nil, nil); !errors.Is(err, models.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := MAPE([]float64{1}, nil); !errors.Is(err, models.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for empty predictions, got %v", err)
	}
	if _, err := MAPE([]float64{100}, []float64{1, 2}); !errors.Is(err, models.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := MAPE([]float64{1, 2}, []float64{1}); !errors.Is(err, models.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := MAPE([]float64{0}, []float64{5}); !errors.Is(err, models.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestTrailing(t *testing.T) {
	xs := []int{1, 2, 3, 4, 5}
	if got := Trailing(xs, 3); len(got) != 3 || got[0] != 3 {
		t.Fatalf("unexpected %v", got)
	}
	if got := Trailing(xs, 10); len(got) != 5 {
		t.Fatalf("expected all elements, got %v", got)
	}
	if got := Trailing(xs, 0); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}
