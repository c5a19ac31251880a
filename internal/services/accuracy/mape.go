package accuracy

import (
	"fmt"
	"math"

	"FinCast/internal/domain/models"
	"FinCast/pkg/util"
)

// DefaultWindow is the number of trailing rows scored for a forecast.
const DefaultWindow = 10

// MAPE returns the mean absolute percentage error in percent, rounded to
// two decimals. Any zero actual value fails the whole computation.
func MAPE(actual, predicted []float64) (float64, error) {
	if len(actual) == 0 || len(predicted) == 0 {
		return 0, models.ErrEmptyInput
	}
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("mape: %d actual vs %d predicted: %w", len(actual), len(predicted), models.ErrLengthMismatch)
	}
	var sum float64
	for i, a := range actual {
		if a == 0 {
			return 0, fmt.Errorf("mape: actual[%d] is zero: %w", i, models.ErrDivisionByZero)
		}
		sum += math.Abs((a - predicted[i]) / a)
	}
	return util.Round2(sum / float64(len(actual)) * 100), nil
}

// Trailing returns the last n elements of xs, or all of them when fewer exist.
func Trailing[S ~[]E, E any](xs S, n int) S {
	if n <= 0 {
		return xs[:0]
	}
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}
