package features

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// DefaultEMASpan is the EMA span used by the close/ema/return schema.
const DefaultEMASpan = 10

// Extractor derives model-input features from a price series.
type Extractor struct {
	span   int
	schema models.FeatureSchema
}

func NewExtractor(span int) *Extractor {
	if span <= 0 {
		span = DefaultEMASpan
	}
	return &Extractor{span: span, schema: models.NewFeatureSchema(span)}
}

// Schema returns the column contract produced by Derive.
func (e *Extractor) Schema() models.FeatureSchema { return e.schema }

// Derive computes one FeatureRow per bar from EMA and SimpleReturns. Row 0 and
// rows after a zero close keep an undefined return; consumers filter with FeatureTable.Complete.
func (e *Extractor) Derive(series models.PriceSeries) (models.FeatureTable, error) {
	if series.Empty() {
		return nil, fmt.Errorf("derive %s: no bars: %w", series.Symbol, models.ErrInsufficientData)
	}
	closes := series.Closes()
	ema := EMA(closes, e.span)
	rets, skipped := SimpleReturns(closes)

	out := make(models.FeatureTable, len(series.Bars))
	for i, b := range series.Bars {
		row := models.FeatureRow{Date: b.Date, Close: b.Close, EMA: ema[i]}
		if i > 0 {
			row.Return = rets[i-1]
			row.HasReturn = true
			if len(skipped) > 0 && skipped[0] == i {
				row.Return, row.HasReturn = 0, false
				skipped = skipped[1:]
			}
		}
		out[i] = row
	}
	return out, nil
}

// Alpha is the smoothing factor 2/(span+1).
func Alpha(span int) float64 {
	return 2 / float64(span+1)
}

// EMA computes the recursive exponential moving average seeded with the first value.
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := Alpha(span)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// SimpleReturns returns (c[t]-c[t-1])/c[t-1] for t >= 1; length len(closes)-1.
// A zero previous close yields 0 and is reported in the skipped indexes.
func SimpleReturns(closes []float64) (rets []float64, skipped []int) {
	if len(closes) < 2 {
		return nil, nil
	}
	rets = make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			rets = append(rets, 0)
			skipped = append(skipped, i)
			continue
		}
		rets = append(rets, (closes[i]-prev)/prev)
	}
	return rets, skipped
}
