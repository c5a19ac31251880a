package models

import (
	"fmt"
	"math"
	"strings"
)

const (
	ColumnClose  = "close"
	ColumnReturn = "return"
)

// FeatureSchema is the named, ordered column contract shared by feature
// derivation, training and inference.
type FeatureSchema struct {
	Columns []string `json:"columns"`
	EMASpan int      `json:"ema_span"`
}

// NewFeatureSchema returns the close/ema/return schema for the given span.
func NewFeatureSchema(span int) FeatureSchema {
	return FeatureSchema{
		Columns: []string{ColumnClose, EMAColumn(span), ColumnReturn},
		EMASpan: span,
	}
}

// EMAColumn names the EMA column for a span, e.g. "ema10".
func EMAColumn(span int) string { return fmt.Sprintf("ema%d", span) }

func (s FeatureSchema) Width() int { return len(s.Columns) }

func (s FeatureSchema) Equal(o FeatureSchema) bool {
	if s.EMASpan != o.EMASpan || len(s.Columns) != len(o.Columns) {
		return false
	}
	for i := range s.Columns {
		if s.Columns[i] != o.Columns[i] {
			return false
		}
	}
	return true
}

func (s FeatureSchema) String() string {
	return strings.Join(s.Columns, ",")
}

// FeatureRow holds the derived features for one date. Return is undefined
// on the first row of a series (HasReturn false).
type FeatureRow struct {
	Date      Date    `json:"date"`
	Close     float64 `json:"close"`
	EMA       float64 `json:"ema"`
	Return    float64 `json:"return"`
	HasReturn bool    `json:"has_return"`
}

// Complete reports whether every field is defined and finite.
func (r FeatureRow) Complete() bool {
	return r.HasReturn && finite(r.Close) && finite(r.EMA) && finite(r.Return)
}

// Vector returns the row in schema column order.
func (r FeatureRow) Vector() []float64 {
	return []float64{r.Close, r.EMA, r.Return}
}

// FeatureTable is aligned 1:1 with the source PriceSeries.
type FeatureTable []FeatureRow

// Complete returns only the rows with every field defined.
func (t FeatureTable) Complete() FeatureTable {
	out := make(FeatureTable, 0, len(t))
	for _, r := range t {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

// Closes returns the close column.
func (t FeatureTable) Closes() []float64 {
	out := make([]float64, len(t))
	for i, r := range t {
		out[i] = r.Close
	}
	return out
}

// TrainingExample pairs a complete feature row with the next session's close.
type TrainingExample struct {
	Row   FeatureRow
	Label float64
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
