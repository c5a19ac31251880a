package models

import "time"

// ForecastRecord is the result of one prediction request.
type ForecastRecord struct {
	Instrument       string    `json:"instrument"`
	PredictedClose   float64   `json:"predicted_close"`
	ReferenceClose   float64   `json:"reference_close"`
	PercentageChange float64   `json:"percentage_change"`
	AccuracyMAPE     float64   `json:"accuracy_mape"`
	ApplicableDate   Date      `json:"applicable_date"`
	SessionOpen      bool      `json:"session_open"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// ChartPoint is one close price for the presentation layer.
type ChartPoint struct {
	Date  Date    `json:"date"`
	Close float64 `json:"close"`
}

// ForecastView bundles a record with its price history for charting.
type ForecastView struct {
	Record ForecastRecord `json:"record"`
	Name   string         `json:"name"`
	Chart  []ChartPoint   `json:"chart"`
}

// ChartFromSeries converts bars to chart points.
func ChartFromSeries(s PriceSeries) []ChartPoint {
	out := make([]ChartPoint, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = ChartPoint{Date: b.Date, Close: b.Close}
	}
	return out
}
