package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecastsTotal *prometheus.CounterVec
	predicted      *prometheus.GaugeVec
	mape           *prometheus.GaugeVec
	modelsTrained  *prometheus.CounterVec
	examples       *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecastsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_forecasts_total",
				Help: "Total number of forecasts served",
			},
			[]string{"symbol"},
		),
		predicted: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_predicted_close",
				Help: "Last predicted close for a symbol",
			},
			[]string{"symbol"},
		),
		mape: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_accuracy_mape_percent",
				Help: "Rolling MAPE of the last forecast for a symbol",
			},
			[]string{"symbol"},
		),
		modelsTrained: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_models_trained_total",
				Help: "Total number of model training runs",
			},
			[]string{"symbol"},
		),
		examples: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_training_examples",
				Help: "Number of labelled examples in the last training run",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordForecast(symbol string, predicted, mape float64) {
	r.forecastsTotal.WithLabelValues(symbol).Inc()
	r.predicted.WithLabelValues(symbol).Set(predicted)
	r.mape.WithLabelValues(symbol).Set(mape)
}

func (r *Recorder) RecordModelTrained(symbol string, examples int) {
	r.modelsTrained.WithLabelValues(symbol).Inc()
	r.examples.WithLabelValues(symbol).Set(float64(examples))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
