// Package metrics holds the Prometheus collectors for prediction traffic.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crimson-sun/quip/internal/engine"
	"github.com/crimson-sun/quip/internal/model"
)

// Prediction modes.
const (
	ModeSingle = "single"
	ModeBatch  = "batch"
	ModeTable  = "table"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quip_predictions_total",
			Help: "Statements classified, by label and mode",
		},
		[]string{"label", "mode"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quip_prediction_duration_seconds",
			Help:    "Wall time of one prediction call",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"mode"},
	)

	PredictionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quip_prediction_errors_total",
			Help: "Failed prediction calls, by failing stage",
		},
		[]string{"stage"},
	)

	BatchRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quip_batch_rows",
			Help: "Row count of the most recent batch or table call",
		},
	)
)

// Observe records one prediction call that started at start.
func Observe(mode string, labels []model.Label, start time.Time, err error) {
	PredictionDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		PredictionErrors.WithLabelValues(ErrorStage(err)).Inc()
		return
	}
	if mode != ModeSingle {
		BatchRows.Set(float64(len(labels)))
	}
	for _, l := range labels {
		PredictionsTotal.WithLabelValues(string(l), mode).Inc()
	}
}

// ErrorStage names where a prediction error came from.
func ErrorStage(err error) string {
	var se *engine.StageError
	switch {
	case errors.As(err, &se):
		return string(se.Stage)
	case errors.Is(err, model.ErrNotReady):
		return "not_ready"
	case errors.Is(err, model.ErrMalformedBatchInput):
		return "input"
	default:
		return "other"
	}
}
