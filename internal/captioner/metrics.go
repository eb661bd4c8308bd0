package captioner

import "github.com/prometheus/client_golang/prometheus"

var (
	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "captiond",
			Subsystem: "caption",
			Name:      "inference_seconds",
			Help:      "Duration of model inference calls in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"backend", "outcome"},
	)

	inferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captiond",
			Subsystem: "caption",
			Name:      "errors_total",
			Help:      "Total number of failed inference calls",
		},
		[]string{"backend"},
	)

	inferenceInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "captiond",
			Subsystem: "caption",
			Name:      "inflight",
			Help:      "Inference calls holding or waiting for the model",
		},
	)

	modelLoadSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "captiond",
			Subsystem: "model",
			Name:      "load_seconds",
			Help:      "Time spent loading the model at startup",
		},
		[]string{"model", "backend"},
	)
)

func init() {
	prometheus.MustRegister(inferenceDuration, inferenceErrors, inferenceInflight, modelLoadSeconds)
}
