package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "frames_processed_total",
		Help:      "Total number of frames pulled from the camera",
	})

	FrameFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "frame_failures_total",
		Help:      "Total number of iterations skipped because no frame was available",
	})

	DetectorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "detector_runs_total",
		Help:      "Detector invocations by stage (mask, face, temp)",
	}, []string{"stage"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kiosk",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	DoorOpens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "door_opens_total",
		Help:      "Total number of door-open signals published",
	})

	PolicyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "policy_rejections_total",
		Help:      "Welcome attempts rejected by policy (appointment, hours)",
	}, []string{"reason"})

	BusFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "bus_failures_total",
		Help:      "Sensor bus operations that failed or timed out",
	}, []string{"op"})

	RosterSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kiosk",
		Name:      "roster_size",
		Help:      "Number of face encodings in the active roster",
	})

	EntriesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "entries_recorded_total",
		Help:      "Time entries recorded, by action",
	}, []string{"action"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kiosk",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kiosk",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket display clients",
	})
)
