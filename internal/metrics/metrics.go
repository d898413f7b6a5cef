package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturer",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "capturer",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "capturer",
		Name:      "active_sessions",
		Help:      "Number of stream sessions currently in the registry.",
	})

	SessionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "capturer",
		Name:      "sessions_created_total",
		Help:      "Total number of stream sessions created (ffmpeg processes spawned).",
	})

	SessionsReapedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturer",
		Name:      "sessions_reaped_total",
		Help:      "Total number of stream sessions removed, by reason (child_exit, idle_timeout).",
	}, []string{"reason"})

	SubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "capturer",
		Name:      "subscribers_active",
		Help:      "Number of live HTTP subscribers across all stream sessions.",
	})

	BusLaggedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturer",
		Name:      "bus_lagged_total",
		Help:      "Total number of Lagged signals observed by subscribers, by stream URL.",
	}, []string{"url"})

	ChildExitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturer",
		Name:      "child_exit_total",
		Help:      "Total number of ffmpeg child process exits seen by the registry, by kind (only child_exit is recorded; EOF, read errors and the no-subscriber timeout are not told apart).",
	}, []string{"kind"})

	ProbeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "capturer",
		Name:      "probe_duration_seconds",
		Help:      "Duration of ffprobe invocations.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	ProbeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturer",
		Name:      "probe_failures_total",
		Help:      "Total number of ffprobe failures, by kind (spawn, utf8, json, structure).",
	}, []string{"kind"})

	CaptureDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "capturer",
		Name:      "capture_duration_seconds",
		Help:      "Duration of one-shot JPEG capture invocations.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	CaptureFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "capturer",
		Name:      "capture_failures_total",
		Help:      "Total number of JPEG capture failures.",
	})

	UploadFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "capturer",
		Name:      "upload_failures_total",
		Help:      "Total number of object-storage upload failures.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveSessions,
		SessionsCreatedTotal,
		SessionsReapedTotal,
		SubscribersActive,
		BusLaggedTotal,
		ChildExitTotal,
		ProbeDuration,
		ProbeFailuresTotal,
		CaptureDuration,
		CaptureFailuresTotal,
		UploadFailuresTotal,
	)
}
