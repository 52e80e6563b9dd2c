package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vt",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through an update cycle",
	})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vt",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of update cycle stages",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"stage"})

	VisibleVoxels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vt",
		Name:      "visible_voxels",
		Help:      "Number of voxels seen by every camera after the last cycle",
	})

	DegenerateCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vt",
		Name:      "degenerate_cycles_total",
		Help:      "Cycles that kept the previous labels because too few voxels were visible",
	})

	PermutationDisagreements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vt",
		Name:      "permutation_disagreements_total",
		Help:      "Cycles where cameras proposed different person permutations",
	})

	SnapshotsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vt",
		Name:      "snapshots_published_total",
		Help:      "Snapshots handed to renderers",
	}, []string{"sink", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vt",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vt",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vt",
		Name:      "events_published_total",
		Help:      "Person position events published to NATS",
	}, []string{"status"})
)
