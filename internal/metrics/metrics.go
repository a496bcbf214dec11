// Package metrics holds the Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultAttached = "attached"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"

	OrphanDeleted = "deleted"
	OrphanQueued  = "queued"
)

var (
	// AssetsTotal counts optional assets per ingestion call.
	// Labels: asset (user_link, image, document, links), result (attached, skipped, failed)
	AssetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clonehub",
			Subsystem: "ingest",
			Name:      "assets_total",
			Help:      "Optional assets processed by clone ingestion, by outcome",
		},
		[]string{"asset", "result"},
	)

	ClonesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clonehub",
			Subsystem: "ingest",
			Name:      "clones_total",
			Help:      "Clone create calls by result (created, invalid, storage_error)",
		},
		[]string{"result"},
	)

	MediaUploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clonehub",
			Subsystem: "media",
			Name:      "upload_duration_seconds",
			Help:      "Duration of media host uploads in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"result"},
	)

	BlobBytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clonehub",
			Subsystem: "blob",
			Name:      "bytes_stored_total",
			Help:      "Bytes streamed into the blob store",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clonehub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// OrphanBlobs counts blobs whose metadata row could not be written.
	// Labels: result (deleted, queued, failed)
	OrphanBlobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clonehub",
			Subsystem: "blob",
			Name:      "orphans_total",
			Help:      "Blobs left without a metadata record, by cleanup outcome",
		},
		[]string{"result"},
	)
)

func Asset(asset, result string) {
	AssetsTotal.WithLabelValues(asset, result).Inc()
}
