// Package metrics defines the Prometheus collectors exported by hashdrop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes used as the "result" label of UploadsTotal.
const (
	ResultStored       = "stored"
	ResultDeduplicated = "deduplicated"
	ResultRejected     = "rejected"
	ResultFailed       = "failed"
)

// Gateway metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hashdrop_uploads_total",
			Help: "Total number of uploads by result",
		},
		[]string{"result"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hashdrop_upload_bytes_total",
			Help: "Total number of bytes written to the object store",
		},
	)

	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hashdrop_retrievals_total",
			Help: "Total number of content fetches by outcome",
		},
		[]string{"outcome"},
	)
	// outcome: "direct", "redirect", "not_found", "error"
)

// Object store metrics
var (
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hashdrop_store_operations_total",
			Help: "Total number of object store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hashdrop_store_operation_duration_seconds",
			Help:    "Duration of object store operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"backend", "operation"},
	)

	HeadCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hashdrop_head_cache_total",
			Help: "Head cache lookups by result",
		},
		[]string{"result"},
	)
)
