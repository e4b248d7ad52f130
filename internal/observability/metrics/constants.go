// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Analysis outcome label values for the spectra counter.
const (
	// StatusOK marks an analysis that completed successfully.
	StatusOK = "ok"
	// StatusError marks an analysis that failed.
	StatusError = "error"
	// StatusCached marks an analysis served from the result cache.
	StatusCached = "cached"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001

	// BucketFactor2 is the common exponential growth factor for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second
