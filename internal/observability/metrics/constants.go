// Package metrics provides custom Prometheus metrics for the okn-go components.
package metrics

import "time"

const (
	// Namespace prefixes every metric name.
	Namespace = "okn"

	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
)

// gainBuckets spans the Fail, Caution and Pass ranges with extra resolution
// around the thresholds.
var gainBuckets = []float64{0.25, 0.5, 0.7, 0.75, 0.8, 0.9, 1.0, 1.25, 1.5, 2, 5, 10, 20}
