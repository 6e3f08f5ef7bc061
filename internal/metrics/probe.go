// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqwatch_probe_results_total",
		Help: "VCS fetchability probe results by outcome",
	}, []string{"outcome"})

	probeCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqwatch_probe_cache_total",
		Help: "Probe cache lookups by result",
	}, []string{"result"})

	indexRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqwatch_index_requests_total",
		Help: "Package index requests by outcome",
	}, []string{"outcome"})
)

// RecordProbeResult counts one probe by its classified outcome.
func RecordProbeResult(outcome string) {
	probeResultsTotal.WithLabelValues(outcome).Inc()
}

// RecordProbeCache counts a probe-store lookup as hit or miss.
func RecordProbeCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	probeCacheTotal.WithLabelValues(result).Inc()
}

// RecordIndexRequest counts one package index request by outcome.
func RecordIndexRequest(outcome string) {
	indexRequestsTotal.WithLabelValues(outcome).Inc()
}
