// Package metrics exposes pipeline counters in the Prometheus exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "issue_ranker"

var (
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_pages_fetched_total",
		Help:      "Issue pages fetched from the source API.",
	}, []string{"repo"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_fetch_failures_total",
		Help:      "Paginations that stopped early, by reason.",
	}, []string{"repo", "reason"})

	IssuesStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "issues_stored_total",
		Help:      "Issues upserted into the store.",
	}, []string{"repo"})

	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_failures_total",
		Help:      "Ingestion batches rolled back.",
	}, []string{"repo"})

	EnrichmentCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_calls_total",
		Help:      "Calls to the text-analysis service, by outcome.",
	}, []string{"outcome"})

	EnrichmentInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "enrichment_in_flight",
		Help:      "Text-analysis calls currently outstanding.",
	})

	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_generated_total",
		Help:      "Report generations, by outcome.",
	}, []string{"outcome"})
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDegraded = "degraded"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
