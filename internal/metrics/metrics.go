// Package metrics holds the Prometheus collectors for billing runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GenerationRuns counts single-subject generation runs by outcome.
var GenerationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "supportbill",
	Subsystem: "generation",
	Name:      "runs_total",
	Help:      "Single-subject invoice generation runs by outcome (ready, awaiting_prices, failed).",
}, []string{"outcome"})

// GenerationDuration tracks how long single-subject runs take.
var GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "supportbill",
	Subsystem: "generation",
	Name:      "duration_seconds",
	Help:      "Duration of single-subject invoice generation runs.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})

// LineItems counts generated line items by pricing provenance.
var LineItems = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "supportbill",
	Subsystem: "pricing",
	Name:      "line_items_total",
	Help:      "Line items produced, by pricing provenance.",
}, []string{"provenance"})

// CapExceeded counts priced line items flagged above their cap.
var CapExceeded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "supportbill",
	Subsystem: "pricing",
	Name:      "cap_exceeded_total",
	Help:      "Line items whose price exceeds the catalogue cap.",
})

// CompliancePercentage is the compliance percentage of the last validated batch.
var CompliancePercentage = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "supportbill",
	Subsystem: "pricing",
	Name:      "last_compliance_percentage",
	Help:      "Compliance percentage of the most recently validated batch.",
})

// ValidationDegraded counts batches validated without cap checks.
var ValidationDegraded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "supportbill",
	Subsystem: "pricing",
	Name:      "validation_degraded_total",
	Help:      "Batches validated structurally only because the catalogue was unavailable.",
})

// Prompts counts price prompt transitions.
var Prompts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "supportbill",
	Subsystem: "prompts",
	Name:      "transitions_total",
	Help:      "Price prompts by transition (raised, resolved, cancelled).",
}, []string{"transition"})

// BulkSubjects counts subjects processed in bulk runs by outcome.
var BulkSubjects = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "supportbill",
	Subsystem: "bulk",
	Name:      "subjects_total",
	Help:      "Subjects processed by bulk generation, by outcome (succeeded, failed).",
}, []string{"outcome"})

// BulkBatches counts batches executed by bulk runs.
var BulkBatches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "supportbill",
	Subsystem: "bulk",
	Name:      "batches_total",
	Help:      "Batches executed by bulk generation.",
})

// CatalogueCache counts catalogue cache lookups by result (hit, miss, error).
var CatalogueCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "supportbill",
	Subsystem: "catalogue",
	Name:      "cache_lookups_total",
	Help:      "Catalogue cache lookups by result (hit, miss, error).",
}, []string{"result"})
