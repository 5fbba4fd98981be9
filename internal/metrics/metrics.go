// Package metrics exposes Prometheus counters for degraded-mode visibility.
// The engine swallows upstream failures by design; these counters are how an
// operator notices "embedding failed N times this hour" without a crash.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmbeddingFailures counts failed embedding gateway calls.
	EmbeddingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synapse_embedding_failures_total",
		Help: "Embedding calls that failed and were degraded around.",
	})

	// ExtractionFailures counts extraction responses that could not be parsed
	// or completion calls that failed outright.
	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synapse_extraction_failures_total",
		Help: "Extraction calls that failed or returned unusable output.",
	})

	// IngestedNodes counts nodes created by ingestion.
	IngestedNodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synapse_ingested_nodes_total",
		Help: "Nodes created by the ingestion engine.",
	})

	// IngestedEdges counts edges created by ingestion.
	IngestedEdges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synapse_ingested_edges_total",
		Help: "Edges created by the ingestion engine.",
	})

	// ActivationQueries counts activation calls by outcome.
	ActivationQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synapse_activation_queries_total",
		Help: "Activation queries by outcome.",
	}, []string{"outcome"}) // ok | core_fallback

	// ReinforcementFailures counts swallowed touch/strengthen errors.
	ReinforcementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synapse_reinforcement_failures_total",
		Help: "Touch/strengthen side effects that failed and were logged.",
	})
)
