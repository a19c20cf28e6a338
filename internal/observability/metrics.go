package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the research survey service.
// Metrics are organized by subsystem: searches, sources, papers, ledger,
// LLM operations, embeddings, and reports. All counters and histograms are
// registered via promauto with the default Prometheus registry.
type Metrics struct {
	// SearchesStarted counts billed search requests accepted for processing.
	SearchesStarted prometheus.Counter

	// SearchesCompleted counts searches that returned ranked papers.
	SearchesCompleted prometheus.Counter

	// SearchesFailed counts searches that ended in total retrieval failure.
	SearchesFailed prometheus.Counter

	// SearchesDegraded counts searches that proceeded with a planner fallback.
	SearchesDegraded prometheus.Counter

	// SearchDuration observes end-to-end search duration in seconds.
	SearchDuration prometheus.Histogram

	// SourceSearches counts adapter searches by source and outcome (ok, error, timeout).
	SourceSearches *prometheus.CounterVec

	// SourceSearchDuration observes adapter search duration in seconds by source.
	SourceSearchDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from source APIs by source.
	SourceRateLimited *prometheus.CounterVec

	// PapersRetrieved counts papers returned by adapters, labeled by source.
	PapersRetrieved *prometheus.CounterVec

	// PapersDeduplicated counts records removed by deduplication, labeled by
	// stage (identifier, fuzzy).
	PapersDeduplicated *prometheus.CounterVec

	// LedgerCharges counts successful balance debits.
	LedgerCharges prometheus.Counter

	// LedgerRejections counts charges rejected for insufficient balance.
	LedgerRejections prometheus.Counter

	// LedgerRefunds counts completed refunds.
	LedgerRefunds prometheus.Counter

	// LedgerCredits counts confirmed recharge credits.
	LedgerCredits prometheus.Counter

	// LedgerRefundFailures counts refunds that failed after a successful
	// charge. Any non-zero value violates the balance invariant and must
	// page an operator.
	LedgerRefundFailures prometheus.Counter

	// AmountChargedFen counts the total amount debited, in fen.
	AmountChargedFen prometheus.Counter

	// LLMRequests counts LLM API requests, labeled by operation and provider.
	LLMRequests *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation and provider.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM call duration in seconds by operation and provider.
	LLMRequestDuration *prometheus.HistogramVec

	// EmbeddingsComputed counts embedding vectors computed remotely.
	EmbeddingsComputed prometheus.Counter

	// EmbeddingCacheHits counts embedding cache hits.
	EmbeddingCacheHits prometheus.Counter

	// EmbeddingCacheMisses counts embedding cache misses.
	EmbeddingCacheMisses prometheus.Counter

	// ReportsGenerated counts successfully synthesized reports.
	ReportsGenerated prometheus.Counter

	// ReportsFailed counts synthesis failures.
	ReportsFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Searches
		SearchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of billed searches started",
		}),
		SearchesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of searches completed successfully",
		}),
		SearchesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of searches that failed entirely",
		}),
		SearchesDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_degraded_total",
			Help:      "Total number of searches that used the raw-query planner fallback",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end duration of searches in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		// Sources
		SourceSearches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_searches_total",
			Help:      "Total adapter searches by source and outcome",
		}, []string{"source", "outcome"}),
		SourceSearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_search_duration_seconds",
			Help:      "Duration of adapter searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total rate-limited responses by source",
		}, []string{"source"}),

		// Papers
		PapersRetrieved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_retrieved_total",
			Help:      "Total papers returned by adapters by source",
		}, []string{"source"}),
		PapersDeduplicated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_deduplicated_total",
			Help:      "Total records removed by deduplication by stage",
		}, []string{"stage"}),

		// Ledger
		LedgerCharges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_charges_total",
			Help:      "Total successful balance debits",
		}),
		LedgerRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_rejections_total",
			Help:      "Total charges rejected for insufficient balance",
		}),
		LedgerRefunds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_refunds_total",
			Help:      "Total completed refunds",
		}),
		LedgerCredits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_credits_total",
			Help:      "Total confirmed recharge credits",
		}),
		LedgerRefundFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_refund_failures_total",
			Help:      "Total refunds that failed after a successful charge",
		}),
		AmountChargedFen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_charged_fen_total",
			Help:      "Total amount debited in fen",
		}),

		// LLM
		LLMRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total LLM API requests by operation and provider",
		}, []string{"operation", "provider"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total failed LLM API requests by operation and provider",
		}, []string{"operation", "provider"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds by operation and provider",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "provider"}),

		// Embeddings
		EmbeddingsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_computed_total",
			Help:      "Total embedding vectors computed remotely",
		}),
		EmbeddingCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_hits_total",
			Help:      "Total embedding cache hits",
		}),
		EmbeddingCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_misses_total",
			Help:      "Total embedding cache misses",
		}),

		// Reports
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Total reports synthesized successfully",
		}),
		ReportsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_failed_total",
			Help:      "Total report synthesis failures",
		}),
	}
}
