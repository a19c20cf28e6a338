// Package observability provides logging and metrics support for the
// research survey service.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("search started")
//
// # Metrics
//
// Initialize metrics once at startup:
//
//	metrics := observability.NewMetrics("research_survey")
//
// Record metrics:
//
//	metrics.SearchesStarted.Inc()
//	metrics.PapersRetrieved.WithLabelValues("arxiv").Add(25)
//	metrics.LedgerCharges.Inc()
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithUserID(ctx, userID)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: correlation identifier for one HTTP request
//   - user_id: authenticated user identifier
//   - query: user's research question
//   - keyword: planner-derived search keyword
//   - source: paper source (arxiv, semantic_scholar, openalex)
//   - canonical_id: source-qualified paper identifier
//   - transaction_id: ledger debit identifier
//   - amount_fen: billed amount in fen
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
