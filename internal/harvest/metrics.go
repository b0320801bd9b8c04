package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks the number of HTTP requests dispatched by the pipeline.
	TotalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// TotalRequestErrors tracks the number of requests that resulted in an error.
	TotalRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_request_errors_total",
		Help: "The total number of failed HTTP requests.",
	})
	// TotalRateLimitHits tracks the number of times the harvester was rate-limited (HTTP 429).
	TotalRateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_rate_limit_hits_total",
		Help: "The total number of times the harvester was rate limited.",
	})
	// TotalProductsScraped tracks the number of complete products emitted.
	TotalProductsScraped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_products_scraped_total",
		Help: "The total number of products scraped and persisted.",
	})
	// TotalProductsSkipped tracks candidates dropped because the ledger already held them.
	TotalProductsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_products_skipped_total",
		Help: "The total number of candidates skipped as previously scraped.",
	})
	// TotalItemsFailed tracks planned items abandoned after retry exhaustion.
	TotalItemsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_items_failed_total",
		Help: "The total number of planned items that failed enrichment.",
	})
	// TotalImageFallbacks tracks records that needed the fixed fallback image.
	TotalImageFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_image_fallbacks_total",
		Help: "The total number of products emitted with the fallback image URL.",
	})
)
