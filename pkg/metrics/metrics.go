package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Variety Resolution Metrics
	ResolutionDuration     prometheus.Histogram
	ResolutionOutcomeTotal *prometheus.CounterVec
	ResolutionTierFallback *prometheus.CounterVec

	// Model Registry Metrics
	ModelLoadTotal       *prometheus.CounterVec
	ModelsLoaded         prometheus.Gauge
	RegistryFallbackMode prometheus.Gauge

	// Prediction Metrics
	PredictionDuration prometheus.Histogram
	PredictionsTotal   *prometheus.CounterVec

	// Seeding Metrics
	SeedingRecordsTotal prometheus.Counter
	SeedingDuration     prometheus.Histogram
	SeedingErrorsTotal  *prometheus.CounterVec
	SeedingBatchSize    prometheus.Histogram

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
}

// NewCollector creates a new metrics collector
func NewCollector(namespace string) *Collector {
	return &Collector{
		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		ResolutionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "variety_resolution_duration_seconds",
				Help:      "Duration of default variety resolution in seconds",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
		),

		ResolutionOutcomeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "variety_resolution_outcomes_total",
				Help:      "Total variety resolutions by terminal outcome",
			},
			[]string{"reason"}, // selection reason or "no_varieties_available"
		),

		ResolutionTierFallback: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "variety_resolution_tier_fallbacks_total",
				Help:      "Total fallback transitions between resolution tiers",
			},
			[]string{"from_tier", "to_tier"},
		),

		ModelLoadTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_load_total",
				Help:      "Total model artifact load attempts by result",
			},
			[]string{"result"}, // "loaded" or a load-error classification
		),

		ModelsLoaded: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "models_loaded",
				Help:      "Number of model entries currently served by the registry",
			},
		),

		RegistryFallbackMode: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_fallback_mode",
				Help:      "1 when the registry is serving synthetic fallback models",
			},
		),

		PredictionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prediction_duration_seconds",
				Help:      "End-to-end prediction orchestration duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0},
			},
		),

		PredictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total predictions served, split by whether the variety was assumed",
			},
			[]string{"variety_assumed"},
		),

		SeedingRecordsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "seeding_records_processed_total",
				Help:      "Total number of variety records seeded into the catalog",
			},
		),

		SeedingDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "seeding_duration_seconds",
				Help:      "Duration of catalog seeding operations in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		SeedingErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "seeding_errors_total",
				Help:      "Total number of seeding errors by type",
			},
			[]string{"error_type"},
		),

		SeedingBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "seeding_batch_size",
				Help:      "Number of records per batch during catalog seeding",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000},
			},
		),

		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordResolutionOutcome increments the terminal-outcome counter
func (c *Collector) RecordResolutionOutcome(reason string) {
	c.ResolutionOutcomeTotal.WithLabelValues(reason).Inc()
}

// RecordTierFallback increments the tier-transition counter
func (c *Collector) RecordTierFallback(fromTier, toTier string) {
	c.ResolutionTierFallback.WithLabelValues(fromTier, toTier).Inc()
}

// RecordModelLoad increments the model load counter by result
func (c *Collector) RecordModelLoad(result string) {
	c.ModelLoadTotal.WithLabelValues(result).Inc()
}

// RecordSeedingError increments seeding error counter
func (c *Collector) RecordSeedingError(errorType string) {
	c.SeedingErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
