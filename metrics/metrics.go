package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one knowledge base on its own registry.
// All methods are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	EmbeddingsTotal   *prometheus.CounterVec
	EmbeddingAPICalls prometheus.Counter
	EmbeddingTokens   prometheus.Counter
	UploadBatches     *prometheus.CounterVec
	UploadedRecords   *prometheus.CounterVec
	SearchesTotal     *prometheus.CounterVec
	SearchDuration    prometheus.Histogram
	SearchResults     prometheus.Histogram
	QueriesTotal      *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// New creates the roofrag collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		EmbeddingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roofrag_embeddings_total",
				Help: "Embedded texts by outcome",
			},
			[]string{"status"},
		),
		EmbeddingAPICalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "roofrag_embedding_api_calls_total",
			Help: "Embedding provider calls including retries",
		}),
		EmbeddingTokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "roofrag_embedding_tokens_total",
			Help: "Tokens reported by the embedding provider",
		}),
		UploadBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roofrag_upload_batches_total",
				Help: "Upload batches by outcome",
			},
			[]string{"status"},
		),
		UploadedRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roofrag_uploaded_records_total",
				Help: "Upserted records, split into inserted and duplicate",
			},
			[]string{"kind"},
		),
		SearchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roofrag_searches_total",
				Help: "Similarity searches by outcome",
			},
			[]string{"status"},
		),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "roofrag_search_duration_seconds",
			Help:    "Similarity search latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.2, 0.5, 1, 2},
		}),
		SearchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "roofrag_search_results",
			Help:    "Results returned per search",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		}),
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roofrag_queries_total",
				Help: "Answered queries by topic and fallback",
			},
			[]string{"topic", "fallback"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roofrag_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

func (m *Metrics) ObserveEmbedding(status string, calls int, tokens int) {
	if m == nil || status == "" {
		return
	}
	m.EmbeddingsTotal.WithLabelValues(status).Inc()
	m.EmbeddingAPICalls.Add(float64(calls))
	m.EmbeddingTokens.Add(float64(tokens))
}

func (m *Metrics) ObserveUploadBatch(status string, inserted int, duplicates int) {
	if m == nil {
		return
	}
	m.UploadBatches.WithLabelValues(status).Inc()
	m.UploadedRecords.WithLabelValues("inserted").Add(float64(inserted))
	m.UploadedRecords.WithLabelValues("duplicate").Add(float64(duplicates))
}

func (m *Metrics) ObserveSearch(err error, results int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if err != nil {
		m.SearchesTotal.WithLabelValues("error").Inc()
		return
	}
	m.SearchesTotal.WithLabelValues("ok").Inc()
	m.SearchDuration.Observe(elapsed.Seconds())
	m.SearchResults.Observe(float64(results))
}

func (m *Metrics) ObserveQuery(topic string, fallback bool) {
	if m == nil {
		return
	}
	label := "false"
	if fallback {
		label = "true"
	}
	m.QueriesTotal.WithLabelValues(topic, label).Inc()
}

func (m *Metrics) ObserveHTTP(route string, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
