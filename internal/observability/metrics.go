package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	attemptsSubmittedTotal prometheus.Counter
	questionsImportedTotal prometheus.Counter
	backupsCreatedTotal    prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examdesk_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "examdesk_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		attemptsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examdesk_attempts_submitted_total",
			Help: "Total number of exam attempts graded.",
		})

		questionsImportedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examdesk_questions_imported_total",
			Help: "Total number of questions imported from spreadsheets.",
		})

		backupsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examdesk_backups_created_total",
			Help: "Total number of backup archives created.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			attemptsSubmittedTotal,
			questionsImportedTotal,
			backupsCreatedTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// RecordAttemptSubmitted counts one graded attempt.
func RecordAttemptSubmitted() {
	RegisterMetrics()
	attemptsSubmittedTotal.Inc()
}

// RecordQuestionsImported counts questions brought in by a spreadsheet import.
func RecordQuestionsImported(n int) {
	RegisterMetrics()
	questionsImportedTotal.Add(float64(n))
}

// RecordBackupCreated counts one created backup archive.
func RecordBackupCreated() {
	RegisterMetrics()
	backupsCreatedTotal.Inc()
}
