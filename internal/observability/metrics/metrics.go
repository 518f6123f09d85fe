package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config supplies the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

// PipelineMetrics captures report pipeline health. All methods are safe on a nil receiver.
type PipelineMetrics struct {
	reportsProcessed  *prometheus.CounterVec
	reportDuration    prometheus.Histogram
	showsMatched      *prometheus.CounterVec
	showsUnmatched    prometheus.Counter
	parseErrors       prometheus.Counter
	webhookDeliveries *prometheus.CounterVec
	webhookAttempts   prometheus.Counter
	aiSuggestions     *prometheus.CounterVec
	schedulerJobs     *prometheus.CounterVec
	runsRecovered     prometheus.Counter
}

const (
	DeliveryOutcomeDelivered = "delivered"
	DeliveryOutcomeFailed    = "failed"

	AIOutcomeAccepted = "accepted"
	AIOutcomeRejected = "rejected"
	AIOutcomeError    = "error"
	AIOutcomeSkipped  = "skipped"

	JobOutcomeSuccess = "success"
	JobOutcomeError   = "error"
	JobOutcomeTimeout = "timeout"
	JobOutcomeSkipped = "skipped"
)

// New registers the pipeline instruments on registerer.
func New(cfg Config, registerer prometheus.Registerer) (*PipelineMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tixsync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &PipelineMetrics{
		reportsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tixsync_reports_processed_total",
			Help:        "Report runs finalized by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "tixsync_report_duration_seconds",
			Help:        "End-to-end report processing latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}),
		showsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tixsync_shows_matched_total",
			Help:        "Parsed shows resolved to a canonical show, by method.",
			ConstLabels: constLabels,
		}, []string{"method"}),
		showsUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tixsync_shows_unmatched_total",
			Help:        "Parsed shows left unresolved.",
			ConstLabels: constLabels,
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tixsync_parse_errors_total",
			Help:        "Report blocks rejected by the parser.",
			ConstLabels: constLabels,
		}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tixsync_webhook_deliveries_total",
			Help:        "Webhook deliveries by final outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		webhookAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tixsync_webhook_attempts_total",
			Help:        "Individual webhook POST attempts, including retries.",
			ConstLabels: constLabels,
		}),
		aiSuggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tixsync_ai_suggestions_total",
			Help:        "AI match requests by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		schedulerJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tixsync_scheduler_job_runs_total",
			Help:        "Maintenance job runs by job and outcome.",
			ConstLabels: constLabels,
		}, []string{"job", "outcome"}),
		runsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tixsync_report_runs_recovered_total",
			Help:        "Report runs failed by the stale run sweep.",
			ConstLabels: constLabels,
		}),
	}

	collectors := []prometheus.Collector{
		m.reportsProcessed,
		m.reportDuration,
		m.showsMatched,
		m.showsUnmatched,
		m.parseErrors,
		m.webhookDeliveries,
		m.webhookAttempts,
		m.aiSuggestions,
		m.schedulerJobs,
		m.runsRecovered,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PipelineMetrics) ObserveReport(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reportsProcessed.WithLabelValues(status).Inc()
	m.reportDuration.Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) IncMatched(method string) {
	if m == nil {
		return
	}
	m.showsMatched.WithLabelValues(method).Inc()
}

func (m *PipelineMetrics) IncUnmatched() {
	if m == nil {
		return
	}
	m.showsUnmatched.Inc()
}

func (m *PipelineMetrics) AddParseErrors(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.parseErrors.Add(float64(n))
}

func (m *PipelineMetrics) IncDelivery(outcome string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) IncDeliveryAttempt() {
	if m == nil {
		return
	}
	m.webhookAttempts.Inc()
}

func (m *PipelineMetrics) IncAISuggestion(outcome string) {
	if m == nil {
		return
	}
	m.aiSuggestions.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) IncJobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.schedulerJobs.WithLabelValues(job, outcome).Inc()
}

func (m *PipelineMetrics) AddRecoveredRuns(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.runsRecovered.Add(float64(n))
}
