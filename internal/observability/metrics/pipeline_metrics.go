package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	VerificationOutcomeVerdict   = "verdict"
	VerificationOutcomeRetryable = "retryable_error"
	VerificationOutcomeRejected  = "rejected_request"

	VerdictSourceReal      = "real"
	VerdictSourceSynthetic = "synthetic"

	LedgerOpSubmit   = "submit"
	LedgerOpApprove  = "approve"
	LedgerOpMarkPaid = "mark_paid"

	ResultOK     = "ok"
	ResultFailed = "failed"
)

// PipelineMetrics captures claim pipeline health signals.
type PipelineMetrics struct {
	claimTransitions    *prometheus.CounterVec
	verifyAttempts      *prometheus.CounterVec
	verifyResults       *prometheus.CounterVec
	verifyQueueDepth    prometheus.Gauge
	verifyQueueDropped  prometheus.Counter
	sweepRecovered      prometheus.Counter
	ledgerOps           *prometheus.CounterVec
	payoutAttempts      *prometheus.CounterVec
	evidenceUploads     *prometheus.CounterVec
	rateLimitDenied     prometheus.Counter
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{
		"service": defaultString(cfg.ServiceName, "claimsd"),
		"env":     defaultString(cfg.Environment, "unknown"),
	}

	m := &PipelineMetrics{
		claimTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_status_transitions_total",
			Help:        "Claim status transitions by from and to status.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		verifyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_verification_attempts_total",
			Help:        "Verification service call attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		verifyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_verification_results_total",
			Help:        "Persisted verification verdicts by decision and source.",
			ConstLabels: constLabels,
		}, []string{"decision", "source"}),
		verifyQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "claims_verify_queue_depth",
			Help:        "Verification jobs currently queued.",
			ConstLabels: constLabels,
		}),
		verifyQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "claims_verify_queue_dropped_total",
			Help:        "Verification jobs dropped because the queue was full.",
			ConstLabels: constLabels,
		}),
		sweepRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "claims_verify_sweep_recovered_total",
			Help:        "Stuck claims re-enqueued by the recovery sweep.",
			ConstLabels: constLabels,
		}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_ledger_ops_total",
			Help:        "Ledger operations by op and result.",
			ConstLabels: constLabels,
		}, []string{"op", "result"}),
		payoutAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_payout_attempts_total",
			Help:        "Payout gateway attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		evidenceUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "claims_evidence_uploads_total",
			Help:        "Evidence store uploads by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		rateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "claims_submit_rate_limited_total",
			Help:        "Claim submissions rejected by the rate limiter.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.claimTransitions,
		m.verifyAttempts,
		m.verifyResults,
		m.verifyQueueDepth,
		m.verifyQueueDropped,
		m.sweepRecovered,
		m.ledgerOps,
		m.payoutAttempts,
		m.evidenceUploads,
		m.rateLimitDenied,
	)
	return m
}

// IncClaimTransition records a status transition.
func (m *PipelineMetrics) IncClaimTransition(from, to string) {
	if m == nil {
		return
	}
	m.claimTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncVerifyAttempt records one verification call attempt.
func (m *PipelineMetrics) IncVerifyAttempt(outcome string) {
	if m == nil {
		return
	}
	m.verifyAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncVerifyResult records a persisted verdict.
func (m *PipelineMetrics) IncVerifyResult(decision, source string) {
	if m == nil {
		return
	}
	m.verifyResults.WithLabelValues(normalizeLabel(decision), normalizeLabel(source)).Inc()
}

// SetVerifyQueueDepth reports the current queue depth.
func (m *PipelineMetrics) SetVerifyQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.verifyQueueDepth.Set(float64(depth))
}

// IncVerifyQueueDropped records a job that could not be enqueued.
func (m *PipelineMetrics) IncVerifyQueueDropped() {
	if m == nil {
		return
	}
	m.verifyQueueDropped.Inc()
}

// IncSweepRecovered records a claim picked up by the recovery sweep.
func (m *PipelineMetrics) IncSweepRecovered() {
	if m == nil {
		return
	}
	m.sweepRecovered.Inc()
}

// IncLedgerOp records a ledger call result.
func (m *PipelineMetrics) IncLedgerOp(op, result string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

// IncPayoutAttempt records a payout gateway attempt.
func (m *PipelineMetrics) IncPayoutAttempt(result string) {
	if m == nil {
		return
	}
	m.payoutAttempts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncEvidenceUpload records an evidence store upload result.
func (m *PipelineMetrics) IncEvidenceUpload(result string) {
	if m == nil {
		return
	}
	m.evidenceUploads.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRateLimitDenied records a rate-limited submission.
func (m *PipelineMetrics) IncRateLimitDenied() {
	if m == nil {
		return
	}
	m.rateLimitDenied.Inc()
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
