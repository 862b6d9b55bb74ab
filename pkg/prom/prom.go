// Package prom registers the ledger's prometheus metrics and serves them on
// a separate listener. Every recorder is a no-op until Create succeeds.
package prom

import (
	"sync"

	xhttp "github.com/majmadigital/finance-ledger/pkg/http"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemPayment = "payment"
	SystemAudit   = "audit"
)

type metrics struct {
	paymentsProcessed *prometheus.CounterVec
	paymentDuration   *prometheus.HistogramVec
	paymentAmount     *prometheus.CounterVec
	txnIDRetries      prometheus.Counter

	auditRuns       prometheus.Counter
	auditDrift      *prometheus.GaugeVec
	auditMismatches *prometheus.CounterVec
}

var (
	mu      sync.RWMutex
	current *metrics
)

// Create registers every metric under namespace with env and instance as
// constant labels. Calling it twice returns the registerer's duplicate error.
func Create(host string, env string, namespace string) error {
	labels := prometheus.Labels{"env": env, "instance": host}
	counter := func(subsystem, name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: labels}
	}
	durationOpts := prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   SystemPayment,
		Name:        "duration_seconds",
		Help:        "Time spent processing a payment request.",
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	}
	driftOpts := prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   SystemAudit,
		Name:        "drift_francs",
		Help:        "Ledger sum minus recorded aggregate at the last audit.",
		ConstLabels: labels,
	}

	m := &metrics{
		paymentsProcessed: prometheus.NewCounterVec(counter(SystemPayment, "processed_total", "Payment requests by contribution type and outcome."), []string{"type", "outcome"}),
		paymentDuration:   prometheus.NewHistogramVec(durationOpts, []string{"outcome"}),
		paymentAmount:     prometheus.NewCounterVec(counter(SystemPayment, "amount_francs_total", "Francs credited by contribution type."), []string{"type"}),
		txnIDRetries:      prometheus.NewCounter(counter(SystemPayment, "transaction_id_retries_total", "Generated transaction ids that collided and were retried.")),
		auditRuns:         prometheus.NewCounter(counter(SystemAudit, "runs_total", "Audit sweeps scheduled.")),
		auditDrift:        prometheus.NewGaugeVec(driftOpts, []string{"scope"}),
		auditMismatches:   prometheus.NewCounterVec(counter(SystemAudit, "mismatches_total", "Audits whose aggregate disagreed with the ledger."), []string{"scope"}),
	}

	for _, c := range []prometheus.Collector{
		m.paymentsProcessed, m.paymentDuration, m.paymentAmount, m.txnIDRetries,
		m.auditRuns, m.auditDrift, m.auditMismatches,
	} {
		if err := prometheus.Register(c); err != nil {
			return err
		}
	}

	mu.Lock()
	current = m
	mu.Unlock()
	return nil
}

func get() *metrics {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// ListenAndServer blocks serving the default gatherer on url.
func ListenAndServer(addr string, url string) {
	s := xhttp.CreateServer()
	s.GET(url, fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

// ObservePayment records one payment request. Amounts count only when the
// payment committed.
func ObservePayment(contributionType, outcome string, amount int64, duration float64) {
	m := get()
	if m == nil {
		return
	}
	m.paymentsProcessed.WithLabelValues(contributionType, outcome).Inc()
	m.paymentDuration.WithLabelValues(outcome).Observe(duration)
	if outcome == "success" {
		m.paymentAmount.WithLabelValues(contributionType).Add(float64(amount))
	}
}

func IncTransactionIDRetry() {
	if m := get(); m != nil {
		m.txnIDRetries.Inc()
	}
}

func RecordAuditRun() {
	if m := get(); m != nil {
		m.auditRuns.Inc()
	}
}

// RecordAuditDrift publishes the ledger-minus-aggregate difference for scope
// and counts it as a mismatch when non-zero.
func RecordAuditDrift(scope string, drift int64) {
	m := get()
	if m == nil {
		return
	}
	m.auditDrift.WithLabelValues(scope).Set(float64(drift))
	if drift != 0 {
		m.auditMismatches.WithLabelValues(scope).Inc()
	}
}

func IncAuditMismatch(scope string) {
	if m := get(); m != nil {
		m.auditMismatches.WithLabelValues(scope).Inc()
	}
}
