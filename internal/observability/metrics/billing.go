package metrics

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics exposes the billing counters and the active MRR gauge.
type BillingMetrics struct {
	subscriptionsCreated *prometheus.CounterVec
	invoicesGenerated    prometheus.Counter
	invoiceTransitions   *prometheus.CounterVec
	usageRecorded        prometheus.Counter
	activeMRR            prometheus.Gauge

	mrrCents atomic.Int64
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the process-wide billing metrics, registering them on
// first use.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "deskflow"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	subscriptionsCreated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "deskflow_subscriptions_created_total",
			Help:        "Total subscriptions created, by billing cycle.",
			ConstLabels: constLabels,
		},
		[]string{"cycle"},
	)

	invoicesGenerated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "deskflow_invoices_generated_total",
			Help:        "Total invoices generated.",
			ConstLabels: constLabels,
		},
	)

	invoiceTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "deskflow_invoice_transitions_total",
			Help:        "Total invoice status transitions, by target status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	usageRecorded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "deskflow_usage_records_total",
			Help:        "Total usage records accepted.",
			ConstLabels: constLabels,
		},
	)

	activeMRR := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "deskflow_active_mrr_cents",
			Help:        "Sum of MRR across non-canceled subscriptions, in cents.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		subscriptionsCreated,
		invoicesGenerated,
		invoiceTransitions,
		usageRecorded,
		activeMRR,
	)

	return &BillingMetrics{
		subscriptionsCreated: subscriptionsCreated,
		invoicesGenerated:    invoicesGenerated,
		invoiceTransitions:   invoiceTransitions,
		usageRecorded:        usageRecorded,
		activeMRR:            activeMRR,
	}
}

func (m *BillingMetrics) SubscriptionCreated(cycle string) {
	if m == nil {
		return
	}
	m.subscriptionsCreated.WithLabelValues(cycle).Inc()
}

func (m *BillingMetrics) InvoiceGenerated() {
	if m == nil {
		return
	}
	m.invoicesGenerated.Inc()
}

func (m *BillingMetrics) InvoiceTransition(status string) {
	if m == nil {
		return
	}
	m.invoiceTransitions.WithLabelValues(status).Inc()
}

func (m *BillingMetrics) UsageRecorded() {
	if m == nil {
		return
	}
	m.usageRecorded.Inc()
}

// AddMRR shifts the active MRR gauge by delta cents. Negative deltas are
// applied on cancellation.
func (m *BillingMetrics) AddMRR(deltaCents int64) {
	if m == nil {
		return
	}
	m.activeMRR.Set(float64(m.mrrCents.Add(deltaCents)))
}
