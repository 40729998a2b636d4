package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

var HistogramBuckets = []float64{
	// fast responses
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	// medium
	750, 1000, 1250, 1500, 1750, 2000,
	// slow, typically provider round trips
	2500, 3000, 4000, 5000, 7500, 10000, 15000, 30000, 60000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "counter":
		return prometheus.NewCounter(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	case "gauge_vec":
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "histogram_vec":
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets}, m.Args)
	case "summary_vec":
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	}
	return nil
}

var MetricsBusinessProcess = &Metric{
	ID:          "bpDur",
	Name:        "bp_dur",
	Description: "process latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}

var MetricsWebhookEvents = &Metric{
	ID:          "webhookEvents",
	Name:        "webhook_events_total",
	Description: "Billing webhook deliveries partitioned by event type and outcome.",
	Type:        "counter_vec",
	Args:        []string{"type", "outcome"},
}

var MetricsEntitlementDecisions = &Metric{
	ID:          "entitlementDecisions",
	Name:        "entitlement_decisions_total",
	Description: "Entitlement gate results.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

// Webhook outcomes.
const (
	OutcomeHandled      = "handled"
	OutcomeDuplicate    = "duplicate"
	OutcomeIgnored      = "ignored"
	OutcomeFailed       = "failed"
	OutcomeBadSignature = "bad_signature"
)

const (
	RefererKey = "X-Referer"
)

// Domain holds the business collectors. A nil *Domain is valid and records nothing.
type Domain struct {
	bpDur        *prometheus.HistogramVec
	webhook      *prometheus.CounterVec
	entitlements *prometheus.CounterVec
}

// NewDomain creates and registers the business collectors on reg.
func NewDomain(reg prometheus.Registerer) (*Domain, error) {
	d := &Domain{
		bpDur:        NewMetric(MetricsBusinessProcess, "craftbill").(*prometheus.HistogramVec),
		webhook:      NewMetric(MetricsWebhookEvents, "craftbill").(*prometheus.CounterVec),
		entitlements: NewMetric(MetricsEntitlementDecisions, "craftbill").(*prometheus.CounterVec),
	}
	for _, c := range []prometheus.Collector{d.bpDur, d.webhook, d.entitlements} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// NewDefaultDomain registers on the process-wide prometheus registry.
func NewDefaultDomain() (*Domain, error) {
	return NewDomain(prometheus.DefaultRegisterer)
}

func (d *Domain) WebhookEvent(eventType, outcome string) {
	if d == nil {
		return
	}
	d.webhook.WithLabelValues(eventType, outcome).Inc()
}

func (d *Domain) EntitlementDecision(result string) {
	if d == nil {
		return
	}
	d.entitlements.WithLabelValues(result).Inc()
}

// ObserveProcess records the duration of a business step since start.
func (d *Domain) ObserveProcess(kind, subtype string, start time.Time) {
	if d == nil {
		return
	}
	d.bpDur.WithLabelValues(kind, subtype).Observe(MillisecondsSince(start))
}

func MillisecondsSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

var Module = fx.Options(
	fx.Provide(NewDefaultDomain),
)
