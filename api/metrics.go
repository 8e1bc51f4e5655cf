/*
metrics.go - Prometheus counters for the settlement API

PURPOSE:

	Tracks settlement throughput: how many batches each strategy commits,
	how many ledger entries they append, and the money moved. Exposed on
	GET /metrics via promhttp.

REGISTRY:

	Each Metrics value owns its registry, so tests can build isolated
	handlers without duplicate-registration panics.
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edifica/obra-engine/settlement"
)

const metricPrefix = "obra_"

// Metrics holds the API's prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	settlements *prometheus.CounterVec
	entries     *prometheus.CounterVec
	receivedBRL prometheus.Counter
	discountBRL prometheus.Counter

	overdueCount   prometheus.Gauge
	outstandingBRL prometheus.Gauge
}

// NewMetrics builds and registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlements_total",
				Help: "Committed settlement batches by mode",
			},
			[]string{"mode"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_entries_total",
				Help: "Appended ledger entries by kind",
			},
			[]string{"kind"},
		),
		receivedBRL: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "received_brl_total",
				Help: "Money received through settlements, in BRL",
			},
		),
		discountBRL: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "discount_brl_total",
				Help: "Discounts granted through settlements, in BRL",
			},
		),
		overdueCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "overdue_installments",
				Help: "Installments past due and not yet QUITADA",
			},
		),
		outstandingBRL: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "overdue_outstanding_brl",
				Help: "Outstanding balance of overdue installments, in BRL",
			},
		),
	}
	m.Registry.MustRegister(
		m.settlements, m.entries, m.receivedBRL, m.discountBRL,
		m.overdueCount, m.outstandingBRL,
	)
	return m
}

// RecordBatch counts one committed batch.
func (m *Metrics) RecordBatch(b *settlement.Batch) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(string(b.Mode)).Inc()
	for _, e := range b.Entries {
		m.entries.WithLabelValues(string(e.Kind)).Inc()
	}
	m.receivedBRL.Add(b.Received().Float64())
	m.discountBRL.Add(b.Discounted().Float64())
}

// SetOverdue publishes the overdue snapshot computed by the scheduler.
func (m *Metrics) SetOverdue(count int, outstanding float64) {
	if m == nil {
		return
	}
	m.overdueCount.Set(float64(count))
	m.outstandingBRL.Set(outstanding)
}
