// Package metrics records consolidation run metrics for the Prometheus
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"receivables/internal/notify"
	"receivables/pkg/models"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	invoices    prometheus.Gauge
	snapshots   prometheus.Gauge
	goldRows    *prometheus.GaugeVec
	goldAmount  *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
}

// New registers the consolidation collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receivables_consolidation_runs_total",
			Help: "Consolidation runs partitioned by status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receivables_consolidation_stage_duration_seconds",
			Help:    "Duration of each consolidation stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		invoices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receivables_ledger_invoices",
			Help: "Invoices in the consolidated ledger.",
		}),
		snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receivables_snapshots",
			Help: "Monthly snapshots computed by the last run.",
		}),
		goldRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "receivables_gold_rows",
			Help: "Gold rows produced by the last run, per concept.",
		}, []string{"concept"}),
		goldAmount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "receivables_current_month_amount",
			Help: "Current-month amount per concept across all clients.",
		}, []string{"concept"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receivables_consolidation_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
	}
	m.registry.MustRegister(m.runs, m.duration, m.invoices, m.snapshots, m.goldRows, m.goldAmount, m.lastSuccess)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Stage times one consolidation stage.
type Stage struct {
	metrics *Metrics
	name    string
	start   time.Time
}

// Track starts timing a stage.
func (m *Metrics) Track(stage string) *Stage {
	return &Stage{metrics: m, name: stage, start: time.Now()}
}

// End records the stage duration and returns err untouched.
func (s *Stage) End(err error) error {
	if s == nil || s.metrics == nil {
		return err
	}
	s.metrics.duration.WithLabelValues(s.name).Observe(time.Since(s.start).Seconds())
	return err
}

// ObserveLedger records ledger and time axis sizes.
func (m *Metrics) ObserveLedger(invoices, snapshots int) {
	m.invoices.Set(float64(invoices))
	m.snapshots.Set(float64(snapshots))
}

// ObserveRows records per-concept row counts and current-month totals.
func (m *Metrics) ObserveRows(rows []models.GoldRow) {
	counts := make(map[models.Concept]int)
	amounts := make(map[models.Concept]float64)
	for _, r := range rows {
		counts[r.Concept]++
		if r.IsCurrentMonth {
			amounts[r.Concept] += r.Amount.InexactFloat64()
		}
	}
	for _, c := range models.Concepts() {
		m.goldRows.WithLabelValues(c.String()).Set(float64(counts[c]))
		m.goldAmount.WithLabelValues(c.String()).Set(amounts[c])
	}
}

// RunFinished counts the run and, on success, stamps the success time.
func (m *Metrics) RunFinished(status string, at time.Time) {
	m.runs.WithLabelValues(status).Inc()
	if status == notify.StatusSucceeded {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
