package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 同步指标，每个 Reconciler 使用独立的 registry，由调用方决定如何导出
type Metrics struct {
	registry *prometheus.Registry

	actions      *prometheus.CounterVec
	ddlDuration  *prometheus.HistogramVec
	tables       *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Gauge
	lastSuccess  prometheus.Gauge
	declarations prometheus.Gauge
}

func NewMetrics(name string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_actions_total",
				Help: "Total number of reconciliation actions",
			},
			[]string{"kind", "status"},
		),
		ddlDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_ddl_duration_seconds",
				Help:    "Duration of ddl statements in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"kind"},
		),
		tables: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_tables_total",
				Help: "Total number of processed tables",
			},
			[]string{"result"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_runs_total",
				Help: "Total number of reconciliation runs",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name + "_last_run_duration_seconds",
			Help: "Duration of the last run in seconds",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name + "_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
		declarations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name + "_declared_tables",
			Help: "Number of declared tables in the last run",
		}),
	}

	m.registry.MustRegister(
		m.actions,
		m.ddlDuration,
		m.tables,
		m.runs,
		m.runDuration,
		m.lastSuccess,
		m.declarations,
	)

	return m
}

// Gatherer 用于导出指标，如 prometheus.WriteToTextfile
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
