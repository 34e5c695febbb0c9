package monitoring

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "hireflow"

// Options configure NewModule.
type Options struct {
	Namespace   string // defaults to "hireflow"
	Environment string
}

// Module owns the maintenance collectors, their run history and the health
// probes. Request and auth counters live in pkg/metrics on the default
// registry; Handler serves both.
type Module struct {
	registry    *prometheus.Registry
	maintenance *maintenanceCollectors
	jobs        *jobStore
	health      *HealthManager
}

func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	started := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "start_time_seconds",
		Help:        "Unix time the process started serving",
		ConstLabels: prometheus.Labels{"environment": opts.Environment},
	})
	started.Set(float64(time.Now().Unix()))

	maintenance := newMaintenanceCollectors(namespace)
	registry := prometheus.NewRegistry()
	for _, c := range append(maintenance.all(), collectors.NewBuildInfoCollector(), started) {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Module{
		registry:    registry,
		maintenance: maintenance,
		jobs:        newJobStore(),
		health:      NewHealthManager(),
	}, nil
}

// Handler serves this module's registry merged with the default one. A
// failing collector drops its own series instead of failing the scrape.
func (m *Module) Handler() http.Handler {
	opts := promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}
	if m == nil {
		return promhttp.HandlerFor(prometheus.DefaultGatherer, opts)
	}
	return promhttp.HandlerFor(prometheus.Gatherers{prometheus.DefaultGatherer, m.registry}, opts)
}

func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

// MaintenanceJobs returns the run history of every job seen so far, sorted by name.
func (m *Module) MaintenanceJobs() []MaintenanceJobSummary {
	if m == nil {
		return nil
	}
	return m.jobs.snapshot()
}

var current atomic.Pointer[Module]

// SetModule installs the module RecordMaintenanceRun reports to. Nil is ignored.
func SetModule(module *Module) {
	if module != nil {
		current.Store(module)
	}
}

func CurrentModule() *Module {
	return current.Load()
}
