package monitoring

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaintenanceJobSummary describes the run history of one background job.
type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	TotalRuns           uint64        `json:"total_runs"`
}

type maintenanceCollectors struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
}

func newMaintenanceCollectors(namespace string) *maintenanceCollectors {
	return &maintenanceCollectors{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_runs_total",
				Help:      "Maintenance job executions by result",
			},
			[]string{"job", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Maintenance job duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maintenance_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run per job",
			},
			[]string{"job"},
		),
	}
}

func (c *maintenanceCollectors) all() []prometheus.Collector {
	return []prometheus.Collector{c.runs, c.duration, c.lastRun}
}

type jobStore struct {
	mu   sync.Mutex
	jobs map[string]*MaintenanceJobSummary
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*MaintenanceJobSummary)}
}

func (s *jobStore) record(job, result, message string, duration time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[job]
	if !ok {
		entry = &MaintenanceJobSummary{Job: job}
		s.jobs[job] = entry
	}
	entry.LastStatus = result
	entry.LastRunAt = at
	entry.LastDuration = duration
	entry.LastError = message
	entry.TotalRuns++
	if result == "success" {
		entry.ConsecutiveFailures = 0
		entry.LastSuccessAt = at
	} else {
		entry.ConsecutiveFailures++
	}
}

func (s *jobStore) snapshot() []MaintenanceJobSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]MaintenanceJobSummary, 0, len(s.jobs))
	for _, entry := range s.jobs {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

// RecordMaintenanceRun records the completion of a maintenance job on the
// process-wide module. It is a no-op until SetModule has been called.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	job = normalizeLabel(job)
	result = normalizeLabel(result)
	if duration < 0 {
		duration = 0
	}

	module.maintenance.runs.WithLabelValues(job, result).Inc()
	module.maintenance.duration.WithLabelValues(job).Observe(duration.Seconds())
	now := time.Now()
	if result == "success" {
		module.maintenance.lastRun.WithLabelValues(job).Set(float64(now.Unix()))
	}
	module.jobs.record(job, result, strings.TrimSpace(message), duration, now)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
