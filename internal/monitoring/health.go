package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ProbeStatus is the state of one component or of a whole report.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDegraded ProbeStatus = "degraded"
	StatusDown     ProbeStatus = "down"
)

// severity orders statuses so a report takes the worst of its checks.
func (s ProbeStatus) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

const defaultProbeTimeout = 3 * time.Second

// ProbeResult is the outcome of running one Check.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport is what /health/live and /health/ready render. Checks keep
// their registration order.
type HealthReport struct {
	Success   bool          `json:"success"`
	Status    ProbeStatus   `json:"status"`
	Checks    []ProbeResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Check is a named probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck wraps fn. A nil fn yields a check that always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

type probeKind int

const (
	liveness probeKind = iota
	readiness
)

// HealthManager holds the liveness and readiness probes. Probes of one kind
// run concurrently, each under its own timeout.
type HealthManager struct {
	mu      sync.RWMutex
	probes  map[probeKind][]Check
	timeout time.Duration
	now     func() time.Time
}

func NewHealthManager() *HealthManager {
	return &HealthManager{
		probes:  make(map[probeKind][]Check),
		timeout: defaultProbeTimeout,
		now:     time.Now,
	}
}

// SetTimeout bounds each probe. Non-positive values restore the default.
func (m *HealthManager) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
}

func (m *HealthManager) RegisterLiveness(check Check) { m.register(liveness, check) }
func (m *HealthManager) RegisterReadiness(check Check) { m.register(readiness, check) }

func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, liveness)
}

func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, readiness)
}

func (m *HealthManager) register(kind probeKind, check Check) {
	if check.Name == "" || check.Run == nil {
		return
	}
	m.mu.Lock()
	m.probes[kind] = append(m.probes[kind], check)
	m.mu.Unlock()
}

func (m *HealthManager) evaluate(ctx context.Context, kind probeKind) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.RLock()
	probes := append([]Check(nil), m.probes[kind]...)
	timeout := m.timeout
	m.mu.RUnlock()

	results := make([]ProbeResult, len(probes))
	var wg sync.WaitGroup
	for i, check := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = probe(ctx, check, timeout)
		}()
	}
	wg.Wait()

	status := StatusUp
	for _, result := range results {
		if result.Status.severity() > status.severity() {
			status = result.Status
		}
	}
	return HealthReport{
		Success:   status == StatusUp,
		Status:    status,
		Checks:    results,
		CheckedAt: m.now().UTC(),
	}
}

func probe(ctx context.Context, check Check, timeout time.Duration) (result ProbeResult) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: panicDetails(rec)}
		}
		result.Component = check.Name
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration <= 0 {
			result.Duration = time.Since(start)
		}
	}()
	return check.Run(ctx)
}

func panicDetails(rec any) string {
	switch v := rec.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprintf("panic: %v", v)
	}
}

// ResultFromError maps err onto a ProbeResult: nil is up, a deadline or
// cancellation is degraded and anything else is down.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	result := ProbeResult{Component: component, Status: StatusUp, Duration: max(duration, 0)}
	if err == nil {
		return result
	}
	result.Details = err.Error()
	result.Status = StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		result.Status = StatusDegraded
	}
	return result
}
