package monitoring_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hireflow/internal/database/testutil"
	"github.com/charlesng35/hireflow/internal/monitoring"
	"github.com/charlesng35/hireflow/internal/monitoring/checks"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(checks.Storage(pinger{err: errors.New("bucket missing")}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "storage", report.Checks[1].Component)
	require.Equal(t, "bucket missing", report.Checks[1].Details)

	live := manager.EvaluateLiveness(context.Background())
	require.True(t, live.Success)
	require.Empty(t, live.Checks)
}

func TestHealthManagerRecoversPanicsAndTimesOut(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.SetTimeout(20 * time.Millisecond)
	manager.RegisterReadiness(monitoring.NewCheck("panicky", func(ctx context.Context) monitoring.ProbeResult {
		panic("boom")
	}))
	manager.RegisterReadiness(monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("slow", ctx.Err(), 0)
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "boom", report.Checks[0].Details)
	require.Equal(t, monitoring.StatusDegraded, report.Checks[1].Status)
}

func TestHealthManagerRunsProbesConcurrently(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.SetTimeout(time.Second)

	first, second := make(chan struct{}), make(chan struct{})
	rendezvous := func(mine, theirs chan struct{}) func(context.Context) monitoring.ProbeResult {
		return func(ctx context.Context) monitoring.ProbeResult {
			close(mine)
			select {
			case <-theirs:
				return monitoring.ProbeResult{Status: monitoring.StatusUp}
			case <-ctx.Done():
				return monitoring.ResultFromError("", ctx.Err(), 0)
			}
		}
	}
	manager.RegisterReadiness(monitoring.NewCheck("a", rendezvous(first, second)))
	manager.RegisterReadiness(monitoring.NewCheck("b", rendezvous(second, first)))

	report := manager.EvaluateReadiness(context.Background())
	require.True(t, report.Success, report.Checks)
	require.Equal(t, "a", report.Checks[0].Component)
	require.Equal(t, "b", report.Checks[1].Component)
	require.False(t, report.CheckedAt.IsZero())
}

func TestDatabaseCheck(t *testing.T) {
	empty := testutil.NewDB(t, testutil.Options{})
	result := checks.Database(empty).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Equal(t, "schema not migrated", result.Details)

	db := testutil.NewDB(t, testutil.Migrated)
	result = checks.Database(db).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "open=")
	require.Equal(t, "database", result.Component)

	result = checks.Database(nil).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}

func TestMaintenanceCheck(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(mod)

	check := checks.Maintenance(mod, 0)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	monitoring.RecordMaintenanceRun("revoked_tokens", "success", "", time.Second)
	monitoring.RecordMaintenanceRun("expired_invitations", "failure", "database locked", time.Second)

	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "expired_invitations: database locked")

	jobs := mod.MaintenanceJobs()
	require.Len(t, jobs, 2)
	require.Equal(t, "expired_invitations", jobs[0].Job)
	require.EqualValues(t, 1, jobs[0].ConsecutiveFailures)
	require.EqualValues(t, 1, jobs[1].TotalRuns)

	monitoring.RecordMaintenanceRun("expired_invitations", "success", "", time.Second)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)
}

func TestModuleHandlerExposesProcessSeries(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{Environment: "test"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	mod.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `hireflow_start_time_seconds{environment="test"}`)
	require.Contains(t, w.Body.String(), "go_build_info")
}
