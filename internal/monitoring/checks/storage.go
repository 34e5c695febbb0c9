package checks

import (
	"context"
	"time"

	"github.com/charlesng35/hireflow/internal/monitoring"
)

// Pinger is implemented by the document store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Storage reports whether the document bucket is reachable.
func Storage(store Pinger) monitoring.Check {
	return monitoring.NewCheck("storage", func(ctx context.Context) monitoring.ProbeResult {
		if store == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "storage not configured"}
		}
		start := time.Now()
		return monitoring.ResultFromError("storage", store.Ping(ctx), time.Since(start))
	})
}
