package checks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/monitoring"
)

// Database probes the account store: the connection must answer a ping and
// the accounts table must exist. A pool with every connection busy and
// callers queueing reports degraded.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}
		start := time.Now()

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}
		if !db.WithContext(ctx).Migrator().HasTable("accounts") {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "schema not migrated",
				Duration: time.Since(start),
			}
		}

		stats := sqlDB.Stats()
		result := monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  poolSummary(stats),
			Duration: time.Since(start),
		}
		if poolSaturated(stats) {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}

func poolSummary(stats sql.DBStats) string {
	return fmt.Sprintf("open=%d in_use=%d idle=%d waiting=%d",
		stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount)
}

func poolSaturated(stats sql.DBStats) bool {
	return stats.MaxOpenConnections > 0 &&
		stats.InUse >= stats.MaxOpenConnections &&
		stats.WaitCount > 0
}
