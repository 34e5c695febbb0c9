package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/hireflow/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("failed to record audit entry",
			zap.String("account_id", entry.AccountID),
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}
