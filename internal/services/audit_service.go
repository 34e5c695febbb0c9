package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/auditctx"
	"github.com/charlesng35/hireflow/internal/models"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditEntry captures a single audit event to persist. Actor details are
// taken from the context when present.
type AuditEntry struct {
	AccountID string
	Action    models.AuditAction
	Details   map[string]any
}

// AuditService appends and reads audit log entries. It deliberately exposes
// no update or delete operations.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// WithTx returns a service that writes through the supplied transaction.
func (s *AuditService) WithTx(tx *gorm.DB) *AuditService {
	return &AuditService{db: tx}
}

// Log stores an audit entry, marshalling details into JSON form.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.AccountID) == "" {
		return errors.New("audit service: account id is required")
	}
	if strings.TrimSpace(string(entry.Action)) == "" {
		return errors.New("audit service: action is required")
	}

	record := models.AuditLog{
		AccountID: strings.TrimSpace(entry.AccountID),
		Action:    entry.Action,
	}

	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("audit service: marshal details: %w", err)
		}
		record.Details = datatypes.JSON(encoded)
	}

	if actor, ok := auditctx.FromContext(ctx); ok {
		if id := strings.TrimSpace(actor.AccountID); id != "" {
			record.ActorID = &id
		}
		record.ActorEmail = strings.TrimSpace(actor.Email)
		record.IPAddress = strings.TrimSpace(actor.IPAddress)
		record.UserAgent = strings.TrimSpace(actor.UserAgent)
		record.RequestID = actor.RequestID
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("audit service: create entry: %w", err)
	}
	return nil
}

// ListForAccount returns the most recent entries for an account, newest first.
func (s *AuditService) ListForAccount(ctx context.Context, accountID string, limit int) ([]models.AuditLog, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}

	var logs []models.AuditLog
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", strings.TrimSpace(accountID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit service: list entries: %w", err)
	}
	return logs, nil
}
