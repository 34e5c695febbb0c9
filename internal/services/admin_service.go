package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/pkg/crypto"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
)

// AdminService exposes account management to admins. Every mutation writes
// its audit entry in the same transaction.
type AdminService struct {
	store    *AccountStore
	audit    *AuditService
	hashCost int
}

// NewAdminService constructs an AdminService.
func NewAdminService(store *AccountStore, audit *AuditService, hashCost int) (*AdminService, error) {
	if store == nil {
		return nil, errors.New("admin service: account store is required")
	}
	if audit == nil {
		return nil, errors.New("admin service: audit service is required")
	}
	if hashCost <= 0 {
		hashCost = crypto.PasswordCost
	}
	return &AdminService{store: store, audit: audit, hashCost: hashCost}, nil
}

// Get returns an account by id.
func (s *AdminService) Get(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.store.FindByID(ensureContext(ctx), id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, apperrors.NewNotFound("Account")
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}
	return account, nil
}

// Activate enables sign-in for an account.
func (s *AdminService) Activate(ctx context.Context, actor *Identity, id string) (*models.Account, error) {
	return s.setActive(ctx, actor, id, true)
}

// Deactivate blocks sign-in for an account. Admins cannot deactivate themselves.
func (s *AdminService) Deactivate(ctx context.Context, actor *Identity, id string) (*models.Account, error) {
	if err := rejectSelf(actor, id); err != nil {
		return nil, err
	}
	return s.setActive(ctx, actor, id, false)
}

func (s *AdminService) setActive(ctx context.Context, actor *Identity, id string, active bool) (*models.Account, error) {
	ctx = ensureContext(ctx)
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	action := models.AuditActionDeactivated
	if active {
		action = models.AuditActionActivated
	}

	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		changed, err := s.store.WithTx(tx).SetActive(ctx, id, active)
		if err != nil || !changed {
			return err
		}
		return s.audit.WithTx(tx).Log(ctx, AuditEntry{AccountID: id, Action: action})
	})
	if errors.Is(err, ErrAccountNotFound) {
		return nil, apperrors.NewNotFound("Account")
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	return s.Get(ctx, id)
}

// Delete removes an account. Its audit trail is retained.
func (s *AdminService) Delete(ctx context.Context, actor *Identity, id string) error {
	ctx = ensureContext(ctx)
	if err := rejectSelf(actor, id); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}

	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		account, err := store.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Log(ctx, AuditEntry{
			AccountID: id,
			Action:    models.AuditActionDeleted,
			Details:   map[string]any{"email": account.Email, "role": account.Role.String()},
		})
	})
	if errors.Is(err, ErrAccountNotFound) {
		return apperrors.NewNotFound("Account")
	}
	if err != nil {
		return apperrors.NewDependency("database", err)
	}
	return nil
}

// ResetPassword sets a new password on behalf of the account owner. The
// strict policy applies regardless of the target role.
func (s *AdminService) ResetPassword(ctx context.Context, actor *Identity, id, password string) error {
	ctx = ensureContext(ctx)
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}
	if err := auth.StrictPasswordPolicy.Validate(password); err != nil {
		return apperrors.NewValidation(err.Error())
	}

	hash, err := crypto.HashPasswordWithCost(password, s.hashCost)
	if err != nil {
		return apperrors.Wrap(err, "failed to hash password")
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.store.WithTx(tx).UpdatePassword(ctx, id, hash); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Log(ctx, AuditEntry{
			AccountID: id,
			Action:    models.AuditActionPasswordSet,
			Details:   map[string]any{"via": "admin_reset"},
		})
	})
	if errors.Is(err, ErrAccountNotFound) {
		return apperrors.NewNotFound("Account")
	}
	if err != nil {
		return apperrors.NewDependency("database", err)
	}
	return nil
}

// AuditTrail lists the audit entries recorded against an account.
func (s *AdminService) AuditTrail(ctx context.Context, id string, limit int) ([]models.AuditLog, error) {
	entries, err := s.audit.ListForAccount(ensureContext(ctx), id, limit)
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}
	return entries, nil
}

func rejectSelf(actor *Identity, id string) error {
	if actor != nil && strings.TrimSpace(id) != "" && actor.ID == strings.TrimSpace(id) {
		return apperrors.ErrSelfModification
	}
	return nil
}
