package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/models"
)

// AccountStore is the credential store. Every mutation is a single UPDATE
// whose WHERE clause encodes its preconditions, so the affected row count
// decides the outcome rather than a prior read.
type AccountStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAccountStore builds a store over the accounts table.
func NewAccountStore(db *gorm.DB, clock func() time.Time) (*AccountStore, error) {
	if db == nil {
		return nil, errors.New("account store: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &AccountStore{db: db, now: clock}, nil
}

// WithTx returns a store that runs its statements inside tx.
func (s *AccountStore) WithTx(tx *gorm.DB) *AccountStore {
	return &AccountStore{db: tx, now: s.now}
}

// Transaction runs fn inside a database transaction bound to ctx.
func (s *AccountStore) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ensureContext(ctx)).Transaction(fn)
}

func (s *AccountStore) timestamp() time.Time {
	return s.now().UTC()
}

// Create inserts a new account.
func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	ctx = ensureContext(ctx)

	account.Email = models.NormalizeEmail(account.Email)
	if account.Email == "" {
		return errors.New("account store: email is required")
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("account store: create account: %w", err)
	}
	return nil
}

// FindByID loads an account by id.
func (s *AccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return s.take(ctx, "id = ?", strings.TrimSpace(id))
}

// FindByIDAndEmail re-validates token claims against current account state.
func (s *AccountStore) FindByIDAndEmail(ctx context.Context, id, email string) (*models.Account, error) {
	return s.take(ctx, "id = ? AND email = ?", strings.TrimSpace(id), models.NormalizeEmail(email))
}

// FindByEmail performs a case-insensitive email lookup.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}
	return s.take(ctx, "email = ?", email)
}

// FindByInvitationHash loads the account holding an invitation token hash.
func (s *AccountStore) FindByInvitationHash(ctx context.Context, tokenHash string) (*models.Account, error) {
	if strings.TrimSpace(tokenHash) == "" {
		return nil, ErrAccountNotFound
	}
	return s.take(ctx, "invitation_token_hash = ?", tokenHash)
}

func (s *AccountStore) take(ctx context.Context, query string, args ...any) (*models.Account, error) {
	ctx = ensureContext(ctx)

	var account models.Account
	err := s.db.WithContext(ctx).Where(query, args...).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account store: load account: %w", err)
	}
	return &account, nil
}

// UpdatePassword replaces the stored hash.
func (s *AccountStore) UpdatePassword(ctx context.Context, id, hash string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash})
	if result.Error != nil {
		return fmt.Errorf("account store: update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// RehashPassword swaps a legacy hash for a stronger one, but only if the
// stored hash is still the one that was verified.
func (s *AccountStore) RehashPassword(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND password_hash = ?", id, oldHash).
		Updates(map[string]any{"password_hash": newHash})
	if result.Error != nil {
		return false, fmt.Errorf("account store: rehash password: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkEmailVerified flips the verified flag once. It reports false when the
// account was already verified; email_verified_at is left untouched then.
func (s *AccountStore) MarkEmailVerified(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND email_verified = ?", id, false).
		Updates(map[string]any{
			"email_verified":    true,
			"email_verified_at": s.timestamp(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("account store: mark email verified: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	if _, err := s.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// SetActive changes the active flag. It reports false when the account was
// already in the requested state.
func (s *AccountStore) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND is_active = ?", id, !active).
		Updates(map[string]any{"is_active": active})
	if result.Error != nil {
		return false, fmt.Errorf("account store: set active: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	if _, err := s.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// IssueInvitation stores a fresh invitation hash on an account that has not
// completed setup. Earlier invitation tokens stop working.
func (s *AccountStore) IssueInvitation(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND invitation_completed_at IS NULL", id).
		Updates(map[string]any{
			"invitation_token_hash": tokenHash,
			"invitation_expires_at": expiresAt.UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("account store: issue invitation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvitationUnusable
	}
	return nil
}

// ConsumeInvitation sets the password of an invited account. The update is
// guarded on the token hash, expiry and completion state, so a token can be
// consumed once.
func (s *AccountStore) ConsumeInvitation(ctx context.Context, tokenHash, passwordHash string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	account, err := s.FindByInvitationHash(ctx, tokenHash)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvitationUnusable
	}
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND invitation_token_hash = ? AND invitation_expires_at > ? AND invitation_completed_at IS NULL",
			account.ID, tokenHash, now).
		Updates(map[string]any{
			"password_hash":           passwordHash,
			"invitation_token_hash":   nil,
			"invitation_completed_at": now,
			"is_active":               true,
			"email_verified":          true,
			"email_verified_at":       now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("account store: consume invitation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvitationUnusable
	}

	return s.FindByID(ctx, account.ID)
}

// ClearExpiredInvitations drops token hashes of invitations past their expiry.
func (s *AccountStore) ClearExpiredInvitations(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("invitation_token_hash IS NOT NULL AND invitation_completed_at IS NULL AND invitation_expires_at < ?", s.timestamp()).
		Updates(map[string]any{"invitation_token_hash": nil})
	if result.Error != nil {
		return 0, fmt.Errorf("account store: clear expired invitations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RecordLogin stamps last_login_at.
func (s *AccountStore) RecordLogin(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_login_at": s.timestamp()}).Error; err != nil {
		return fmt.Errorf("account store: record login: %w", err)
	}
	return nil
}

// Delete removes an account. Audit rows referencing it are kept.
func (s *AccountStore) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{})
	if result.Error != nil {
		return fmt.Errorf("account store: delete account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
