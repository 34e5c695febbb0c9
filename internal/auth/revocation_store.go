package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/hireflow/internal/models"
)

// RevocationStore keeps a minimal server-side blocklist of session token ids.
// Entries are only needed until the token would have expired anyway.
type RevocationStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRevocationStore builds a store backed by the revoked_tokens table.
func NewRevocationStore(db *gorm.DB, clock func() time.Time) (*RevocationStore, error) {
	if db == nil {
		return nil, errors.New("revocation store: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &RevocationStore{db: db, now: clock}, nil
}

// Revoke blocks a token id until expiresAt. Revoking twice is a no-op.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID, accountID string, expiresAt time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("%w: missing token id", ErrMalformedToken)
	}

	record := models.RevokedToken{
		TokenID:   tokenID,
		AccountID: accountID,
		RevokedAt: s.now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("revocation store: revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id is on the blocklist.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.RevokedToken{}).
		Where("token_id = ?", tokenID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("revocation store: lookup: %w", err)
	}
	return count > 0, nil
}

// CleanupExpired removes entries whose tokens have expired naturally.
func (s *RevocationStore) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now().UTC()).
		Delete(&models.RevokedToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("revocation store: cleanup expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}
