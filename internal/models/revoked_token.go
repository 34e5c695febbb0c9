package models

import "time"

// RevokedToken blocks a session token (by jti) until its natural expiry.
type RevokedToken struct {
	TokenID   string    `gorm:"primaryKey;size:64" json:"token_id"`
	AccountID string    `gorm:"type:uuid;index" json:"account_id"`
	RevokedAt time.Time `gorm:"not null" json:"revoked_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}
