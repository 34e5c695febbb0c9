package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Account is a credential holder. Admin accounts are provisioned through
// invitations; applicant accounts self-register and must verify their email.
type Account struct {
	BaseModel

	Email        string `gorm:"uniqueIndex;not null;size:320" json:"email"`
	PasswordHash string `gorm:"column:password_hash" json:"-"`
	Role         Role   `gorm:"type:varchar(32);not null;index" json:"role"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	IsActive        bool       `gorm:"not null" json:"is_active"`
	EmailVerified   bool       `gorm:"not null" json:"email_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`

	InvitationTokenHash   *string    `gorm:"uniqueIndex" json:"-"`
	InvitationExpiresAt   *time.Time `json:"-"`
	InvitationCompletedAt *time.Time `json:"invitation_completed_at,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// AfterFind normalises legacy role values.
func (a *Account) AfterFind(tx *gorm.DB) error {
	a.Role = ParseRole(string(a.Role))
	return nil
}

// BeforeCreate assigns the identifier and keeps email lookups case-insensitive.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	a.Email = NormalizeEmail(a.Email)
	a.Role = ParseRole(string(a.Role))
	return a.BaseModel.BeforeCreate(tx)
}

// FullName joins first and last name, falling back to the email address.
func (a *Account) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
	if name == "" {
		return a.Email
	}
	return name
}

// IsAdmin reports whether the account belongs to the administrative class.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanSignIn reports whether the account state permits a session: active, and
// verified unless it is an admin account.
func (a *Account) CanSignIn() bool {
	if !a.IsActive {
		return false
	}
	return a.IsAdmin() || a.EmailVerified
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
