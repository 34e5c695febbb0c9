package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAuditImmutable is returned when code attempts to modify an audit record.
var ErrAuditImmutable = errors.New("audit log entries are append-only")

// AuditAction enumerates the events recorded against an account.
type AuditAction string

const (
	AuditActionLogin                  AuditAction = "login"
	AuditActionLogout                 AuditAction = "logout"
	AuditActionPasswordSet            AuditAction = "password_set"
	AuditActionPasswordResetRequested AuditAction = "password_reset_requested"
	AuditActionEmailVerified          AuditAction = "email_verified"
	AuditActionActivated              AuditAction = "activated"
	AuditActionDeactivated            AuditAction = "deactivated"
	AuditActionDeleted                AuditAction = "deleted"
	AuditActionInvited                AuditAction = "invited"
)

// AuditLog is an append-only record. AccountID carries no foreign key so rows
// outlive the account they describe.
type AuditLog struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID  string         `gorm:"type:uuid;not null;index" json:"account_id"`
	Action     AuditAction    `gorm:"type:varchar(64);not null;index" json:"action"`
	ActorID    *string        `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	ActorEmail string         `json:"actor_email,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	RequestID  string         `gorm:"type:varchar(128);index" json:"request_id,omitempty"`
	Details    datatypes.JSON `json:"details,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	return nil
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
