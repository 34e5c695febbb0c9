package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/pkg/crypto"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
)

var (
	// ErrInvitationInvalid is returned for unknown or tampered invitation tokens.
	ErrInvitationInvalid = apperrors.New("INVITATION_INVALID", "Invitation link is invalid", http.StatusBadRequest)
	// ErrInvitationExpired is returned once an invitation passed its expiry.
	ErrInvitationExpired = &apperrors.AppError{
		Code:       "INVITATION_INVALID",
		Message:    "Invitation link has expired",
		StatusCode: http.StatusBadRequest,
		Fields:     map[string]any{"expired": true},
	}
	// ErrInvitationUsed is returned when the account was already set up.
	ErrInvitationUsed = &apperrors.AppError{
		Code:       "INVITATION_INVALID",
		Message:    "Invitation has already been used",
		StatusCode: http.StatusBadRequest,
		Fields:     map[string]any{"used": true},
	}
)

// InvitationInput describes the team member being invited.
type InvitationInput struct {
	Email     string
	FirstName string
	LastName  string
}

// Invitation is the result of issuing an invitation.
type Invitation struct {
	Account   Identity
	ExpiresAt time.Time
	// Link is the setup URL mailed to the invitee.
	Link string
}

// InvitationDetails is the read-only view returned when checking a token.
type InvitationDetails struct {
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InviteService provisions admin accounts through single-use invitations.
type InviteService struct {
	auth     *AuthService
	store    *AccountStore
	audit    *AuditService
	notifier *Notifier
	hashCost int
	now      func() time.Time
}

// NewInviteService wires the invitation flow on top of the auth gateway.
func NewInviteService(authSvc *AuthService, audit *AuditService, notifier *Notifier) (*InviteService, error) {
	if authSvc == nil {
		return nil, errors.New("invite service: auth service is required")
	}
	return &InviteService{
		auth:     authSvc,
		store:    authSvc.store,
		audit:    audit,
		notifier: notifier,
		hashCost: authSvc.hashCost,
		now:      authSvc.now,
	}, nil
}

// CreateInvitation creates an inactive admin account, or refreshes the
// invitation of one that has not completed setup, and mails the link.
func (s *InviteService) CreateInvitation(ctx context.Context, actor *Identity, input InvitationInput) (*Invitation, error) {
	ctx = ensureContext(ctx)
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	email := models.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewValidation("Email is required")
	}

	account, err := s.store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		account = &models.Account{
			Email:     email,
			Role:      models.RoleAdmin,
			FirstName: strings.TrimSpace(input.FirstName),
			LastName:  strings.TrimSpace(input.LastName),
		}
	case err != nil:
		return nil, apperrors.NewDependency("database", err)
	case !pendingInvitation(account):
		return nil, apperrors.NewConflict("An account with this email already exists")
	}

	var (
		token     string
		expiresAt time.Time
	)

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		if account.ID == "" {
			if err := store.Create(ctx, account); err != nil {
				return err
			}
		}

		issued, expiry, err := s.auth.tokens.IssueWithExpiry(auth.TokenInput{
			AccountID: account.ID,
			Email:     account.Email,
			Role:      models.RoleAdmin,
			Purpose:   auth.PurposeInvitation,
		})
		if err != nil {
			return err
		}
		if err := store.IssueInvitation(ctx, account.ID, crypto.HashToken(issued), expiry.UTC()); err != nil {
			return err
		}
		token, expiresAt = issued, expiry.UTC()

		if s.audit == nil {
			return nil
		}
		return s.audit.WithTx(tx).Log(ctx, AuditEntry{
			AccountID: account.ID,
			Action:    models.AuditActionInvited,
			Details:   map[string]any{"invited_by": actor.Email},
		})
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil, apperrors.NewConflict("An account with this email already exists")
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	s.notifier.SendInvitation(ctx, account, token, actor.Name, expiresAt)

	return &Invitation{
		Account:   identityOf(account),
		ExpiresAt: expiresAt,
		Link:      s.notifier.InvitationLink(token),
	}, nil
}

// VerifyInvitation checks an invitation token without consuming it.
func (s *InviteService) VerifyInvitation(ctx context.Context, token string) (*InvitationDetails, error) {
	ctx = ensureContext(ctx)

	account, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	details := &InvitationDetails{
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
	}
	if account.InvitationExpiresAt != nil {
		details.ExpiresAt = account.InvitationExpiresAt.UTC()
	}
	return details, nil
}

// SetPassword completes an invitation: it sets the password, activates the
// account and signs it in. A token can only be used once.
func (s *InviteService) SetPassword(ctx context.Context, token, password string) (*Session, error) {
	ctx = ensureContext(ctx)

	if _, err := s.resolve(ctx, token); err != nil {
		return nil, err
	}
	if err := auth.StrictPasswordPolicy.Validate(password); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	hash, err := crypto.HashPasswordWithCost(password, s.hashCost)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	var account *models.Account
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		consumed, err := s.store.WithTx(tx).ConsumeInvitation(ctx, crypto.HashToken(token), hash)
		if err != nil {
			return err
		}
		account = consumed

		if s.audit == nil {
			return nil
		}
		audit := s.audit.WithTx(tx)
		if err := audit.Log(ctx, AuditEntry{
			AccountID: account.ID,
			Action:    models.AuditActionPasswordSet,
			Details:   map[string]any{"via": "invitation"},
		}); err != nil {
			return err
		}
		return audit.Log(ctx, AuditEntry{AccountID: account.ID, Action: models.AuditActionActivated})
	})
	if errors.Is(err, ErrInvitationUnusable) {
		// Lost a race with a concurrent acceptance or the expiry passed meanwhile.
		return nil, ErrInvitationUsed
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	return s.auth.IssueSession(account)
}

// resolve maps an invitation token onto its pending account, distinguishing
// expired and already used invitations.
func (s *InviteService) resolve(ctx context.Context, token string) (*models.Account, error) {
	claims, err := s.auth.tokens.VerifyPurpose(token, auth.PurposeInvitation)
	if errors.Is(err, auth.ErrExpired) {
		return nil, ErrInvitationExpired
	}
	if err != nil {
		return nil, ErrInvitationInvalid.WithDetails(err.Error())
	}

	account, err := s.store.FindByIDAndEmail(ctx, claims.AccountID, claims.Email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvitationInvalid
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	if account.InvitationCompletedAt != nil {
		return nil, ErrInvitationUsed
	}
	if account.InvitationTokenHash == nil || !crypto.MatchesTokenHash(*account.InvitationTokenHash, token) {
		// Superseded by a newer invitation or cleared after expiry.
		return nil, ErrInvitationInvalid
	}
	if account.InvitationExpiresAt == nil || !account.InvitationExpiresAt.After(s.now()) {
		return nil, ErrInvitationExpired
	}
	return account, nil
}

// pendingInvitation reports whether account is an invited admin that never
// set a password. A deactivated admin is not pending and cannot be re-invited.
func pendingInvitation(account *models.Account) bool {
	return account.IsAdmin() &&
		!account.IsActive &&
		account.InvitationCompletedAt == nil &&
		account.PasswordHash == ""
}
