package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/database/testutil"
	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/pkg/crypto"
	"github.com/charlesng35/hireflow/pkg/mail"
)

type fakeMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *fakeMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

var linkToken = regexp.MustCompile(`token=([A-Za-z0-9._\-]+)`)

// lastToken extracts the token from the most recent email sent to address.
func (m *fakeMailer) lastToken(t *testing.T, address string) string {
	t.Helper()
	messages := m.sent()
	for i := len(messages) - 1; i >= 0; i-- {
		if len(messages[i].To) == 1 && messages[i].To[0] == address {
			match := linkToken.FindStringSubmatch(messages[i].HTML)
			require.Len(t, match, 2, "no token link in email")
			return match[1]
		}
	}
	t.Fatalf("no email sent to %s", address)
	return ""
}

const testPassword = "Str0ng!Pass"

type harness struct {
	db       *gorm.DB
	now      time.Time
	mailer   *fakeMailer
	store    *AccountStore
	audit    *AuditService
	tokens   *auth.TokenService
	notifier *Notifier
	auth     *AuthService
	invites  *InviteService
	admin    *AdminService
	revoked  *auth.RevocationStore
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	revocation bool
	hashCost   int
}

func withRevocation() harnessOption {
	return func(cfg *harnessConfig) { cfg.revocation = true }
}

func withHashCost(cost int) harnessOption {
	return func(cfg *harnessConfig) { cfg.hashCost = cost }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{hashCost: bcrypt.MinCost}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{
		db:     testutil.NewDB(t, testutil.Migrated),
		now:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		mailer: &fakeMailer{},
	}
	clock := func() time.Time { return h.now }

	var err error
	h.store, err = NewAccountStore(h.db, clock)
	require.NoError(t, err)
	h.audit, err = NewAuditService(h.db)
	require.NoError(t, err)
	h.tokens, err = auth.NewTokenService(auth.TokenConfig{Secret: "test-secret", Issuer: "hireflow", Clock: clock})
	require.NoError(t, err)
	h.notifier = NewNotifier(h.mailer, WithNotifierBaseURL("https://ats.example.com"))

	authOpts := []AuthOption{WithAuthHashCost(cfg.hashCost), WithAuthClock(clock)}
	if cfg.revocation {
		h.revoked, err = auth.NewRevocationStore(h.db, clock)
		require.NoError(t, err)
		authOpts = append(authOpts, WithAuthRevocations(h.revoked))
	}
	h.auth, err = NewAuthService(h.store, h.tokens, h.audit, h.notifier, authOpts...)
	require.NoError(t, err)
	h.invites, err = NewInviteService(h.auth, h.audit, h.notifier)
	require.NoError(t, err)
	h.admin, err = NewAdminService(h.store, h.audit, cfg.hashCost)
	require.NoError(t, err)

	return h
}

type accountFixture struct {
	email    string
	role     models.Role
	active   bool
	verified bool
	cost     int
}

func (h *harness) createAccount(t *testing.T, f accountFixture) *models.Account {
	t.Helper()
	if f.cost == 0 {
		f.cost = bcrypt.MinCost
	}
	hash, err := crypto.HashPasswordWithCost(testPassword, f.cost)
	require.NoError(t, err)

	account := &models.Account{
		Email:         f.email,
		PasswordHash:  hash,
		Role:          f.role,
		FirstName:     "Test",
		LastName:      "User",
		IsActive:      f.active,
		EmailVerified: f.verified,
	}
	require.NoError(t, h.store.Create(context.Background(), account))
	return account
}

func (h *harness) adminIdentity(t *testing.T) *Identity {
	t.Helper()
	account := h.createAccount(t, accountFixture{email: "root@example.com", role: models.RoleAdmin, active: true, verified: true})
	identity := identityOf(account)
	return &identity
}

func (h *harness) actions(t *testing.T, accountID string) []models.AuditAction {
	t.Helper()
	var entries []models.AuditLog
	require.NoError(t, h.db.Where("account_id = ?", accountID).Order("created_at ASC").Find(&entries).Error)
	actions := make([]models.AuditAction, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}
