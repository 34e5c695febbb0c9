package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/hireflow/internal/monitoring"
	"github.com/charlesng35/hireflow/pkg/logger"
)

const (
	defaultRevocationSpec = "@hourly"
	defaultInvitationSpec = "@daily"
	defaultJobTimeout     = time.Minute

	jobRevokedTokens      = "revoked_tokens"
	jobExpiredInvitations = "expired_invitations"
)

// RevocationPurger removes revocation entries whose tokens have expired anyway.
type RevocationPurger interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// InvitationPurger clears invitation hashes past their expiry.
type InvitationPurger interface {
	ClearExpiredInvitations(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance: purging expired revocation
// entries and clearing expired invitation tokens.
type Cleaner struct {
	revocations RevocationPurger
	invitations InvitationPurger
	cron        *cron.Cron
	log         *zap.Logger
	timeout     time.Duration

	revocationSchedule string
	invitationSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithRevocationSchedule overrides the cron specification for revocation cleanup.
func WithRevocationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.revocationSchedule = spec
		}
	}
}

// WithInvitationSchedule overrides the cron specification for invitation cleanup.
func WithInvitationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.invitationSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil purger disables the corresponding job.
func NewCleaner(revocations RevocationPurger, invitations InvitationPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		revocations:        revocations,
		invitations:        invitations,
		timeout:            defaultJobTimeout,
		revocationSchedule: defaultRevocationSpec,
		invitationSchedule: defaultInvitationSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.revocations == nil && c.invitations == nil {
		return nil
	}

	if c.revocations != nil {
		if _, err := c.cron.AddFunc(c.revocationSchedule, func() {
			_ = c.runJob(context.Background(), jobRevokedTokens, c.revocations.CleanupExpired)
		}); err != nil {
			return err
		}
	}

	if c.invitations != nil {
		if _, err := c.cron.AddFunc(c.invitationSchedule, func() {
			_ = c.runJob(context.Background(), jobExpiredInvitations, c.invitations.ClearExpiredInvitations)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once
// running jobs complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.revocations != nil {
		errs = multierr.Append(errs, c.runJob(ctx, jobRevokedTokens, c.revocations.CleanupExpired))
	}
	if c.invitations != nil {
		errs = multierr.Append(errs, c.runJob(ctx, jobExpiredInvitations, c.invitations.ClearExpiredInvitations))
	}
	return errs
}

func (c *Cleaner) runJob(ctx context.Context, name string, fn func(context.Context) (int64, error)) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	removed, err := fn(ctx)
	duration := time.Since(start)
	if err != nil {
		monitoring.RecordMaintenanceRun(name, "failure", err.Error(), duration)
		c.log.Warn("maintenance job failed", zap.String("job", name), zap.Error(err))
		return err
	}

	monitoring.RecordMaintenanceRun(name, "success", "", duration)
	if removed > 0 {
		c.log.Info("maintenance job completed", zap.String("job", name), zap.Int64("removed", removed))
	}
	return nil
}
