package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/internal/storage"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/logger"
)

// DocumentStore persists uploaded documents.
type DocumentStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// ApplicationInput is a validated application submission.
type ApplicationInput struct {
	JobID       string
	CoverNote   string
	Resume      *storage.Document
	CoverLetter *storage.Document
}

// ApplicationService accepts job applications from applicants.
type ApplicationService struct {
	db       *gorm.DB
	jobs     *JobService
	store    *AccountStore
	docs     DocumentStore
	notifier *Notifier
	prefix   string
}

// ApplicationOption customises ApplicationService behaviour.
type ApplicationOption func(*ApplicationService)

// WithDocumentPrefix sets the object key prefix for uploaded documents.
func WithDocumentPrefix(prefix string) ApplicationOption {
	return func(s *ApplicationService) {
		if prefix = strings.Trim(strings.TrimSpace(prefix), "/"); prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(db *gorm.DB, jobs *JobService, store *AccountStore, docs DocumentStore, notifier *Notifier, opts ...ApplicationOption) (*ApplicationService, error) {
	switch {
	case db == nil:
		return nil, errors.New("application service: db is required")
	case jobs == nil:
		return nil, errors.New("application service: job service is required")
	case store == nil:
		return nil, errors.New("application service: account store is required")
	case docs == nil:
		return nil, errors.New("application service: document store is required")
	}
	svc := &ApplicationService{db: db, jobs: jobs, store: store, docs: docs, notifier: notifier, prefix: "applications"}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit stores the uploaded documents and records the application. An
// applicant can apply to each open job once.
func (s *ApplicationService) Submit(ctx context.Context, applicant *Identity, input ApplicationInput) (*models.Application, error) {
	ctx = ensureContext(ctx)
	if applicant == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if applicant.Role != models.RoleApplicant {
		return nil, apperrors.ErrForbidden.WithDetails("only applicants can submit applications")
	}
	if input.Resume == nil {
		return nil, apperrors.NewValidation("Resume is required")
	}

	job, err := s.jobs.GetOpen(ctx, input.JobID)
	if err != nil {
		return nil, err
	}

	account, err := s.store.FindByID(ctx, applicant.ID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	application := &models.Application{
		JobID:     job.ID,
		AccountID: account.ID,
		CoverNote: strings.TrimSpace(input.CoverNote),
		Status:    models.ApplicationStatusSubmitted,
	}

	var stored []string
	cleanup := func() {
		for _, key := range stored {
			if err := s.docs.Delete(context.WithoutCancel(ctx), key); err != nil {
				logger.WithModule("applications").Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(err))
			}
		}
	}

	prefix := s.prefix + "/" + job.ID + "/" + account.ID
	key := storage.ObjectKey(prefix, input.Resume)
	url, err := s.docs.Put(ctx, key, input.Resume.ContentType, input.Resume.Data)
	if err != nil {
		return nil, apperrors.NewDependency("storage", err)
	}
	stored = append(stored, key)
	application.ResumeKey, application.ResumeURL = key, url

	if input.CoverLetter != nil {
		key := storage.ObjectKey(prefix, input.CoverLetter)
		url, err := s.docs.Put(ctx, key, input.CoverLetter.ContentType, input.CoverLetter.Data)
		if err != nil {
			cleanup()
			return nil, apperrors.NewDependency("storage", err)
		}
		stored = append(stored, key)
		application.CoverLetterKey, application.CoverLetterURL = key, url
	}

	if err := s.db.WithContext(ctx).Create(application).Error; err != nil {
		cleanup()
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("You have already applied to this job")
		}
		return nil, apperrors.NewDependency("database", err)
	}

	s.notifier.SendApplicationReceived(ctx, account, job)
	return application, nil
}
