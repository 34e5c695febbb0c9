package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/models"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
)

// JobInput captures the fields of a new job posting.
type JobInput struct {
	Title       string
	Department  string
	Location    string
	Description string
	Status      string
}

// JobService manages job postings.
type JobService struct {
	db *gorm.DB
}

// NewJobService constructs a JobService.
func NewJobService(db *gorm.DB) (*JobService, error) {
	if db == nil {
		return nil, errors.New("job service: db is required")
	}
	return &JobService{db: db}, nil
}

// Create stores a new posting. Historical status names are accepted and
// normalised.
func (s *JobService) Create(ctx context.Context, actor *Identity, input JobInput) (*models.Job, error) {
	ctx = ensureContext(ctx)
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidation("Title is required")
	}
	status, ok := models.NormalizeJobStatus(input.Status)
	if !ok {
		return nil, apperrors.NewValidation(fmt.Sprintf("Unknown job status %q", input.Status))
	}

	job := &models.Job{
		Title:       title,
		Department:  strings.TrimSpace(input.Department),
		Location:    strings.TrimSpace(input.Location),
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		CreatedBy:   actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, apperrors.NewDependency("database", err)
	}
	return job, nil
}

// UpdateStatus moves a posting to a new status.
func (s *JobService) UpdateStatus(ctx context.Context, actor *Identity, id, raw string) (*models.Job, error) {
	ctx = ensureContext(ctx)
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}

	status, ok := models.NormalizeJobStatus(raw)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, apperrors.NewValidation(fmt.Sprintf("Unknown job status %q", raw))
	}

	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status})
	if result.Error != nil {
		return nil, apperrors.NewDependency("database", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.NewNotFound("Job")
	}
	return s.find(ctx, id)
}

// GetOpen returns a job that is currently accepting applications.
func (s *JobService) GetOpen(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.find(ensureContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperrors.NewNotFound("Job")
	}
	return job, nil
}

func (s *JobService) find(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("Job")
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}
	return &job, nil
}
