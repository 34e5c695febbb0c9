package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hireflow/internal/models"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
)

func TestJobServiceCreateNormalisesStatus(t *testing.T) {
	h := newHarness(t)
	actor := h.adminIdentity(t)
	svc, err := NewJobService(h.db)
	require.NoError(t, err)

	job, err := svc.Create(context.Background(), actor, JobInput{Title: " Backend Engineer ", Status: "Published"})
	require.NoError(t, err)
	require.Equal(t, "Backend Engineer", job.Title)
	require.Equal(t, models.JobStatusOpen, job.Status)
	require.Equal(t, actor.ID, job.CreatedBy)

	draft, err := svc.Create(context.Background(), actor, JobInput{Title: "Designer"})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusDraft, draft.Status)

	_, err = svc.Create(context.Background(), actor, JobInput{Title: "Ghost", Status: "deleted"})
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), actor, JobInput{Title: "  "})
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), &Identity{Role: models.RoleApplicant}, JobInput{Title: "Nope"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestJobServiceStatusAndPublicRead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.adminIdentity(t)
	svc, err := NewJobService(h.db)
	require.NoError(t, err)

	job, err := svc.Create(ctx, actor, JobInput{Title: "Backend Engineer", Status: "active"})
	require.NoError(t, err)

	open, err := svc.GetOpen(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, open.ID)

	updated, err := svc.UpdateStatus(ctx, actor, job.ID, "On-Hold")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPaused, updated.Status)

	_, err = svc.GetOpen(ctx, job.ID)
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)

	_, err = svc.UpdateStatus(ctx, actor, job.ID, "")
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code)

	_, err = svc.UpdateStatus(ctx, actor, "missing", "closed")
	require.Equal(t, 404, apperrors.FromError(err).StatusCode)
}
