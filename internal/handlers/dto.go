package handlers

import (
	"encoding/json"
	"time"

	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/internal/services"
)

type accountDTO struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	FirstName     string      `json:"firstName,omitempty"`
	LastName      string      `json:"lastName,omitempty"`
	Role          models.Role `json:"role"`
	IsActive      bool        `json:"isActive"`
	EmailVerified bool        `json:"emailVerified"`
	LastLoginAt   *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func toAccountDTO(account *models.Account) accountDTO {
	return accountDTO{
		ID:            account.ID,
		Email:         account.Email,
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		Role:          account.Role,
		IsActive:      account.IsActive,
		EmailVerified: account.EmailVerified,
		LastLoginAt:   account.LastLoginAt,
		CreatedAt:     account.CreatedAt,
	}
}

// userDTO is the session-facing view of an identity.
type userDTO struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  models.Role `json:"role"`
}

func toUserDTO(identity *services.Identity) userDTO {
	return userDTO{ID: identity.ID, Email: identity.Email, Name: identity.Name, Role: identity.Role}
}

type auditDTO struct {
	ID         string             `json:"id"`
	Action     models.AuditAction `json:"action"`
	ActorID    *string            `json:"actorId,omitempty"`
	ActorEmail string             `json:"actorEmail,omitempty"`
	IPAddress  string             `json:"ipAddress,omitempty"`
	RequestID  string             `json:"requestId,omitempty"`
	Details    json.RawMessage    `json:"details,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
}

func toAuditDTOs(entries []models.AuditLog) []auditDTO {
	items := make([]auditDTO, 0, len(entries))
	for _, entry := range entries {
		item := auditDTO{
			ID:         entry.ID,
			Action:     entry.Action,
			ActorID:    entry.ActorID,
			ActorEmail: entry.ActorEmail,
			IPAddress:  entry.IPAddress,
			RequestID:  entry.RequestID,
			CreatedAt:  entry.CreatedAt,
		}
		if len(entry.Details) > 0 {
			item.Details = json.RawMessage(entry.Details)
		}
		items = append(items, item)
	}
	return items
}

type jobDTO struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Department  string           `json:"department,omitempty"`
	Location    string           `json:"location,omitempty"`
	Description string           `json:"description,omitempty"`
	Status      models.JobStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func toJobDTO(job *models.Job) jobDTO {
	return jobDTO{
		ID:          job.ID,
		Title:       job.Title,
		Department:  job.Department,
		Location:    job.Location,
		Description: job.Description,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}

type applicationDTO struct {
	ID             string                   `json:"id"`
	JobID          string                   `json:"jobId"`
	Status         models.ApplicationStatus `json:"status"`
	CoverNote      string                   `json:"coverNote,omitempty"`
	ResumeURL      string                   `json:"resumeUrl"`
	CoverLetterURL string                   `json:"coverLetterUrl,omitempty"`
	CreatedAt      time.Time                `json:"createdAt"`
}

func toApplicationDTO(application *models.Application) applicationDTO {
	return applicationDTO{
		ID:             application.ID,
		JobID:          application.JobID,
		Status:         application.Status,
		CoverNote:      application.CoverNote,
		ResumeURL:      application.ResumeURL,
		CoverLetterURL: application.CoverLetterURL,
		CreatedAt:      application.CreatedAt,
	}
}
