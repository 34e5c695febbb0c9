package models

import "strings"

// JobStatus is the canonical lifecycle state of a job posting.
type JobStatus string

const (
	JobStatusDraft  JobStatus = "draft"
	JobStatusOpen   JobStatus = "open"
	JobStatusPaused JobStatus = "paused"
	JobStatusClosed JobStatus = "closed"
)

var jobStatusAliases = map[string]JobStatus{
	"":          JobStatusDraft,
	"draft":     JobStatusDraft,
	"pending":   JobStatusDraft,
	"open":      JobStatusOpen,
	"active":    JobStatusOpen,
	"published": JobStatusOpen,
	"live":      JobStatusOpen,
	"paused":    JobStatusPaused,
	"on_hold":   JobStatusPaused,
	"on-hold":   JobStatusPaused,
	"hold":      JobStatusPaused,
	"inactive":  JobStatusPaused,
	"closed":    JobStatusClosed,
	"filled":    JobStatusClosed,
	"archived":  JobStatusClosed,
	"expired":   JobStatusClosed,
}

// NormalizeJobStatus maps historical status strings onto the canonical set.
// The second return value is false for values with no mapping.
func NormalizeJobStatus(raw string) (JobStatus, bool) {
	status, ok := jobStatusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// Job is a posting applicants can apply to.
type Job struct {
	BaseModel

	Title       string    `gorm:"not null" json:"title"`
	Department  string    `json:"department"`
	Location    string    `json:"location"`
	Description string    `gorm:"type:text" json:"description"`
	Status      JobStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	CreatedBy   string    `gorm:"type:uuid" json:"created_by"`
}
