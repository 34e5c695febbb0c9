package models

// ApplicationStatus tracks where a candidate is in the pipeline.
type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
)

// Application links an applicant account to a job with uploaded documents.
type Application struct {
	BaseModel

	JobID          string            `gorm:"type:uuid;not null;uniqueIndex:idx_application_job_account" json:"job_id"`
	AccountID      string            `gorm:"type:uuid;not null;uniqueIndex:idx_application_job_account" json:"account_id"`
	CoverNote      string            `gorm:"type:text" json:"cover_note,omitempty"`
	ResumeKey      string            `gorm:"not null" json:"-"`
	ResumeURL      string            `json:"resume_url"`
	CoverLetterKey string            `json:"-"`
	CoverLetterURL string            `json:"cover_letter_url,omitempty"`
	Status         ApplicationStatus `gorm:"type:varchar(32);not null" json:"status"`
}
