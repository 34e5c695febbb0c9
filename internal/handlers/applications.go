package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hireflow/internal/services"
	"github.com/charlesng35/hireflow/internal/storage"
	appErrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/response"
	appValidator "github.com/charlesng35/hireflow/pkg/validator"
)

// maxApplicationBody bounds the whole multipart request: two documents plus form fields.
const maxApplicationBody = 2*storage.MaxUploadBytes + 1<<20

// ApplicationHandler accepts job applications from applicants.
type ApplicationHandler struct {
	applications *services.ApplicationService
}

func NewApplicationHandler(applications *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// POST /api/applications (multipart: job_id, cover_note, resume, cover_letter)
func (h *ApplicationHandler) Submit(c *gin.Context) {
	applicant, ok := currentIdentity(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxApplicationBody)
	if err := c.Request.ParseMultipartForm(storage.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.NewValidation("upload exceeds the 5 MB per file limit"))
			return
		}
		response.Error(c, appErrors.NewValidation("expected a multipart/form-data body"))
		return
	}
	if c.Request.MultipartForm != nil {
		defer c.Request.MultipartForm.RemoveAll()
	}

	jobID := strings.TrimSpace(c.PostForm("job_id"))
	if jobID == "" {
		response.Error(c, appErrors.NewValidation("job id is required"))
		return
	}

	resume, err := readFormDocument(c, "resume")
	if err != nil {
		response.Error(c, err)
		return
	}
	if resume == nil {
		response.Error(c, appErrors.NewValidation("resume is required"))
		return
	}
	coverLetter, err := readFormDocument(c, "cover_letter")
	if err != nil {
		response.Error(c, err)
		return
	}

	application, err := h.applications.Submit(requestContext(c), applicant, services.ApplicationInput{
		JobID:       jobID,
		CoverNote:   c.PostForm("cover_note"),
		Resume:      resume,
		CoverLetter: coverLetter,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message":     "Application submitted",
		"application": toApplicationDTO(application),
	})
}

// readFormDocument returns nil when the field is absent.
func readFormDocument(c *gin.Context, field string) (*storage.Document, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.NewValidation(fmt.Sprintf("%s could not be read", appValidator.Humanize(field)))
	}
	if header.Size > storage.MaxUploadBytes {
		return nil, uploadError(field, storage.ErrFileTooLarge)
	}

	doc, err := openDocument(header)
	if err != nil {
		return nil, uploadError(field, err)
	}
	return doc, nil
}

func openDocument(header *multipart.FileHeader) (*storage.Document, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return storage.ReadDocument(header.Filename, file)
}

func uploadError(field string, err error) error {
	name := appValidator.Humanize(field)
	switch {
	case errors.Is(err, storage.ErrFileTooLarge),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrEmptyFile):
		return appErrors.NewValidation(fmt.Sprintf("%s: %s", name, err.Error()))
	default:
		return appErrors.NewValidation(fmt.Sprintf("%s could not be read", name)).WithInternal(err)
	}
}
