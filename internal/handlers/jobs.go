package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hireflow/internal/services"
	"github.com/charlesng35/hireflow/pkg/response"
)

// JobHandler serves job postings.
type JobHandler struct {
	jobs *services.JobService
}

func NewJobHandler(jobs *services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type createJobRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Department  string `json:"department" validate:"omitempty,max=128"`
	Location    string `json:"location" validate:"omitempty,max=128"`
	Description string `json:"description" validate:"omitempty,max=20000"`
	Status      string `json:"status" validate:"omitempty,max=32,jobstatus"`
}

type updateJobStatusRequest struct {
	Status string `json:"status" validate:"required,max=32,jobstatus"`
}

// POST /api/admin/jobs
func (h *JobHandler) Create(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req createJobRequest
	if !bindAndValidate(c, &req) {
		return
	}

	job, err := h.jobs.Create(requestContext(c), actor, services.JobInput{
		Title:       req.Title,
		Department:  req.Department,
		Location:    req.Location,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"job": toJobDTO(job)})
}

// PATCH /api/admin/jobs/:id/status
func (h *JobHandler) UpdateStatus(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}

	id, ok := pathID(c, "job")
	if !ok {
		return
	}
	var req updateJobStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	job, err := h.jobs.UpdateStatus(requestContext(c), actor, id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"job": toJobDTO(job)})
}

// GET /api/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "job")
	if !ok {
		return
	}
	job, err := h.jobs.GetOpen(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"job": toJobDTO(job)})
}
