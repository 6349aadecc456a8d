package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/campushq/campus-backend/internal/response"
	"github.com/campushq/campus-backend/internal/service"
	"github.com/campushq/campus-backend/internal/validator"
)

// AssignmentHandler handles assignments and their submissions.
type AssignmentHandler struct {
	assignmentService *service.AssignmentService
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(assignmentService *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// CreateAssignment godoc
// POST /api/v1/instructor/assignments
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req model.CreateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.assignmentService.Create(c.Request.Context(), userID(c), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"assignment": a})
}

// GetAssignment godoc
// GET /api/v1/participant/assignments/:assignment_id
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	a, err := h.assignmentService.GetByID(c.Request.Context(), assignmentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}

// SubmitWork godoc
// POST /api/v1/participant/assignments/:assignment_id/submissions
// Hands in work under the assignment's deadline and resubmission
// policies.
func (h *AssignmentHandler) SubmitWork(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.assignmentService.Submit(c.Request.Context(), assignmentID, userID(c), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"submission": sub})
}

// GetSubmission godoc
// GET /api/v1/participant/submissions/:submission_id
func (h *AssignmentHandler) GetSubmission(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sub, err := h.assignmentService.GetSubmission(c.Request.Context(), submissionID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// GradeSubmission godoc
// POST /api/v1/instructor/submissions/:submission_id/grade
// Scores a submission; the final marks are frozen at this point.
func (h *AssignmentHandler) GradeSubmission(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GradeSubmissionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.assignmentService.Grade(c.Request.Context(), submissionID, userID(c), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// ListSubmissions godoc
// GET /api/v1/instructor/assignments/:assignment_id/submissions?status=
func (h *AssignmentHandler) ListSubmissions(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var status *model.SubmissionStatus
	if raw := c.Query("status"); raw != "" {
		s := model.SubmissionStatus(raw)
		if s != model.SubmissionSubmitted && s != model.SubmissionGraded {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		status = &s
	}

	subs, stats, err := h.assignmentService.Submissions(c.Request.Context(), assignmentID, userID(c), status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submissions": subs, "stats": stats})
}
