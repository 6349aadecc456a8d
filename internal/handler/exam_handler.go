package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/campushq/campus-backend/internal/response"
	"github.com/campushq/campus-backend/internal/service"
	"github.com/campushq/campus-backend/internal/validator"
)

// ExamHandler handles exam lifecycle and attempt endpoints.
type ExamHandler struct {
	examService    *service.ExamService
	attemptService *service.AttemptService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, attemptService *service.AttemptService) *ExamHandler {
	return &ExamHandler{examService: examService, attemptService: attemptService}
}

// CreateExam godoc
// POST /api/v1/instructor/exams
// Schedules a new exam with its question set.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), userID(c), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/instructor/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GetExamForParticipant godoc
// GET /api/v1/participant/exams/:exam_id
// Returns the exam with its questions, answer key stripped.
func (h *ExamHandler) GetExamForParticipant(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	questions, err := h.examService.Questions(c.Request.Context(), examID, true)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam, "questions": questions})
}

// BeginExam godoc
// POST /api/v1/instructor/exams/:exam_id/begin
// Moves a scheduled exam to ONGOING. Reaching the start time alone
// never activates an exam.
func (h *ExamHandler) BeginExam(c *gin.Context) {
	h.transition(c, h.examService.Begin)
}

// EndExam godoc
// POST /api/v1/instructor/exams/:exam_id/end
func (h *ExamHandler) EndExam(c *gin.Context) {
	h.transition(c, h.examService.End)
}

// CancelExam godoc
// POST /api/v1/instructor/exams/:exam_id/cancel
func (h *ExamHandler) CancelExam(c *gin.Context) {
	h.transition(c, h.examService.Cancel)
}

func (h *ExamHandler) transition(c *gin.Context, op func(ctx context.Context, examID uuid.UUID, actorID int) (*model.Exam, error)) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := op(c.Request.Context(), examID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GetResults godoc
// GET /api/v1/instructor/exams/:exam_id/results
// Returns the exam aggregates and every submitted attempt.
func (h *ExamHandler) GetResults(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, attempts, err := h.examService.Results(c.Request.Context(), examID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"exam":     exam,
		"stats":    exam.Stats,
		"attempts": attempts,
	})
}

// StartAttempt godoc
// POST /api/v1/participant/exams/:exam_id/attempts
// Opens a new attempt while the exam is active and the budget allows.
func (h *ExamHandler) StartAttempt(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), examID, userID(c), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// GetAttempt godoc
// GET /api/v1/participant/attempts/:attempt_id
func (h *ExamHandler) GetAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), attemptID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// SubmitAttempt godoc
// POST /api/v1/participant/attempts/:attempt_id/submit
// Finalizes the attempt: objective answers auto-grade, subjective ones
// wait for the grader. A second submit is rejected.
func (h *ExamHandler) SubmitAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), attemptID, userID(c), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GradeAttempt godoc
// POST /api/v1/instructor/attempts/:attempt_id/grade
// Applies manual marks to subjective answers and finalizes the score.
func (h *ExamHandler) GradeAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GradeAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Grade(c.Request.Context(), attemptID, userID(c), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// RecordViolation godoc
// POST /api/v1/participant/attempts/:attempt_id/violations
// Logs an advisory integrity event. Never terminates the attempt.
func (h *ExamHandler) RecordViolation(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.RecordViolation(c.Request.Context(), attemptID, userID(c), &req); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"status": "recorded"})
}
