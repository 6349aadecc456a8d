package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/campushq/campus-backend/internal/response"
	"github.com/campushq/campus-backend/internal/service"
	"github.com/campushq/campus-backend/internal/validator"
)

// SessionHandler handles attendance sessions and participant records.
type SessionHandler struct {
	attendanceService *service.AttendanceService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(attendanceService *service.AttendanceService) *SessionHandler {
	return &SessionHandler{attendanceService: attendanceService}
}

// CreateSession godoc
// POST /api/v1/instructor/sessions
// Opens a new attendance session for a course.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.attendanceService.CreateSession(c.Request.Context(), userID(c), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": sess})
}

// GetSession godoc
// GET /api/v1/instructor/sessions/:session_id
// Retrieves a session with its derived statistics.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.attendanceService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// Mark godoc
// POST /api/v1/participant/sessions/:session_id/mark
// Submits the authenticated participant's own attendance.
func (h *SessionHandler) Mark(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.MarkRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	device := deviceFromRequest(c, req.Latitude, req.Longitude)
	record, err := h.attendanceService.Mark(c.Request.Context(), sessionID, userID(c), device)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"record": record})
}

// MarkParticipant godoc
// POST /api/v1/instructor/sessions/:session_id/records
// Marks or corrects one participant on behalf of the session owner.
func (h *SessionHandler) MarkParticipant(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.BulkMarkEntry
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	device := deviceFromRequest(c, nil, nil)
	record, err := h.attendanceService.MarkByProxy(c.Request.Context(), sessionID, userID(c), req, device)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"record": record})
}

// BulkMark godoc
// POST /api/v1/instructor/sessions/:session_id/records/bulk
// Marks many participants in one call. Entries fail independently.
func (h *SessionHandler) BulkMark(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.BulkMarkRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	device := deviceFromRequest(c, nil, nil)
	result, err := h.attendanceService.BulkMark(c.Request.Context(), sessionID, userID(c), &req, device)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// CloseSession godoc
// POST /api/v1/instructor/sessions/:session_id/close
// Freezes the session and runs the final statistics pass. Idempotent.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.attendanceService.CloseSession(c.Request.Context(), sessionID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// CancelSession godoc
// POST /api/v1/instructor/sessions/:session_id/cancel
// Voids an open session.
func (h *SessionHandler) CancelSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.attendanceService.CancelSession(c.Request.Context(), sessionID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// ListRecords godoc
// GET /api/v1/instructor/sessions/:session_id/records
// Lists the session's records with modification history.
func (h *SessionHandler) ListRecords(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	records, err := h.attendanceService.Records(c.Request.Context(), sessionID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"records": records})
}

// GetAnomalies godoc
// GET /api/v1/instructor/sessions/:session_id/anomalies
// Runs pattern analysis over the session's record set.
func (h *SessionHandler) GetAnomalies(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	anomalies, err := h.attendanceService.Anomalies(c.Request.Context(), sessionID, userID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"anomalies": anomalies})
}

// GetHistory godoc
// GET /api/v1/participant/attendance/history?course_id=&from=&to=
// Enumerates the participant's attendance across sessions with
// aggregate statistics. Closed sessions without a record count absent.
func (h *SessionHandler) GetHistory(c *gin.Context) {
	courseID, from, to, ok := historyFilters(c)
	if !ok {
		return
	}

	history, err := h.attendanceService.History(c.Request.Context(), userID(c), courseID, from, to)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, history)
}

// GetParticipantHistory godoc
// GET /api/v1/instructor/participants/:participant_id/attendance?course_id=&from=&to=
// Instructor view of any participant's attendance history.
func (h *SessionHandler) GetParticipantHistory(c *gin.Context) {
	participantID, err := strconv.Atoi(c.Param("participant_id"))
	if err != nil || participantID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	courseID, from, to, ok := historyFilters(c)
	if !ok {
		return
	}

	history, err := h.attendanceService.History(c.Request.Context(), participantID, courseID, from, to)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, history)
}

// historyFilters parses the shared history query params. On a parse
// failure it writes the error response and reports ok=false.
func historyFilters(c *gin.Context) (courseID *uuid.UUID, from, to *time.Time, ok bool) {
	if raw := c.Query("course_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return nil, nil, nil, false
		}
		courseID = &id
	}

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return nil, nil, nil, false
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return nil, nil, nil, false
		}
		to = &t
	}
	return courseID, from, to, true
}
