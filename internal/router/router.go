package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/campushq/campus-backend/internal/config"
	"github.com/campushq/campus-backend/internal/handler"
	"github.com/campushq/campus-backend/internal/middleware"
	"github.com/campushq/campus-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session    *handler.SessionHandler
	Exam       *handler.ExamHandler
	Assignment *handler.AssignmentHandler
	Monitor    *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth *middleware.Authenticator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the contended write paths (60 requests per
	// minute per IP).
	writeLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── 1. Participant Group ──────────────────────────────────────────
	participantAPI := router.Group("/api/v1/participant")
	participantAPI.Use(auth.RequireParticipant())
	{
		// Attendance
		participantAPI.POST("/sessions/:session_id/mark",
			writeLimiter.Middleware(),
			handlers.Session.Mark,
		)
		participantAPI.GET("/attendance/history", handlers.Session.GetHistory)

		// Exams and attempts
		participantAPI.GET("/exams/:exam_id", handlers.Exam.GetExamForParticipant)
		participantAPI.POST("/exams/:exam_id/attempts",
			writeLimiter.Middleware(),
			handlers.Exam.StartAttempt,
		)
		participantAPI.GET("/attempts/:attempt_id", handlers.Exam.GetAttempt)
		participantAPI.POST("/attempts/:attempt_id/submit", handlers.Exam.SubmitAttempt)
		participantAPI.POST("/attempts/:attempt_id/violations", handlers.Exam.RecordViolation)

		// Assignments
		participantAPI.GET("/assignments/:assignment_id", handlers.Assignment.GetAssignment)
		participantAPI.POST("/assignments/:assignment_id/submissions",
			writeLimiter.Middleware(),
			handlers.Assignment.SubmitWork,
		)
		participantAPI.GET("/submissions/:submission_id", handlers.Assignment.GetSubmission)
	}

	// ─── 2. Instructor Group ───────────────────────────────────────────
	instructorAPI := router.Group("/api/v1/instructor")
	instructorAPI.Use(auth.RequireInstructor())
	{
		// Attendance sessions
		instructorAPI.POST("/sessions", handlers.Session.CreateSession)
		instructorAPI.GET("/sessions/:session_id", handlers.Session.GetSession)
		instructorAPI.POST("/sessions/:session_id/close", handlers.Session.CloseSession)
		instructorAPI.POST("/sessions/:session_id/cancel", handlers.Session.CancelSession)
		instructorAPI.GET("/sessions/:session_id/records", handlers.Session.ListRecords)
		instructorAPI.POST("/sessions/:session_id/records", handlers.Session.MarkParticipant)
		instructorAPI.POST("/sessions/:session_id/records/bulk", handlers.Session.BulkMark)
		instructorAPI.GET("/sessions/:session_id/anomalies", handlers.Session.GetAnomalies)
		instructorAPI.GET("/participants/:participant_id/attendance", handlers.Session.GetParticipantHistory)

		// Exams
		instructorAPI.POST("/exams", handlers.Exam.CreateExam)
		instructorAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		instructorAPI.POST("/exams/:exam_id/begin", handlers.Exam.BeginExam)
		instructorAPI.POST("/exams/:exam_id/end", handlers.Exam.EndExam)
		instructorAPI.POST("/exams/:exam_id/cancel", handlers.Exam.CancelExam)
		instructorAPI.GET("/exams/:exam_id/results", handlers.Exam.GetResults)
		instructorAPI.POST("/attempts/:attempt_id/grade", handlers.Exam.GradeAttempt)

		// Assignments
		instructorAPI.POST("/assignments", handlers.Assignment.CreateAssignment)
		instructorAPI.GET("/assignments/:assignment_id", handlers.Assignment.GetAssignment)
		instructorAPI.GET("/assignments/:assignment_id/submissions", handlers.Assignment.ListSubmissions)
		instructorAPI.POST("/submissions/:submission_id/grade", handlers.Assignment.GradeSubmission)
	}

	// ─── 3. WebSocket Group (Instructor WS Auth) ───────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(auth.RequireWSAuth())
	{
		ws.GET("/instructor/sessions/:session_id/stream", handlers.Monitor.SessionStream)
		ws.GET("/instructor/exams/:exam_id/stream", handlers.Monitor.ExamStream)
	}

	return router
}
