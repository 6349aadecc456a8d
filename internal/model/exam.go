package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusScheduled ExamStatus = "SCHEDULED"
	ExamStatusOngoing   ExamStatus = "ONGOING"
	ExamStatusCompleted ExamStatus = "COMPLETED"
	ExamStatusCancelled ExamStatus = "CANCELLED"
)

// CanTransitionTo reports whether the state machine permits moving from
// s to next. Completed and Cancelled are terminal.
func (s ExamStatus) CanTransitionTo(next ExamStatus) bool {
	switch s {
	case ExamStatusScheduled:
		return next == ExamStatusOngoing || next == ExamStatusCancelled
	case ExamStatusOngoing:
		return next == ExamStatusCompleted || next == ExamStatusCancelled
	}
	return false
}

// ExamStats are derived aggregates over submitted attempts, recomputed
// on every attempt mutation.
type ExamStats struct {
	TotalAttempts int      `json:"total_attempts"`
	AverageScore  float64  `json:"average_score"`
	HighestScore  float64  `json:"highest_score"`
	LowestScore   *float64 `json:"lowest_score,omitempty"`
}

// Exam is a timed assessment. Participants may own up to MaxAttempts
// attempts, each immutable once submitted.
type Exam struct {
	ID          uuid.UUID `json:"id"`
	CourseID    uuid.UUID `json:"course_id"`
	OwnerID     int       `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`

	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`

	TotalMarks   float64 `json:"total_marks"`
	PassingMarks float64 `json:"passing_marks"`
	MaxAttempts  int     `json:"max_attempts"`

	ShowResultsImmediately bool `json:"show_results_immediately"`

	Status    ExamStatus `json:"status"`
	Stats     ExamStats  `json:"stats"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ActiveAt reports whether attempts may be started at the given instant.
// Both conditions are required: the owner must have explicitly begun the
// exam, and the clock must be inside [StartTime, EndTime]. The clock
// alone never activates an exam.
func (e *Exam) ActiveAt(now time.Time) bool {
	return e.Status == ExamStatusOngoing &&
		!now.Before(e.StartTime) && !now.After(e.EndTime)
}

// ─── Request DTOs ───────────────────────────────────────────────────────────

// CreateExamRequest is the payload for scheduling a new exam.
type CreateExamRequest struct {
	CourseID        uuid.UUID `json:"course_id" binding:"required"`
	Title           string    `json:"title" binding:"required,min=3,max=255"`
	Description     string    `json:"description" binding:"omitempty,max=2000"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1,max=480"`
	TotalMarks      float64   `json:"total_marks" binding:"required,gt=0"`
	PassingMarks    float64   `json:"passing_marks" binding:"required,gte=0,ltefield=TotalMarks"`
	MaxAttempts     int       `json:"max_attempts" binding:"omitempty,min=1,max=10"`

	ShowResultsImmediately bool `json:"show_results_immediately"`

	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
