package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates assignment submission states.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionGraded    SubmissionStatus = "graded"
)

// Assignment is a deadline-bound task graded manually, with optional
// late submission and resubmission policies.
type Assignment struct {
	ID           uuid.UUID `json:"id"`
	CourseID     uuid.UUID `json:"course_id"`
	OwnerID      int       `json:"owner_id"`
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`

	TotalMarks   float64 `json:"total_marks"`
	PassingMarks float64 `json:"passing_marks"`

	DueAt              time.Time  `json:"due_at"`
	LateAllowed        bool       `json:"late_allowed"`
	LateDeadline       *time.Time `json:"late_deadline,omitempty"`
	LatePenaltyPercent float64    `json:"late_penalty_percent"`

	AllowResubmission bool `json:"allow_resubmission"`
	MaxResubmissions  int  `json:"max_resubmissions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmissionReview is one append-only history entry of a grading action.
type SubmissionReview struct {
	ReviewedBy int       `json:"reviewed_by"`
	ReviewedAt time.Time `json:"reviewed_at"`
	Comments   string    `json:"comments"`
	MarksGiven float64   `json:"marks_given"`
}

// Submission is one participant's handed-in assignment work.
//
// FinalMarks is a frozen snapshot computed at grading time from the
// late penalty and bonus then in effect; it is not recomputed if the
// assignment's total marks change afterwards.
type Submission struct {
	ID            uuid.UUID `json:"id"`
	AssignmentID  uuid.UUID `json:"assignment_id"`
	ParticipantID int       `json:"participant_id"`
	AttemptNumber int       `json:"attempt_number"`

	Content     string    `json:"content"`
	SubmittedAt time.Time `json:"submitted_at"`
	IsLate      bool      `json:"is_late"`

	Status        SubmissionStatus `json:"status"`
	MarksObtained *float64         `json:"marks_obtained,omitempty"`
	Feedback      string           `json:"feedback"`
	GradedBy      *int             `json:"graded_by,omitempty"`
	GradedAt      *time.Time       `json:"graded_at,omitempty"`

	LatePenaltyPercent float64  `json:"late_penalty_percent"`
	BonusPoints        float64  `json:"bonus_points"`
	FinalMarks         *float64 `json:"final_marks,omitempty"`

	Reviews []SubmissionReview `json:"review_history,omitempty"`
}

// ─── Request DTOs ───────────────────────────────────────────────────────────

// CreateAssignmentRequest is the payload for creating an assignment.
type CreateAssignmentRequest struct {
	CourseID           uuid.UUID  `json:"course_id" binding:"required"`
	Title              string     `json:"title" binding:"required,min=3,max=255"`
	Instructions       string     `json:"instructions" binding:"omitempty,max=10000"`
	TotalMarks         float64    `json:"total_marks" binding:"required,gt=0"`
	PassingMarks       float64    `json:"passing_marks" binding:"required,gte=0,ltefield=TotalMarks"`
	DueAt              time.Time  `json:"due_at" binding:"required"`
	LateAllowed        bool       `json:"late_allowed"`
	LateDeadline       *time.Time `json:"late_deadline" binding:"omitempty,gtfield=DueAt"`
	LatePenaltyPercent float64    `json:"late_penalty_percent" binding:"omitempty,gte=0,lte=100"`
	AllowResubmission  bool       `json:"allow_resubmission"`
	MaxResubmissions   int        `json:"max_resubmissions" binding:"omitempty,min=1,max=10"`
}

// SubmitAssignmentRequest is a participant's submission payload.
type SubmitAssignmentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=100000"`
}

// GradeSubmissionRequest is the payload for grading a submission.
type GradeSubmissionRequest struct {
	Marks       float64 `json:"marks" binding:"gte=0"`
	Feedback    string  `json:"feedback" binding:"omitempty,max=5000"`
	BonusPoints float64 `json:"bonus_points" binding:"omitempty,gte=0,lte=100"`
}
