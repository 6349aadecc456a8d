package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType enumerates advisory integrity events logged against an
// attempt.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab-switch"
	ViolationCopyPaste      ViolationType = "copy-paste"
	ViolationFullscreenExit ViolationType = "fullscreen-exit"
	ViolationTimeout        ViolationType = "timeout"
)

// Violation is an append-only integrity event. It never terminates an
// attempt; graders inspect it when reviewing.
type Violation struct {
	Type       ViolationType `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Detail     string        `json:"detail"`
}

// Answer is a participant's response to one question. IsCorrect stays
// nil until the answer is scored (automatically or by a grader).
type Answer struct {
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption string    `json:"selected_option,omitempty"`
	TextAnswer     string    `json:"text_answer,omitempty"`
	IsCorrect      *bool     `json:"is_correct"`
	MarksObtained  float64   `json:"marks_obtained"`
}

// Attempt is one participant's try at an exam. (ExamID, ParticipantID,
// AttemptNumber) is unique and never renumbered; the attempt becomes
// immutable on submission except for grading fields.
type Attempt struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	ParticipantID int       `json:"participant_id"`
	AttemptNumber int       `json:"attempt_number"`

	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`

	Answers []Answer `json:"answers,omitempty"`

	TotalMarks    float64 `json:"total_marks"`
	MarksObtained float64 `json:"marks_obtained"`
	Percentage    float64 `json:"percentage"`
	Passed        bool    `json:"passed"`

	IsSubmitted bool       `json:"is_submitted"`
	IsGraded    bool       `json:"is_graded"`
	GradedBy    *int       `json:"graded_by,omitempty"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`

	IP          string      `json:"ip,omitempty"`
	UserAgent   string      `json:"user_agent,omitempty"`
	TabSwitches int         `json:"tab_switches"`
	Violations  []Violation `json:"violations,omitempty"`
}

// ─── Request DTOs ───────────────────────────────────────────────────────────

// SubmitAnswer is one answer in an attempt submission.
type SubmitAnswer struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption string    `json:"selected_option" binding:"omitempty,max=500"`
	TextAnswer     string    `json:"text_answer" binding:"omitempty,max=20000"`
}

// SubmitAttemptRequest is the payload for submitting a started attempt.
type SubmitAttemptRequest struct {
	Answers []SubmitAnswer `json:"answers" binding:"required,dive"`
}

// GradedAnswer carries a grader's marks for one subjective answer.
type GradedAnswer struct {
	QuestionID    uuid.UUID `json:"question_id" binding:"required"`
	MarksObtained float64   `json:"marks_obtained" binding:"gte=0"`
}

// GradeAttemptRequest is the payload for manual subjective grading.
type GradeAttemptRequest struct {
	GradedAnswers []GradedAnswer `json:"graded_answers" binding:"required,min=1,dive"`
}

// RecordViolationRequest logs one advisory integrity event.
type RecordViolationRequest struct {
	Type   string `json:"type" binding:"required,oneof=tab-switch copy-paste fullscreen-exit timeout"`
	Detail string `json:"detail" binding:"omitempty,max=1000"`
}
