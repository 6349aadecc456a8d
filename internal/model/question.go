package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single-choice"
	QuestionTrueFalse    QuestionType = "true-false"
	QuestionShortAnswer  QuestionType = "short-answer"
	QuestionEssay        QuestionType = "essay"
)

// Objective reports whether the type is auto-gradable. Short answers and
// essays always wait for a human grader.
func (t QuestionType) Objective() bool {
	return t == QuestionSingleChoice || t == QuestionTrueFalse
}

// Option is one selectable choice of an objective question.
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct,omitempty"`
}

// Question is a single exam question. Objective questions designate
// exactly one correct option; subjective ones carry none.
type Question struct {
	ID       uuid.UUID    `json:"id"`
	ExamID   uuid.UUID    `json:"exam_id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []Option     `json:"options,omitempty"`
	Marks    float64      `json:"marks"`
	OrderNum int          `json:"order_num"`
}

// CorrectOption returns the designated correct option, or nil for
// subjective questions.
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// AddQuestionRequest is the payload for one question inside exam creation.
type AddQuestionRequest struct {
	Text     string   `json:"text" binding:"required,min=1,max=2000"`
	Type     string   `json:"type" binding:"required,oneof=single-choice true-false short-answer essay"`
	Options  []Option `json:"options" binding:"omitempty,dive"`
	Marks    float64  `json:"marks" binding:"required,gt=0"`
	OrderNum int      `json:"order_num" binding:"min=0"`
}
