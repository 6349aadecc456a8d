package model

import (
	"testing"
	"time"
)

func TestExamStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to ExamStatus
		want     bool
	}{
		{ExamStatusScheduled, ExamStatusOngoing, true},
		{ExamStatusScheduled, ExamStatusCancelled, true},
		{ExamStatusScheduled, ExamStatusCompleted, false},
		{ExamStatusOngoing, ExamStatusCompleted, true},
		{ExamStatusOngoing, ExamStatusCancelled, true},
		{ExamStatusOngoing, ExamStatusScheduled, false},
		{ExamStatusCompleted, ExamStatusOngoing, false},
		{ExamStatusCompleted, ExamStatusCancelled, false},
		{ExamStatusCancelled, ExamStatusOngoing, false},
		{ExamStatusCancelled, ExamStatusScheduled, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestExamActiveAt(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	tests := []struct {
		name   string
		status ExamStatus
		now    time.Time
		want   bool
	}{
		{"ongoing inside window", ExamStatusOngoing, start.Add(time.Hour), true},
		{"ongoing at start", ExamStatusOngoing, start, true},
		{"ongoing at end", ExamStatusOngoing, end, true},
		{"ongoing before start", ExamStatusOngoing, start.Add(-time.Minute), false},
		{"ongoing after end", ExamStatusOngoing, end.Add(time.Minute), false},
		{"scheduled inside window", ExamStatusScheduled, start.Add(time.Hour), false},
		{"completed inside window", ExamStatusCompleted, start.Add(time.Hour), false},
		{"cancelled inside window", ExamStatusCancelled, start.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Exam{Status: tt.status, StartTime: start, EndTime: end}
			if got := e.ActiveAt(tt.now); got != tt.want {
				t.Errorf("ActiveAt(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestQuestionCorrectOption(t *testing.T) {
	q := &Question{
		Type: QuestionSingleChoice,
		Options: []Option{
			{Text: "TCP"},
			{Text: "UDP", IsCorrect: true},
			{Text: "ICMP"},
		},
	}
	opt := q.CorrectOption()
	if opt == nil || opt.Text != "UDP" {
		t.Fatalf("CorrectOption() = %+v, want UDP", opt)
	}

	essay := &Question{Type: QuestionEssay}
	if essay.CorrectOption() != nil {
		t.Error("essay question should have no correct option")
	}
}

func TestQuestionTypeObjective(t *testing.T) {
	objective := map[QuestionType]bool{
		QuestionSingleChoice: true,
		QuestionTrueFalse:    true,
		QuestionShortAnswer:  false,
		QuestionEssay:        false,
	}
	for qt, want := range objective {
		if got := qt.Objective(); got != want {
			t.Errorf("%s.Objective() = %v, want %v", qt, got, want)
		}
	}
}
