package service

import (
	"testing"

	"github.com/google/uuid"

	"github.com/campushq/campus-backend/internal/model"
)

func objectiveQuestion(marks float64, correct string, others ...string) model.Question {
	q := model.Question{
		ID:    uuid.New(),
		Type:  model.QuestionSingleChoice,
		Marks: marks,
		Options: []model.Option{
			{Text: correct, IsCorrect: true},
		},
	}
	for _, o := range others {
		q.Options = append(q.Options, model.Option{Text: o})
	}
	return q
}

func TestScoreAnswersObjective(t *testing.T) {
	q1 := objectiveQuestion(10, "Jakarta", "Bandung", "Surabaya")
	q2 := objectiveQuestion(5, "true", "false")
	questions := []model.Question{q1, q2}

	submitted := []model.SubmitAnswer{
		{QuestionID: q1.ID, SelectedOption: "Jakarta"},
		{QuestionID: q2.ID, SelectedOption: "false"},
	}

	answers, needsGrading := ScoreAnswers(questions, submitted)
	if needsGrading {
		t.Error("all-objective submission should not need grading")
	}
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}

	if answers[0].IsCorrect == nil || !*answers[0].IsCorrect {
		t.Error("exact match should be correct")
	}
	if answers[0].MarksObtained != 10 {
		t.Errorf("correct answer marks = %g, want 10", answers[0].MarksObtained)
	}

	if answers[1].IsCorrect == nil || *answers[1].IsCorrect {
		t.Error("wrong option should be marked incorrect")
	}
	if answers[1].MarksObtained != 0 {
		t.Errorf("wrong answer marks = %g, want 0", answers[1].MarksObtained)
	}
}

func TestScoreAnswersExactMatchOnly(t *testing.T) {
	q := objectiveQuestion(10, "B", "A", "C")

	// Option text must match byte for byte; casing and padding miss.
	for _, given := range []string{"b", " B", "B ", "  b "} {
		answers, _ := ScoreAnswers([]model.Question{q}, []model.SubmitAnswer{
			{QuestionID: q.ID, SelectedOption: given},
		})
		if answers[0].IsCorrect == nil || *answers[0].IsCorrect {
			t.Errorf("option %q should not match %q", given, "B")
		}
		if answers[0].MarksObtained != 0 {
			t.Errorf("option %q marks = %g, want 0", given, answers[0].MarksObtained)
		}
	}
}

func TestScoreAnswersSubjectivePending(t *testing.T) {
	essay := model.Question{ID: uuid.New(), Type: model.QuestionEssay, Marks: 20}

	answers, needsGrading := ScoreAnswers([]model.Question{essay}, []model.SubmitAnswer{
		{QuestionID: essay.ID, TextAnswer: "Routers forward packets between networks."},
	})
	if !needsGrading {
		t.Error("essay answer should need manual grading")
	}
	if answers[0].IsCorrect != nil {
		t.Error("ungraded subjective answer should have nil IsCorrect")
	}
	if answers[0].MarksObtained != 0 {
		t.Errorf("ungraded subjective marks = %g, want 0", answers[0].MarksObtained)
	}
}

func TestScoreAnswersDropsUnknownQuestions(t *testing.T) {
	q := objectiveQuestion(10, "A", "B")

	answers, _ := ScoreAnswers([]model.Question{q}, []model.SubmitAnswer{
		{QuestionID: uuid.New(), SelectedOption: "A"},
		{QuestionID: q.ID, SelectedOption: "A"},
	})
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1 (unknown question dropped)", len(answers))
	}
	if answers[0].QuestionID != q.ID {
		t.Error("kept answer should reference the known question")
	}
}

func TestAggregateScore(t *testing.T) {
	answers := []model.Answer{
		{MarksObtained: 10},
		{MarksObtained: 7.333},
		{MarksObtained: 0},
	}

	obtained, percentage, passed := AggregateScore(answers, 30, 15)
	if obtained != 17.33 {
		t.Errorf("obtained = %g, want 17.33", obtained)
	}
	if percentage != 57.77 {
		t.Errorf("percentage = %g, want 57.77", percentage)
	}
	if !passed {
		t.Error("17.33 >= 15 should pass")
	}

	// Exactly at the passing boundary.
	_, _, passed = AggregateScore([]model.Answer{{MarksObtained: 15}}, 30, 15)
	if !passed {
		t.Error("obtained == passing marks should pass")
	}

	_, percentage, passed = AggregateScore(nil, 0, 0)
	if percentage != 0 {
		t.Errorf("zero total marks percentage = %g, want 0", percentage)
	}
	if !passed {
		t.Error("0 >= 0 should pass")
	}
}

func TestApplyManualGrades(t *testing.T) {
	essay := model.Question{ID: uuid.New(), Type: model.QuestionEssay, Marks: 20}
	questions := []model.Question{essay}
	answers := []model.Answer{{QuestionID: essay.ID, TextAnswer: "..."}}

	t.Run("valid grade", func(t *testing.T) {
		out, err := ApplyManualGrades(questions, answers, []model.GradedAnswer{
			{QuestionID: essay.ID, MarksObtained: 15.5},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out[0].MarksObtained != 15.5 {
			t.Errorf("marks = %g, want 15.5", out[0].MarksObtained)
		}
		if out[0].IsCorrect == nil || !*out[0].IsCorrect {
			t.Error("positive marks should set IsCorrect true")
		}
		if answers[0].MarksObtained != 0 {
			t.Error("input answers must not be mutated")
		}
	})

	t.Run("zero marks", func(t *testing.T) {
		out, err := ApplyManualGrades(questions, answers, []model.GradedAnswer{
			{QuestionID: essay.ID, MarksObtained: 0},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out[0].IsCorrect == nil || *out[0].IsCorrect {
			t.Error("zero marks should set IsCorrect false")
		}
	})

	t.Run("marks above maximum", func(t *testing.T) {
		_, err := ApplyManualGrades(questions, answers, []model.GradedAnswer{
			{QuestionID: essay.ID, MarksObtained: 25},
		})
		rej, ok := AsRejection(err)
		if !ok {
			t.Fatalf("want Rejection, got %v", err)
		}
		if rej.Kind != KindInvalidGrade {
			t.Errorf("kind = %s, want %s", rej.Kind, KindInvalidGrade)
		}
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := ApplyManualGrades(questions, answers, []model.GradedAnswer{
			{QuestionID: uuid.New(), MarksObtained: 5},
		})
		rej, ok := AsRejection(err)
		if !ok || rej.Kind != KindInvalidGrade {
			t.Fatalf("want %s rejection, got %v", KindInvalidGrade, err)
		}
	})

	t.Run("bad batch changes nothing", func(t *testing.T) {
		_, err := ApplyManualGrades(questions, answers, []model.GradedAnswer{
			{QuestionID: essay.ID, MarksObtained: 10},
			{QuestionID: essay.ID, MarksObtained: 99},
		})
		if err == nil {
			t.Fatal("batch with an out-of-range entry should be rejected")
		}
		if answers[0].MarksObtained != 0 {
			t.Error("rejected batch must not touch any answer")
		}
	})
}

func TestScoreThenGradeFlow(t *testing.T) {
	choice := objectiveQuestion(10, "B", "A", "C")
	essay := model.Question{ID: uuid.New(), Type: model.QuestionEssay, Marks: 5}
	questions := []model.Question{choice, essay}

	answers, needsGrading := ScoreAnswers(questions, []model.SubmitAnswer{
		{QuestionID: choice.ID, SelectedOption: "B"},
		{QuestionID: essay.ID, TextAnswer: "..."},
	})
	if !needsGrading {
		t.Fatal("essay answer should hold the attempt ungraded")
	}

	obtained, _, _ := AggregateScore(answers, 15, 8)
	if obtained != 10 {
		t.Errorf("pre-grading obtained = %g, want 10", obtained)
	}

	graded, err := ApplyManualGrades(questions, answers, []model.GradedAnswer{
		{QuestionID: essay.ID, MarksObtained: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	obtained, percentage, passed := AggregateScore(graded, 15, 8)
	if obtained != 13 {
		t.Errorf("graded obtained = %g, want 13", obtained)
	}
	if percentage != 86.67 {
		t.Errorf("percentage = %g, want 86.67", percentage)
	}
	if !passed {
		t.Error("13 of 15 with passing 8 should pass")
	}
}

func TestFinalAssignmentMarks(t *testing.T) {
	tests := []struct {
		name           string
		marks, total   float64
		penalty, bonus float64
		isLate         bool
		want           float64
	}{
		{"on time no adjustments", 80, 100, 10, 0, false, 80},
		{"late penalty applied", 80, 100, 10, 0, true, 72},
		{"penalty ignored when on time", 80, 100, 25, 0, false, 80},
		{"bonus added", 80, 100, 0, 5, false, 85},
		{"late penalty then bonus", 80, 100, 10, 3, true, 75},
		{"clamped to total", 98, 100, 0, 10, false, 100},
		{"clamped to zero", 0, 100, 50, -10, true, 0},
		{"rounded to two decimals", 77.777, 100, 10, 0, true, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FinalAssignmentMarks(tt.marks, tt.total, tt.penalty, tt.bonus, tt.isLate)
			if got != tt.want {
				t.Errorf("FinalAssignmentMarks() = %g, want %g", got, tt.want)
			}
		})
	}
}
