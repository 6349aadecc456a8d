package service

import (
	"math"

	"github.com/campushq/campus-backend/internal/model"
)

// round2 rounds to two decimal places; all scores on the wire carry at
// most two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ScoreAnswers auto-grades the objective answers of a submission against
// the exam's questions. Objective answers earn the question's full marks
// on an exact match of the designated correct option's text and zero
// otherwise; subjective answers are left ungraded with zero marks until
// a grader reviews them. Answers referencing unknown questions are
// dropped. The second return reports whether any answer still needs
// manual grading.
func ScoreAnswers(questions []model.Question, submitted []model.SubmitAnswer) ([]model.Answer, bool) {
	byID := make(map[string]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID.String()] = &questions[i]
	}

	answers := make([]model.Answer, 0, len(submitted))
	needsGrading := false
	for _, sub := range submitted {
		q, ok := byID[sub.QuestionID.String()]
		if !ok {
			continue
		}
		ans := model.Answer{
			QuestionID:     sub.QuestionID,
			SelectedOption: sub.SelectedOption,
			TextAnswer:     sub.TextAnswer,
		}
		if q.Type.Objective() {
			correct := false
			if opt := q.CorrectOption(); opt != nil {
				correct = sub.SelectedOption == opt.Text
			}
			ans.IsCorrect = &correct
			if correct {
				ans.MarksObtained = q.Marks
			}
		} else {
			needsGrading = true
		}
		answers = append(answers, ans)
	}
	return answers, needsGrading
}

// AggregateScore sums per-answer marks into the attempt totals. Pending
// subjective answers contribute zero, so a partially graded attempt
// reports only its objective score.
func AggregateScore(answers []model.Answer, totalMarks, passingMarks float64) (obtained, percentage float64, passed bool) {
	for _, a := range answers {
		obtained += a.MarksObtained
	}
	obtained = round2(obtained)
	if totalMarks > 0 {
		percentage = round2(obtained / totalMarks * 100)
	}
	passed = obtained >= passingMarks
	return obtained, percentage, passed
}

// ApplyManualGrades merges a grader's marks into the attempt's answers.
// Marks outside [0, question.Marks] are rejected before any answer is
// touched, so a bad batch changes nothing. Graded entries referencing
// questions the participant never answered are ignored.
func ApplyManualGrades(questions []model.Question, answers []model.Answer, graded []model.GradedAnswer) ([]model.Answer, error) {
	byID := make(map[string]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID.String()] = &questions[i]
	}

	for _, g := range graded {
		q, ok := byID[g.QuestionID.String()]
		if !ok {
			return nil, reject(KindInvalidGrade, "question %s does not belong to this exam", g.QuestionID)
		}
		if g.MarksObtained < 0 || g.MarksObtained > q.Marks {
			return nil, reject(KindInvalidGrade, "marks for question %s must be between 0 and %g", g.QuestionID, q.Marks)
		}
	}

	out := make([]model.Answer, len(answers))
	copy(out, answers)
	for _, g := range graded {
		for i := range out {
			if out[i].QuestionID == g.QuestionID {
				correct := g.MarksObtained > 0
				out[i].IsCorrect = &correct
				out[i].MarksObtained = g.MarksObtained
			}
		}
	}
	return out, nil
}

// FinalAssignmentMarks computes the frozen final score of an assignment
// submission: raw marks minus the late penalty percentage, plus any
// bonus, clamped to [0, totalMarks]. The result is stored at grading
// time and never recomputed when the assignment's policy later changes.
func FinalAssignmentMarks(marks, totalMarks, penaltyPercent, bonus float64, isLate bool) float64 {
	final := marks
	if isLate && penaltyPercent > 0 {
		final -= marks * penaltyPercent / 100
	}
	final += bonus
	if final < 0 {
		final = 0
	}
	if final > totalMarks {
		final = totalMarks
	}
	return round2(final)
}
