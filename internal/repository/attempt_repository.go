package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateAttemptNumber signals that a concurrent start call claimed
// the same attempt number first. The caller recounts and retries.
var ErrDuplicateAttemptNumber = errors.New("attempt number already taken")

// ErrAttemptAlreadySubmitted signals a second submit on the same attempt.
var ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")

const pgUniqueViolation = "23505"

// AttemptRepository handles exam attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, participant_id, attempt_number,
	started_at, submitted_at, time_spent_seconds, total_marks, marks_obtained,
	percentage, passed, is_submitted, is_graded, graded_by, graded_at,
	ip, user_agent, tab_switches`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(
		&a.ID, &a.ExamID, &a.ParticipantID, &a.AttemptNumber,
		&a.StartedAt, &a.SubmittedAt, &a.TimeSpentSeconds,
		&a.TotalMarks, &a.MarksObtained, &a.Percentage, &a.Passed,
		&a.IsSubmitted, &a.IsGraded, &a.GradedBy, &a.GradedAt,
		&a.IP, &a.UserAgent, &a.TabSwitches,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CountByExamAndParticipant returns how many attempts the participant
// already owns for the exam.
func (r *AttemptRepository) CountByExamAndParticipant(ctx context.Context, examID uuid.UUID, participantID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM attempts
		 WHERE exam_id = $1 AND participant_id = $2`,
		examID, participantID).Scan(&n)
	return n, err
}

// Insert creates an attempt with the given number. The unique constraint
// on (exam_id, participant_id, attempt_number) is the compare-and-insert
// discipline for gapless numbering: a losing racer gets
// ErrDuplicateAttemptNumber and must recount.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, participant_id, attempt_number,
			started_at, total_marks, ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		a.ExamID, a.ParticipantID, a.AttemptNumber,
		a.StartedAt, a.TotalMarks, a.IP, a.UserAgent,
	).Scan(&a.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateAttemptNumber
		}
		return err
	}
	return nil
}

// GetByID retrieves an attempt with its answers and violations.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_option, text_answer, is_correct, marks_obtained
		 FROM attempt_answers WHERE attempt_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ans model.Answer
		if err := rows.Scan(&ans.QuestionID, &ans.SelectedOption,
			&ans.TextAnswer, &ans.IsCorrect, &ans.MarksObtained); err != nil {
			return nil, err
		}
		a.Answers = append(a.Answers, ans)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := r.pool.Query(ctx,
		`SELECT type, occurred_at, detail
		 FROM attempt_violations WHERE attempt_id = $1 ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var v model.Violation
		if err := vrows.Scan(&v.Type, &v.OccurredAt, &v.Detail); err != nil {
			return nil, err
		}
		a.Violations = append(a.Violations, v)
	}
	return a, vrows.Err()
}

// Submit records the submission instant, the scored answers and the
// aggregate result in one transaction. The submitted_at IS NULL guard is
// the idempotency check: a redundant or racing second submit changes
// nothing and gets ErrAttemptAlreadySubmitted.
func (r *AttemptRepository) Submit(ctx context.Context, a *model.Attempt) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET submitted_at = $1, time_spent_seconds = $2, is_submitted = TRUE,
		     marks_obtained = $3, percentage = $4, passed = $5,
		     is_graded = $6, graded_at = CASE WHEN $6 THEN $1 ELSE NULL END
		 WHERE id = $7 AND submitted_at IS NULL`,
		a.SubmittedAt, a.TimeSpentSeconds,
		a.MarksObtained, a.Percentage, a.Passed, a.IsGraded, a.ID)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptAlreadySubmitted
	}

	rows := make([][]interface{}, 0, len(a.Answers))
	for _, ans := range a.Answers {
		rows = append(rows, []interface{}{
			a.ID, ans.QuestionID, ans.SelectedOption, ans.TextAnswer,
			ans.IsCorrect, ans.MarksObtained,
		})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"attempt_answers"},
		[]string{"attempt_id", "question_id", "selected_option", "text_answer",
			"is_correct", "marks_obtained"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy answers: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdateGrading overwrites answer marks and the recomputed aggregate
// after a manual grading pass. Re-grading is allowed and overwrites.
func (r *AttemptRepository) UpdateGrading(ctx context.Context, a *model.Attempt, gradedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ans := range a.Answers {
		_, err := tx.Exec(ctx,
			`UPDATE attempt_answers
			 SET is_correct = $1, marks_obtained = $2
			 WHERE attempt_id = $3 AND question_id = $4`,
			ans.IsCorrect, ans.MarksObtained, a.ID, ans.QuestionID)
		if err != nil {
			return fmt.Errorf("update answer: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE attempts
		 SET marks_obtained = $1, percentage = $2, passed = $3,
		     is_graded = TRUE, graded_by = $4, graded_at = $5
		 WHERE id = $6`,
		a.MarksObtained, a.Percentage, a.Passed, a.GradedBy, gradedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}

	return tx.Commit(ctx)
}

// IncrementTabSwitches bumps the advisory tab-switch counter.
func (r *AttemptRepository) IncrementTabSwitches(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET tab_switches = tab_switches + 1 WHERE id = $1`, id)
	return err
}

// AttemptSummary is one row of an instructor's attempt listing.
type AttemptSummary struct {
	ID            uuid.UUID  `json:"id"`
	ParticipantID int        `json:"participant_id"`
	AttemptNumber int        `json:"attempt_number"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	MarksObtained float64    `json:"marks_obtained"`
	Percentage    float64    `json:"percentage"`
	Passed        bool       `json:"passed"`
	IsGraded      bool       `json:"is_graded"`
	TabSwitches   int        `json:"tab_switches"`
}

// ListSubmittedByExam retrieves all submitted attempts for an exam,
// most recent first.
func (r *AttemptRepository) ListSubmittedByExam(ctx context.Context, examID uuid.UUID) ([]AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, participant_id, attempt_number, submitted_at,
			marks_obtained, percentage, passed, is_graded, tab_switches
		 FROM attempts
		 WHERE exam_id = $1 AND is_submitted
		 ORDER BY submitted_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttemptSummary
	for rows.Next() {
		var s AttemptSummary
		if err := rows.Scan(&s.ID, &s.ParticipantID, &s.AttemptNumber,
			&s.SubmittedAt, &s.MarksObtained, &s.Percentage, &s.Passed,
			&s.IsGraded, &s.TabSwitches); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
