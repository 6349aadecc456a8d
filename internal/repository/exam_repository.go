package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, course_id, owner_id, title, description, start_time,
	end_time, duration_minutes, total_marks, passing_marks, max_attempts,
	show_results_immediately, status, total_attempts, average_score,
	highest_score, lowest_score, created_at, updated_at`

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(
		&e.ID, &e.CourseID, &e.OwnerID, &e.Title, &e.Description,
		&e.StartTime, &e.EndTime, &e.DurationMinutes,
		&e.TotalMarks, &e.PassingMarks, &e.MaxAttempts,
		&e.ShowResultsImmediately, &e.Status,
		&e.Stats.TotalAttempts, &e.Stats.AverageScore,
		&e.Stats.HighestScore, &e.Stats.LowestScore,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts an exam and its questions in one transaction.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (course_id, owner_id, title, description,
			start_time, end_time, duration_minutes, total_marks, passing_marks,
			max_attempts, show_results_immediately, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		e.CourseID, e.OwnerID, e.Title, e.Description,
		e.StartTime, e.EndTime, e.DurationMinutes, e.TotalMarks, e.PassingMarks,
		e.MaxAttempts, e.ShowResultsImmediately, model.ExamStatusScheduled,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	for i := range questions {
		questions[i].ExamID = e.ID
		opts, err := json.Marshal(questions[i].Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO questions (exam_id, text, type, options, marks, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			e.ID, questions[i].Text, questions[i].Type, opts,
			questions[i].Marks, questions[i].OrderNum,
		).Scan(&questions[i].ID)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// GetQuestions retrieves an exam's questions in order.
func (r *ExamRepository) GetQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, text, type, options, marks, order_num
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var opts []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Type, &opts,
			&q.Marks, &q.OrderNum); err != nil {
			return nil, err
		}
		if len(opts) > 0 {
			if err := json.Unmarshal(opts, &q.Options); err != nil {
				return nil, fmt.Errorf("unmarshal options: %w", err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// TransitionStatus moves the exam from one status to another. The guard
// on the current status makes concurrent transitions explicit: only one
// caller wins, the rest see affected == false.
func (r *ExamRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecomputeStats refreshes attempt aggregates from all submitted
// attempts in a single statement for snapshot consistency. Attempts
// pending manual grading count with whatever has been scored so far.
func (r *ExamRepository) RecomputeStats(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams e SET
			total_attempts = c.total,
			average_score  = COALESCE(c.avg, 0),
			highest_score  = COALESCE(c.high, 0),
			lowest_score   = c.low,
			updated_at = NOW()
		 FROM (
			SELECT count(*) AS total,
				avg(marks_obtained) AS avg,
				max(marks_obtained) AS high,
				min(marks_obtained) AS low
			FROM attempts
			WHERE exam_id = $1 AND is_submitted
		 ) c
		 WHERE e.id = $1`, id)
	if err != nil {
		return fmt.Errorf("recompute exam stats: %w", err)
	}
	return nil
}
