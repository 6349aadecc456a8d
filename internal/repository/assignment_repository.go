package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentRepository handles assignment and submission data access.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

const assignmentColumns = `id, course_id, owner_id, title, instructions,
	total_marks, passing_marks, due_at, late_allowed, late_deadline,
	late_penalty_percent, allow_resubmission, max_resubmissions,
	created_at, updated_at`

func scanAssignment(row pgx.Row) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := row.Scan(
		&a.ID, &a.CourseID, &a.OwnerID, &a.Title, &a.Instructions,
		&a.TotalMarks, &a.PassingMarks, &a.DueAt, &a.LateAllowed,
		&a.LateDeadline, &a.LatePenaltyPercent, &a.AllowResubmission,
		&a.MaxResubmissions, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assignments (course_id, owner_id, title, instructions,
			total_marks, passing_marks, due_at, late_allowed, late_deadline,
			late_penalty_percent, allow_resubmission, max_resubmissions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		a.CourseID, a.OwnerID, a.Title, a.Instructions,
		a.TotalMarks, a.PassingMarks, a.DueAt, a.LateAllowed, a.LateDeadline,
		a.LatePenaltyPercent, a.AllowResubmission, a.MaxResubmissions,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID retrieves an assignment by its UUID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
}

const submissionColumns = `id, assignment_id, participant_id, attempt_number,
	content, submitted_at, is_late, status, marks_obtained, feedback,
	graded_by, graded_at, late_penalty_percent, bonus_points, final_marks`

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(
		&s.ID, &s.AssignmentID, &s.ParticipantID, &s.AttemptNumber,
		&s.Content, &s.SubmittedAt, &s.IsLate, &s.Status, &s.MarksObtained,
		&s.Feedback, &s.GradedBy, &s.GradedAt, &s.LatePenaltyPercent,
		&s.BonusPoints, &s.FinalMarks,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CountSubmissions returns how many submissions the participant already
// made for the assignment.
func (r *AssignmentRepository) CountSubmissions(ctx context.Context, assignmentID uuid.UUID, participantID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM submissions
		 WHERE assignment_id = $1 AND participant_id = $2`,
		assignmentID, participantID).Scan(&n)
	return n, err
}

// InsertSubmission stores a new submission.
func (r *AssignmentRepository) InsertSubmission(ctx context.Context, s *model.Submission) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO submissions (assignment_id, participant_id, attempt_number,
			content, submitted_at, is_late, status, late_penalty_percent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		s.AssignmentID, s.ParticipantID, s.AttemptNumber,
		s.Content, s.SubmittedAt, s.IsLate, s.Status, s.LatePenaltyPercent,
	).Scan(&s.ID)
}

// GetSubmission retrieves a submission with its review history.
func (r *AssignmentRepository) GetSubmission(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	s, err := scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT reviewed_by, reviewed_at, comments, marks_given
		 FROM submission_reviews WHERE submission_id = $1 ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rev model.SubmissionReview
		if err := rows.Scan(&rev.ReviewedBy, &rev.ReviewedAt, &rev.Comments,
			&rev.MarksGiven); err != nil {
			return nil, err
		}
		s.Reviews = append(s.Reviews, rev)
	}
	return s, rows.Err()
}

// Grade stores the grading outcome and appends the review entry in one
// transaction.
func (r *AssignmentRepository) Grade(ctx context.Context, s *model.Submission, review model.SubmissionReview) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE submissions
		 SET status = $1, marks_obtained = $2, feedback = $3, graded_by = $4,
		     graded_at = $5, bonus_points = $6, final_marks = $7
		 WHERE id = $8`,
		s.Status, s.MarksObtained, s.Feedback, s.GradedBy,
		s.GradedAt, s.BonusPoints, s.FinalMarks, s.ID)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO submission_reviews (submission_id, reviewed_by,
			reviewed_at, comments, marks_given)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, review.ReviewedBy, review.ReviewedAt, review.Comments,
		review.MarksGiven)
	if err != nil {
		return fmt.Errorf("append review: %w", err)
	}

	return tx.Commit(ctx)
}

// SubmissionSummary is one row of an instructor's submission listing.
type SubmissionSummary struct {
	ID            uuid.UUID              `json:"id"`
	ParticipantID int                    `json:"participant_id"`
	AttemptNumber int                    `json:"attempt_number"`
	SubmittedAt   time.Time              `json:"submitted_at"`
	IsLate        bool                   `json:"is_late"`
	Status        model.SubmissionStatus `json:"status"`
	MarksObtained *float64               `json:"marks_obtained"`
	FinalMarks    *float64               `json:"final_marks"`
}

// ListByAssignment retrieves all submissions for an assignment, newest
// first, optionally filtered by status.
func (r *AssignmentRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID, status *model.SubmissionStatus) ([]SubmissionSummary, error) {
	query := `SELECT id, participant_id, attempt_number, submitted_at, is_late,
			status, marks_obtained, final_marks
		 FROM submissions WHERE assignment_id = $1`
	args := []any{assignmentID}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY submitted_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubmissionSummary
	for rows.Next() {
		var s SubmissionSummary
		if err := rows.Scan(&s.ID, &s.ParticipantID, &s.AttemptNumber,
			&s.SubmittedAt, &s.IsLate, &s.Status, &s.MarksObtained,
			&s.FinalMarks); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SubmissionStats are per-assignment submission counters, grouped by
// distinct participant.
type SubmissionStats struct {
	TotalSubmissions int `json:"total_submissions"`
	SubmittedCount   int `json:"submitted_count"`
	GradedCount      int `json:"graded_count"`
	ParticipantCount int `json:"participant_count"`
}

// StatsByAssignment counts an assignment's submissions by status in a
// single statement.
func (r *AssignmentRepository) StatsByAssignment(ctx context.Context, assignmentID uuid.UUID) (SubmissionStats, error) {
	var stats SubmissionStats
	err := r.pool.QueryRow(ctx,
		`SELECT
			count(*),
			count(*) FILTER (WHERE status = 'submitted'),
			count(*) FILTER (WHERE status = 'graded'),
			count(DISTINCT participant_id)
		 FROM submissions WHERE assignment_id = $1`,
		assignmentID).Scan(
		&stats.TotalSubmissions, &stats.SubmittedCount,
		&stats.GradedCount, &stats.ParticipantCount,
	)
	return stats, err
}
