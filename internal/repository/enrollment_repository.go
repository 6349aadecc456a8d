package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository reads the enrollment directory. The catalog
// itself is managed elsewhere; the engine only needs membership checks
// and the enrollment count used as the statistics denominator.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// CountByCourse returns the number of participants enrolled in a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM course_enrollments WHERE course_id = $1`,
		courseID).Scan(&n)
	return n, err
}

// IsEnrolled reports whether the participant belongs to the course.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, courseID uuid.UUID, participantID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM course_enrollments
			WHERE course_id = $1 AND participant_id = $2
		 )`, courseID, participantID).Scan(&exists)
	return exists, err
}

// ListParticipantIDs returns all participant ids enrolled in a course.
func (r *EnrollmentRepository) ListParticipantIDs(ctx context.Context, courseID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT participant_id FROM course_enrollments
		 WHERE course_id = $1 ORDER BY participant_id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
