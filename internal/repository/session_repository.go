package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campushq/campus-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVersionConflict signals that a conditional record update lost a
// race: the row's version no longer matches the one read. Callers retry
// a bounded number of times before surfacing CONFLICTING_UPDATE.
var ErrVersionConflict = errors.New("record version conflict")

// SessionRepository handles attendance session and participant record
// data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, course_id, owner_id, title, opens_at, closes_at,
	late_threshold_min, location_required, location_lat, location_lng,
	location_radius_m, ip_allowlist, require_unique_device, expected_count,
	state, closed_at, present_count, absent_count, late_count, excused_count,
	attendance_percentage, created_at, updated_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	var lat, lng, radius *float64
	err := row.Scan(
		&s.ID, &s.CourseID, &s.OwnerID, &s.Title,
		&s.Window.OpensAt, &s.Window.ClosesAt,
		&s.LateThresholdMin, &s.LocationRequired, &lat, &lng, &radius,
		&s.IPAllowlist, &s.RequireUniqueDevice, &s.ExpectedCount,
		&s.State, &s.ClosedAt,
		&s.Stats.PresentCount, &s.Stats.AbsentCount, &s.Stats.LateCount,
		&s.Stats.ExcusedCount, &s.Stats.Percentage,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil && radius != nil {
		s.Location = &model.GeoFence{Latitude: *lat, Longitude: *lng, RadiusM: *radius}
	}
	return s, nil
}

// Create inserts a new session in the OPEN state.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	var lat, lng, radius *float64
	if s.Location != nil {
		lat, lng, radius = &s.Location.Latitude, &s.Location.Longitude, &s.Location.RadiusM
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO sessions (course_id, owner_id, title, opens_at, closes_at,
			late_threshold_min, location_required, location_lat, location_lng,
			location_radius_m, ip_allowlist, require_unique_device,
			expected_count, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, created_at, updated_at`,
		s.CourseID, s.OwnerID, s.Title, s.Window.OpensAt, s.Window.ClosesAt,
		s.LateThresholdMin, s.LocationRequired, lat, lng, radius,
		s.IPAllowlist, s.RequireUniqueDevice, s.ExpectedCount, model.SessionStateOpen,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a session by its UUID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// Close transitions a session to CLOSED and stamps closure. The state
// guard makes the operation idempotent at the SQL level: closing an
// already-closed session affects zero rows.
func (r *SessionRepository) Close(ctx context.Context, id uuid.UUID, closedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET state = $1, closed_at = $2, updated_at = NOW()
		 WHERE id = $3 AND state = $4`,
		model.SessionStateClosed, closedAt, id, model.SessionStateOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Cancel transitions an open session to CANCELLED.
func (r *SessionRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET state = $1, updated_at = NOW()
		 WHERE id = $2 AND state = $3`,
		model.SessionStateCancelled, id, model.SessionStateOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecomputeStats refreshes the session's derived counters from the full
// record set in a single statement, so the aggregates always describe a
// consistent snapshot.
func (r *SessionRepository) RecomputeStats(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions s SET
			present_count = c.present,
			absent_count  = c.absent,
			late_count    = c.late,
			excused_count = c.excused,
			attendance_percentage = CASE WHEN s.expected_count > 0
				THEN round((c.present + c.late) * 100.0 / s.expected_count)
				ELSE 0 END,
			updated_at = NOW()
		 FROM (
			SELECT
				count(*) FILTER (WHERE status = 'present') AS present,
				count(*) FILTER (WHERE status = 'absent')  AS absent,
				count(*) FILTER (WHERE status = 'late')    AS late,
				count(*) FILTER (WHERE status = 'excused') AS excused
			FROM participant_records WHERE session_id = $1
		 ) c
		 WHERE s.id = $1`, id)
	if err != nil {
		return fmt.Errorf("recompute session stats: %w", err)
	}
	return nil
}

// ─── Participant records ────────────────────────────────────────────────────

const recordColumns = `id, session_id, participant_id, status, marked_at,
	marked_by, remarks, ip, user_agent, location_lat, location_lng,
	is_modified, version`

func scanRecord(row pgx.Row) (*model.ParticipantRecord, error) {
	rec := &model.ParticipantRecord{}
	var lat, lng *float64
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.ParticipantID, &rec.Status,
		&rec.MarkedAt, &rec.MarkedBy, &rec.Remarks,
		&rec.Device.IP, &rec.Device.UserAgent, &lat, &lng,
		&rec.IsModified, &rec.Version,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		rec.Device.Location = &model.GeoPoint{Latitude: *lat, Longitude: *lng}
	}
	return rec, nil
}

// GetRecord retrieves the record for a (session, participant) pair.
func (r *SessionRepository) GetRecord(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.ParticipantRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM participant_records
		 WHERE session_id = $1 AND participant_id = $2`, sessionID, participantID))
}

// InsertRecord creates a fresh record for the pair. The unique constraint
// on (session_id, participant_id) makes creation races explicit: a
// concurrent insert wins and this call returns pgx.ErrNoRows, which the
// caller treats as "record now exists, correct instead".
func (r *SessionRepository) InsertRecord(ctx context.Context, rec *model.ParticipantRecord) error {
	var lat, lng *float64
	if rec.Device.Location != nil {
		lat, lng = &rec.Device.Location.Latitude, &rec.Device.Location.Longitude
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO participant_records (session_id, participant_id, status,
			marked_at, marked_by, remarks, ip, user_agent, location_lat, location_lng)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id, participant_id) DO NOTHING
		 RETURNING id, version`,
		rec.SessionID, rec.ParticipantID, rec.Status, rec.MarkedAt,
		rec.MarkedBy, rec.Remarks, rec.Device.IP, rec.Device.UserAgent, lat, lng,
	).Scan(&rec.ID, &rec.Version)
}

// CorrectRecord overwrites an existing record's outcome and appends the
// history entry in one transaction. The version predicate prevents lost
// updates: if another writer committed first, no row matches and
// ErrVersionConflict is returned with nothing written.
func (r *SessionRepository) CorrectRecord(ctx context.Context, rec *model.ParticipantRecord, expectedVersion int, mod model.RecordModification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE participant_records
		 SET status = $1, marked_at = $2, marked_by = $3, remarks = $4,
		     is_modified = TRUE, version = version + 1
		 WHERE id = $5 AND version = $6`,
		rec.Status, rec.MarkedAt, rec.MarkedBy, rec.Remarks,
		rec.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO record_modifications (record_id, previous_status,
			new_status, modified_by, modified_at, reason)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, mod.PreviousStatus, mod.NewStatus, mod.ModifiedBy,
		mod.ModifiedAt, mod.Reason)
	if err != nil {
		return fmt.Errorf("append modification: %w", err)
	}

	rec.Version = expectedVersion + 1
	rec.IsModified = true
	return tx.Commit(ctx)
}

// ListRecords retrieves all records of a session, history included.
func (r *SessionRepository) ListRecords(ctx context.Context, sessionID uuid.UUID) ([]model.ParticipantRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+`
		 FROM participant_records
		 WHERE session_id = $1
		 ORDER BY marked_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ParticipantRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachHistory(ctx, sessionID, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *SessionRepository) attachHistory(ctx context.Context, sessionID uuid.UUID, records []model.ParticipantRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT m.record_id, m.previous_status, m.new_status, m.modified_by,
			m.modified_at, m.reason
		 FROM record_modifications m
		 JOIN participant_records pr ON pr.id = m.record_id
		 WHERE pr.session_id = $1
		 ORDER BY m.id ASC`, sessionID)
	if err != nil {
		return err
	}
	defer rows.Close()

	byRecord := make(map[uuid.UUID][]model.RecordModification)
	for rows.Next() {
		var recordID uuid.UUID
		var mod model.RecordModification
		if err := rows.Scan(&recordID, &mod.PreviousStatus, &mod.NewStatus,
			&mod.ModifiedBy, &mod.ModifiedAt, &mod.Reason); err != nil {
			return err
		}
		byRecord[recordID] = append(byRecord[recordID], mod)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range records {
		records[i].History = byRecord[records[i].ID]
	}
	return nil
}

// HistoryEntry is one row of a participant's attendance history: the
// session joined with the participant's record, if any.
type HistoryEntry struct {
	SessionID   uuid.UUID              `json:"session_id"`
	CourseID    uuid.UUID              `json:"course_id"`
	Title       string                 `json:"title"`
	OpensAt     time.Time              `json:"opens_at"`
	State       model.SessionState     `json:"state"`
	Status      model.AttendanceStatus `json:"status"`
	MarkedAt    *time.Time             `json:"marked_at,omitempty"`
	Remarks     string                 `json:"remarks,omitempty"`
	HasRecord   bool                   `json:"-"`
	WindowClose time.Time              `json:"-"`
}

// ListParticipantHistory returns every session of the given course set
// (all courses when courseID is nil) left-joined with the participant's
// record. Sessions with no record surface as absent when closed; the
// caller applies that inference.
func (r *SessionRepository) ListParticipantHistory(ctx context.Context, participantID int, courseID *uuid.UUID, from, to *time.Time) ([]HistoryEntry, error) {
	query := `
		SELECT s.id, s.course_id, s.title, s.opens_at, s.closes_at, s.state,
			pr.status, pr.marked_at, pr.remarks
		FROM sessions s
		JOIN course_enrollments ce
			ON ce.course_id = s.course_id AND ce.participant_id = $1
		LEFT JOIN participant_records pr
			ON pr.session_id = s.id AND pr.participant_id = $1
		WHERE s.state <> 'CANCELLED'`
	args := []any{participantID}

	if courseID != nil {
		args = append(args, *courseID)
		query += fmt.Sprintf(" AND s.course_id = $%d", len(args))
	}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND s.opens_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND s.opens_at <= $%d", len(args))
	}
	query += " ORDER BY s.opens_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var status *model.AttendanceStatus
		var remarks *string
		if err := rows.Scan(&e.SessionID, &e.CourseID, &e.Title, &e.OpensAt,
			&e.WindowClose, &e.State, &status, &e.MarkedAt, &remarks); err != nil {
			return nil, err
		}
		if status != nil {
			e.HasRecord = true
			e.Status = *status
		}
		if remarks != nil {
			e.Remarks = *remarks
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
