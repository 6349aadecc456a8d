package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campushq/campus-backend/internal/config"
	"github.com/campushq/campus-backend/internal/model"
	"github.com/campushq/campus-backend/internal/notifier"
	"github.com/campushq/campus-backend/internal/repository"
)

// AttendanceService owns the session lifecycle and the participant
// record flow: self marks, instructor corrections, bulk marking,
// closure and the derived views (anomalies, history, statistics).
type AttendanceService struct {
	sessionRepo *repository.SessionRepository
	enrollRepo  *repository.EnrollmentRepository
	dispatcher  notifier.Dispatcher
	rdb         *redis.Client
	retries     int
	log         zerolog.Logger
}

// NewAttendanceService creates a new AttendanceService. retries bounds
// the optimistic upsert loop under write contention.
func NewAttendanceService(
	sessionRepo *repository.SessionRepository,
	enrollRepo *repository.EnrollmentRepository,
	dispatcher notifier.Dispatcher,
	rdb *redis.Client,
	retries int,
	log zerolog.Logger,
) *AttendanceService {
	if retries < 1 {
		retries = 1
	}
	return &AttendanceService{
		sessionRepo: sessionRepo,
		enrollRepo:  enrollRepo,
		dispatcher:  dispatcher,
		rdb:         rdb,
		retries:     retries,
		log:         log.With().Str("component", "attendance_service").Logger(),
	}
}

// CreateSession opens a new attendance session. The enrollment size is
// snapshotted as the statistics denominator, then every enrolled
// participant is notified.
func (s *AttendanceService) CreateSession(ctx context.Context, ownerID int, req *model.CreateSessionRequest) (*model.Session, error) {
	expected, err := s.enrollRepo.CountByCourse(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}

	sess := &model.Session{
		CourseID:            req.CourseID,
		OwnerID:             ownerID,
		Title:               req.Title,
		Window:              model.SessionWindow{OpensAt: req.OpensAt, ClosesAt: req.ClosesAt},
		LateThresholdMin:    req.LateThresholdMin,
		LocationRequired:    req.LocationRequired,
		Location:            req.Location,
		IPAllowlist:         req.IPAllowlist,
		RequireUniqueDevice: req.RequireUniqueDevice,
		ExpectedCount:       expected,
		State:               model.SessionStateOpen,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.notifyEnrolled(ctx, req.CourseID, model.Notification{
		Type:       model.NotificationAttendance,
		Title:      "Attendance open",
		Message:    fmt.Sprintf("Attendance for %q is open until %s", sess.Title, sess.Window.ClosesAt.Format(time.RFC3339)),
		EntityType: "session",
		EntityID:   sess.ID.String(),
	})
	return sess, nil
}

// GetSession retrieves a session by ID.
func (s *AttendanceService) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.sessionRepo.GetByID(ctx, id)
}

// Mark records a participant's own attendance. The outcome (present or
// late) is derived from the submission instant, never client-supplied.
// Re-marking an existing record becomes a correction with history.
func (s *AttendanceService) Mark(ctx context.Context, sessionID uuid.UUID, participantID int, device model.DeviceFingerprint) (*model.ParticipantRecord, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enrollRepo.IsEnrolled(ctx, sess.CourseID, participantID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, reject(KindNotEligible, "participant %d is not enrolled in this course", participantID)
	}

	now := time.Now()
	if rej := ValidateSelfMark(sess, device, now); rej != nil {
		return nil, rej
	}

	rec, _, err := s.upsertRecord(ctx, sess, participantID, sess.StatusAt(now), "", participantID, device, now)
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.RecomputeStats(ctx, sessionID); err != nil {
		return nil, err
	}
	s.publishMark(ctx, sess, rec)
	return rec, nil
}

// MarkByProxy records or corrects one participant's attendance on
// behalf of the session owner. The status is explicit and device
// constraints do not apply, but a closed session still rejects.
func (s *AttendanceService) MarkByProxy(ctx context.Context, sessionID uuid.UUID, actorID int, entry model.BulkMarkEntry, device model.DeviceFingerprint) (*model.ParticipantRecord, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != actorID {
		return nil, reject(KindNotEligible, "only the session owner can mark on behalf of participants")
	}
	rec, err := s.proxyMark(ctx, sess, actorID, entry, device, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.RecomputeStats(ctx, sessionID); err != nil {
		return nil, err
	}
	s.publishMark(ctx, sess, rec)
	return rec, nil
}

// BulkMarkResult partitions a bulk-mark call into the records that were
// written and the entries that were refused, each with its reason.
type BulkMarkResult struct {
	Marked []model.ParticipantRecord `json:"marked"`
	Failed []BulkMarkFailure         `json:"failed"`
}

// BulkMarkFailure is one refused bulk-mark entry.
type BulkMarkFailure struct {
	ParticipantID int    `json:"participant_id"`
	Reason        string `json:"reason"`
}

// BulkMark applies many proxy marks in one call. Entries fail
// independently; one bad participant never aborts the batch. Statistics
// are recomputed once after the batch.
func (s *AttendanceService) BulkMark(ctx context.Context, sessionID uuid.UUID, actorID int, req *model.BulkMarkRequest, device model.DeviceFingerprint) (*BulkMarkResult, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != actorID {
		return nil, reject(KindNotEligible, "only the session owner can mark on behalf of participants")
	}

	now := time.Now()
	result := &BulkMarkResult{}
	for _, entry := range req.Entries {
		rec, err := s.proxyMark(ctx, sess, actorID, entry, device, now)
		if err != nil {
			reason := "internal error"
			if rej, ok := AsRejection(err); ok {
				reason = rej.Reason
			} else {
				s.log.Error().Err(err).Int("participant_id", entry.ParticipantID).Msg("Bulk mark entry failed")
			}
			result.Failed = append(result.Failed, BulkMarkFailure{ParticipantID: entry.ParticipantID, Reason: reason})
			continue
		}
		result.Marked = append(result.Marked, *rec)
	}

	if len(result.Marked) > 0 {
		if err := s.sessionRepo.RecomputeStats(ctx, sessionID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *AttendanceService) proxyMark(ctx context.Context, sess *model.Session, actorID int, entry model.BulkMarkEntry, device model.DeviceFingerprint, now time.Time) (*model.ParticipantRecord, error) {
	status := model.AttendanceStatus(entry.Status)
	if !model.ValidAttendanceStatus(status) {
		return nil, reject(KindConstraintViolation, "unknown attendance status %q", entry.Status)
	}
	if sess.ClosedFor(now) {
		return nil, reject(KindWindowClosed, "session %s is closed", sess.ID)
	}

	enrolled, err := s.enrollRepo.IsEnrolled(ctx, sess.CourseID, entry.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, reject(KindNotEligible, "participant %d is not enrolled in this course", entry.ParticipantID)
	}

	rec, created, err := s.upsertRecord(ctx, sess, entry.ParticipantID, status, entry.Remarks, actorID, device, now)
	if err != nil {
		return nil, err
	}

	verb := "marked"
	if !created {
		verb = "corrected to"
	}
	s.dispatcher.Dispatch(ctx, model.Notification{
		RecipientID: entry.ParticipantID,
		Type:        model.NotificationAttendance,
		Title:       "Attendance updated",
		Message:     fmt.Sprintf("Your attendance for %q was %s %s", sess.Title, verb, status),
		EntityType:  "session",
		EntityID:    sess.ID.String(),
	})
	return rec, nil
}

// upsertRecord is the write-once-then-correct core. A missing record is
// inserted; losing the creation race or the version check falls through
// to the next iteration, so concurrent writers each land exactly one
// outcome write and every overwrite leaves a history entry.
func (s *AttendanceService) upsertRecord(ctx context.Context, sess *model.Session, participantID int, status model.AttendanceStatus, remarks string, actorID int, device model.DeviceFingerprint, now time.Time) (*model.ParticipantRecord, bool, error) {
	for i := 0; i < s.retries; i++ {
		existing, err := s.sessionRepo.GetRecord(ctx, sess.ID, participantID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("get record: %w", err)
		}

		if existing == nil || errors.Is(err, pgx.ErrNoRows) {
			rec := &model.ParticipantRecord{
				SessionID:     sess.ID,
				ParticipantID: participantID,
				Status:        status,
				MarkedAt:      now,
				MarkedBy:      actorID,
				Remarks:       remarks,
				Device:        device,
			}
			err := s.sessionRepo.InsertRecord(ctx, rec)
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost the creation race; the record exists now.
				continue
			}
			if err != nil {
				return nil, false, fmt.Errorf("insert record: %w", err)
			}
			return rec, true, nil
		}

		mod := model.RecordModification{
			PreviousStatus: existing.Status,
			NewStatus:      status,
			ModifiedBy:     actorID,
			ModifiedAt:     now,
			Reason:         correctionReason(remarks, actorID, participantID),
		}
		existing.Status = status
		existing.MarkedAt = now
		existing.MarkedBy = actorID
		existing.Remarks = remarks
		err = s.sessionRepo.CorrectRecord(ctx, existing, existing.Version, mod)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("correct record: %w", err)
		}
		existing.History = append(existing.History, mod)
		return existing, false, nil
	}
	return nil, false, reject(KindConflictingUpdate, "record for participant %d is being updated concurrently, retry", participantID)
}

func correctionReason(remarks string, actorID, participantID int) string {
	if remarks != "" {
		return remarks
	}
	if actorID == participantID {
		return "re-marked by participant"
	}
	return "corrected by instructor"
}

// CloseSession freezes the session: no further record writes are
// accepted, a final statistics pass runs and the closure instant is
// stamped. Closing an already-closed session is a no-op success.
func (s *AttendanceService) CloseSession(ctx context.Context, sessionID uuid.UUID, actorID int) (*model.Session, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != actorID {
		return nil, reject(KindNotEligible, "only the session owner can close it")
	}
	switch sess.State {
	case model.SessionStateClosed:
		return sess, nil
	case model.SessionStateCancelled:
		return nil, reject(KindInvalidTransition, "cancelled sessions cannot be closed")
	}

	if _, err := s.sessionRepo.Close(ctx, sessionID, time.Now()); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	if err := s.sessionRepo.RecomputeStats(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.sessionRepo.GetByID(ctx, sessionID)
}

// CancelSession voids an open session. Its records are kept but the
// session no longer counts toward participant statistics.
func (s *AttendanceService) CancelSession(ctx context.Context, sessionID uuid.UUID, actorID int) (*model.Session, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != actorID {
		return nil, reject(KindNotEligible, "only the session owner can cancel it")
	}
	switch sess.State {
	case model.SessionStateCancelled:
		return sess, nil
	case model.SessionStateClosed:
		return nil, reject(KindInvalidTransition, "closed sessions cannot be cancelled")
	}
	if _, err := s.sessionRepo.Cancel(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("cancel session: %w", err)
	}
	return s.sessionRepo.GetByID(ctx, sessionID)
}

// Records lists a session's records with modification history, owner
// only.
func (s *AttendanceService) Records(ctx context.Context, sessionID uuid.UUID, actorID int) ([]model.ParticipantRecord, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != actorID {
		return nil, reject(KindNotEligible, "only the session owner can list records")
	}
	return s.sessionRepo.ListRecords(ctx, sessionID)
}

// Anomalies runs pattern analysis over the session's record set. The
// flags are advisory and recomputed on every call.
func (s *AttendanceService) Anomalies(ctx context.Context, sessionID uuid.UUID, actorID int) ([]model.Anomaly, error) {
	records, err := s.Records(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	return DetectAnomalies(records), nil
}

// HistoryStats summarizes a participant's attendance across sessions.
type HistoryStats struct {
	TotalSessions int `json:"total_sessions"`
	PresentCount  int `json:"present_count"`
	LateCount     int `json:"late_count"`
	AbsentCount   int `json:"absent_count"`
	ExcusedCount  int `json:"excused_count"`
	// Percentage counts present and late as attended.
	Percentage int `json:"attendance_percentage"`
}

// AttendanceHistory is a participant's per-session history plus the
// aggregate statistics over it.
type AttendanceHistory struct {
	Entries []repository.HistoryEntry `json:"entries"`
	Stats   HistoryStats              `json:"statistics"`
}

// History enumerates a participant's attendance across sessions,
// optionally filtered by course and date range. A closed session with
// no record surfaces as absent; sessions still open with no record are
// omitted since their outcome is not yet determined.
func (s *AttendanceService) History(ctx context.Context, participantID int, courseID *uuid.UUID, from, to *time.Time) (*AttendanceHistory, error) {
	raw, err := s.sessionRepo.ListParticipantHistory(ctx, participantID, courseID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	now := time.Now()
	history := &AttendanceHistory{Entries: []repository.HistoryEntry{}}
	for _, e := range raw {
		if !e.HasRecord {
			closed := e.State == model.SessionStateClosed || now.After(e.WindowClose)
			if !closed {
				continue
			}
			e.Status = model.AttendanceAbsent
		}
		history.Entries = append(history.Entries, e)

		history.Stats.TotalSessions++
		switch e.Status {
		case model.AttendancePresent:
			history.Stats.PresentCount++
		case model.AttendanceLate:
			history.Stats.LateCount++
		case model.AttendanceAbsent:
			history.Stats.AbsentCount++
		case model.AttendanceExcused:
			history.Stats.ExcusedCount++
		}
	}
	if history.Stats.TotalSessions > 0 {
		attended := history.Stats.PresentCount + history.Stats.LateCount
		history.Stats.Percentage = int(float64(attended)/float64(history.Stats.TotalSessions)*100 + 0.5)
	}
	return history, nil
}

func (s *AttendanceService) notifyEnrolled(ctx context.Context, courseID uuid.UUID, n model.Notification) {
	ids, err := s.enrollRepo.ListParticipantIDs(ctx, courseID)
	if err != nil {
		s.log.Error().Err(err).Str("course_id", courseID.String()).Msg("List enrolled for notification failed")
		return
	}
	for _, id := range ids {
		n.RecipientID = id
		s.dispatcher.Dispatch(ctx, n)
	}
}

// publishMark streams a mark event to the session's live monitor
// channel. Monitoring is best effort and never fails the mark.
func (s *AttendanceService) publishMark(ctx context.Context, sess *model.Session, rec *model.ParticipantRecord) {
	if s.rdb == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"event":          "mark",
		"session_id":     sess.ID.String(),
		"participant_id": rec.ParticipantID,
		"status":         rec.Status,
		"marked_at":      rec.MarkedAt,
		"is_modified":    rec.IsModified,
	})
	if err := s.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(sess.ID.String()), payload).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Publish mark event failed")
	}
}
