package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionState enumerates attendance session states.
type SessionState string

const (
	SessionStateOpen      SessionState = "OPEN"
	SessionStateClosed    SessionState = "CLOSED"
	SessionStateCancelled SessionState = "CANCELLED"
)

// AttendanceStatus enumerates per-participant attendance outcomes.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// ValidAttendanceStatus reports whether s is a recognized outcome.
func ValidAttendanceStatus(s AttendanceStatus) bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// SessionWindow is the bounded interval during which marks are accepted.
type SessionWindow struct {
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
}

// Contains reports whether now falls inside [OpensAt, ClosesAt].
func (w SessionWindow) Contains(now time.Time) bool {
	return !now.Before(w.OpensAt) && !now.After(w.ClosesAt)
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoFence is a circular allowed area around a center point.
type GeoFence struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusM   float64 `json:"radius_m"`
}

// SessionStats are derived counters, recomputed from the record set and
// never mutated independently.
type SessionStats struct {
	PresentCount int `json:"present_count"`
	AbsentCount  int `json:"absent_count"`
	LateCount    int `json:"late_count"`
	ExcusedCount int `json:"excused_count"`
	// Percentage = round((present+late)/expected*100).
	Percentage int `json:"attendance_percentage"`
}

// Session is a time-bounded attendance-taking container owned by an
// instructor. Participants submit at most one record each while the
// window is open.
type Session struct {
	ID       uuid.UUID `json:"id"`
	CourseID uuid.UUID `json:"course_id"`
	OwnerID  int       `json:"owner_id"`
	Title    string    `json:"title"`

	Window SessionWindow `json:"window"`
	// LateThresholdMin is the number of minutes after the window opens
	// during which a mark still counts as present rather than late.
	LateThresholdMin int `json:"late_threshold_min"`

	LocationRequired    bool      `json:"location_required"`
	Location            *GeoFence `json:"location,omitempty"`
	IPAllowlist         []string  `json:"ip_allowlist,omitempty"`
	RequireUniqueDevice bool      `json:"require_unique_device"`

	// ExpectedCount is the enrollment size snapshotted at creation and
	// used as the statistics denominator.
	ExpectedCount int `json:"expected_count"`

	State     SessionState `json:"state"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
	Stats     SessionStats `json:"stats"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ClosedFor reports whether the session must reject marks at the given
// instant. Closedness is dynamic: a session past its window close is
// treated as closed even if the persisted state was never flipped.
func (s *Session) ClosedFor(now time.Time) bool {
	if s.State == SessionStateClosed || s.State == SessionStateCancelled {
		return true
	}
	return now.After(s.Window.ClosesAt)
}

// StatusAt derives the attendance outcome for a self mark at the given
// instant: present up to the late threshold, late afterwards. Callers
// must check the window before calling.
func (s *Session) StatusAt(now time.Time) AttendanceStatus {
	lateAfter := s.Window.OpensAt.Add(time.Duration(s.LateThresholdMin) * time.Minute)
	if now.After(lateAfter) {
		return AttendanceLate
	}
	return AttendancePresent
}

// DeviceFingerprint identifies the submitting device for constraint
// checks and anomaly detection.
type DeviceFingerprint struct {
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Location  *GeoPoint `json:"location,omitempty"`
}

// RecordModification is one append-only history entry for a corrected
// record.
type RecordModification struct {
	PreviousStatus AttendanceStatus `json:"previous_status"`
	NewStatus      AttendanceStatus `json:"new_status"`
	ModifiedBy     int              `json:"modified_by"`
	ModifiedAt     time.Time        `json:"modified_at"`
	Reason         string           `json:"reason"`
}

// ParticipantRecord is one participant's outcome within a session. At
// most one exists per (session, participant); corrections overwrite the
// outcome and append to History, never silently.
type ParticipantRecord struct {
	ID            uuid.UUID            `json:"id"`
	SessionID     uuid.UUID            `json:"session_id"`
	ParticipantID int                  `json:"participant_id"`
	Status        AttendanceStatus     `json:"status"`
	MarkedAt      time.Time            `json:"marked_at"`
	MarkedBy      int                  `json:"marked_by"`
	Remarks       string               `json:"remarks"`
	Device        DeviceFingerprint    `json:"device"`
	IsModified    bool                 `json:"is_modified"`
	Version       int                  `json:"-"`
	History       []RecordModification `json:"modification_history,omitempty"`
}

// AnomalyType enumerates heuristic flags over a session's records.
type AnomalyType string

const (
	// AnomalySharedDevice flags multiple participants marking from the
	// same device fingerprint.
	AnomalySharedDevice AnomalyType = "SHARED_DEVICE"
)

// Anomaly is an advisory flag raised by pattern analysis; it never
// changes session or record state.
type Anomaly struct {
	Type           AnomalyType `json:"type"`
	Device         string      `json:"device"`
	ParticipantIDs []int       `json:"participant_ids"`
	Count          int         `json:"count"`
	Message        string      `json:"message"`
}

// ─── Request DTOs ───────────────────────────────────────────────────────────

// CreateSessionRequest is the payload for creating an attendance session.
type CreateSessionRequest struct {
	CourseID            uuid.UUID `json:"course_id" binding:"required"`
	Title               string    `json:"title" binding:"required,min=3,max=255"`
	OpensAt             time.Time `json:"opens_at" binding:"required"`
	ClosesAt            time.Time `json:"closes_at" binding:"required,gtfield=OpensAt"`
	LateThresholdMin    int       `json:"late_threshold_min" binding:"omitempty,min=0,max=240"`
	LocationRequired    bool      `json:"location_required"`
	Location            *GeoFence `json:"location" binding:"omitempty"`
	IPAllowlist         []string  `json:"ip_allowlist" binding:"omitempty,dive,ip"`
	RequireUniqueDevice bool      `json:"require_unique_device"`
}

// MarkRequest is a participant's self-mark payload. Coordinates are
// required only when the session enforces a geofence.
type MarkRequest struct {
	Latitude  *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

// BulkMarkEntry is one row of an instructor bulk-mark request.
type BulkMarkEntry struct {
	ParticipantID int    `json:"participant_id" binding:"required"`
	Status        string `json:"status" binding:"required,oneof=present absent late excused"`
	Remarks       string `json:"remarks" binding:"omitempty,max=500"`
}

// BulkMarkRequest marks many participants in one call.
type BulkMarkRequest struct {
	Entries []BulkMarkEntry `json:"entries" binding:"required,min=1,dive"`
}
