package model

import (
	"testing"
	"time"
)

func testSession(state SessionState, opensAt, closesAt time.Time) *Session {
	return &Session{
		State:            state,
		Window:           SessionWindow{OpensAt: opensAt, ClosesAt: closesAt},
		LateThresholdMin: 15,
	}
}

func TestSessionWindowContains(t *testing.T) {
	opens := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	closes := opens.Add(time.Hour)
	w := SessionWindow{OpensAt: opens, ClosesAt: closes}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before open", opens.Add(-time.Second), false},
		{"exactly at open", opens, true},
		{"inside", opens.Add(30 * time.Minute), true},
		{"exactly at close", closes, true},
		{"after close", closes.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.now); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestSessionClosedFor(t *testing.T) {
	opens := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	closes := opens.Add(time.Hour)

	tests := []struct {
		name  string
		state SessionState
		now   time.Time
		want  bool
	}{
		{"open within window", SessionStateOpen, opens.Add(time.Minute), false},
		{"open past window", SessionStateOpen, closes.Add(time.Minute), true},
		{"closed within window", SessionStateClosed, opens.Add(time.Minute), true},
		{"cancelled within window", SessionStateCancelled, opens.Add(time.Minute), true},
		{"open exactly at close", SessionStateOpen, closes, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSession(tt.state, opens, closes)
			if got := s.ClosedFor(tt.now); got != tt.want {
				t.Errorf("ClosedFor(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestSessionStatusAt(t *testing.T) {
	opens := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	s := testSession(SessionStateOpen, opens, opens.Add(time.Hour))

	tests := []struct {
		name string
		now  time.Time
		want AttendanceStatus
	}{
		{"at open", opens, AttendancePresent},
		{"within threshold", opens.Add(10 * time.Minute), AttendancePresent},
		{"exactly at threshold", opens.Add(15 * time.Minute), AttendancePresent},
		{"past threshold", opens.Add(15*time.Minute + time.Second), AttendanceLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.StatusAt(tt.now); got != tt.want {
				t.Errorf("StatusAt(%v) = %q, want %q", tt.now, got, tt.want)
			}
		})
	}
}

func TestValidAttendanceStatus(t *testing.T) {
	for _, s := range []AttendanceStatus{AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused} {
		if !ValidAttendanceStatus(s) {
			t.Errorf("ValidAttendanceStatus(%q) = false, want true", s)
		}
	}
	if ValidAttendanceStatus("tardy") {
		t.Error(`ValidAttendanceStatus("tardy") = true, want false`)
	}
}
