package service

import (
	"reflect"
	"testing"
	"time"

	"github.com/campushq/campus-backend/internal/model"
)

var (
	ruleOpens  = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	ruleCloses = ruleOpens.Add(time.Hour)
)

func openSession() *model.Session {
	return &model.Session{
		State:            model.SessionStateOpen,
		Window:           model.SessionWindow{OpensAt: ruleOpens, ClosesAt: ruleCloses},
		LateThresholdMin: 15,
	}
}

func TestValidateSelfMark(t *testing.T) {
	inWindow := ruleOpens.Add(10 * time.Minute)
	device := model.DeviceFingerprint{IP: "10.0.0.5"}

	t.Run("open session accepts", func(t *testing.T) {
		if rej := ValidateSelfMark(openSession(), device, inWindow); rej != nil {
			t.Fatalf("unexpected rejection: %v", rej)
		}
	})

	t.Run("closed state rejects", func(t *testing.T) {
		sess := openSession()
		sess.State = model.SessionStateClosed
		rej := ValidateSelfMark(sess, device, inWindow)
		if rej == nil || rej.Kind != KindWindowClosed {
			t.Fatalf("want %s, got %v", KindWindowClosed, rej)
		}
	})

	t.Run("before open rejects", func(t *testing.T) {
		rej := ValidateSelfMark(openSession(), device, ruleOpens.Add(-time.Minute))
		if rej == nil || rej.Kind != KindWindowClosed {
			t.Fatalf("want %s, got %v", KindWindowClosed, rej)
		}
	})

	t.Run("past window rejects even while open", func(t *testing.T) {
		rej := ValidateSelfMark(openSession(), device, ruleCloses.Add(time.Minute))
		if rej == nil || rej.Kind != KindWindowClosed {
			t.Fatalf("want %s, got %v", KindWindowClosed, rej)
		}
	})

	t.Run("window check wins over constraints", func(t *testing.T) {
		sess := openSession()
		sess.IPAllowlist = []string{"192.168.1.1"}
		rej := ValidateSelfMark(sess, device, ruleCloses.Add(time.Minute))
		if rej == nil || rej.Kind != KindWindowClosed {
			t.Fatalf("closed window should be reported first, got %v", rej)
		}
	})

	t.Run("ip allowlist", func(t *testing.T) {
		sess := openSession()
		sess.IPAllowlist = []string{"10.0.0.5", "10.0.0.6"}
		if rej := ValidateSelfMark(sess, device, inWindow); rej != nil {
			t.Fatalf("allowlisted IP rejected: %v", rej)
		}
		rej := ValidateSelfMark(sess, model.DeviceFingerprint{IP: "172.16.0.9"}, inWindow)
		if rej == nil || rej.Kind != KindConstraintViolation {
			t.Fatalf("want %s, got %v", KindConstraintViolation, rej)
		}
	})

	t.Run("geofence", func(t *testing.T) {
		sess := openSession()
		sess.LocationRequired = true
		sess.Location = &model.GeoFence{Latitude: -8.1689, Longitude: 113.7006, RadiusM: 100}

		rej := ValidateSelfMark(sess, model.DeviceFingerprint{IP: "10.0.0.5"}, inWindow)
		if rej == nil || rej.Kind != KindConstraintViolation {
			t.Fatalf("missing coordinates should be rejected, got %v", rej)
		}

		inside := model.DeviceFingerprint{IP: "10.0.0.5", Location: &model.GeoPoint{Latitude: -8.16895, Longitude: 113.70062}}
		if rej := ValidateSelfMark(sess, inside, inWindow); rej != nil {
			t.Fatalf("point inside radius rejected: %v", rej)
		}

		outside := model.DeviceFingerprint{IP: "10.0.0.5", Location: &model.GeoPoint{Latitude: -8.1750, Longitude: 113.7006}}
		rej = ValidateSelfMark(sess, outside, inWindow)
		if rej == nil || rej.Kind != KindConstraintViolation {
			t.Fatalf("point outside radius should be rejected, got %v", rej)
		}
	})

	t.Run("location required without fence accepts", func(t *testing.T) {
		sess := openSession()
		sess.LocationRequired = true
		if rej := ValidateSelfMark(sess, device, inWindow); rej != nil {
			t.Fatalf("unexpected rejection: %v", rej)
		}
	})
}

func recordFrom(participantID int, ip string) model.ParticipantRecord {
	return model.ParticipantRecord{
		ParticipantID: participantID,
		Status:        model.AttendancePresent,
		Device:        model.DeviceFingerprint{IP: ip},
	}
}

func TestDetectAnomalies(t *testing.T) {
	t.Run("no shared devices", func(t *testing.T) {
		records := []model.ParticipantRecord{
			recordFrom(1, "10.0.0.1"),
			recordFrom(2, "10.0.0.2"),
		}
		if got := DetectAnomalies(records); len(got) != 0 {
			t.Errorf("got %d anomalies, want 0", len(got))
		}
	})

	t.Run("shared device flagged", func(t *testing.T) {
		records := []model.ParticipantRecord{
			recordFrom(7, "10.0.0.1"),
			recordFrom(3, "10.0.0.1"),
			recordFrom(5, "10.0.0.2"),
		}
		got := DetectAnomalies(records)
		if len(got) != 1 {
			t.Fatalf("got %d anomalies, want 1", len(got))
		}
		a := got[0]
		if a.Type != model.AnomalySharedDevice {
			t.Errorf("type = %s, want %s", a.Type, model.AnomalySharedDevice)
		}
		if a.Device != "10.0.0.1" {
			t.Errorf("device = %s, want 10.0.0.1", a.Device)
		}
		if !reflect.DeepEqual(a.ParticipantIDs, []int{3, 7}) {
			t.Errorf("participants = %v, want [3 7]", a.ParticipantIDs)
		}
		if a.Count != 2 {
			t.Errorf("count = %d, want 2", a.Count)
		}
	})

	t.Run("same participant twice is not shared", func(t *testing.T) {
		records := []model.ParticipantRecord{
			recordFrom(1, "10.0.0.1"),
			recordFrom(1, "10.0.0.1"),
		}
		if got := DetectAnomalies(records); len(got) != 0 {
			t.Errorf("got %d anomalies, want 0", len(got))
		}
	})

	t.Run("empty fingerprint skipped", func(t *testing.T) {
		records := []model.ParticipantRecord{
			recordFrom(1, ""),
			recordFrom(2, ""),
		}
		if got := DetectAnomalies(records); len(got) != 0 {
			t.Errorf("got %d anomalies, want 0", len(got))
		}
	})

	t.Run("ordered by first appearance", func(t *testing.T) {
		records := []model.ParticipantRecord{
			recordFrom(1, "10.0.0.9"),
			recordFrom(2, "10.0.0.1"),
			recordFrom(3, "10.0.0.9"),
			recordFrom(4, "10.0.0.1"),
		}
		got := DetectAnomalies(records)
		if len(got) != 2 {
			t.Fatalf("got %d anomalies, want 2", len(got))
		}
		if got[0].Device != "10.0.0.9" || got[1].Device != "10.0.0.1" {
			t.Errorf("order = [%s %s], want [10.0.0.9 10.0.0.1]", got[0].Device, got[1].Device)
		}
	})
}

func TestComputeSessionStats(t *testing.T) {
	records := []model.ParticipantRecord{
		{Status: model.AttendancePresent},
		{Status: model.AttendancePresent},
		{Status: model.AttendanceLate},
		{Status: model.AttendanceAbsent},
		{Status: model.AttendanceExcused},
	}

	stats := ComputeSessionStats(records, 6)
	if stats.PresentCount != 2 || stats.LateCount != 1 || stats.AbsentCount != 1 || stats.ExcusedCount != 1 {
		t.Errorf("counts = %+v, want present=2 late=1 absent=1 excused=1", stats)
	}
	// (2 present + 1 late) / 6 expected = 50%.
	if stats.Percentage != 50 {
		t.Errorf("percentage = %d, want 50", stats.Percentage)
	}

	if got := ComputeSessionStats(nil, 0); got.Percentage != 0 {
		t.Errorf("zero expected percentage = %d, want 0", got.Percentage)
	}

	// 2 of 3 attended rounds to 67.
	twoOfThree := ComputeSessionStats([]model.ParticipantRecord{
		{Status: model.AttendancePresent},
		{Status: model.AttendanceLate},
		{Status: model.AttendanceAbsent},
	}, 3)
	if twoOfThree.Percentage != 67 {
		t.Errorf("percentage = %d, want 67", twoOfThree.Percentage)
	}
}
