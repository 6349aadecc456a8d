package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/campushq/campus-backend/internal/geo"
	"github.com/campushq/campus-backend/internal/model"
)

// ValidateSelfMark runs the ordered constraint checks for a participant
// self-mark. Checks short-circuit: the first failure wins, so a closed
// window is reported before a geofence miss. Eligibility (enrollment,
// session existence) is checked by the caller before this runs.
func ValidateSelfMark(sess *model.Session, device model.DeviceFingerprint, now time.Time) *Rejection {
	if sess.ClosedFor(now) || !sess.Window.Contains(now) {
		return reject(KindWindowClosed, "attendance window for session %s is closed", sess.ID)
	}
	if len(sess.IPAllowlist) > 0 && !ipAllowed(device.IP, sess.IPAllowlist) {
		return reject(KindConstraintViolation, "submissions are not accepted from %s", device.IP)
	}
	if sess.LocationRequired {
		if sess.Location == nil {
			return nil
		}
		if device.Location == nil {
			return reject(KindConstraintViolation, "this session requires your location")
		}
		dist := geo.DistanceM(device.Location.Latitude, device.Location.Longitude, sess.Location.Latitude, sess.Location.Longitude)
		if dist > sess.Location.RadiusM {
			return reject(KindConstraintViolation, "you are %.0fm from the session location, outside the %.0fm radius", dist, sess.Location.RadiusM)
		}
	}
	return nil
}

func ipAllowed(ip string, allowlist []string) bool {
	for _, allowed := range allowlist {
		if ip == allowed {
			return true
		}
	}
	return false
}

// DetectAnomalies runs the shared-device heuristic over a session's
// record set: distinct participants marking from the same IP are
// grouped into one advisory flag per device. Output order follows the
// first appearance of each device in the records.
func DetectAnomalies(records []model.ParticipantRecord) []model.Anomaly {
	byDevice := make(map[string][]int)
	var order []string
	for _, r := range records {
		if r.Device.IP == "" {
			continue
		}
		if _, seen := byDevice[r.Device.IP]; !seen {
			order = append(order, r.Device.IP)
		}
		if !containsInt(byDevice[r.Device.IP], r.ParticipantID) {
			byDevice[r.Device.IP] = append(byDevice[r.Device.IP], r.ParticipantID)
		}
	}

	var anomalies []model.Anomaly
	for _, device := range order {
		participants := byDevice[device]
		if len(participants) < 2 {
			continue
		}
		sort.Ints(participants)
		anomalies = append(anomalies, model.Anomaly{
			Type:           model.AnomalySharedDevice,
			Device:         device,
			ParticipantIDs: participants,
			Count:          len(participants),
			Message:        fmt.Sprintf("%d participants marked attendance from device %s", len(participants), device),
		})
	}
	return anomalies
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// ComputeSessionStats derives the counters for a record set against the
// expected enrollment size. The attendance percentage counts present
// and late as attended.
func ComputeSessionStats(records []model.ParticipantRecord, expected int) model.SessionStats {
	var stats model.SessionStats
	for _, r := range records {
		switch r.Status {
		case model.AttendancePresent:
			stats.PresentCount++
		case model.AttendanceAbsent:
			stats.AbsentCount++
		case model.AttendanceLate:
			stats.LateCount++
		case model.AttendanceExcused:
			stats.ExcusedCount++
		}
	}
	if expected > 0 {
		attended := float64(stats.PresentCount + stats.LateCount)
		stats.Percentage = int(math.Round(attended / float64(expected) * 100))
	}
	return stats
}
