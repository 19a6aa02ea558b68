package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of Record.CalendarDate.
const DateLayout = "2006-01-02"

// Status is the attendance outcome the server assigned to a record.
type Status string

const (
	StatusPresent Status = "Present"
	StatusLate    Status = "Late"
	StatusAbsent  Status = "Absent"
	StatusUnknown Status = "Unknown"
)

// ParseStatus maps a backend status string onto Status, case-insensitively.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "hadir":
		return StatusPresent
	case "late", "terlambat":
		return StatusLate
	case "absent", "alpha", "alpa":
		return StatusAbsent
	default:
		return StatusUnknown
	}
}

// RawRecord is an attendance record exactly as the backend sent it, before
// field aliases are normalised.
type RawRecord map[string]json.RawMessage

// Record is the canonical, server-owned attendance record.
type Record struct {
	ID               string         `json:"id"`
	EmployeeID       string         `json:"employee_id"`
	CalendarDate     string         `json:"calendar_date"`
	ClockIn          *time.Time     `json:"clock_in,omitempty"`
	ClockOut         *time.Time     `json:"clock_out,omitempty"`
	Status           Status         `json:"status"`
	Location         string         `json:"location,omitempty"`
	CheckInImageRef  string         `json:"check_in_image_ref,omitempty"`
	CheckOutImageRef string         `json:"check_out_image_ref,omitempty"`
	Duration         *time.Duration `json:"duration,omitempty"`
}

// IsOpen returns true when the record has been clocked in but not out.
func (r *Record) IsOpen() bool {
	return r.ClockIn != nil && r.ClockOut == nil
}

// IsOpenOn returns true when the record is open and belongs to the given
// calendar date.
func (r *Record) IsOpenOn(date string) bool {
	return r.IsOpen() && r.CalendarDate == date
}

// EffectiveTime is the clock-in time when set, otherwise midnight of the
// calendar date in loc.
func (r *Record) EffectiveTime(loc *time.Location) time.Time {
	if r.ClockIn != nil {
		return *r.ClockIn
	}
	t, err := time.ParseInLocation(DateLayout, r.CalendarDate, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DeriveDuration fills Duration from the clock times when the backend
// omitted it.
func (r *Record) DeriveDuration() {
	if r.Duration != nil || r.ClockIn == nil || r.ClockOut == nil {
		return
	}
	d := r.ClockOut.Sub(*r.ClockIn)
	r.Duration = &d
}

// FormatDuration renders a duration as hours and minutes, e.g. "8h 30m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Minute)
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}
