package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfeidau/attendance/internal/models"
)

var (
	// ErrMissingID indicates a raw record carried none of the id aliases
	ErrMissingID = errors.New("record has no id")
	// ErrMissingDate indicates a raw record had neither a date nor a clock-in time
	ErrMissingDate = errors.New("record has no calendar date")
	// ErrClockOutBeforeClockIn indicates a record whose clock-out precedes its clock-in
	ErrClockOutBeforeClockIn = errors.New("record clock-out precedes clock-in")
)

type field int

const (
	fieldID field = iota
	fieldEmployeeID
	fieldDate
	fieldClockIn
	fieldClockOut
	fieldStatus
	fieldLocation
	fieldCheckInImage
	fieldCheckOutImage
	fieldDuration
)

// aliasTable lists, per canonical field, the backend field names it may
// arrive under. The first alias holding a non-null value wins.
var aliasTable = map[field][]string{
	fieldID:            {"id", "attendanceId", "_id"},
	fieldEmployeeID:    {"employeeId", "employee_id", "empId"},
	fieldDate:          {"date", "attDate"},
	fieldClockIn:       {"clockIn", "checkIn"},
	fieldClockOut:      {"clockOut", "checkOut"},
	fieldStatus:        {"status", "attStatus"},
	fieldLocation:      {"location", "checkInLocation"},
	fieldCheckInImage:  {"checkInImage", "clockInImage", "loginImage"},
	fieldCheckOutImage: {"checkOutImage", "clockOutImage", "logoutImage"},
	fieldDuration:      {"duration", "durationSeconds"},
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

var clockLayouts = []string{"15:04:05", "15:04"}

// Normalizer converts raw backend records into models.Record. Zone-less
// timestamps are interpreted in its location.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Location returns the location zone-less timestamps are read in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize applies the alias table to raw.
func (n *Normalizer) Normalize(raw models.RawRecord) (models.Record, error) {
	rec := models.Record{
		ID:               lookupString(raw, fieldID),
		EmployeeID:       lookupString(raw, fieldEmployeeID),
		Status:           models.ParseStatus(lookupString(raw, fieldStatus)),
		Location:         lookupString(raw, fieldLocation),
		CheckInImageRef:  lookupString(raw, fieldCheckInImage),
		CheckOutImageRef: lookupString(raw, fieldCheckOutImage),
	}
	if rec.ID == "" {
		return models.Record{}, ErrMissingID
	}

	if date := lookupString(raw, fieldDate); date != "" {
		d, err := n.ParseDate(date)
		if err != nil {
			return models.Record{}, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		rec.CalendarDate = d
	}

	var err error
	if rec.ClockIn, err = n.ParseTime(lookupString(raw, fieldClockIn), rec.CalendarDate); err != nil {
		return models.Record{}, fmt.Errorf("record %s clock-in: %w", rec.ID, err)
	}
	if rec.ClockOut, err = n.ParseTime(lookupString(raw, fieldClockOut), rec.CalendarDate); err != nil {
		return models.Record{}, fmt.Errorf("record %s clock-out: %w", rec.ID, err)
	}

	if rec.CalendarDate == "" {
		if rec.ClockIn == nil {
			return models.Record{}, fmt.Errorf("record %s: %w", rec.ID, ErrMissingDate)
		}
		rec.CalendarDate = rec.ClockIn.In(n.loc).Format(models.DateLayout)
	}

	if rec.ClockIn != nil && rec.ClockOut != nil && rec.ClockOut.Before(*rec.ClockIn) {
		return models.Record{}, fmt.Errorf("record %s: %w", rec.ID, ErrClockOutBeforeClockIn)
	}

	if secs, ok := lookupSeconds(raw, fieldDuration); ok {
		d := time.Duration(secs) * time.Second
		rec.Duration = &d
	}
	rec.DeriveDuration()

	return rec, nil
}

// RecordID returns the id of a raw record without validating the rest of it.
func RecordID(raw models.RawRecord) string {
	return lookupString(raw, fieldID)
}

// ParseDate accepts a bare date or any timestamp layout and returns the
// calendar date in the normaliser's location.
func (n *Normalizer) ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(models.DateLayout, s, n.loc); err == nil {
		return t.Format(models.DateLayout), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t.In(n.loc).Format(models.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}

// ParseTime parses a timestamp. A time-of-day without a date is anchored to
// date when one is known. Empty input yields nil.
func (n *Normalizer) ParseTime(s, date string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return &t, nil
		}
	}

	if date != "" {
		for _, layout := range clockLayouts {
			if t, err := time.ParseInLocation(models.DateLayout+" "+layout, date+" "+s, n.loc); err == nil {
				return &t, nil
			}
		}
	}

	return nil, fmt.Errorf("unrecognised timestamp %q", s)
}

func lookup(raw models.RawRecord, f field) json.RawMessage {
	for _, name := range aliasTable[f] {
		v, ok := raw[name]
		if !ok {
			continue
		}
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return trimmed
	}
	return nil
}

// lookupString renders strings as-is and numbers in their literal form.
func lookupString(raw models.RawRecord, f field) string {
	v := lookup(raw, f)
	if v == nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var num json.Number
	if err := json.Unmarshal(v, &num); err == nil {
		return num.String()
	}

	return ""
}

func lookupSeconds(raw models.RawRecord, f field) (int64, bool) {
	s := lookupString(raw, f)
	if s == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return int64(secs), true
}
