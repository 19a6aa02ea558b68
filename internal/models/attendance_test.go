package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_DeriveDuration(t *testing.T) {
	in := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	out := time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC)

	rec := Record{ID: "1", CalendarDate: "2024-01-01", ClockIn: &in, ClockOut: &out}
	rec.DeriveDuration()

	require.NotNil(t, rec.Duration)
	assert.Equal(t, 30600*time.Second, *rec.Duration)
	assert.Equal(t, "8h 30m", FormatDuration(*rec.Duration))
}

func TestRecord_DeriveDurationKeepsBackendValue(t *testing.T) {
	in := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)
	given := 90 * time.Minute

	rec := Record{ClockIn: &in, ClockOut: &out, Duration: &given}
	rec.DeriveDuration()

	assert.Equal(t, given, *rec.Duration)
}

func TestRecord_DeriveDurationOpenRecord(t *testing.T) {
	in := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rec := Record{ClockIn: &in}
	rec.DeriveDuration()

	assert.Nil(t, rec.Duration)
	assert.True(t, rec.IsOpen())
	assert.True(t, rec.IsOpenOn("2024-01-01"))
	assert.False(t, rec.IsOpenOn("2024-01-02"))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Duration
		expected string
	}{
		{name: "zero", input: 0, expected: "0h 0m"},
		{name: "minutes only", input: 45 * time.Minute, expected: "0h 45m"},
		{name: "drops seconds", input: 2*time.Hour + 5*time.Minute + 59*time.Second, expected: "2h 5m"},
		{name: "negative clamps", input: -time.Hour, expected: "0h 0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatDuration(tt.input))
		})
	}
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusPresent, ParseStatus("PRESENT"))
	assert.Equal(t, StatusLate, ParseStatus(" late "))
	assert.Equal(t, StatusAbsent, ParseStatus("absent"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
	assert.Equal(t, StatusUnknown, ParseStatus("on-leave"))
}

func TestSessionState_SelfConsistent(t *testing.T) {
	loc := time.UTC
	login := time.Date(2024, 1, 3, 8, 0, 0, 0, loc)
	logout := login.Add(time.Hour)

	base := SessionState{IsActive: true, ActiveRecordID: "7", LoginTimestamp: &login}
	assert.True(t, base.SelfConsistent("2024-01-03", loc))
	assert.False(t, base.SelfConsistent("2024-01-04", loc), "foreign day")

	noID := base
	noID.ActiveRecordID = ""
	assert.False(t, noID.SelfConsistent("2024-01-03", loc))

	closed := base
	closed.LogoutTimestamp = &logout
	assert.False(t, closed.SelfConsistent("2024-01-03", loc))

	inactive := NewSessionState("e1", 8*time.Hour)
	assert.False(t, inactive.SelfConsistent("2024-01-03", loc))
	assert.Equal(t, 28800, inactive.RemainingSeconds)
}
