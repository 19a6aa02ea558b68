package status

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/attendance/internal/client"
	"github.com/wolfeidau/attendance/internal/history"
	"github.com/wolfeidau/attendance/internal/models"
)

const budget = 8 * time.Hour

var now = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	payload *client.StatusPayload
	err     error
}

func (f *fakeSource) CurrentStatus(ctx context.Context, employeeID string) (*client.StatusPayload, error) {
	return f.payload, f.err
}

func raw(t *testing.T, fields map[string]any) models.RawRecord {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	var r models.RawRecord
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func newSync(src Source) *Synchronizer {
	return NewSynchronizer(src, history.NewNormalizer(time.UTC), budget)
}

func ptr[T any](v T) *T { return &v }

func activeLocal(id string) models.SessionState {
	login := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	return models.SessionState{
		EmployeeID:       "emp-1",
		IsActive:         true,
		ActiveRecordID:   id,
		LoginTimestamp:   &login,
		RemainingSeconds: 12000,
	}
}

func TestSynchronizer_Poll(t *testing.T) {
	src := &fakeSource{payload: &client.StatusPayload{
		IsActive:        true,
		LoginTime:       "2024-01-03T08:00:00Z",
		LoginImage:      "in.jpg",
		TimeLeftSeconds: ptr(100),
		Record:          raw(t, map[string]any{"id": 7, "attDate": "2024-01-03", "checkIn": "2024-01-03T08:00:00Z"}),
	}}

	res, err := newSync(src).Poll(context.Background(), "emp-1")
	require.NoError(t, err)

	assert.True(t, res.IsActive)
	require.NotNil(t, res.Record)
	assert.Equal(t, "7", res.Record.ID)
	assert.True(t, res.Record.IsOpenOn("2024-01-03"))
	require.NotNil(t, res.LoginTime)
	assert.Nil(t, res.LogoutTime)
	assert.Equal(t, "in.jpg", res.LoginImageRef)
	assert.Equal(t, 100, *res.TimeLeftSeconds)
}

func TestSynchronizer_PollUnreadableRecord(t *testing.T) {
	src := &fakeSource{payload: &client.StatusPayload{IsActive: true, Record: raw(t, map[string]any{"date": "2024-01-03"})}}

	res, err := newSync(src).Poll(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Nil(t, res.Record)
}

func TestSynchronizer_PollError(t *testing.T) {
	_, err := newSync(&fakeSource{err: models.ErrNetworkFailure}).Poll(context.Background(), "emp-1")
	require.ErrorIs(t, err, models.ErrNetworkFailure)
}

func TestSynchronizer_Reconcile(t *testing.T) {
	in := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	yesterday := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)

	openToday := &models.Record{ID: "7", CalendarDate: "2024-01-03", ClockIn: &in}
	openYesterday := &models.Record{ID: "6", CalendarDate: "2024-01-02", ClockIn: &yesterday}
	closedToday := &models.Record{ID: "7", CalendarDate: "2024-01-03", ClockIn: &in, ClockOut: &out}
	loggedOut := models.NewSessionState("emp-1", budget)

	tests := []struct {
		name    string
		local   models.SessionState
		res     *Result
		pollErr error
		action  Action
	}{
		{name: "open record today is adopted", local: loggedOut, res: &Result{IsActive: true, Record: openToday}, action: ActionAdopt},
		{name: "foreign day record clears", local: activeLocal("6"), res: &Result{IsActive: true, Record: openYesterday}, action: ActionClear},
		{name: "closed record clears", local: activeLocal("7"), res: &Result{IsActive: true, Record: closedToday}, action: ActionClear},
		{name: "active without record recovers", local: loggedOut, res: &Result{IsActive: true}, action: ActionRecover},
		{name: "inactive while locally active recovers", local: activeLocal("7"), res: &Result{}, action: ActionRecover},
		{name: "inactive while logged out clears", local: loggedOut, res: &Result{}, action: ActionClear},
		{name: "poll failure keeps consistent cache", local: activeLocal("7"), pollErr: models.ErrNetworkFailure, action: ActionKeep},
		{name: "poll failure with stale cache recovers", local: func() models.SessionState {
			s := activeLocal("7")
			s.LoginTimestamp = &yesterday
			return s
		}(), pollErr: models.ErrNetworkFailure, action: ActionRecover},
		{name: "poll failure without record id recovers", local: activeLocal(""), pollErr: models.ErrNetworkFailure, action: ActionRecover},
		{name: "poll failure while logged out keeps", local: loggedOut, pollErr: models.ErrNetworkFailure, action: ActionKeep},
	}

	sync := newSync(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sync.Reconcile(tt.local, tt.res, tt.pollErr, now)
			assert.Equal(t, tt.action.String(), d.Action.String())
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestSynchronizer_ReconcileAdoptOverwritesExceptCaptureInFlight(t *testing.T) {
	in := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	local := activeLocal("5")
	local.CaptureInFlight = true
	local.CachedLogoutImageRef = "old-out.jpg"

	d := newSync(nil).Reconcile(local, &Result{
		IsActive:        true,
		Record:          &models.Record{ID: "7", CalendarDate: "2024-01-03", ClockIn: &in, CheckInImageRef: "in.jpg"},
		TimeLeftSeconds: ptr(-5),
	}, nil, now)

	require.Equal(t, ActionAdopt, d.Action)
	assert.Equal(t, "7", d.Session.ActiveRecordID)
	assert.True(t, d.Session.CaptureInFlight)
	assert.Empty(t, d.Session.CachedLogoutImageRef)
	assert.Equal(t, "in.jpg", d.Session.CachedLoginImageRef)
	assert.Equal(t, 0, d.Session.RemainingSeconds, "negative server budget floors at zero")
}

func TestSynchronizer_ReconcileClearKeepsCaptureInFlight(t *testing.T) {
	local := models.NewSessionState("emp-1", budget)
	local.CaptureInFlight = true

	d := newSync(nil).Reconcile(local, &Result{}, nil, now)
	require.Equal(t, ActionClear, d.Action)
	assert.True(t, d.Session.CaptureInFlight)
	assert.Equal(t, 28800, d.Session.RemainingSeconds)
}

func TestSynchronizer_Adopt(t *testing.T) {
	in := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	rec := models.Record{ID: "7", CalendarDate: "2024-01-03", ClockIn: &in}
	sync := newSync(nil)

	t.Run("same record keeps remaining", func(t *testing.T) {
		s := sync.Adopt(activeLocal("7"), rec, now)
		assert.Equal(t, 12000, s.RemainingSeconds)
	})

	t.Run("new record derives remaining from clock-in", func(t *testing.T) {
		s := sync.Adopt(models.NewSessionState("emp-1", budget), rec, now)
		assert.Equal(t, int((4 * time.Hour).Seconds()), s.RemainingSeconds)
		assert.True(t, s.IsActive)
		assert.Equal(t, "emp-1", s.EmployeeID)
	})

	t.Run("budget exhausted floors at zero", func(t *testing.T) {
		s := sync.Adopt(models.NewSessionState("emp-1", budget), rec, now.Add(10*time.Hour))
		assert.Equal(t, 0, s.RemainingSeconds)
	})
}
