package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/store"
)

const budget = 8 * time.Hour

func TestNewStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "state")

		s, err := NewStore(dir, "emp-1", budget)
		require.NoError(t, err)
		assert.Equal(t, dir, s.Dir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("requires employee ID", func(t *testing.T) {
		_, err := NewStore(t.TempDir(), "", budget)
		require.Error(t, err)
	})
}

func TestStore_Load(t *testing.T) {
	t.Run("returns default when nothing persisted", func(t *testing.T) {
		s, err := NewStore(t.TempDir(), "emp-1", budget)
		require.NoError(t, err)

		state := s.Load()
		assert.False(t, state.IsActive)
		assert.Equal(t, "emp-1", state.EmployeeID)
		assert.Equal(t, 28800, state.RemainingSeconds)
	})

	t.Run("round trips saved state", func(t *testing.T) {
		s, err := NewStore(t.TempDir(), "emp-1", budget)
		require.NoError(t, err)

		login := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
		want := models.SessionState{
			EmployeeID:          "emp-1",
			IsActive:            true,
			ActiveRecordID:      "7",
			LoginTimestamp:      &login,
			RemainingSeconds:    12000,
			CachedLoginImageRef: "abc",
		}
		require.NoError(t, s.Save(want))

		got := s.Load()
		assert.True(t, got.IsActive)
		assert.Equal(t, "7", got.ActiveRecordID)
		assert.Equal(t, 12000, got.RemainingSeconds)
		assert.True(t, login.Equal(*got.LoginTimestamp))
		assert.Equal(t, "abc", got.CachedLoginImageRef)
	})

	t.Run("survives a new store instance", func(t *testing.T) {
		dir := t.TempDir()
		s1, err := NewStore(dir, "emp-1", budget)
		require.NoError(t, err)
		require.NoError(t, s1.Save(models.SessionState{EmployeeID: "emp-1", IsActive: true, ActiveRecordID: "9", RemainingSeconds: 5}))

		s2, err := NewStore(dir, "emp-1", budget)
		require.NoError(t, err)
		assert.Equal(t, "9", s2.Load().ActiveRecordID)
	})

	t.Run("garbage file loads as default", func(t *testing.T) {
		s, err := NewStore(t.TempDir(), "emp-1", budget)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(s.sessionPath(), []byte("{not json"), 0600))

		state := s.Load()
		assert.False(t, state.IsActive)
		assert.Equal(t, 28800, state.RemainingSeconds)
	})

	t.Run("tampered payload fails checksum and loads as default", func(t *testing.T) {
		s, err := NewStore(t.TempDir(), "emp-1", budget)
		require.NoError(t, err)
		require.NoError(t, s.Save(models.SessionState{EmployeeID: "emp-1", IsActive: true, ActiveRecordID: "7", RemainingSeconds: 100}))

		data, err := os.ReadFile(s.sessionPath())
		require.NoError(t, err)
		tampered := strings.Replace(string(data), `"remaining_seconds":100`, `"remaining_seconds":999`, 1)
		require.NotEqual(t, string(data), tampered)
		require.NoError(t, os.WriteFile(s.sessionPath(), []byte(tampered), 0600))

		state := s.Load()
		assert.False(t, state.IsActive)
		assert.Empty(t, state.ActiveRecordID)
	})

	t.Run("foreign employee snapshot loads as default", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewStore(dir, "emp-1", budget)
		require.NoError(t, err)
		require.NoError(t, s.Save(models.SessionState{EmployeeID: "emp-2", IsActive: true, ActiveRecordID: "7"}))

		assert.False(t, s.Load().IsActive)
	})

	t.Run("negative remaining is floored", func(t *testing.T) {
		s, err := NewStore(t.TempDir(), "emp-1", budget)
		require.NoError(t, err)
		require.NoError(t, s.Save(models.SessionState{EmployeeID: "emp-1", RemainingSeconds: -4}))

		assert.Equal(t, 0, s.Load().RemainingSeconds)
	})
}

func TestStore_Clear(t *testing.T) {
	s, err := NewStore(t.TempDir(), "emp-1", budget)
	require.NoError(t, err)

	require.NoError(t, s.Clear(), "clearing an empty store is not an error")

	require.NoError(t, s.Save(models.SessionState{EmployeeID: "emp-1", IsActive: true, ActiveRecordID: "7"}))
	require.NoError(t, s.Clear())

	_, err = os.Stat(s.sessionPath())
	assert.True(t, os.IsNotExist(err))
	assert.False(t, s.Load().IsActive)
}

func TestStore_History(t *testing.T) {
	s, err := NewStore(t.TempDir(), "emp-1", budget)
	require.NoError(t, err)

	_, err = s.LoadHistory("emp-1")
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)

	in := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	out := time.Date(2024, 1, 2, 17, 0, 0, 0, time.UTC)
	records := []models.Record{
		{ID: "2", EmployeeID: "emp-1", CalendarDate: "2024-01-02", ClockIn: &in, ClockOut: &out, Status: models.StatusPresent},
		{ID: "1", EmployeeID: "emp-1", CalendarDate: "2024-01-01", Status: models.StatusAbsent},
	}
	require.NoError(t, s.SaveHistory("emp-1", records))

	got, err := s.LoadHistory("emp-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.True(t, out.Equal(*got[0].ClockOut))
	assert.Equal(t, models.StatusAbsent, got[1].Status)

	require.NoError(t, os.WriteFile(s.historyPath("emp-1"), []byte("junk"), 0600))
	_, err = s.LoadHistory("emp-1")
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)
}
