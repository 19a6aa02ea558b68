package store

import (
	"errors"

	"github.com/wolfeidau/attendance/internal/models"
)

// ErrSnapshotNotFound is returned when no last-known-good history snapshot exists.
var ErrSnapshotNotFound = errors.New("history snapshot not found")

// SessionStore persists the ephemeral session snapshot on the local device.
// Implementations never perform network I/O.
type SessionStore interface {
	// Load returns the last persisted state, or the logged-out default when
	// nothing usable has been persisted.
	Load() models.SessionState
	// Save overwrites the persisted state.
	Save(state models.SessionState) error
	// Clear removes the persisted state.
	Clear() error
}

// HistorySnapshotStore keeps the last successfully fetched history so it can
// be shown when the backend is unreachable.
type HistorySnapshotStore interface {
	SaveHistory(employeeID string, records []models.Record) error
	LoadHistory(employeeID string) ([]models.Record, error)
}
