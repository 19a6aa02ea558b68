package memory

import (
	"sync"
	"time"

	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/store"
)

var (
	_ store.SessionStore         = (*SessionStore)(nil)
	_ store.HistorySnapshotStore = (*SessionStore)(nil)
)

// SessionStore implements store.SessionStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type SessionStore struct {
	mu sync.RWMutex

	employeeID string
	budget     time.Duration
	state      *models.SessionState
	history    map[string][]models.Record
	saves      int
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(employeeID string, budget time.Duration) *SessionStore {
	return &SessionStore{
		employeeID: employeeID,
		budget:     budget,
		history:    make(map[string][]models.Record),
	}
}

// Load returns the saved state or the default.
func (s *SessionStore) Load() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return models.NewSessionState(s.employeeID, s.budget)
	}
	return *s.state
}

// Save stores a copy of state.
func (s *SessionStore) Save(state models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := state
	s.state = &clone
	s.saves++
	return nil
}

// Clear drops the saved state.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = nil
	s.saves++
	return nil
}

// Saves returns the number of Save and Clear calls.
func (s *SessionStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// SaveHistory stores a copy of the records.
func (s *SessionStore) SaveHistory(employeeID string, records []models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[employeeID] = append([]models.Record(nil), records...)
	return nil
}

// LoadHistory returns the stored records or store.ErrSnapshotNotFound.
func (s *SessionStore) LoadHistory(employeeID string) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.history[employeeID]
	if !ok {
		return nil, store.ErrSnapshotNotFound
	}
	return append([]models.Record(nil), records...), nil
}
