package file

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/store"
)

const envelopeVersion = 1

var (
	_ store.SessionStore         = (*Store)(nil)
	_ store.HistorySnapshotStore = (*Store)(nil)
)

// envelope wraps the persisted session with a CRC64-NVME checksum of the
// compacted session JSON.
type envelope struct {
	Version  int             `json:"version"`
	Checksum uint64          `json:"checksum"`
	Session  json.RawMessage `json:"session"`
}

// Store persists session state and history snapshots for one employee under
// a local directory.
type Store struct {
	baseDir    string
	employeeID string
	budget     time.Duration
}

// NewStore creates a new file-backed store.
// If baseDir is empty, uses ~/.attendance/state/
func NewStore(baseDir, employeeID string, budget time.Duration) (*Store, error) {
	if employeeID == "" {
		return nil, errors.New("employee ID is required")
	}

	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".attendance", "state")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Str("employee_id", employeeID).Msg("session store initialized")

	return &Store{baseDir: baseDir, employeeID: employeeID, budget: budget}, nil
}

// Load reads the persisted session. Missing, unparseable, checksum-mismatched
// or foreign-employee snapshots all load as the default.
func (s *Store) Load() models.SessionState {
	def := models.NewSessionState(s.employeeID, s.budget)

	data, err := os.ReadFile(s.sessionPath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("failed to read session snapshot, treating as absent")
		}
		return def
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Msg("unparseable session snapshot, treating as absent")
		return def
	}

	if env.Version != envelopeVersion {
		log.Warn().Int("version", env.Version).Msg("unsupported session snapshot version, treating as absent")
		return def
	}

	payload, err := compact(env.Session)
	if err != nil || checksum(payload) != env.Checksum {
		log.Warn().Msg("session snapshot checksum mismatch, treating as absent")
		return def
	}

	var state models.SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		log.Warn().Err(err).Msg("unparseable session payload, treating as absent")
		return def
	}

	if state.EmployeeID != s.employeeID {
		log.Warn().Str("stored", state.EmployeeID).Msg("session snapshot belongs to another employee, treating as absent")
		return def
	}

	if state.RemainingSeconds < 0 {
		state.RemainingSeconds = 0
	}

	return state
}

// Save writes the session atomically.
func (s *Store) Save(state models.SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	data, err := json.Marshal(envelope{
		Version:  envelopeVersion,
		Checksum: checksum(payload),
		Session:  payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session envelope: %w", err)
	}

	return writeAtomic(s.sessionPath(), data)
}

// Clear removes the persisted session.
func (s *Store) Clear() error {
	if err := os.Remove(s.sessionPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.baseDir
}

func (s *Store) sessionPath() string {
	return filepath.Join(s.baseDir, "session-"+url.PathEscape(s.employeeID)+".json")
}

// writeAtomic writes to a temp file first, then renames it into place.
func writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}

	return nil
}

func compact(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func checksum(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}
