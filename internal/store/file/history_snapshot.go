package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/store"
)

// SaveHistory stores the records as zstd-compressed JSON.
func (s *Store) SaveHistory(employeeID string, records []models.Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}
	if _, err := enc.Write(payload); err != nil {
		enc.Close()
		return fmt.Errorf("failed to compress history: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush history: %w", err)
	}

	if err := writeAtomic(s.historyPath(employeeID), buf.Bytes()); err != nil {
		return err
	}

	log.Debug().
		Str("employee_id", employeeID).
		Int("records", len(records)).
		Int("original_bytes", len(payload)).
		Int("compressed_bytes", buf.Len()).
		Msg("history snapshot saved")

	return nil
}

// LoadHistory returns the last saved snapshot, or store.ErrSnapshotNotFound.
func (s *Store) LoadHistory(employeeID string) ([]models.Record, error) {
	data, err := os.ReadFile(s.historyPath(employeeID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read history snapshot: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	payload, err := dec.DecodeAll(data, nil)
	if err != nil {
		log.Warn().Err(err).Msg("corrupt history snapshot, treating as absent")
		return nil, store.ErrSnapshotNotFound
	}

	var records []models.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		log.Warn().Err(err).Msg("unparseable history snapshot, treating as absent")
		return nil, store.ErrSnapshotNotFound
	}

	return records, nil
}

func (s *Store) historyPath(employeeID string) string {
	return filepath.Join(s.baseDir, "history-"+url.PathEscape(employeeID)+".json.zst")
}
