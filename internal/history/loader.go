package history

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/store"
)

// Source fetches an employee's raw attendance records.
type Source interface {
	EmployeeHistory(ctx context.Context, employeeID string) ([]models.RawRecord, error)
}

// OrgSource fetches the organisation-wide raw attendance list.
type OrgSource interface {
	AllAttendance(ctx context.Context) ([]models.RawRecord, error)
}

// History is an ordered, immutable set of normalised records.
type History struct {
	records []models.Record

	// Stale is set when the records come from the last-known-good snapshot
	// because the backend could not be reached.
	Stale     bool
	FetchedAt time.Time
}

// Records yields the records in order. It may be ranged over any number of
// times.
func (h *History) Records() iter.Seq[models.Record] {
	return func(yield func(models.Record) bool) {
		for _, rec := range h.records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Len returns the number of records.
func (h *History) Len() int {
	return len(h.records)
}

// OpenOn returns the first open record dated date.
func (h *History) OpenOn(date string) (models.Record, bool) {
	for rec := range h.Records() {
		if rec.IsOpenOn(date) {
			return rec, true
		}
	}
	return models.Record{}, false
}

// Loader fetches and normalises attendance history, falling back to the last
// known good snapshot when the backend is unreachable.
type Loader struct {
	src       Source
	snapshots store.HistorySnapshotStore
	norm      *Normalizer
	now       func() time.Time
}

func NewLoader(src Source, snapshots store.HistorySnapshotStore, norm *Normalizer) *Loader {
	return &Loader{src: src, snapshots: snapshots, norm: norm, now: time.Now}
}

// Normalizer returns the normaliser applied at the loader boundary.
func (l *Loader) Normalizer() *Normalizer {
	return l.norm
}

// Fetch loads the employee's history. It never mutates server state.
func (l *Loader) Fetch(ctx context.Context, employeeID string) (*History, error) {
	raws, err := l.src.EmployeeHistory(ctx, employeeID)
	if err != nil {
		log.Warn().Err(err).Str("employee_id", employeeID).Msg("history fetch failed, trying snapshot")
		return l.fromSnapshot(employeeID, err)
	}

	records := l.NormalizeAll(raws)
	SortPersonal(records, l.norm.Location())

	if l.snapshots != nil {
		if err := l.snapshots.SaveHistory(employeeID, records); err != nil {
			log.Warn().Err(err).Str("employee_id", employeeID).Msg("failed to save history snapshot")
		}
	}

	return &History{records: records, FetchedAt: l.now()}, nil
}

// FetchDashboard loads the organisation-wide list in dashboard order.
func (l *Loader) FetchDashboard(ctx context.Context, src OrgSource) (*History, error) {
	raws, err := src.AllAttendance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance list: %w", err)
	}

	records := l.NormalizeAll(raws)
	SortDashboard(records, l.norm.Location())

	return &History{records: records, FetchedAt: l.now()}, nil
}

// NormalizeAll normalises raws, skipping records that cannot be normalised.
func (l *Loader) NormalizeAll(raws []models.RawRecord) []models.Record {
	records := make([]models.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := l.norm.Normalize(raw)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping malformed attendance record")
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Remember upserts rec into the employee's snapshot so a just-closed record
// shows up even before the next successful fetch.
func (l *Loader) Remember(employeeID string, rec models.Record) error {
	if l.snapshots == nil {
		return nil
	}

	records, err := l.snapshots.LoadHistory(employeeID)
	if err != nil && !errors.Is(err, store.ErrSnapshotNotFound) {
		return err
	}

	idx := slices.IndexFunc(records, func(r models.Record) bool { return r.ID == rec.ID })
	if idx >= 0 {
		records[idx] = rec
	} else {
		records = append(records, rec)
	}
	SortPersonal(records, l.norm.Location())

	return l.snapshots.SaveHistory(employeeID, records)
}

func (l *Loader) fromSnapshot(employeeID string, fetchErr error) (*History, error) {
	if l.snapshots == nil {
		return nil, fmt.Errorf("failed to fetch history: %w", fetchErr)
	}

	records, err := l.snapshots.LoadHistory(employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", fetchErr)
	}

	return &History{records: records, Stale: true, FetchedAt: l.now()}, nil
}
