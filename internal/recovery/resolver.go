package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/history"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/status"
)

// Resolver re-links a session that is believed active to a real open record
// when the direct link is missing or untrusted. It never creates records.
type Resolver struct {
	sync    *status.Synchronizer
	history *history.Loader
	loc     *time.Location
}

func NewResolver(sync *status.Synchronizer, loader *history.Loader, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{sync: sync, history: loader, loc: loc}
}

// Resolve returns today's open record, trying the status endpoint first and
// then a fresh history listing. It returns models.ErrNoActiveRecord when
// neither source has one.
func (r *Resolver) Resolve(ctx context.Context, employeeID string, now time.Time) (*models.Record, error) {
	today := now.In(r.loc).Format(models.DateLayout)
	logger := log.With().Str("employee_id", employeeID).Str("date", today).Logger()

	res, err := r.sync.Poll(ctx, employeeID)
	switch {
	case err != nil:
		logger.Debug().Err(err).Msg("recovery: status poll failed")
	case res.IsActive && res.Record != nil && res.Record.IsOpenOn(today):
		logger.Info().Str("record_id", res.Record.ID).Msg("recovery: re-linked from status")
		return res.Record, nil
	default:
		logger.Debug().Bool("active", res.IsActive).Msg("recovery: status has no open record")
	}

	h, err := r.history.Fetch(ctx, employeeID)
	switch {
	case err != nil:
		logger.Debug().Err(err).Msg("recovery: history fetch failed")
	case h.Stale:
		logger.Debug().Msg("recovery: ignoring stale history snapshot")
	default:
		if rec, ok := h.OpenOn(today); ok {
			logger.Info().Str("record_id", rec.ID).Msg("recovery: re-linked from history")
			return &rec, nil
		}
		logger.Debug().Int("records", h.Len()).Msg("recovery: history has no open record")
	}

	logger.Warn().Msg("recovery: no open record found")
	return nil, models.ErrNoActiveRecord
}
