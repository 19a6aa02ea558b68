package status

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/client"
	"github.com/wolfeidau/attendance/internal/history"
	"github.com/wolfeidau/attendance/internal/models"
)

// Source queries the authoritative current-status endpoint.
type Source interface {
	CurrentStatus(ctx context.Context, employeeID string) (*client.StatusPayload, error)
}

// Action is what the machine should do with a reconciliation result.
type Action int

const (
	// ActionKeep leaves the local session untouched.
	ActionKeep Action = iota
	// ActionAdopt replaces the local session with Decision.Session.
	ActionAdopt
	// ActionClear resets the local session to logged out.
	ActionClear
	// ActionRecover asks the recovery resolver to re-link the session.
	ActionRecover
)

func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionAdopt:
		return "adopt"
	case ActionClear:
		return "clear"
	case ActionRecover:
		return "recover"
	default:
		return "unknown"
	}
}

// Result is a normalised current-status response.
type Result struct {
	IsActive        bool
	Record          *models.Record
	LoginTime       *time.Time
	LogoutTime      *time.Time
	LoginImageRef   string
	LogoutImageRef  string
	TimeLeftSeconds *int
}

// Decision is the outcome of reconciling a poll against the local session.
type Decision struct {
	Action  Action
	Session models.SessionState
	Reason  string
}

// Synchronizer polls the status endpoint and reconciles the result with the
// locally cached session.
type Synchronizer struct {
	src    Source
	norm   *history.Normalizer
	budget time.Duration
}

func NewSynchronizer(src Source, norm *history.Normalizer, budget time.Duration) *Synchronizer {
	return &Synchronizer{src: src, norm: norm, budget: budget}
}

// Budget returns the daily work budget new sessions start with.
func (s *Synchronizer) Budget() time.Duration {
	return s.budget
}

// Poll queries the status endpoint and normalises the response.
func (s *Synchronizer) Poll(ctx context.Context, employeeID string) (*Result, error) {
	payload, err := s.src.CurrentStatus(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("status poll failed: %w", err)
	}

	res := &Result{
		IsActive:        payload.IsActive,
		LoginImageRef:   payload.LoginImage,
		LogoutImageRef:  payload.LogoutImage,
		TimeLeftSeconds: payload.TimeLeftSeconds,
	}

	if len(payload.Record) > 0 {
		rec, err := s.norm.Normalize(payload.Record)
		if err != nil {
			// A record we cannot read is treated as absent, which routes an
			// active status through recovery.
			log.Warn().Err(err).Str("employee_id", employeeID).Msg("unreadable record in status response")
		} else {
			res.Record = &rec
		}
	}

	if res.LoginTime, err = s.norm.ParseTime(payload.LoginTime, ""); err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable login time")
	}
	if res.LogoutTime, err = s.norm.ParseTime(payload.LogoutTime, ""); err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable logout time")
	}

	return res, nil
}

// Reconcile decides how the local session should change given a poll
// outcome. It never performs I/O.
func (s *Synchronizer) Reconcile(local models.SessionState, res *Result, pollErr error, now time.Time) Decision {
	loc := s.norm.Location()
	today := now.In(loc).Format(models.DateLayout)

	if pollErr != nil {
		switch {
		case local.SelfConsistent(today, loc):
			return Decision{Action: ActionKeep, Session: local, Reason: "poll failed, cached session is consistent"}
		case local.IsActive:
			return Decision{Action: ActionRecover, Session: local, Reason: "poll failed, cached session is not trustworthy"}
		default:
			return Decision{Action: ActionKeep, Session: local, Reason: "poll failed, already logged out"}
		}
	}

	if !res.IsActive {
		if local.IsActive {
			return Decision{Action: ActionRecover, Session: local, Reason: "server reports no active session"}
		}
		return Decision{Action: ActionClear, Session: s.cleared(local), Reason: "server reports no active session"}
	}

	if res.Record == nil || res.Record.ID == "" {
		return Decision{Action: ActionRecover, Session: local, Reason: "active status without a usable record"}
	}

	if !res.Record.IsOpenOn(today) {
		return Decision{Action: ActionClear, Session: s.cleared(local), Reason: "active record is stale or closed"}
	}

	adopted := s.Adopt(local, *res.Record, now)
	if res.LoginTime != nil {
		adopted.LoginTimestamp = res.LoginTime
	}
	if res.LoginImageRef != "" {
		adopted.CachedLoginImageRef = res.LoginImageRef
	}
	if res.TimeLeftSeconds != nil {
		adopted.RemainingSeconds = max(0, *res.TimeLeftSeconds)
	}

	return Decision{Action: ActionAdopt, Session: adopted, Reason: "server reports an open record for today"}
}

// Adopt links the local session to rec, keeping only CaptureInFlight from
// local. The remaining budget carries over when rec is already the linked
// record; otherwise it is derived from the clock-in time.
func (s *Synchronizer) Adopt(local models.SessionState, rec models.Record, now time.Time) models.SessionState {
	adopted := models.SessionState{
		EmployeeID:          local.EmployeeID,
		IsActive:            true,
		ActiveRecordID:      rec.ID,
		LoginTimestamp:      rec.ClockIn,
		CaptureInFlight:     local.CaptureInFlight,
		CachedLoginImageRef: rec.CheckInImageRef,
	}

	switch {
	case local.IsActive && local.ActiveRecordID == rec.ID:
		adopted.RemainingSeconds = local.RemainingSeconds
		if adopted.CachedLoginImageRef == "" {
			adopted.CachedLoginImageRef = local.CachedLoginImageRef
		}
	case rec.ClockIn != nil:
		elapsed := now.Sub(*rec.ClockIn)
		adopted.RemainingSeconds = max(0, int((s.budget-elapsed)/time.Second))
	default:
		adopted.RemainingSeconds = int(s.budget / time.Second)
	}

	return adopted
}

func (s *Synchronizer) cleared(local models.SessionState) models.SessionState {
	cleared := models.NewSessionState(local.EmployeeID, s.budget)
	cleared.CaptureInFlight = local.CaptureInFlight
	return cleared
}
