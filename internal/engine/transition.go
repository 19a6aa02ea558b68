package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/status"
)

// apply is the single transition function of the machine. It must be called
// with e.mu held and never performs network or device I/O; those are
// returned as effects.
func (e *Engine) apply(ev event) (effects, error) {
	switch ev := ev.(type) {
	case cacheLoaded:
		return e.onCacheLoaded(ev), nil
	case reconciled:
		return e.onReconciled(ev), nil
	case recovered:
		return e.onRecovered(ev)
	case userAction:
		return e.onUserAction(ev)
	case tick:
		e.onTick(ev)
		return effects{}, nil
	default:
		return effects{}, fmt.Errorf("unknown event %T", ev)
	}
}

func (e *Engine) onCacheLoaded(ev cacheLoaded) effects {
	var fx effects

	// Nothing can be in flight in a fresh process.
	e.session = ev.session
	e.session.CaptureInFlight = false
	e.trusted = false
	e.ui = UIState{}
	e.rev++

	if e.session.IsActive {
		e.enterLoggedIn(&fx)
	} else {
		e.state = StateLoggedOut
		e.stopCountdown(&fx)
	}
	e.persist()

	log.Info().
		Str("state", e.state.String()).
		Str("record_id", e.session.ActiveRecordID).
		Int("remaining", e.session.RemainingSeconds).
		Msg("session restored")

	return fx
}

func (e *Engine) onReconciled(ev reconciled) effects {
	var fx effects
	d := ev.decision

	if e.session.CaptureInFlight || e.state.capturing() {
		log.Debug().Str("action", d.Action.String()).Msg("capture in flight, discarding reconciliation")
		return fx
	}
	if ev.rev != e.rev {
		log.Debug().Str("action", d.Action.String()).Msg("session changed during poll, discarding reconciliation")
		return fx
	}

	log.Debug().Str("action", d.Action.String()).Str("reason", d.Reason).Msg("reconciled session")

	switch d.Action {
	case status.ActionKeep:
		if e.session.SelfConsistent(e.today(), e.loc) {
			e.trusted = true
		}
		if ev.pollErr != nil {
			e.notify(NoticeWarn, "attendance server unavailable, showing cached session", ev.pollErr)
		}
	case status.ActionAdopt:
		e.link(&fx, d.Session)
	case status.ActionClear:
		wasLoggedIn := e.state == StateLoggedIn
		e.session = d.Session
		e.trusted = false
		e.state = StateLoggedOut
		e.rev++
		if wasLoggedIn {
			e.stopCountdown(&fx)
			e.notify(NoticeWarn, "session is no longer active on the server", nil)
		}
		e.persist()
	}

	return fx
}

func (e *Engine) onRecovered(ev recovered) (effects, error) {
	var fx effects

	if e.session.CaptureInFlight || e.state.capturing() {
		log.Debug().Msg("capture in flight, discarding recovery result")
		if ev.checkOut {
			return fx, ErrCaptureInProgress
		}
		return fx, nil
	}
	if !ev.checkOut && ev.rev != e.rev {
		log.Debug().Msg("session changed during recovery, discarding result")
		return fx, nil
	}

	if ev.err != nil {
		// Already logged out: the last completed session stays cached.
		if ev.checkOut && e.state == StateLoggedOut {
			e.notify(NoticeWarn, "no open attendance record, check in first", ev.err)
			return fx, models.ErrNoActiveRecord
		}

		wasLoggedIn := e.state == StateLoggedIn
		e.session = models.NewSessionState(e.cfg.EmployeeID, e.budget)
		e.trusted = false
		e.state = StateLoggedOut
		e.rev++
		if wasLoggedIn {
			e.stopCountdown(&fx)
		}
		if err := e.store.Clear(); err != nil {
			log.Error().Err(err).Msg("failed to clear session")
		}

		if ev.checkOut {
			e.notify(NoticeWarn, "no open attendance record, check in first", ev.err)
			return fx, models.ErrNoActiveRecord
		}
		if wasLoggedIn {
			e.notify(NoticeWarn, "no open attendance record found, logged out", ev.err)
		}
		return fx, nil
	}

	e.link(&fx, e.syncer.Adopt(e.session, *ev.record, e.now()))
	return fx, nil
}

func (e *Engine) onUserAction(ev userAction) (effects, error) {
	var fx effects

	log.Debug().Str("action", ev.kind.String()).Str("state", e.state.String()).Msg("user action")

	switch ev.kind {
	case actionCheckIn:
		switch {
		case e.state == StateLoggedIn:
			e.notify(NoticeInfo, "already checked in", nil)
			return fx, nil
		case e.state.capturing():
			return fx, ErrCaptureInProgress
		}
		e.beginCapture(&fx, StateAwaitingCheckInCapture)

	case actionCheckOut:
		switch {
		case e.state.capturing():
			return fx, ErrCaptureInProgress
		case e.state != StateLoggedIn || e.session.ActiveRecordID == "":
			e.notify(NoticeWarn, "no open attendance record, check in first", nil)
			return fx, models.ErrNoActiveRecord
		}
		e.stopCountdown(&fx)
		e.beginCapture(&fx, StateAwaitingCheckOutCapture)

	case actionCancel:
		if !e.state.capturing() {
			return fx, nil
		}
		if e.ui.Submitting {
			return fx, ErrSubmissionInProgress
		}
		if e.ui.Grabbing {
			log.Info().Str("state", e.state.String()).Msg("capture cancelled while waiting for frame")
		}
		fx.cancelGrab = e.grabCancel
		e.endCapture(&fx)
		e.revert(&fx)
		e.persist()

	case actionBeginCapture:
		switch {
		case !e.state.capturing():
			return fx, ErrNotCapturing
		case e.ui.Grabbing || e.ui.Submitting:
			return fx, ErrCaptureInProgress
		}
		e.grabSeq++
		e.grabCancel = ev.cancel
		e.ui.Grabbing = true
		fx.submit = &submission{
			grab:           e.grabSeq,
			checkOut:       e.state == StateAwaitingCheckOutCapture,
			recordID:       e.session.ActiveRecordID,
			loginTimestamp: e.session.LoginTimestamp,
		}

	case actionSubmit:
		if !e.state.capturing() || !e.ui.Grabbing || ev.grab != e.grabSeq {
			return fx, ErrCaptureCancelled
		}
		e.ui.Grabbing = false
		e.ui.Submitting = true
		e.grabCancel = nil

	case actionCaptureFailed:
		if ev.grab != 0 && (ev.grab != e.grabSeq || !e.ui.Grabbing) {
			return fx, ErrCaptureCancelled
		}
		if !e.state.capturing() {
			return fx, nil
		}
		e.endCapture(&fx)
		e.notify(NoticeError, "photo capture failed", ev.err)
		e.revert(&fx)
		e.persist()

	case actionCheckInDone:
		if e.state != StateAwaitingCheckInCapture {
			log.Warn().Str("state", e.state.String()).Msg("check-in result outside check-in capture")
			return fx, nil
		}
		e.endCapture(&fx)
		if ev.err != nil {
			e.notify(NoticeError, "check-in failed", ev.err)
			e.state = StateLoggedOut
			e.persist()
			return fx, nil
		}
		e.checkedIn(&fx, ev)

	case actionCheckOutDone:
		if e.state != StateAwaitingCheckOutCapture {
			log.Warn().Str("state", e.state.String()).Msg("check-out result outside check-out capture")
			return fx, nil
		}
		e.endCapture(&fx)
		if ev.err != nil {
			e.notify(NoticeError, "check-out failed, try again", ev.err)
			e.enterLoggedIn(&fx)
			e.persist()
			return fx, nil
		}
		e.checkedOut(&fx, ev)
	}

	return fx, nil
}

func (e *Engine) onTick(ev tick) {
	if ev.gen != e.timerGen || e.state != StateLoggedIn {
		return
	}
	e.session.RemainingSeconds = ev.remaining
	e.persist()
}

// link adopts session as the trusted active session, entering LoggedIn and
// restarting the countdown when needed. A server budget within
// countdownDrift seconds of the running countdown leaves it running.
func (e *Engine) link(fx *effects, session models.SessionState) {
	wasLoggedIn := e.state == StateLoggedIn
	previous := e.session

	e.session = session
	e.trusted = true
	e.rev++

	switch {
	case !wasLoggedIn || previous.ActiveRecordID != session.ActiveRecordID:
		e.enterLoggedIn(fx)
	case abs(previous.RemainingSeconds-session.RemainingSeconds) > countdownDrift:
		log.Debug().
			Int("local", previous.RemainingSeconds).
			Int("server", session.RemainingSeconds).
			Msg("countdown drifted from server, restarting")
		e.enterLoggedIn(fx)
	default:
		e.session.RemainingSeconds = previous.RemainingSeconds
	}
	e.persist()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (e *Engine) checkedIn(fx *effects, ev userAction) {
	now := e.now()

	id, imageRef := ev.recordID, ev.image.Ref
	if ev.record != nil {
		id = ev.record.ID
		if ev.record.CheckInImageRef != "" {
			imageRef = ev.record.CheckInImageRef
		}
	}

	e.session = models.SessionState{
		EmployeeID:          e.cfg.EmployeeID,
		IsActive:            true,
		ActiveRecordID:      id,
		LoginTimestamp:      &now,
		RemainingSeconds:    int(e.budget / time.Second),
		CachedLoginImageRef: imageRef,
	}
	e.trusted = id != ""
	if id == "" {
		e.notify(NoticeWarn, "checked in, the record will be located at check-out", nil)
	}

	e.enterLoggedIn(fx)
	e.persist()

	log.Info().Str("record_id", id).Msg("checked in")
}

func (e *Engine) checkedOut(fx *effects, ev userAction) {
	now := e.now()
	closed := e.closedRecord(ev, now)

	e.ui.Summary = &Summary{
		RecordID: closed.ID,
		CheckIn:  *closed.ClockIn,
		CheckOut: *closed.ClockOut,
		Duration: *closed.Duration,
	}
	fx.remember = &closed

	cleared := models.NewSessionState(e.cfg.EmployeeID, e.budget)
	cleared.LogoutTimestamp = &now
	cleared.CachedLogoutImageRef = closed.CheckOutImageRef
	e.session = cleared
	e.trusted = false
	e.state = StateLoggedOut
	e.persist()

	log.Info().Str("record_id", closed.ID).Str("duration", models.FormatDuration(*closed.Duration)).Msg("checked out")
}

// closedRecord builds the record to display after a check-out. The duration
// is measured from the login timestamp recorded at check-in.
func (e *Engine) closedRecord(ev userAction, now time.Time) models.Record {
	var rec models.Record
	if ev.record != nil {
		rec = *ev.record
	}
	if rec.ID == "" {
		rec.ID = e.session.ActiveRecordID
	}
	if rec.EmployeeID == "" {
		rec.EmployeeID = e.cfg.EmployeeID
	}
	if rec.Location == "" {
		rec.Location = e.cfg.Location
	}
	if rec.CheckInImageRef == "" {
		rec.CheckInImageRef = e.session.CachedLoginImageRef
	}
	if rec.CheckOutImageRef == "" {
		rec.CheckOutImageRef = ev.image.Ref
	}

	login := e.session.LoginTimestamp
	if login == nil {
		login = rec.ClockIn
	}
	if login == nil {
		login = &now
	}
	if rec.ClockIn == nil {
		rec.ClockIn = login
	}
	if rec.ClockOut == nil {
		rec.ClockOut = &now
	}
	if rec.CalendarDate == "" {
		rec.CalendarDate = login.In(e.loc).Format(models.DateLayout)
	}

	d := max(0, now.Sub(*login))
	rec.Duration = &d

	return rec
}

func (e *Engine) beginCapture(fx *effects, next State) {
	e.state = next
	e.session.CaptureInFlight = true
	e.ui.CameraOpen = true
	e.rev++
	fx.openCamera = true
	e.persist()
}

func (e *Engine) endCapture(fx *effects) {
	e.session.CaptureInFlight = false
	e.ui.CameraOpen = false
	e.ui.Grabbing = false
	e.ui.Submitting = false
	e.grabCancel = nil
	e.rev++
	fx.closeCamera = true
}

// revert returns from a capture state to the stable state it started from.
func (e *Engine) revert(fx *effects) {
	if e.state == StateAwaitingCheckOutCapture {
		e.enterLoggedIn(fx)
		return
	}
	e.state = StateLoggedOut
}

func (e *Engine) enterLoggedIn(fx *effects) {
	e.state = StateLoggedIn
	e.timerGen++
	fx.stopTimer = false
	fx.startTimer = true
	fx.timerGen = e.timerGen
	fx.remaining = e.session.RemainingSeconds
}

func (e *Engine) stopCountdown(fx *effects) {
	e.timerGen++
	fx.startTimer = false
	fx.stopTimer = true
}

func (e *Engine) persist() {
	if err := e.store.Save(e.session); err != nil {
		log.Error().Err(err).Msg("failed to persist session")
	}
}

func (e *Engine) notify(level NoticeLevel, msg string, err error) {
	if n := len(e.ui.Notices); n > 0 {
		last := e.ui.Notices[n-1]
		if last.Level == level && last.Message == msg {
			return
		}
	}
	e.ui.Notices = append(e.ui.Notices, Notice{Level: level, Message: msg, Err: err, At: e.now()})
}

func (e *Engine) today() string {
	return e.now().In(e.loc).Format(models.DateLayout)
}
