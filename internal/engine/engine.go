package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/capture"
	"github.com/wolfeidau/attendance/internal/client"
	"github.com/wolfeidau/attendance/internal/countdown"
	"github.com/wolfeidau/attendance/internal/history"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/recovery"
	"github.com/wolfeidau/attendance/internal/status"
	"github.com/wolfeidau/attendance/internal/store"
)

// countdownDrift is how far, in seconds, a server budget may differ from the
// running countdown before the countdown is restarted.
const countdownDrift = 2

// Backend submits check-ins and check-outs.
type Backend interface {
	CheckIn(ctx context.Context, req client.CheckInRequest) (models.RawRecord, error)
	CheckOut(ctx context.Context, recordID string, image client.Image) (models.RawRecord, error)
}

// Camera captures the still frame attached to a submission.
type Camera interface {
	Open(ctx context.Context) error
	Capture(ctx context.Context) (capture.Image, error)
	Close() error
}

// Countdown ticks the remaining work budget down while logged in.
type Countdown interface {
	Start(remaining int, onTick func(remaining int))
	Stop()
}

// Config identifies the employee and device the engine acts for.
type Config struct {
	EmployeeID string
	Location   string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Deps are the collaborators the engine orchestrates.
type Deps struct {
	Store    store.SessionStore
	Backend  Backend
	Sync     *status.Synchronizer
	Resolver *recovery.Resolver
	History  *history.Loader
	Camera   Camera
	// Timer defaults to a one second countdown.Timer.
	Timer Countdown
}

// Engine is the session state machine. It is the only writer of the
// persisted session and is safe for concurrent use.
type Engine struct {
	cfg      Config
	store    store.SessionStore
	backend  Backend
	syncer   *status.Synchronizer
	resolver *recovery.Resolver
	loader   *history.Loader
	camera   Camera
	timer    Countdown
	loc      *time.Location
	budget   time.Duration

	// fxMu orders transitions together with their effects. Timer ticks
	// only take mu so stopping the timer under fxMu cannot deadlock.
	fxMu sync.Mutex

	mu       sync.Mutex
	state    State
	session  models.SessionState
	ui       UIState
	trusted  bool
	rev      uint64
	timerGen uint64
	// grabSeq numbers frame grabs; grabCancel aborts the current one.
	grabSeq    uint64
	grabCancel context.CancelFunc
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.EmployeeID == "" {
		return nil, errors.New("employee id is required")
	}
	switch {
	case deps.Store == nil:
		return nil, errors.New("session store is required")
	case deps.Backend == nil:
		return nil, errors.New("backend is required")
	case deps.Sync == nil || deps.Resolver == nil || deps.History == nil:
		return nil, errors.New("synchronizer, resolver and history loader are required")
	case deps.Camera == nil:
		return nil, errors.New("camera is required")
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Timer == nil {
		deps.Timer = countdown.New()
	}

	budget := deps.Sync.Budget()

	return &Engine{
		cfg:      cfg,
		store:    deps.Store,
		backend:  deps.Backend,
		syncer:   deps.Sync,
		resolver: deps.Resolver,
		loader:   deps.History,
		camera:   deps.Camera,
		timer:    deps.Timer,
		loc:      deps.History.Normalizer().Location(),
		budget:   budget,
		session:  models.NewSessionState(cfg.EmployeeID, budget),
	}, nil
}

func (e *Engine) now() time.Time {
	return e.cfg.Now()
}

// Start loads the cached session, resuming the countdown when it was active,
// then reconciles it with the server.
func (e *Engine) Start(ctx context.Context) error {
	session := e.store.Load()
	if session.EmployeeID == "" {
		session.EmployeeID = e.cfg.EmployeeID
	}

	if _, err := e.dispatch(ctx, cacheLoaded{session: session}); err != nil {
		return err
	}

	return e.Sync(ctx)
}

// Sync polls the status endpoint and applies the reconciled outcome, running
// recovery when the outcome is ambiguous. Results that arrive while a
// capture is in flight are discarded.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	local, rev := e.session, e.rev
	e.mu.Unlock()

	res, pollErr := e.syncer.Poll(ctx, e.cfg.EmployeeID)
	if pollErr != nil {
		log.Warn().Err(pollErr).Msg("status poll failed")
	}

	e.mu.Lock()
	e.ui.SyncErr = pollErr
	e.mu.Unlock()

	d := e.syncer.Reconcile(local, res, pollErr, e.now())
	if d.Action != status.ActionRecover {
		_, err := e.dispatch(ctx, reconciled{decision: d, pollErr: pollErr, rev: rev})
		return err
	}

	log.Info().Str("reason", d.Reason).Msg("running recovery")

	rec, err := e.resolver.Resolve(ctx, e.cfg.EmployeeID, e.now())
	_, err = e.dispatch(ctx, recovered{record: rec, err: err, rev: rev})
	return err
}

// RequestCheckIn opens the camera for a check-in. It is a no-op with a
// notice when already logged in.
func (e *Engine) RequestCheckIn(ctx context.Context) error {
	_, err := e.dispatch(ctx, userAction{kind: actionCheckIn})
	return err
}

// RequestCheckOut opens the camera for a check-out, first re-linking the
// session through recovery when its record is missing or unconfirmed.
func (e *Engine) RequestCheckOut(ctx context.Context) error {
	e.mu.Lock()
	capturing := e.state.capturing()
	needRecovery := e.state == StateLoggedOut || !e.trusted || e.session.ActiveRecordID == ""
	e.mu.Unlock()

	if capturing {
		return ErrCaptureInProgress
	}

	if needRecovery {
		rec, err := e.resolver.Resolve(ctx, e.cfg.EmployeeID, e.now())
		if _, err := e.dispatch(ctx, recovered{record: rec, err: err, checkOut: true}); err != nil {
			return err
		}
	}

	_, err := e.dispatch(ctx, userAction{kind: actionCheckOut})
	return err
}

// Capture takes the photo for the pending check-in or check-out and submits
// it. A failed submission returns the machine to its previous stable state.
// Cancel while the frame is pending aborts it and Capture returns
// ErrCaptureCancelled without contacting the server.
func (e *Engine) Capture(ctx context.Context) error {
	grabCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fx, err := e.dispatch(ctx, userAction{kind: actionBeginCapture, cancel: cancel})
	if err != nil {
		return err
	}
	sub := fx.submit

	img, err := e.camera.Capture(grabCtx)
	if err != nil {
		_, derr := e.dispatch(ctx, userAction{kind: actionCaptureFailed, grab: sub.grab, err: err})
		switch {
		case errors.Is(derr, ErrCaptureCancelled):
			return derr
		case derr != nil:
			log.Error().Err(derr).Msg("failed to apply capture failure")
		}
		return err
	}

	// The frame may have arrived after a cancel.
	if _, err := e.dispatch(ctx, userAction{kind: actionSubmit, grab: sub.grab}); err != nil {
		log.Info().Err(err).Msg("discarding captured frame")
		return err
	}

	upload := client.Image{
		Data:        img.Data,
		ContentType: img.ContentType,
		Filename:    img.Ref + ".jpg",
	}

	var (
		raw  models.RawRecord
		kind = actionCheckInDone
		op   = "check-in"
	)
	if sub.checkOut {
		kind, op = actionCheckOutDone, "check-out"
		raw, err = e.backend.CheckOut(ctx, sub.recordID, upload)
	} else {
		raw, err = e.backend.CheckIn(ctx, client.CheckInRequest{
			EmployeeID: e.cfg.EmployeeID,
			Location:   e.cfg.Location,
			Image:      upload,
		})
	}

	ev := userAction{kind: kind, image: img, err: err}
	if err == nil {
		ev.record, ev.recordID = e.readRecord(raw)
	}

	if _, derr := e.dispatch(ctx, ev); derr != nil {
		log.Error().Err(derr).Msg("failed to apply submission result")
	}

	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return nil
}

// Cancel abandons a pending capture without contacting the server.
func (e *Engine) Cancel() error {
	_, err := e.dispatch(context.Background(), userAction{kind: actionCancel})
	return err
}

// History returns the employee's ordered history. A stale snapshot is
// returned with a notice when the server is unreachable.
func (e *Engine) History(ctx context.Context) (*history.History, error) {
	h, err := e.loader.Fetch(ctx, e.cfg.EmployeeID)
	if err != nil {
		e.addNotice(NoticeError, "attendance history unavailable", err)
		return nil, err
	}
	if h.Stale {
		e.addNotice(NoticeWarn, "showing saved attendance history", nil)
	}
	return h, nil
}

// Dashboard returns the organisation-wide attendance list, open records
// first.
func (e *Engine) Dashboard(ctx context.Context, src history.OrgSource) (*history.History, error) {
	h, err := e.loader.FetchDashboard(ctx, src)
	if err != nil {
		e.addNotice(NoticeError, "attendance dashboard unavailable", err)
		return nil, err
	}
	return h, nil
}

// Snapshot returns a copy of the machine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:   e.state,
		Session: e.session,
		UI:      e.ui.clone(),
		Trusted: e.trusted,
	}
}

// TakeSummary returns the summary of the last check-out once.
func (e *Engine) TakeSummary() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ui.Summary == nil {
		return Summary{}, false
	}
	s := *e.ui.Summary
	e.ui.Summary = nil
	return s, true
}

// DismissNotice removes the notice at index i.
func (e *Engine) DismissNotice(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i < 0 || i >= len(e.ui.Notices) {
		return false
	}
	e.ui.Notices = append(e.ui.Notices[:i], e.ui.Notices[i+1:]...)
	return true
}

// Close abandons any pending capture, stops the countdown and releases the
// camera. The persisted session is left as is so a restart resumes it.
func (e *Engine) Close() error {
	if err := e.Cancel(); err != nil {
		log.Warn().Err(err).Msg("closing with a submission in flight")
	}

	e.fxMu.Lock()
	defer e.fxMu.Unlock()

	e.mu.Lock()
	e.timerGen++
	e.mu.Unlock()

	e.timer.Stop()
	return e.camera.Close()
}

func (e *Engine) addNotice(level NoticeLevel, msg string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notify(level, msg, err)
}

// readRecord normalises a submission response. A response without a
// readable record still yields its id when it has one.
func (e *Engine) readRecord(raw models.RawRecord) (*models.Record, string) {
	rec, err := e.loader.Normalizer().Normalize(raw)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable record in submission response")
		return nil, history.RecordID(raw)
	}
	return &rec, rec.ID
}

// dispatch applies ev and runs its effects outside the state lock.
func (e *Engine) dispatch(ctx context.Context, ev event) (effects, error) {
	e.fxMu.Lock()
	defer e.fxMu.Unlock()

	e.mu.Lock()
	fx, err := e.apply(ev)
	e.mu.Unlock()

	if rerr := e.run(ctx, fx); rerr != nil && err == nil {
		err = rerr
	}
	return fx, err
}

// run executes transition effects. It is called with fxMu held.
func (e *Engine) run(ctx context.Context, fx effects) error {
	if fx.stopTimer {
		e.timer.Stop()
	}
	if fx.startTimer {
		e.timer.Start(fx.remaining, e.onCountdown(fx.timerGen))
	}

	if fx.cancelGrab != nil {
		fx.cancelGrab()
	}

	if fx.closeCamera {
		if err := e.camera.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to release camera")
		}
	}

	if fx.remember != nil {
		if err := e.loader.Remember(e.cfg.EmployeeID, *fx.remember); err != nil {
			log.Warn().Err(err).Str("record_id", fx.remember.ID).Msg("failed to remember closed record")
		}
	}

	if fx.openCamera {
		if err := e.camera.Open(ctx); err != nil {
			e.mu.Lock()
			next, _ := e.apply(userAction{kind: actionCaptureFailed, err: err})
			e.mu.Unlock()

			_ = e.run(ctx, next)
			return err
		}
	}

	return nil
}

func (e *Engine) onCountdown(gen uint64) func(int) {
	return func(remaining int) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if _, err := e.apply(tick{gen: gen, remaining: remaining}); err != nil {
			log.Error().Err(err).Msg("failed to apply countdown tick")
		}
	}
}
