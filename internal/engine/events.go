package engine

import (
	"context"
	"time"

	"github.com/wolfeidau/attendance/internal/capture"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/status"
)

// event is an input to the transition function.
type event interface {
	isEvent()
}

// cacheLoaded carries the session read from the store at startup.
type cacheLoaded struct {
	session models.SessionState
}

// reconciled carries a status poll decision. rev is the machine revision the
// decision was computed against.
type reconciled struct {
	decision status.Decision
	pollErr  error
	rev      uint64
}

// recovered carries the outcome of the recovery resolver.
type recovered struct {
	record *models.Record
	err    error
	rev    uint64
	// checkOut is set when recovery ran on behalf of a check-out request.
	checkOut bool
}

type actionKind int

const (
	actionCheckIn actionKind = iota
	actionCheckOut
	actionCancel
	actionBeginCapture
	actionSubmit
	actionCaptureFailed
	actionCheckInDone
	actionCheckOutDone
)

func (k actionKind) String() string {
	switch k {
	case actionCheckIn:
		return "check-in"
	case actionCheckOut:
		return "check-out"
	case actionCancel:
		return "cancel"
	case actionBeginCapture:
		return "begin-capture"
	case actionSubmit:
		return "submit"
	case actionCaptureFailed:
		return "capture-failed"
	case actionCheckInDone:
		return "check-in-done"
	case actionCheckOutDone:
		return "check-out-done"
	default:
		return "unknown"
	}
}

// userAction is a user request or the result of a submission it started.
type userAction struct {
	kind   actionKind
	record *models.Record
	// recordID is set when the backend response carried an id but no
	// readable record.
	recordID string
	image    capture.Image
	err      error
	// grab identifies the frame grab a capture result belongs to. Zero
	// means the current capture.
	grab uint64
	// cancel aborts the frame grab started by actionBeginCapture.
	cancel context.CancelFunc
}

// tick carries a countdown value from timer generation gen.
type tick struct {
	gen       uint64
	remaining int
}

func (cacheLoaded) isEvent() {}
func (reconciled) isEvent()  {}
func (recovered) isEvent()   {}
func (userAction) isEvent()  {}
func (tick) isEvent()        {}

// submission describes the capture the machine is waiting on.
type submission struct {
	grab           uint64
	checkOut       bool
	recordID       string
	loginTimestamp *time.Time
}

// effects are side effects of a transition, run after the lock is released.
type effects struct {
	stopTimer   bool
	startTimer  bool
	timerGen    uint64
	remaining   int
	openCamera  bool
	closeCamera bool
	cancelGrab  context.CancelFunc
	remember    *models.Record
	submit      *submission
}
