package engine

import (
	"slices"
	"time"

	"github.com/wolfeidau/attendance/internal/models"
)

// State is the position of the session state machine.
type State int

const (
	StateLoggedOut State = iota
	StateAwaitingCheckInCapture
	StateLoggedIn
	StateAwaitingCheckOutCapture
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged out"
	case StateAwaitingCheckInCapture:
		return "awaiting check-in capture"
	case StateLoggedIn:
		return "logged in"
	case StateAwaitingCheckOutCapture:
		return "awaiting check-out capture"
	default:
		return "unknown"
	}
}

func (s State) capturing() bool {
	return s == StateAwaitingCheckInCapture || s == StateAwaitingCheckOutCapture
}

// NoticeLevel grades a user-visible notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeInfo:
		return "info"
	case NoticeWarn:
		return "warn"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a dismissible message for the surrounding UI.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
	At      time.Time
}

// Summary describes a completed session. It is handed out once.
type Summary struct {
	RecordID string
	CheckIn  time.Time
	CheckOut time.Time
	Duration time.Duration
}

// UIState holds transient presentation flags. It is never persisted.
type UIState struct {
	CameraOpen bool
	// Grabbing is set while the device produces the frame. A cancel in this
	// phase aborts the capture.
	Grabbing bool
	// Submitting is set once the backend call has started.
	Submitting bool
	Notices    []Notice
	Summary    *Summary
	// SyncErr is the error of the last status poll, nil when it succeeded.
	SyncErr error
}

func (u UIState) clone() UIState {
	c := u
	c.Notices = slices.Clone(u.Notices)
	if u.Summary != nil {
		s := *u.Summary
		c.Summary = &s
	}
	return c
}

// Snapshot is a consistent copy of the machine for display.
type Snapshot struct {
	State   State
	Session models.SessionState
	UI      UIState
	// Trusted reports whether the linked record id has been confirmed since
	// the cache was loaded.
	Trusted bool
}
