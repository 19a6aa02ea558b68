package models

import "time"

// SessionState is the client-local mirror of the employee's current
// attendance session. It is persisted on every mutation.
type SessionState struct {
	EmployeeID           string     `json:"employee_id"`
	IsActive             bool       `json:"is_active"`
	ActiveRecordID       string     `json:"active_record_id,omitempty"`
	LoginTimestamp       *time.Time `json:"login_timestamp,omitempty"`
	LogoutTimestamp      *time.Time `json:"logout_timestamp,omitempty"`
	RemainingSeconds     int        `json:"remaining_seconds"`
	CaptureInFlight      bool       `json:"capture_in_flight"`
	CachedLoginImageRef  string     `json:"cached_login_image_ref,omitempty"`
	CachedLogoutImageRef string     `json:"cached_logout_image_ref,omitempty"`
}

// NewSessionState returns the logged-out default with a full work budget.
func NewSessionState(employeeID string, budget time.Duration) SessionState {
	return SessionState{
		EmployeeID:       employeeID,
		RemainingSeconds: int(budget / time.Second),
	}
}

// SelfConsistent reports whether the cached session can be trusted without
// the server: active, linked to a record, logged in on today and not logged
// out.
func (s SessionState) SelfConsistent(today string, loc *time.Location) bool {
	if !s.IsActive || s.ActiveRecordID == "" || s.LoginTimestamp == nil || s.LogoutTimestamp != nil {
		return false
	}
	return s.LoginTimestamp.In(loc).Format(DateLayout) == today
}
