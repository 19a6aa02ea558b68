package models

import "errors"

var (
	// ErrDeviceUnavailable indicates the camera device is missing or could not be opened
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrEmptyCapture indicates the camera produced no usable frame
	ErrEmptyCapture = errors.New("capture produced no frame")
	// ErrNetworkFailure indicates the backend could not be reached or timed out
	ErrNetworkFailure = errors.New("network failure")
	// ErrNoActiveRecord indicates a check-out was attempted with no open record to close
	ErrNoActiveRecord = errors.New("no active attendance record")
	// ErrServerRejection indicates the backend answered a request with a non-2xx status
	ErrServerRejection = errors.New("server rejected request")
)
