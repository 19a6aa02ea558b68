package engine

import "errors"

var (
	// ErrCaptureInProgress is returned when a capture is requested while another is pending
	ErrCaptureInProgress = errors.New("a capture is already in progress")
	// ErrNotCapturing is returned when Capture is called with no capture requested
	ErrNotCapturing = errors.New("no capture has been requested")
	// ErrSubmissionInProgress is returned when cancelling while a capture is being submitted
	ErrSubmissionInProgress = errors.New("a submission is in progress")
	// ErrCaptureCancelled is returned by Capture when the capture was cancelled before submission
	ErrCaptureCancelled = errors.New("capture was cancelled")
)
