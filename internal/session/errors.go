package session

import "errors"

var (
	// ErrBackendUnavailable marks a failed history load; the feed stays
	// empty and the caller shows a retry affordance.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrMediaAcquisitionFailed marks microphone permission or hardware
	// failure while starting a call.
	ErrMediaAcquisitionFailed = errors.New("media acquisition failed")
)
