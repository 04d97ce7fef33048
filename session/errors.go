package session

import "errors"

// Sentinel errors for common error conditions. The HTTP layer maps these to
// status codes: conflicts to 409, lookups to 404.
var (
	ErrSessionExists   = errors.New("session id already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")
	ErrSessionStarting = errors.New("session adapter is not ready yet")
	ErrSendInFlight    = errors.New("another send is already in flight")
	ErrPendingNotFound = errors.New("pending entry not found")
)
