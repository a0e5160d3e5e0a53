package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Verification workflow errors. ErrCodeInvalidOrExpired deliberately covers
// every failure reason (never issued, wrong code, expired, already used) so
// callers cannot distinguish which case occurred.
var (
	ErrCodeInvalidOrExpired     = errors.New("invalid or expired code")
	ErrDeliveryFailed           = errors.New("code delivery failed")
	ErrStoreUnavailable         = errors.New("temporary store unavailable")
	ErrRegistrationCommitFailed = errors.New("registration commit failed")
)
