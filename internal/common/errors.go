// Package common defines shared constants and sentinel errors used across
// the HarvestHub registration service. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")

	// Request errors surfaced to clients.
	ErrBadRequest            = errors.New("bad request")
	ErrValidation            = errors.New("validation error")
	ErrWeakPassword          = errors.New("weak password")
	ErrForbidden             = errors.New("forbidden")
	ErrRateLimited           = errors.New("too many requests")
	ErrCaptchaFailed         = errors.New("captcha verification failed")
	ErrAuthToken             = errors.New("invalid authorization token")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// Infrastructure errors (cache, database, mail, captcha transport, object storage).
	ErrInfrastructure = errors.New("infrastructure error")
)
