package common

import "errors"

// Kind is the machine-readable error category returned to API clients.
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindWeakPassword   Kind = "WeakPasswordError"
	KindForbidden      Kind = "ForbiddenError"
	KindRateLimited    Kind = "RateLimitedError"
	KindDuplicateEmail Kind = "DuplicateEmailError"
	KindAuthToken      Kind = "AuthTokenError"
	KindInvalidToken   Kind = "InvalidOrExpiredTokenError"
	KindCaptcha        Kind = "CaptchaError"
	KindBadRequest     Kind = "BadRequestError"
	KindInfrastructure Kind = "InfrastructureError"
)

// KindOf classifies err. Anything unrecognised is treated as infrastructure.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrWeakPassword):
		return KindWeakPassword
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrDuplicateEmail):
		return KindDuplicateEmail
	case errors.Is(err, ErrAuthToken):
		return KindAuthToken
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return KindInvalidToken
	case errors.Is(err, ErrCaptchaFailed):
		return KindCaptcha
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	default:
		return KindInfrastructure
	}
}
