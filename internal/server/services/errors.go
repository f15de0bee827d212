package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

// Error is a request failure with a message that is safe to return to
// clients. Err is one of the common sentinels.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

var (
	errRateLimited    = &Error{Err: common.ErrRateLimited, Message: "Too many requests. Please try again later."}
	errLockedOut      = &Error{Err: common.ErrRateLimited, Message: "Too many failed attempts. Please try again later."}
	errInvalidCSRF    = &Error{Err: common.ErrForbidden, Message: "Invalid CSRF token"}
	errCaptchaFailed  = &Error{Err: common.ErrCaptchaFailed, Message: "reCAPTCHA verification failed"}
	errDuplicateEmail = &Error{Err: common.ErrDuplicateEmail, Message: "Email already exists"}
	errAuthToken      = &Error{Err: common.ErrAuthToken, Message: "Invalid authorization token"}
	errInvalidToken   = &Error{Err: common.ErrInvalidOrExpiredToken, Message: "Invalid or expired token"}
	errEmailRequired  = &Error{Err: common.ErrBadRequest, Message: "Email is required"}
)

// infrastructure marks err as an infrastructure failure unless it already is.
func infrastructure(op string, err error) error {
	if errors.Is(err, common.ErrInfrastructure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", common.ErrInfrastructure, op, err)
}

// isClientFailure reports whether err was caused by the request rather than
// by a failing dependency.
func isClientFailure(err error) bool {
	return common.KindOf(err) != common.KindInfrastructure
}
