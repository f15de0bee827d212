package models

import "time"

// RefreshToken is an opaque, persisted token that lets an account obtain a
// new access token until Expires.
type RefreshToken struct {
	AccountID string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
