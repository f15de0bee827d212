package common

// Header names read by the HTTP layer.
const (
	CSRFTokenHeaderName     = "x-csrf-token"
	AuthorizationHeaderName = "Authorization"
)
