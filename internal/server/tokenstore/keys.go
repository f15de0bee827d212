package tokenstore

func CSRFKey(ip string) string {
	return "csrf:" + ip
}

func RateLimitKey(ip string) string {
	return "rate-limit:" + ip
}

// FailedAttemptsKey scopes the lockout counter to one client and one email.
func FailedAttemptsKey(ip, email string) string {
	return "failed-attempts:" + ip + ":" + email
}

// TwoFactorKey holds a TOTP secret that has not been confirmed yet.
func TwoFactorKey(accountID string) string {
	return "2fa:" + accountID
}
