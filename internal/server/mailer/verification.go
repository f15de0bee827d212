package mailer

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

// VerificationLink builds the link a user follows to verify their email.
func VerificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/users/verify-email?token=" + url.QueryEscape(token)
}

// VerificationEmail composes the message sent after registration.
func VerificationEmail(to, link string) Email {
	return Email{
		To:      []string{to},
		Subject: "Verify Your Email Address",
		Body:    fmt.Sprintf("Please verify your email by clicking this link: %s. This link expires in 1 hour.", link),
		HTMLBody: fmt.Sprintf(`<p>Please verify your email by clicking <a href="%s">here</a>. This link expires in 1 hour.</p>`,
			html.EscapeString(link)),
	}
}
