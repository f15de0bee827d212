// Package twofactor provisions and checks TOTP secrets for accounts that
// opt into two-factor authentication.
package twofactor

import (
	"time"

	"github.com/pquerna/otp/totp"
)

// Secret is a freshly generated TOTP secret and its otpauth:// URI for
// authenticator apps.
type Secret struct {
	Base32 string
	URL    string
}

// Provider generates secrets under a fixed issuer name.
type Provider struct {
	issuer string
	now    func() time.Time
}

func NewProvider(issuer string) *Provider {
	return &Provider{issuer: issuer, now: time.Now}
}

// Generate creates a new secret labelled with accountName.
func (p *Provider) Generate(accountName string) (*Secret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, err
	}
	return &Secret{Base32: key.Secret(), URL: key.URL()}, nil
}

// Validate reports whether code is valid for secret now, allowing one
// period of clock skew either way.
func (p *Provider) Validate(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, p.now().UTC(), totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: 6,
	})
	return err == nil && ok
}
