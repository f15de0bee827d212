// Package auth issues and validates the HS256 JWTs handed out by the server:
// short-lived access tokens and single-purpose email verification tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Purpose keeps tokens of one kind from being accepted as another.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeEmailVerification Purpose = "email_verification"
)

// Claims carries the registered claims plus the account id, the email the
// token was issued for (verification tokens only) and the purpose.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string  `json:"userId"`
	Email   string  `json:"email,omitempty"`
	Purpose Purpose `json:"purpose"`
}

// Signer signs and parses tokens with a single secret and issuer.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewSigner(secret []byte, issuer string) *Signer {
	return &Signer{secret: secret, issuer: issuer, now: time.Now}
}

// GenerateAccessToken returns a bearer token for userID.
func (s *Signer) GenerateAccessToken(userID string, validity time.Duration) (string, error) {
	return s.generate(Claims{UserID: userID, Purpose: PurposeAccess}, validity)
}

// GenerateVerificationToken returns the token embedded in the
// verification email link.
func (s *Signer) GenerateVerificationToken(userID, email string, validity time.Duration) (string, error) {
	return s.generate(Claims{UserID: userID, Email: email, Purpose: PurposeEmailVerification}, validity)
}

func (s *Signer) generate(c Claims, validity time.Duration) (string, error) {
	now := s.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   c.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Parse validates signature, algorithm, expiry, issuer and purpose and
// returns the claims. Expired tokens yield ErrTokenExpired; every other
// failure yields ErrTokenInvalid.
func (s *Signer) Parse(tokenString string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !token.Valid || claims.Purpose != purpose || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
