// Package captcha verifies reCAPTCHA v3 response tokens with the provider's
// siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

// Verifier decides whether a challenge-response token is genuine.
// A transport or provider failure is returned as an error wrapping
// common.ErrInfrastructure, never as a false result.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// RecaptchaVerifier calls siteverify, retrying transient failures with
// exponential backoff.
type RecaptchaVerifier struct {
	client   *http.Client
	url      string
	secret   string
	minScore float64
	backoff  func() retry.Backoff
}

func NewRecaptchaVerifier(client *http.Client, verifyURL, secret string, minScore float64) *RecaptchaVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &RecaptchaVerifier{
		client:   client,
		url:      verifyURL,
		secret:   secret,
		minScore: minScore,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(100*time.Millisecond))
		},
	}
}

func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	var out siteVerifyResponse
	err := retry.Do(ctx, v.backoff(), func(ctx context.Context) error {
		resp, err := v.post(ctx, form)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("siteverify status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("siteverify status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode siteverify response: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: captcha: %w", common.ErrInfrastructure, err)
	}

	if !out.Success {
		return false, nil
	}
	// v2 responses carry no score
	if out.Score != 0 && out.Score < v.minScore {
		return false, nil
	}
	return true, nil
}

func (v *RecaptchaVerifier) post(ctx context.Context, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return v.client.Do(req)
}

// StaticVerifier accepts every non-empty token. It is used when no
// reCAPTCHA secret is configured, for local development.
type StaticVerifier struct{}

func (StaticVerifier) Verify(_ context.Context, token, _ string) (bool, error) {
	return strings.TrimSpace(token) != "", nil
}
