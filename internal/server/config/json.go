package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/harvesthub/internal/flagx"
	"github.com/dmitrijs2005/harvesthub/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Interval fields use
// timex.Duration so both "5m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP   string   `json:"endpoint_addr_http"`
	EndpointAddrHealth string   `json:"endpoint_addr_health"`
	DatabaseDSN        string   `json:"database_dsn"`
	PublicBaseURL      string   `json:"public_base_url"`
	TrustedProxies     []string `json:"trusted_proxies"`

	SecretKey                         string         `json:"secret_key"`
	VerificationSecretKey             string         `json:"verification_secret_key"`
	TokenIssuer                       string         `json:"token_issuer"`
	AccessTokenValidityDuration       timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration      timex.Duration `json:"refresh_token_validity_duration"`
	VerificationTokenValidityDuration timex.Duration `json:"verification_token_validity_duration"`
	BcryptCost                        int            `json:"bcrypt_cost"`

	TokenStoreBackend string `json:"token_store"`
	RedisAddr         string `json:"redis_addr"`
	RedisPassword     string `json:"redis_password"`
	RedisDB           int    `json:"redis_db"`
	BuntDBPath        string `json:"buntdb_path"`

	CSRFTokenTTL         timex.Duration `json:"csrf_token_ttl"`
	RateLimitMax         int64          `json:"rate_limit_max"`
	RateLimitWindow      timex.Duration `json:"rate_limit_window"`
	FailedAttemptsMax    int64          `json:"failed_attempts_max"`
	FailedAttemptsWindow timex.Duration `json:"failed_attempts_window"`
	TwoFactorPendingTTL  timex.Duration `json:"two_factor_pending_ttl"`
	TwoFactorIssuer      string         `json:"two_factor_issuer"`
	ExternalCallTimeout  timex.Duration `json:"external_call_timeout"`

	RecaptchaSecret   string  `json:"recaptcha_secret"`
	RecaptchaURL      string  `json:"recaptcha_url"`
	RecaptchaMinScore float64 `json:"recaptcha_min_score"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`

	S3RootUser                string         `json:"s3_root_user"`
	S3RootPassword            string         `json:"s3_root_password"`
	S3Bucket                  string         `json:"s3_bucket"`
	S3Region                  string         `json:"s3_region"`
	S3BaseEndpoint            string         `json:"s3_base_endpoint"`
	DocumentUploadURLValidity timex.Duration `json:"document_upload_url_validity"`

	LogFormat string `json:"log_format"`
}

// parseJson loads the JSON file named by -c/-config into config. Keys that
// are absent (zero-valued) in the file keep the current value. No flag
// means nothing is loaded; an unreadable or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrHealth, c.EndpointAddrHealth)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	if len(c.TrustedProxies) > 0 {
		config.TrustedProxies = c.TrustedProxies
	}

	setString(&config.SecretKey, c.SecretKey)
	setString(&config.VerificationSecretKey, c.VerificationSecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	setValue(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration.Duration)
	setValue(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration.Duration)
	setValue(&config.VerificationTokenValidityDuration, c.VerificationTokenValidityDuration.Duration)
	setValue(&config.BcryptCost, c.BcryptCost)

	setString(&config.TokenStoreBackend, c.TokenStoreBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setValue(&config.RedisDB, c.RedisDB)
	setString(&config.BuntDBPath, c.BuntDBPath)

	setValue(&config.CSRFTokenTTL, c.CSRFTokenTTL.Duration)
	setValue(&config.RateLimitMax, c.RateLimitMax)
	setValue(&config.RateLimitWindow, c.RateLimitWindow.Duration)
	setValue(&config.FailedAttemptsMax, c.FailedAttemptsMax)
	setValue(&config.FailedAttemptsWindow, c.FailedAttemptsWindow.Duration)
	setValue(&config.TwoFactorPendingTTL, c.TwoFactorPendingTTL.Duration)
	setString(&config.TwoFactorIssuer, c.TwoFactorIssuer)
	setValue(&config.ExternalCallTimeout, c.ExternalCallTimeout.Duration)

	setString(&config.RecaptchaSecret, c.RecaptchaSecret)
	setString(&config.RecaptchaURL, c.RecaptchaURL)
	setValue(&config.RecaptchaMinScore, c.RecaptchaMinScore)

	setString(&config.SMTPHost, c.SMTPHost)
	setValue(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setValue(&config.DocumentUploadURLValidity, c.DocumentUploadURLValidity.Duration)

	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setValue[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
