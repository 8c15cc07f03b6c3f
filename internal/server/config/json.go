package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/flagx"
	"github.com/dmitrijs2005/vaultgate/internal/timex"
)

// JsonConfig mirrors Config for JSON decoding. Pointer fields distinguish
// "absent" from zero, so a partial file only overrides what it names.
// Durations accept "5s" strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP      *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC      *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN           *string         `json:"database_dsn"`
	SecretKey             *string         `json:"secret_key"`
	LogLevel              *string         `json:"log_level"`
	SessionDuration       *timex.Duration `json:"session_duration"`
	PaymentTimeout        *timex.Duration `json:"payment_timeout"`
	PaymentProviderURL    *string         `json:"payment_provider_url"`
	SimulatedPaymentDelay *timex.Duration `json:"simulated_payment_delay"`
	MediaFee              *int64          `json:"media_fee"`
	PersonalFee           *int64          `json:"personal_fee"`
	DefaultFee            *int64          `json:"default_fee"`
	RedisAddr             *string         `json:"redis_addr"`
	RegistryCacheTTL      *timex.Duration `json:"registry_cache_ttl"`
	MaxPasskeyAttempts    *int            `json:"max_passkey_attempts"`
	PasskeyAttemptWindow  *timex.Duration `json:"passkey_attempt_window"`
	S3RootUser            *string         `json:"s3_root_user"`
	S3RootPassword        *string         `json:"s3_root_password"`
	S3Bucket              *string         `json:"s3_bucket"`
	S3Region              *string         `json:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint"`
	DownloadURLValidity   *timex.Duration `json:"download_url_validity"`
}

// parseJson overlays values from the JSON file named by -c/-config (or
// $VAULTGATE_CONFIG). With no file configured it does nothing. An unreadable
// file or invalid JSON panics: the server must not start half-configured.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setDuration(&config.SessionDuration, c.SessionDuration)
	setDuration(&config.PaymentTimeout, c.PaymentTimeout)
	setString(&config.PaymentProviderURL, c.PaymentProviderURL)
	setDuration(&config.SimulatedPaymentDelay, c.SimulatedPaymentDelay)
	setInt64(&config.MediaFee, c.MediaFee)
	setInt64(&config.PersonalFee, c.PersonalFee)
	setInt64(&config.DefaultFee, c.DefaultFee)
	setString(&config.RedisAddr, c.RedisAddr)
	setDuration(&config.RegistryCacheTTL, c.RegistryCacheTTL)
	if c.MaxPasskeyAttempts != nil {
		config.MaxPasskeyAttempts = *c.MaxPasskeyAttempts
	}
	setDuration(&config.PasskeyAttemptWindow, c.PasskeyAttemptWindow)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.DownloadURLValidity, c.DownloadURLValidity)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
