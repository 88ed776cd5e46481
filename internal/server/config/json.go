package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/keybud/internal/flagx"
	"github.com/dmitrijs2005/keybud/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Durations
// accept "5m" style strings or integer nanoseconds via timex.Duration.
// Absent (zero) fields leave the current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	EncryptionSecret            string         `json:"encryption_secret"`

	KVBackend     string         `json:"kv_backend"`
	RedisAddr     string         `json:"redis_addr"`
	RedisPassword string         `json:"redis_password"`
	RedisDB       int            `json:"redis_db"`
	KVDefaultTTL  timex.Duration `json:"kv_default_ttl"`

	MessagePageSize int            `json:"message_page_size"`
	CursorTTL       timex.Duration `json:"cursor_ttl"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	CloudFrontDomain         string `json:"cloudfront_domain"`
	CloudFrontKeyPairID      string `json:"cloudfront_key_pair_id"`
	CloudFrontPrivateKeyPath string `json:"cloudfront_private_key_path"`

	SignedURLValidity      timex.Duration `json:"signed_url_validity"`
	SignedURLCacheFraction float64        `json:"signed_url_cache_fraction"`

	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	BaseURL            string `json:"base_url"`
	ClientURL          string `json:"client_url"`

	Production *bool `json:"production"`
	Debug      *bool `json:"debug"`
}

// parseJson loads the file named by -c/-config (if any) into config.
// An unreadable file or invalid JSON panics: a server must not start with a
// half-applied configuration.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
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

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.EncryptionSecret, c.EncryptionSecret)

	setString(&config.KVBackend, c.KVBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != 0 {
		config.RedisDB = c.RedisDB
	}
	setDuration(&config.KVDefaultTTL, c.KVDefaultTTL)

	if c.MessagePageSize != 0 {
		config.MessagePageSize = c.MessagePageSize
	}
	setDuration(&config.CursorTTL, c.CursorTTL)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.CloudFrontDomain, c.CloudFrontDomain)
	setString(&config.CloudFrontKeyPairID, c.CloudFrontKeyPairID)
	setString(&config.CloudFrontPrivateKeyPath, c.CloudFrontPrivateKeyPath)

	setDuration(&config.SignedURLValidity, c.SignedURLValidity)
	if c.SignedURLCacheFraction != 0 {
		config.SignedURLCacheFraction = c.SignedURLCacheFraction
	}

	setString(&config.GoogleClientID, c.GoogleClientID)
	setString(&config.GoogleClientSecret, c.GoogleClientSecret)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.ClientURL, c.ClientURL)

	if c.Production != nil {
		config.Production = *c.Production
	}
	if c.Debug != nil {
		config.Debug = *c.Debug
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
