package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays values from environment variables. Unset or unparsable
// variables are ignored.
//
//	PORT, DATABASE_URL, JWT_SECRET, JWT_TTL, ENCRYPTION_SECRET,
//	KV_BACKEND, REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB, KV_DEFAULT_TTL,
//	MESSAGE_PAGE_SIZE, MESSAGE_CURSOR_TTL,
//	S3_ACCESS_KEY, S3_SECRET_KEY, S3_NAME, S3_REGION, S3_ENDPOINT,
//	CLOUDFRONT_DOMAIN, CLOUDFRONT_KEY_PAIR_ID, CLOUDFRONT_PRIVATE_KEY_PATH,
//	SIGNED_URL_TTL, SIGNED_URL_CACHE_FRACTION,
//	GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, BASE_URL, CLIENT_URL,
//	APP_ENV (production|development), DEBUG
func parseEnv(config *Config) {
	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		config.EndpointAddrHTTP = ":" + port
	}
	envString(&config.DatabaseDSN, "DATABASE_URL")
	envString(&config.SecretKey, "JWT_SECRET")
	envDuration(&config.AccessTokenValidityDuration, "JWT_TTL")
	envString(&config.EncryptionSecret, "ENCRYPTION_SECRET")

	envString(&config.KVBackend, "KV_BACKEND")
	host, hasHost := os.LookupEnv("REDIS_HOST")
	port, hasPort := os.LookupEnv("REDIS_PORT")
	if hasHost || hasPort {
		curHost, curPort, err := net.SplitHostPort(config.RedisAddr)
		if err != nil {
			curHost, curPort = "127.0.0.1", "6379"
		}
		if hasHost && host != "" {
			curHost = host
		}
		if hasPort && port != "" {
			curPort = port
		}
		config.RedisAddr = net.JoinHostPort(curHost, curPort)
	}
	envString(&config.RedisPassword, "REDIS_PASSWORD")
	envInt(&config.RedisDB, "REDIS_DB")
	envDuration(&config.KVDefaultTTL, "KV_DEFAULT_TTL")

	envInt(&config.MessagePageSize, "MESSAGE_PAGE_SIZE")
	envDuration(&config.CursorTTL, "MESSAGE_CURSOR_TTL")

	envString(&config.S3RootUser, "S3_ACCESS_KEY")
	envString(&config.S3RootPassword, "S3_SECRET_KEY")
	envString(&config.S3Bucket, "S3_NAME")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_ENDPOINT")

	envString(&config.CloudFrontDomain, "CLOUDFRONT_DOMAIN")
	envString(&config.CloudFrontKeyPairID, "CLOUDFRONT_KEY_PAIR_ID")
	envString(&config.CloudFrontPrivateKeyPath, "CLOUDFRONT_PRIVATE_KEY_PATH")

	envDuration(&config.SignedURLValidity, "SIGNED_URL_TTL")
	if v, ok := os.LookupEnv("SIGNED_URL_CACHE_FRACTION"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.SignedURLCacheFraction = f
		}
	}

	envString(&config.GoogleClientID, "GOOGLE_CLIENT_ID")
	envString(&config.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	envString(&config.BaseURL, "BASE_URL")
	envString(&config.ClientURL, "CLIENT_URL")

	if v, ok := os.LookupEnv("APP_ENV"); ok {
		config.Production = strings.EqualFold(v, "production")
	}
	if v, ok := os.LookupEnv("DEBUG"); ok {
		config.Debug = v == "1" || strings.EqualFold(v, "true")
	}
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(dst *time.Duration, name string) {
	if v, ok := os.LookupEnv(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
