// Package config reads sparkdoor settings from the environment. A .env file
// in the working directory is loaded first.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	EnvCloudAPIURI     = "SPARKDOOR_CLOUD_API_URI"
	EnvCloudUsername   = "SPARKDOOR_CLOUD_USERNAME"
	EnvCloudPassword   = "SPARKDOOR_CLOUD_PASSWORD"
	EnvRenewWindow     = "SPARKDOOR_RENEW_WINDOW"
	EnvLockTTL         = "SPARKDOOR_LOCK_TTL"
	EnvHTTPTimeout     = "SPARKDOOR_HTTP_TIMEOUT"
	EnvRateLimit       = "SPARKDOOR_RATE_LIMIT"
	EnvDBPath          = "SPARKDOOR_DB_PATH"
	EnvRefreshSchedule = "SPARKDOOR_REFRESH_SCHEDULE"
	EnvPruneAfter      = "SPARKDOOR_PRUNE_AFTER"
	EnvNATSURL         = "SPARKDOOR_NATS_URL"
	EnvNATSBucket      = "SPARKDOOR_NATS_BUCKET"
	EnvMetricsAddr     = "SPARKDOOR_METRICS_ADDR"
	EnvProbeWorkers    = "SPARKDOOR_PROBE_WORKERS"
	EnvDebug           = "DEBUG_SPARKDOOR"
)

const (
	DefaultCloudAPIURI     = "https://api.spark.io"
	DefaultRenewWindow     = 24 * time.Hour
	DefaultLockTTL         = 3 * time.Minute
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultRateLimit       = 10.0
	DefaultRefreshSchedule = "0 0 3 * * *"
	DefaultPruneAfter      = 30 * 24 * time.Hour
	DefaultNATSBucket      = "sparkdoor_locks"
	DefaultProbeWorkers    = 5
)

// ErrMissingCredentials is returned by RequireCredentials when the cloud
// account is not configured.
var ErrMissingCredentials = errors.New("cloud username and password must be set (" + EnvCloudUsername + ", " + EnvCloudPassword + ")")

// Config holds every sparkdoor setting.
type Config struct {
	CloudAPIURI   string
	CloudUsername string
	CloudPassword string

	RenewWindow time.Duration
	LockTTL     time.Duration
	HTTPTimeout time.Duration
	// RateLimit is the outbound request rate to the cloud in requests per second; 0 disables it.
	RateLimit float64

	DBPath string

	RefreshSchedule string
	PruneAfter      time.Duration

	NATSURL    string
	NATSBucket string

	MetricsAddr string
	Debug       bool
}

// DefaultDBPath is where the database lives when SPARKDOOR_DB_PATH is unset.
func DefaultDBPath() string {
	return filepath.Join(os.Getenv("HOME"), ".sparkdoor", "sparkdoor.db")
}

// Load reads the configuration. Malformed values fall back to defaults.
func Load() Config {
	return Config{
		CloudAPIURI:     GetEnvStringOrDefault(EnvCloudAPIURI, DefaultCloudAPIURI),
		CloudUsername:   GetEnvStringOrDefault(EnvCloudUsername, ""),
		CloudPassword:   GetEnvStringOrDefault(EnvCloudPassword, ""),
		RenewWindow:     positive(GetEnvDurationOrDefault(EnvRenewWindow, DefaultRenewWindow), DefaultRenewWindow),
		LockTTL:         positive(GetEnvDurationOrDefault(EnvLockTTL, DefaultLockTTL), DefaultLockTTL),
		HTTPTimeout:     positive(GetEnvDurationOrDefault(EnvHTTPTimeout, DefaultHTTPTimeout), DefaultHTTPTimeout),
		RateLimit:       GetEnvFloatOrDefault(EnvRateLimit, DefaultRateLimit),
		DBPath:          GetEnvStringOrDefault(EnvDBPath, DefaultDBPath()),
		RefreshSchedule: GetEnvStringOrDefault(EnvRefreshSchedule, DefaultRefreshSchedule),
		PruneAfter:      positive(GetEnvDurationOrDefault(EnvPruneAfter, DefaultPruneAfter), DefaultPruneAfter),
		NATSURL:         GetEnvStringOrDefault(EnvNATSURL, ""),
		NATSBucket:      GetEnvStringOrDefault(EnvNATSBucket, DefaultNATSBucket),
		MetricsAddr:     GetEnvStringOrDefault(EnvMetricsAddr, ""),
		Debug:           debugEnabled(os.Getenv(EnvDebug)),
	}
}

// RequireCredentials reports ErrMissingCredentials when token renewal is
// not possible.
func (c Config) RequireCredentials() error {
	if c.CloudUsername == "" || c.CloudPassword == "" {
		return ErrMissingCredentials
	}
	return nil
}

// debugEnabled treats empty, "0" and "false" as off and anything else as on.
func debugEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false":
		return false
	}
	return true
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
