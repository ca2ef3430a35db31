package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Defaults mirror the limits the upload form has always advertised.
const (
	DefaultAddr            = ":8080"
	DefaultMaxFiles        = 3
	DefaultMaxFileSizeMB   = 12
	DefaultMemoryPerItem   = 50_108_864
	DefaultAllowedOrigin   = "http://localhost:3000"
	DefaultAllowedFormats  = "jpg,png,webp,avif,bmp"
	minDefaultConcurrency  = 2
	environmentPrefix      = "PIXBATCH_"
	defaultDataDirName     = "./data"
	defaultServeDirName    = "./serve"
	defaultArchiveFormat   = "zip"
	defaultCleanupMaxAgeHr = 30 * 24
)

// env reads PIXBATCH_<name>, trimmed.
func env(name string) string {
	return strings.TrimSpace(os.Getenv(environmentPrefix + name))
}

// envInt reads PIXBATCH_<name> as a positive integer, falling back when unset
// or invalid.
func envInt(name string, fallback int) int {
	raw := env(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// GetDataDir returns the directory holding the Pebble stores.
// Checked at call time so tests and operators can point it elsewhere
// without restarting.
// Priority: PIXBATCH_DATA_DIR environment variable > "./data" default
func GetDataDir() string {
	if dir := env("DATA_DIR"); dir != "" {
		return dir
	}
	return defaultDataDirName
}

// GetCredentialsDBPath returns the full path to the credentials database.
// Path: {DATA_DIR}/credentials.db
func GetCredentialsDBPath() string {
	return filepath.Join(GetDataDir(), "credentials.db")
}

// GetFailuresDBPath returns the full path to the failures database.
// Path: {DATA_DIR}/failures.db
func GetFailuresDBPath() string {
	return filepath.Join(GetDataDir(), "failures.db")
}

// GetSuccessDBPath returns the full path to the success database.
// Path: {DATA_DIR}/success.db
func GetSuccessDBPath() string {
	return filepath.Join(GetDataDir(), "success.db")
}

// GetDirectServeBaseDir returns the base directory archives are published to
// for the directServe backend. Only administrators can change it.
func GetDirectServeBaseDir() string {
	if dir := env("SERVE_DIR"); dir != "" {
		return dir
	}
	return defaultServeDirName
}

// GetListenAddr returns the HTTP bind address.
func GetListenAddr() string {
	if addr := env("ADDR"); addr != "" {
		return addr
	}
	return DefaultAddr
}

// GetConcurrency returns the per-job concurrency bound for a batch of n items.
// An explicit PIXBATCH_CONCURRENCY wins; otherwise the bound is the CPU count
// (at least two) but never more than the number of items.
func GetConcurrency(n int) int {
	if v := envInt("CONCURRENCY", 0); v > 0 {
		return v
	}
	bound := runtime.NumCPU()
	if bound < minDefaultConcurrency {
		bound = minDefaultConcurrency
	}
	if n > 0 && n < bound {
		bound = n
	}
	return bound
}

// GetMemoryPerItem returns the worst-case byte budget reserved per concurrent slot.
func GetMemoryPerItem() int64 {
	return int64(envInt("MEMORY_PER_ITEM", DefaultMemoryPerItem))
}

// GetMaxFiles returns how many files a single upload may carry.
func GetMaxFiles() int {
	return envInt("MAX_FILES", DefaultMaxFiles)
}

// GetMaxFileSize returns the per-file upload limit in bytes.
func GetMaxFileSize() int64 {
	return int64(envInt("MAX_FILE_SIZE_MB", DefaultMaxFileSizeMB)) * 1024 * 1024
}

// GetAllowedFormats returns the target formats uploads may request.
func GetAllowedFormats() []string {
	raw := env("ALLOWED_FORMATS")
	if raw == "" {
		raw = DefaultAllowedFormats
	}
	var formats []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

// GetJWTSecret returns the HS256 secret for upload tokens. Empty disables auth.
func GetJWTSecret() []byte {
	secret := env("JWT_SECRET")
	if secret == "" {
		return nil
	}
	return []byte(secret)
}

// GetJWTPublicKey returns the RS256 verification key for upload tokens, as
// PEM text or a path to a PEM file. Empty leaves RS256 tokens disabled.
func GetJWTPublicKey() string {
	return env("JWT_PUBLIC_KEY")
}

// GetAllowedOrigin returns the origin accepted for websocket and CORS requests.
func GetAllowedOrigin() string {
	if origin := env("ALLOWED_ORIGIN"); origin != "" {
		return origin
	}
	return DefaultAllowedOrigin
}

// GetDefaultArchiveFormat returns the archive container used when the request
// does not pick one.
func GetDefaultArchiveFormat() string {
	if f := env("ARCHIVE_FORMAT"); f != "" {
		return strings.ToLower(f)
	}
	return defaultArchiveFormat
}

// GetLogLevel returns the configured minimum log level name.
func GetLogLevel() string {
	return env("LOG_LEVEL")
}

// GetLogFile returns the optional log file path.
func GetLogFile() string {
	return env("LOG_FILE")
}

// GetRecordMaxAgeHours returns how long success/failure records are kept.
func GetRecordMaxAgeHours() int {
	return envInt("RECORD_MAX_AGE_HOURS", defaultCleanupMaxAgeHr)
}
