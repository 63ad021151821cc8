// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	Port     string
	Env      string
	LogLevel string

	MongoURI   string
	DBName     string
	MongoRetry time.Duration

	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	S3Endpoint    string

	JWTSecret     string
	AdminEmail    string
	AdminPassword string
	AdminName     string

	MaxUploadMB     int64
	ProgressTimeout time.Duration
	RedisURL        string
	ResetSchedule   string
	CORSOrigins     []string
}

func Load() (*Config, error) {
	_ = os.Setenv("AWS_REGION", getEnv("AWS_REGION", "us-east-1"))

	maxMB, err := getInt("MAX_UPLOAD_MB", 50)
	if err != nil {
		return nil, err
	}
	retry, err := getDuration("MONGODB_RETRY_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	progressTimeout, err := getDuration("PROGRESS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            getEnv("PORT", "5000"),
		Env:             getEnv("APP_ENV", "production"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:          getEnv("MONGODB_DB", "writeups"),
		MongoRetry:      retry,
		S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		S3Region:        getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:      getEnv("AWS_S3_ENDPOINT", ""),
		JWTSecret:       getEnv("JWT_SECRET", defaultJWTSecret),
		AdminEmail:      getEnv("ADMIN_EMAIL", ""),
		AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
		AdminName:       getEnv("ADMIN_NAME", "Admin"),
		MaxUploadMB:     int64(maxMB),
		ProgressTimeout: progressTimeout,
		RedisURL:        getEnv("REDIS_URL", ""),
		ResetSchedule:   getEnv("RESET_SCHEDULE", "0 0 * * *"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
	}, nil
}

func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration such as 5s, got %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RequiredEnvVars are checked at startup; the app exits if any are unset.
var RequiredEnvVars = []string{
	"MONGODB_URI",
	"JWT_SECRET",
}

// OptionalEnvVars are logged at startup so you can confirm they are loaded when set.
var OptionalEnvVars = []string{
	"PORT",
	"APP_ENV",
	"LOG_LEVEL",
	"MONGODB_DB",
	"AWS_S3_BUCKET",
	"AWS_REGION",
	"AWS_S3_ENDPOINT",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"ADMIN_EMAIL",
	"ADMIN_PASSWORD",
	"REDIS_URL",
	"RESET_SCHEDULE",
	"CORS_ORIGINS",
}

var secretEnvVars = map[string]bool{
	"JWT_SECRET":            true,
	"AWS_ACCESS_KEY_ID":     true,
	"AWS_SECRET_ACCESS_KEY": true,
	"ADMIN_PASSWORD":        true,
	"REDIS_URL":             true,
	"MONGODB_URI":           true,
}

// ValidateEnv checks that all required env vars are set and logs the status of the
// optional ones. Outside development the default JWT secret is refused.
func ValidateEnv() error {
	var missing []string
	for _, key := range RequiredEnvVars {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
			continue
		}
		log.Debug().Str("key", key).Msg("env loaded")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env: %s (set these in .env or environment)", strings.Join(missing, ", "))
	}
	for _, key := range OptionalEnvVars {
		v := strings.TrimSpace(os.Getenv(key))
		switch {
		case v == "":
			log.Debug().Str("key", key).Msg("env not set (optional)")
		case secretEnvVars[key]:
			log.Debug().Str("key", key).Msg("env loaded")
		default:
			log.Debug().Str("key", key).Str("value", v).Msg("env loaded")
		}
	}
	if os.Getenv("JWT_SECRET") == defaultJWTSecret && !strings.EqualFold(os.Getenv("APP_ENV"), "development") {
		return fmt.Errorf("JWT_SECRET must be set to a strong secret (not the default %s)", defaultJWTSecret)
	}
	return nil
}
