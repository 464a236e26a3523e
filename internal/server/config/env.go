package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig lists the variables understood by the server. Names follow the
// ones already used by the deployment that shares the database.
type envConfig struct {
	HTTPAddr       string        `env:"HTTP_ADDR"`
	GRPCHealthAddr string        `env:"GRPC_HEALTH_ADDR"`
	DatabaseDSN    string        `env:"DATABASE_URL"`
	SecretKey      string        `env:"SECRET_KEY"`
	AccessMinutes  int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	RefreshDays    int           `env:"REFRESH_TOKEN_EXPIRE_DAYS"`
	BcryptCost     int           `env:"BCRYPT_ROUNDS"`
	Environment    string        `env:"ENVIRONMENT"`
	LogLevel       string        `env:"LOG_LEVEL"`
	LogBackend     string        `env:"LOG_BACKEND"`
	LogFormat      string        `env:"LOG_FORMAT"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envSeparator:","`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES"`
	AuthRateLimit  float64       `env:"AUTH_RATE_LIMIT"`
	AuthRateBurst  int           `env:"AUTH_RATE_BURST"`
	SkipMigrations bool          `env:"SKIP_MIGRATIONS"`
	HealthInterval time.Duration `env:"HEALTH_INTERVAL"`
	S3User         string        `env:"S3_ROOT_USER"`
	S3Password     string        `env:"S3_ROOT_PASSWORD"`
	S3Bucket       string        `env:"S3_BUCKET"`
	S3Region       string        `env:"S3_REGION"`
	S3BaseEndpoint string        `env:"S3_BASE_ENDPOINT"`
	S3Prefix       string        `env:"S3_PREFIX"`
}

// parseEnv overlays environment variables onto cfg. Unset variables keep the
// current value. environ replaces the process environment when non-nil.
func parseEnv(cfg *Config, environ map[string]string) error {
	accessMinutes := int(cfg.AccessTokenTTL / time.Minute)
	refreshDays := int(cfg.RefreshTokenTTL / (24 * time.Hour))

	e := envConfig{
		HTTPAddr:       cfg.HTTPAddr,
		GRPCHealthAddr: cfg.GRPCHealthAddr,
		DatabaseDSN:    cfg.DatabaseDSN,
		SecretKey:      cfg.SecretKey,
		AccessMinutes:  accessMinutes,
		RefreshDays:    refreshDays,
		BcryptCost:     cfg.BcryptCost,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
		LogBackend:     cfg.LogBackend,
		LogFormat:      cfg.LogFormat,
		CORSOrigins:    cfg.CORSOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateBurst:  cfg.AuthRateBurst,
		SkipMigrations: cfg.SkipMigrations,
		HealthInterval: cfg.HealthInterval,
		S3User:         cfg.S3.User,
		S3Password:     cfg.S3.Password,
		S3Bucket:       cfg.S3.Bucket,
		S3Region:       cfg.S3.Region,
		S3BaseEndpoint: cfg.S3.BaseEndpoint,
		S3Prefix:       cfg.S3.Prefix,
	}

	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	cfg.HTTPAddr = e.HTTPAddr
	cfg.GRPCHealthAddr = e.GRPCHealthAddr
	cfg.DatabaseDSN = e.DatabaseDSN
	cfg.SecretKey = e.SecretKey
	if e.AccessMinutes != accessMinutes {
		cfg.AccessTokenTTL = time.Duration(e.AccessMinutes) * time.Minute
	}
	if e.RefreshDays != refreshDays {
		cfg.RefreshTokenTTL = time.Duration(e.RefreshDays) * 24 * time.Hour
	}
	cfg.BcryptCost = e.BcryptCost
	cfg.Environment = e.Environment
	cfg.LogLevel = e.LogLevel
	cfg.LogBackend = e.LogBackend
	cfg.LogFormat = e.LogFormat
	cfg.CORSOrigins = e.CORSOrigins
	cfg.MaxBodyBytes = e.MaxBodyBytes
	cfg.AuthRateLimit = e.AuthRateLimit
	cfg.AuthRateBurst = e.AuthRateBurst
	cfg.SkipMigrations = e.SkipMigrations
	cfg.HealthInterval = e.HealthInterval
	cfg.S3 = S3{
		User:         e.S3User,
		Password:     e.S3Password,
		Bucket:       e.S3Bucket,
		Region:       e.S3Region,
		BaseEndpoint: e.S3BaseEndpoint,
		Prefix:       e.S3Prefix,
	}
	return nil
}
