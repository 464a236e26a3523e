package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/recordapi/internal/flagx"
	"github.com/dmitrijs2005/recordapi/internal/timex"
)

// jsonConfig mirrors Config for unmarshalling. Pointer fields distinguish an
// absent key from a zero value so that only keys present in the file
// override the defaults.
type jsonConfig struct {
	HTTPAddr        *string         `json:"http_addr"`
	GRPCHealthAddr  *string         `json:"grpc_health_addr"`
	DatabaseDSN     *string         `json:"database_dsn"`
	SecretKey       *string         `json:"secret_key"`
	AccessTokenTTL  *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL *timex.Duration `json:"refresh_token_ttl"`
	BcryptCost      *int            `json:"bcrypt_cost"`
	Environment     *string         `json:"environment"`
	LogLevel        *string         `json:"log_level"`
	LogBackend      *string         `json:"log_backend"`
	LogFormat       *string         `json:"log_format"`
	CORSOrigins     []string        `json:"cors_origins"`
	MaxBodyBytes    *int64          `json:"max_body_bytes"`
	AuthRateLimit   *float64        `json:"auth_rate_limit"`
	AuthRateBurst   *int            `json:"auth_rate_burst"`
	SkipMigrations  *bool           `json:"skip_migrations"`
	HealthInterval  *timex.Duration `json:"health_interval"`
	S3              *struct {
		User         *string `json:"user"`
		Password     *string `json:"password"`
		Bucket       *string `json:"bucket"`
		Region       *string `json:"region"`
		BaseEndpoint *string `json:"base_endpoint"`
		Prefix       *string `json:"prefix"`
	} `json:"s3"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// parseJSON overlays the file named by -c/-config in args, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var c jsonConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&cfg.HTTPAddr, c.HTTPAddr)
	set(&cfg.GRPCHealthAddr, c.GRPCHealthAddr)
	set(&cfg.DatabaseDSN, c.DatabaseDSN)
	set(&cfg.SecretKey, c.SecretKey)
	if c.AccessTokenTTL != nil {
		cfg.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		cfg.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	set(&cfg.BcryptCost, c.BcryptCost)
	set(&cfg.Environment, c.Environment)
	set(&cfg.LogLevel, c.LogLevel)
	set(&cfg.LogBackend, c.LogBackend)
	set(&cfg.LogFormat, c.LogFormat)
	if c.CORSOrigins != nil {
		cfg.CORSOrigins = c.CORSOrigins
	}
	set(&cfg.MaxBodyBytes, c.MaxBodyBytes)
	set(&cfg.AuthRateLimit, c.AuthRateLimit)
	set(&cfg.AuthRateBurst, c.AuthRateBurst)
	set(&cfg.SkipMigrations, c.SkipMigrations)
	if c.HealthInterval != nil {
		cfg.HealthInterval = c.HealthInterval.Duration
	}
	if s := c.S3; s != nil {
		set(&cfg.S3.User, s.User)
		set(&cfg.S3.Password, s.Password)
		set(&cfg.S3.Bucket, s.Bucket)
		set(&cfg.S3.Region, s.Region)
		set(&cfg.S3.BaseEndpoint, s.BaseEndpoint)
		set(&cfg.S3.Prefix, s.Prefix)
	}
	return nil
}
