package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/flagx"
)

var serverFlags = []string{
	"-a", "-g", "-d", "-s", "-t", "-r", "-e", "-l", "-skip-migrations",
	"-b", "-u", "-p", "-region", "-endpoint",
}

// parseFlags populates Config fields from command-line flags.
//
//	-a string   HTTP bind address (":8000")
//	-g string   gRPC health bind address, empty disables it
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token ttl, minutes
//	-r int      refresh token ttl, days
//	-e string   environment (development, production)
//	-l string   log level
//	-skip-migrations
//	-b, -u, -p, -region, -endpoint   S3 bucket, user, password, region, endpoint
//
// Only the flags above are looked at; everything else in args is ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP address and port")
	fs.StringVar(&cfg.GRPCHealthAddr, "g", cfg.GRPCHealthAddr, "gRPC health address and port")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")

	accessMinutes := fs.Int("t", int(cfg.AccessTokenTTL/time.Minute), "access token ttl (minutes)")
	refreshDays := fs.Int("r", int(cfg.RefreshTokenTTL/(24*time.Hour)), "refresh token ttl (days)")

	fs.StringVar(&cfg.Environment, "e", cfg.Environment, "environment")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.SkipMigrations, "skip-migrations", cfg.SkipMigrations, "do not run migrations on startup")

	fs.StringVar(&cfg.S3.Bucket, "b", cfg.S3.Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3.User, "u", cfg.S3.User, "S3 access key")
	fs.StringVar(&cfg.S3.Password, "p", cfg.S3.Password, "S3 secret key")
	fs.StringVar(&cfg.S3.Region, "region", cfg.S3.Region, "S3 region")
	fs.StringVar(&cfg.S3.BaseEndpoint, "endpoint", cfg.S3.BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	if seen["t"] {
		cfg.AccessTokenTTL = time.Duration(*accessMinutes) * time.Minute
	}
	if seen["r"] {
		cfg.RefreshTokenTTL = time.Duration(*refreshDays) * 24 * time.Hour
	}
	return nil
}
