// Package server parses race server flags and composes the service
// entrypoint.
package server

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/rohith-arumugam/truck-racing/internal/platform/cmd"
	server "github.com/rohith-arumugam/truck-racing/internal/services/race/app"
)

// Config holds race server configuration.
type Config struct {
	HTTPAddr string `env:"TRUCK_RACING_HTTP_ADDR" envDefault:":8090"`
	DBPath   string `env:"TRUCK_RACING_DB_PATH"   envDefault:"truck-racing.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "race HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "session mirror database path (empty disables mirroring)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the race app and starts the coordination transport.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRace, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr: cfg.HTTPAddr,
			DBPath:   cfg.DBPath,
		}); err != nil {
			return fmt.Errorf("serve race: %w", err)
		}
		return nil
	})
}
