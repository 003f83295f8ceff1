// Package partyoverview parses party overview command flags and starts the
// service.
package partyoverview

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/party-overview/internal/platform/cmd"
	server "github.com/louisbranch/party-overview/internal/services/partyoverview/app"
)

// Config holds party overview command configuration.
type Config struct {
	HTTPAddr        string `env:"PARTY_OVERVIEW_HTTP_ADDR"          envDefault:"localhost:8095"`
	GRPCAddr        string `env:"PARTY_OVERVIEW_GRPC_ADDR"`
	DBPath          string `env:"PARTY_OVERVIEW_DB_PATH"            envDefault:"data/party-overview.db"`
	System          string `env:"PARTY_OVERVIEW_SYSTEM"             envDefault:"daggerheart"`
	SystemScript    string `env:"PARTY_OVERVIEW_SYSTEM_SCRIPT"`
	ViewerPublicKey string `env:"PARTY_OVERVIEW_VIEWER_PUBLIC_KEY"`
	ViewerIssuer    string `env:"PARTY_OVERVIEW_VIEWER_ISSUER"`
	LocalViewerGM   bool   `env:"PARTY_OVERVIEW_LOCAL_VIEWER_GM"    envDefault:"true"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "party overview HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables it)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.System, "system", cfg.System, "ruleset system id")
	fs.StringVar(&cfg.SystemScript, "system-script", cfg.SystemScript, "Lua ruleset script path")
	fs.StringVar(&cfg.ViewerPublicKey, "viewer-public-key", cfg.ViewerPublicKey, "base64 ed25519 key verifying viewer tokens")
	fs.StringVar(&cfg.ViewerIssuer, "viewer-issuer", cfg.ViewerIssuer, "expected viewer token issuer")
	fs.BoolVar(&cfg.LocalViewerGM, "local-viewer-gm", cfg.LocalViewerGM, "treat the local viewer as gamemaster when tokens are disabled")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the party overview server and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePartyOverview, func(ctx context.Context) error {
		srv, err := server.NewServer(ctx, server.Config{
			HTTPAddr:        cfg.HTTPAddr,
			GRPCAddr:        cfg.GRPCAddr,
			DBPath:          cfg.DBPath,
			System:          cfg.System,
			SystemScript:    cfg.SystemScript,
			ViewerPublicKey: cfg.ViewerPublicKey,
			ViewerIssuer:    cfg.ViewerIssuer,
			LocalViewerGM:   cfg.LocalViewerGM,
		})
		if err != nil {
			return fmt.Errorf("init party overview server: %w", err)
		}
		if err := srv.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve party overview: %w", err)
		}
		return nil
	})
}
