// Package cmd holds the shared startup plumbing for service commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/party-overview/internal/platform/config"
	"github.com/louisbranch/party-overview/internal/platform/otel"
)

const defaultTelemetryShutdownTimeout = 5 * time.Second

// ServicePartyOverview names the party overview service in telemetry and logs.
const ServicePartyOverview = "party-overview"

// RunOptions tunes RunWithOptions.
type RunOptions struct {
	// ShutdownTimeout bounds the tracer provider flush on exit.
	ShutdownTimeout time.Duration
	// Logger receives lifecycle lines; log.Default when nil.
	Logger *log.Logger
}

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry configures tracing and executes a service run loop.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	return RunWithOptions(ctx, service, RunOptions{}, run)
}

// RunWithOptions configures tracing, runs the service and flushes spans on
// the way out. A run that ends because ctx was canceled is a clean stop.
func RunWithOptions(ctx context.Context, service string, options RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		timeout := options.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultTelemetryShutdownTimeout
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Printf("telemetry shutdown failed service=%s err=%v", service, err)
		}
	}()

	started := time.Now()
	logger.Printf("service starting service=%s", service)
	err = run(ctx)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	logger.Printf("service stopped service=%s uptime=%s", service, time.Since(started).Round(time.Millisecond))
	return err
}
