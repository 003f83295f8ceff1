package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/party-overview/internal/platform/httpx"
	"github.com/louisbranch/party-overview/internal/platform/timeouts"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/panel"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/storage/sqlite"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/systems"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/viewer"
)

// Config defines startup inputs for the party overview service.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	DBPath          string
	System          string
	SystemScript    string
	ViewerPublicKey string
	ViewerIssuer    string
	LocalViewerGM   bool
	Logger          *log.Logger
}

// Server hosts the party overview HTTP surface, the optional gRPC health
// endpoint and the store lifecycle.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	handler    *Handler
	grpc       *grpcServer
	store      *sqlite.Store
	logger     *log.Logger
}

// NewServer opens storage, selects the ruleset adapter and builds the routed
// handler.
func NewServer(_ context.Context, cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	registry, err := systems.Builtin(strings.TrimSpace(cfg.SystemScript), logger)
	if err != nil {
		return nil, fmt.Errorf("load systems: %w", err)
	}
	adapter, err := registry.Get(strings.TrimSpace(cfg.System))
	if err != nil {
		return nil, err
	}

	key, err := viewer.ParsePublicKey(cfg.ViewerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse viewer public key: %w", err)
	}
	resolver, err := viewer.NewResolver(viewer.Config{
		Issuer:  strings.TrimSpace(cfg.ViewerIssuer),
		Key:     key,
		LocalGM: cfg.LocalViewerGM,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	hub := panel.NewHub(panel.Deps{
		Roster:   store,
		Settings: store,
		Adapter:  adapter,
		Reporter: domain.LogReporter{Logger: logger},
	})
	handler, err := NewHandler(HandlerDeps{
		Hub:      hub,
		Store:    store,
		Adapter:  adapter,
		Resolver: resolver,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("compose party overview handler: %w", err)
	}

	var grpcSrv *grpcServer
	if addr := strings.TrimSpace(cfg.GRPCAddr); addr != "" {
		grpcSrv, err = newGRPCServer(addr, &partyOverviewService{hub: hub, resolver: resolver}, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	return &Server{
		httpAddr: httpAddr,
		httpServer: &http.Server{
			Addr: httpAddr,
			Handler: httpx.Chain(handler,
				httpx.RecoverPanic(),
				httpx.RequestID(),
				httpx.RequestLogger(logger),
			),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		handler: handler,
		grpc:    grpcSrv,
		store:   store,
		logger:  logger,
	}, nil
}

func openStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "party-overview.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open party overview store: %w", err)
	}
	return store, nil
}

// ListenAndServe serves traffic until context cancellation or server stop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("party overview server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	defer s.Close()

	grpcErr := make(chan error, 1)
	if s.grpc != nil {
		go func() {
			grpcErr <- s.grpc.Serve(ctx)
		}()
	}

	s.logger.Printf("party overview listening at %s", s.httpAddr)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.handler.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown party overview http server: %w", err)
		}
		if s.grpc != nil {
			return <-grpcErr
		}
		return nil
	case err := <-grpcErr:
		return err
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve party overview http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.handler != nil {
		s.handler.Close()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.grpc != nil {
		s.grpc.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Printf("close party overview store: %v", err)
		}
	}
}
