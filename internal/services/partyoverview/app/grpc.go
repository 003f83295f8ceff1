package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/text/language"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/louisbranch/party-overview/internal/platform/errors"
	"github.com/louisbranch/party-overview/internal/platform/i18n"
)

// healthServiceName is the named health entry next to the overall status.
const healthServiceName = "partyoverview.v1.PartyOverview"

// grpcServer hosts the party overview RPCs and the health endpoint.
type grpcServer struct {
	listener net.Listener
	server   *grpc.Server
	health   *health.Server
	logger   *log.Logger
}

func newGRPCServer(addr string, service partyOverviewServer, logger *log.Logger) (*grpcServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(statusInterceptor),
	)
	server.RegisterService(&partyOverviewServiceDesc, service)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return &grpcServer{listener: listener, server: server, health: healthServer, logger: logger}, nil
}

// Addr returns the listener address.
func (s *grpcServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs until ctx ends, then drains in-flight calls.
func (s *grpcServer) Serve(ctx context.Context) error {
	s.logger.Printf("party overview gRPC listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close stops the server immediately.
func (s *grpcServer) Close() {
	if s == nil {
		return
	}
	s.health.Shutdown()
	s.server.Stop()
	_ = s.listener.Close()
}

// statusInterceptor converts typed service errors into gRPC statuses with
// error details localized from the accept-language metadata.
func statusInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	var typed *apperrors.Error
	if !errors.As(err, &typed) {
		return resp, err
	}
	return resp, typed.ToGRPCStatus(grpcLocale(ctx))
}

func grpcLocale(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return i18n.DefaultTag().String()
	}
	for _, value := range md.Get("accept-language") {
		tags, _, err := language.ParseAcceptLanguage(value)
		if err != nil || len(tags) == 0 {
			continue
		}
		return i18n.MatchTags(tags).String()
	}
	return i18n.DefaultTag().String()
}
