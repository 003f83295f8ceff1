package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/panel"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/viewer"
)

const renderFullMethod = "/" + healthServiceName + "/Render"

// partyOverviewServer renders the caller's panel. Requests carry the optional
// "force" and "ignore_empty" booleans; responses are the view state.
type partyOverviewServer interface {
	Render(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var partyOverviewServiceDesc = grpc.ServiceDesc{
	ServiceName: healthServiceName,
	HandlerType: (*partyOverviewServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Render", Handler: renderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "partyoverview/v1/party_overview.proto",
}

func renderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(partyOverviewServer).Render(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: renderFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(partyOverviewServer).Render(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type partyOverviewService struct {
	hub      *panel.Hub
	resolver *viewer.Resolver
}

func (s *partyOverviewService) Render(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.resolver.ResolveToken(bearerFromMetadata(ctx))
	if err != nil {
		return nil, err
	}
	fields := in.GetFields()
	state, err := s.hub.Panel(v.UserID).Render(ctx, v, panel.RenderOptions{
		Force:       fields["force"].GetBoolValue(),
		IgnoreEmpty: fields["ignore_empty"].GetBoolValue(),
	})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode view state: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode view state: %w", err)
	}
	return structpb.NewStruct(out)
}

func bearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get("authorization") {
		scheme, token, found := strings.Cut(strings.TrimSpace(value), " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
