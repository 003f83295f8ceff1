package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/panel"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/viewer"
)

const (
	mcpServerName    = "party-overview"
	mcpServerVersion = "0.1.0"
)

// PartyOverviewInput is the MCP tool input for reading the overview.
type PartyOverviewInput struct {
	Force       bool `json:"force,omitempty" jsonschema:"reopen the panel if it was closed"`
	IgnoreEmpty bool `json:"ignore_empty,omitempty" jsonschema:"return a state even when no actor qualifies"`
}

// PartyOverviewActor is one row of the overview.
type PartyOverviewActor struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ShortestName string         `json:"shortest_name"`
	IsHidden     bool           `json:"is_hidden"`
	Details      map[string]any `json:"details,omitempty"`
}

// PartyOverviewResult is the MCP tool output.
type PartyOverviewResult struct {
	System      string               `json:"system"`
	Mode        string               `json:"mode"`
	ActiveTab   string               `json:"active_tab"`
	Actors      []PartyOverviewActor `json:"actors"`
	Tabs        map[string]bool      `json:"tabs"`
	Extras      map[string]any       `json:"extras,omitempty"`
	Diagnostics []string             `json:"diagnostics,omitempty"`
}

// PartyOverviewTool defines the MCP tool schema for the overview.
func PartyOverviewTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "party_overview",
		Description: "Returns the party overview as the calling viewer sees it",
	}
}

// PartyOverviewHandler renders the viewer's panel for the tool.
func PartyOverviewHandler(hub *panel.Hub, v viewer.Viewer) mcp.ToolHandlerFor[PartyOverviewInput, PartyOverviewResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PartyOverviewInput) (*mcp.CallToolResult, PartyOverviewResult, error) {
		p := hub.Panel(v.UserID)
		state, err := p.Render(ctx, v, panel.RenderOptions{Force: input.Force, IgnoreEmpty: input.IgnoreEmpty})
		if err != nil {
			return nil, PartyOverviewResult{}, err
		}

		result := PartyOverviewResult{
			System:    p.SystemID(),
			Mode:      state.Mode.String(),
			ActiveTab: state.ActiveTab,
			Actors:    make([]PartyOverviewActor, 0, len(state.Actors)),
			Tabs:      make(map[string]bool, len(state.Tabs)),
			Extras:    state.Extras,
		}
		for _, actor := range state.Actors {
			result.Actors = append(result.Actors, PartyOverviewActor{
				ID:           actor.ID,
				Name:         actor.Name,
				ShortestName: actor.ShortestName,
				IsHidden:     actor.IsHidden,
				Details:      actor.Details,
			})
		}
		for key, tab := range state.Tabs {
			result.Tabs[key] = tab.Visible
		}
		for _, d := range state.Diagnostics {
			result.Diagnostics = append(result.Diagnostics, d.Error())
		}
		return nil, result, nil
	}
}

// newMCPServer builds an MCP server bound to v.
func newMCPServer(hub *panel.Hub, v viewer.Viewer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: mcpServerName, Version: mcpServerVersion}, nil)
	mcp.AddTool(server, PartyOverviewTool(), PartyOverviewHandler(hub, v))
	return server
}

// mcpHandler serves streamable MCP sessions. With token verification on,
// requests must carry a bearer token and each session only accepts requests
// from the viewer that opened it.
func (h *Handler) mcpHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return newMCPServer(h.hub, requestViewer(r))
	}, nil)
	if !h.resolver.Verifying() {
		return streamable
	}
	return auth.RequireBearerToken(h.verifyMCPToken, nil)(streamable)
}

func (h *Handler) verifyMCPToken(_ context.Context, token string, _ *http.Request) (*auth.TokenInfo, error) {
	v, expires, err := h.resolver.ParseTokenExpiry(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	return &auth.TokenInfo{UserID: v.UserID, Expiration: expires}, nil
}
