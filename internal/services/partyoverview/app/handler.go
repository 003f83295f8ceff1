// Package app wires the party overview HTTP, websocket, MCP and gRPC
// surfaces.
package app

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"golang.org/x/text/message"

	apperrors "github.com/louisbranch/party-overview/internal/platform/errors"
	"github.com/louisbranch/party-overview/internal/platform/httpx"
	"github.com/louisbranch/party-overview/internal/platform/i18n"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/panel"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/storage"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/templates"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/viewer"
)

//go:embed static
var assetsFS embed.FS

// maxBodyBytes bounds roster mutation payloads.
const maxBodyBytes = 1 << 20

// Store is the persistence the handler needs.
type Store interface {
	storage.RosterSource
	storage.SettingsStore
	storage.RosterWriter
}

// HandlerDeps are the handler collaborators.
type HandlerDeps struct {
	Hub      *panel.Hub
	Store    Store
	Adapter  domain.SystemAdapter
	Resolver *viewer.Resolver
	Logger   *log.Logger
}

// Handler serves the party overview routes.
type Handler struct {
	hub      *panel.Hub
	store    Store
	adapter  domain.SystemAdapter
	resolver *viewer.Resolver
	logger   *log.Logger
	mux      *http.ServeMux

	closeOnce sync.Once
	closing   chan struct{}
}

// NewHandler builds the routed handler.
func NewHandler(deps HandlerDeps) (*Handler, error) {
	if deps.Hub == nil || deps.Store == nil || deps.Adapter == nil || deps.Resolver == nil {
		return nil, fmt.Errorf("handler dependencies are incomplete")
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	staticFS, err := fs.Sub(assetsFS, "static")
	if err != nil {
		return nil, fmt.Errorf("resolve static assets: %w", err)
	}

	h := &Handler{
		hub:      deps.Hub,
		store:    deps.Store,
		adapter:  deps.Adapter,
		resolver: deps.Resolver,
		logger:   deps.Logger,
		mux:      http.NewServeMux(),
		closing:  make(chan struct{}),
	}

	mux := h.mux
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc(http.MethodGet+" /up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc(http.MethodGet+" /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/party/", http.StatusFound)
	})

	mux.Handle(http.MethodGet+" /party/{$}", h.withViewer(h.handlePanel))
	mux.Handle(http.MethodDelete+" /party/{$}", h.withViewer(h.handleClose))
	mux.Handle(http.MethodGet+" /party/state", h.withViewer(h.handleState))
	mux.Handle(http.MethodPost+" /party/actors/{actorID}/visibility", h.withViewer(h.handleToggleHidden))
	mux.Handle(http.MethodPost+" /party/mode", h.withViewer(h.handleAdvanceMode))
	mux.Handle(http.MethodPost+" /party/tabs/{tab}", h.withViewer(h.handleSelectTab))
	mux.Handle(http.MethodPost+" /party/tabs/{tab}/visibility", h.withViewer(h.handleTabVisibility))
	mux.Handle(http.MethodGet+" /party/ws", h.withViewer(h.handleWebsocket))

	mux.Handle(http.MethodGet+" /api/actors", h.withViewer(h.handleListActors))
	mux.Handle(http.MethodPut+" /api/actors/{actorID}", h.withViewer(h.requireGM(h.handlePutActor)))
	mux.Handle(http.MethodDelete+" /api/actors/{actorID}", h.withViewer(h.requireGM(h.handleDeleteActor)))
	mux.Handle(http.MethodPut+" /api/scenes/{sceneID}/tokens", h.withViewer(h.requireGM(h.handlePutSceneTokens)))
	mux.Handle(http.MethodPost+" /api/scenes/{sceneID}/activate", h.withViewer(h.requireGM(h.handleActivateScene)))

	mux.Handle("/mcp", h.withViewer(h.mcpHandler().ServeHTTP))

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Close ends long-lived websocket connections.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// localizer resolves the request locale, optionally persists a cookie,
// and returns a message printer with the resolved language tag string.
func localizer(w http.ResponseWriter, r *http.Request) (*message.Printer, string) {
	tag, setCookie := i18n.ResolveTag(r)
	if setCookie {
		i18n.SetLanguageCookie(w, tag)
	}
	return i18n.Printer(tag), tag.String()
}

func requestLocale(r *http.Request) string {
	tag, _ := i18n.ResolveTag(r)
	return tag.String()
}

func (h *Handler) withViewer(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := h.resolver.Resolve(r)
		if err != nil {
			httpx.WriteError(w, err, requestLocale(r))
			return
		}
		next(w, r.WithContext(viewer.WithViewer(r.Context(), v)))
	})
}

func (h *Handler) requireGM(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if v := requestViewer(r); !v.IsGM {
			httpx.WriteError(w, apperrors.New(apperrors.CodeForbidden, "gamemaster access required"), requestLocale(r))
			return
		}
		next(w, r)
	}
}

func requestViewer(r *http.Request) viewer.Viewer {
	v, _ := viewer.FromContext(r.Context())
	return v
}

func (h *Handler) panelFor(r *http.Request) *panel.Panel {
	return h.hub.Panel(requestViewer(r).UserID)
}

func (h *Handler) handlePanel(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := panel.RenderOptions{
		Force:       queryFlag(query.Get("force")),
		IgnoreEmpty: queryFlag(query.Get("ignore_empty")),
	}
	h.renderPanel(w, r, opts)
}

func (h *Handler) renderPanel(w http.ResponseWriter, r *http.Request, opts panel.RenderOptions) {
	printer, lang := localizer(w, r)
	v := requestViewer(r)
	p := h.panelFor(r)
	state, err := p.Render(r.Context(), v, opts)
	if err != nil {
		httpx.WriteError(w, err, lang)
		return
	}
	view, err := h.panelView(r, p, state, v)
	if err != nil {
		httpx.WriteError(w, err, lang)
		return
	}

	var component templ.Component
	if httpx.IsHTMXRequest(r) {
		component = templates.Panel(view, printer)
	} else {
		component = templates.Page(templates.PageView{
			Lang:      lang,
			Panel:     view,
			Languages: languageOptions(lang),
		}, printer)
	}

	var buf bytes.Buffer
	if err := component.Render(r.Context(), &buf); err != nil {
		httpx.WriteError(w, fmt.Errorf("render panel: %w", err), lang)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) panelView(r *http.Request, p *panel.Panel, state domain.ViewState, v viewer.Viewer) (templates.PanelView, error) {
	view := templates.PanelView{
		State:    state,
		Layout:   p.Layout(state),
		System:   p.SystemID(),
		Template: p.Template(),
		TabOrder: h.adapter.Tabs(),
		IsGM:     v.IsGM,
	}
	if v.IsGM {
		persisted, err := storage.LoadTabVisibility(r.Context(), h.store)
		if err != nil {
			return templates.PanelView{}, fmt.Errorf("load tab visibility: %w", err)
		}
		view.PlayerTabs = domain.ReconcileTabs(persisted, view.TabOrder, false)
	}
	return view, nil
}

func languageOptions(current string) []templates.LanguageOption {
	labels := map[string]string{"en-US": "core.lang.en", "pt-BR": "core.lang.pt_br"}
	tags := i18n.SupportedTags()
	options := make([]templates.LanguageOption, 0, len(tags))
	for _, tag := range tags {
		value := tag.String()
		options = append(options, templates.LanguageOption{
			Tag:      value,
			LabelKey: labels[value],
			Current:  value == current,
		})
	}
	return options
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	h.hub.Close(requestViewer(r).UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state, err := h.panelFor(r).Render(r.Context(), requestViewer(r), panel.RenderOptions{
		Force:       queryFlag(query.Get("force")),
		IgnoreEmpty: queryFlag(query.Get("ignore_empty")),
	})
	if err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleToggleHidden(w http.ResponseWriter, r *http.Request) {
	if _, err := h.panelFor(r).ToggleHidden(strings.TrimSpace(r.PathValue("actorID"))); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	h.renderPanel(w, r, panel.RenderOptions{})
}

func (h *Handler) handleAdvanceMode(w http.ResponseWriter, r *http.Request) {
	if _, err := h.panelFor(r).AdvanceMode(); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	h.renderPanel(w, r, panel.RenderOptions{IgnoreEmpty: true})
}

func (h *Handler) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	if err := h.panelFor(r).SelectTab(r.PathValue("tab")); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	h.renderPanel(w, r, panel.RenderOptions{})
}

func (h *Handler) handleTabVisibility(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("visible")
	if raw == "" {
		raw = r.PostFormValue("visible")
	}
	visible, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(apperrors.CodeInvalidInput, "visible must be true or false", err), requestLocale(r))
		return
	}
	if err := h.panelFor(r).SetTabVisible(r.Context(), requestViewer(r), r.PathValue("tab"), visible); err != nil {
		httpx.WriteError(w, err, requestLocale(r))
		return
	}
	h.hub.NotifyAll()
	h.renderPanel(w, r, panel.RenderOptions{})
}

func queryFlag(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "decode request body", err)
	}
	return nil
}
