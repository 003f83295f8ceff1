// Package panel hosts the per-viewer party overview state around the
// domain computation.
package panel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/party-overview/internal/platform/errors"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/storage"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/viewer"
)

const tracerName = "github.com/louisbranch/party-overview/internal/services/partyoverview/panel"

// ErrPanelClosed is returned when rendering a closed panel without force.
var ErrPanelClosed = apperrors.New(apperrors.CodePanelClosed, "party overview panel is closed")

// RenderOptions control a single render.
type RenderOptions struct {
	// Force reopens a closed panel.
	Force bool
	// IgnoreEmpty renders even when no actor qualifies.
	IgnoreEmpty bool
}

// Deps are the collaborators a panel reads from.
type Deps struct {
	Roster   storage.RosterSource
	Settings storage.SettingsStore
	Adapter  domain.SystemAdapter
	Reporter domain.Reporter
	Tracer   trace.Tracer
}

// snapshot is the interactive state of a panel.
type snapshot struct {
	Active    bool
	Mode      domain.FilterMode
	ActiveTab string
	Hidden    []string
}

// Panel is one viewer's party overview.
type Panel struct {
	mu     sync.Mutex
	deps   Deps
	notify func()

	active    bool
	mode      domain.FilterMode
	hidden    domain.HiddenSet
	activeTab string
	last      domain.ViewState
	hasLast   bool
}

// New returns an open panel.
func New(deps Deps) *Panel {
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	return &Panel{
		deps:      deps,
		active:    true,
		mode:      domain.DefaultFilterMode,
		activeTab: domain.DefaultActiveTab,
	}
}

// Render computes the view state for v.
//
// When no actor qualifies the previously rendered state is returned
// unchanged.
func (p *Panel) Render(ctx context.Context, v viewer.Viewer, opts RenderOptions) (domain.ViewState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active && !opts.Force {
		return domain.ViewState{}, ErrPanelClosed
	}

	ctx, span := p.deps.Tracer.Start(ctx, "panel.render")
	defer span.End()
	span.SetAttributes(
		attribute.String("party.mode", p.mode.String()),
		attribute.Bool("party.force", opts.Force),
		attribute.Bool("party.viewer_gm", v.IsGM),
	)
	if p.deps.Adapter != nil {
		span.SetAttributes(attribute.String("party.system", p.deps.Adapter.ID()))
	}

	state, err := p.render(ctx, v, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return domain.ViewState{}, err
	}
	p.active = true
	span.SetAttributes(
		attribute.Int("party.actor_count", len(state.Actors)),
		attribute.Int("party.diagnostic_count", len(state.Diagnostics)),
	)
	return state, nil
}

func (p *Panel) render(ctx context.Context, v viewer.Viewer, opts RenderOptions) (domain.ViewState, error) {
	if p.deps.Roster == nil {
		return domain.ViewState{}, fmt.Errorf("render party overview: roster source is not configured")
	}
	roster, err := p.deps.Roster.PlayerActors(ctx)
	if err != nil {
		return domain.ViewState{}, fmt.Errorf("load roster: %w", err)
	}
	persisted, err := storage.LoadTabVisibility(ctx, p.deps.Settings)
	if err != nil {
		return domain.ViewState{}, fmt.Errorf("load tab visibility: %w", err)
	}

	state, ok := domain.Compute(domain.Input{
		Roster:        roster,
		Mode:          p.mode,
		Hidden:        p.hidden.Clone(),
		ActiveTab:     p.activeTab,
		Adapter:       p.deps.Adapter,
		ViewerIsGM:    v.IsGM,
		PersistedTabs: persisted,
		IgnoreEmpty:   opts.IgnoreEmpty,
		Reporter:      p.deps.Reporter,
	})
	if !ok {
		if p.hasLast {
			return p.last, nil
		}
		return domain.ViewState{
			ActiveTab: p.activeTab,
			Mode:      p.mode,
			Actors:    []domain.ActorRecord{},
			Tabs:      domain.ReconcileTabs(persisted, p.tabDefinitions(), v.IsGM),
		}, nil
	}
	p.last = state
	p.hasLast = true
	return state, nil
}

// Layout returns the sizing hints for state.
func (p *Panel) Layout(state domain.ViewState) domain.Layout {
	width := 0
	if p.deps.Adapter != nil {
		width = p.deps.Adapter.Width()
	}
	return domain.LayoutFor(len(state.Actors), width)
}

// SystemID returns the ruleset identifier of the panel's adapter.
func (p *Panel) SystemID() string {
	if p.deps.Adapter == nil {
		return ""
	}
	return p.deps.Adapter.ID()
}

// Template returns the name of the ruleset body template.
func (p *Panel) Template() string {
	if p.deps.Adapter == nil {
		return ""
	}
	return p.deps.Adapter.Template()
}

// ToggleHidden flips whether actorID is hidden and reports the new state.
func (p *Panel) ToggleHidden(actorID string) (bool, error) {
	if actorID == "" {
		return false, apperrors.New(apperrors.CodeActorIDEmpty, "actor id is required")
	}
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return false, ErrPanelClosed
	}
	hidden := p.hidden.Toggle(actorID)
	p.mu.Unlock()
	p.changed()
	return hidden, nil
}

// AdvanceMode moves to the next filter mode and returns it.
func (p *Panel) AdvanceMode() (domain.FilterMode, error) {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return p.mode, ErrPanelClosed
	}
	p.mode = domain.NextMode(p.mode)
	mode := p.mode
	p.mu.Unlock()
	p.changed()
	return mode, nil
}

// SelectTab makes tab the active tab.
func (p *Panel) SelectTab(tab string) error {
	if !p.hasTab(tab) {
		return unknownTab(tab)
	}
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrPanelClosed
	}
	p.activeTab = tab
	p.mu.Unlock()
	p.changed()
	return nil
}

// SetTabVisible persists whether players see tabKey. Only a gamemaster may
// change it.
func (p *Panel) SetTabVisible(ctx context.Context, v viewer.Viewer, tabKey string, visible bool) error {
	if !v.IsGM {
		return apperrors.New(apperrors.CodeForbidden, "only the gamemaster can change tab visibility")
	}
	if !p.hasTab(tabKey) {
		return unknownTab(tabKey)
	}
	if p.deps.Settings == nil {
		return fmt.Errorf("set tab visibility: settings store is not configured")
	}

	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrPanelClosed
	}
	err := p.persistTabVisible(ctx, tabKey, visible)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.changed()
	return nil
}

func (p *Panel) persistTabVisible(ctx context.Context, tabKey string, visible bool) error {
	persisted, err := storage.LoadTabVisibility(ctx, p.deps.Settings)
	if err != nil {
		return fmt.Errorf("load tab visibility: %w", err)
	}
	tabs := domain.ReconcileTabs(persisted, p.tabDefinitions(), false)
	state := tabs[tabKey]
	state.Visible = visible
	tabs[tabKey] = state
	if err := storage.SaveTabVisibility(ctx, p.deps.Settings, tabs); err != nil {
		return fmt.Errorf("save tab visibility: %w", err)
	}
	return nil
}

// Close tears the panel down. Hidden actors, mode and tab are reset.
func (p *Panel) Close() {
	p.mu.Lock()
	p.active = false
	p.hidden = domain.HiddenSet{}
	p.mode = domain.DefaultFilterMode
	p.activeTab = domain.DefaultActiveTab
	p.last = domain.ViewState{}
	p.hasLast = false
	p.mu.Unlock()
	p.changed()
}

func (p *Panel) isActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Panel) snapshot() snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return snapshot{
		Active:    p.active,
		Mode:      p.mode,
		ActiveTab: p.activeTab,
		Hidden:    p.hidden.IDs(),
	}
}

func (p *Panel) tabDefinitions() []domain.TabDefinition {
	if p.deps.Adapter == nil {
		return nil
	}
	return p.deps.Adapter.Tabs()
}

func (p *Panel) hasTab(key string) bool {
	for _, def := range p.tabDefinitions() {
		if def.Key == key {
			return true
		}
	}
	return false
}

func (p *Panel) changed() {
	if p.notify != nil {
		p.notify()
	}
}

func unknownTab(tab string) error {
	return apperrors.WithMetadata(apperrors.CodeUnknownTab, fmt.Sprintf("unknown tab %q", tab), map[string]string{"Tab": tab})
}
