package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/louisbranch/party-overview/internal/platform/errors"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/storage"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/viewer"
)

var (
	gm     = viewer.Viewer{UserID: "gm", IsGM: true}
	player = viewer.Viewer{UserID: "p1"}
)

type fakeRoster struct {
	mu     sync.Mutex
	actors []domain.Actor
	err    error
}

func (f *fakeRoster) PlayerActors(context.Context) ([]domain.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Actor(nil), f.actors...), f.err
}

func (f *fakeRoster) set(actors ...domain.Actor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actors = actors
}

type memorySettings struct {
	mu     sync.Mutex
	values map[string][]byte
	putErr error
}

func (m *memorySettings) GetSetting(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[namespace+"/"+key]
	return value, ok, nil
}

func (m *memorySettings) PutSetting(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	if m.values == nil {
		m.values = map[string][]byte{}
	}
	m.values[namespace+"/"+key] = value
	return nil
}

type fakeAdapter struct {
	fail map[string]bool
}

func (fakeAdapter) ID() string       { return "fake" }
func (fakeAdapter) Width() int       { return 500 }
func (fakeAdapter) Template() string { return "generic" }
func (fakeAdapter) Tabs() []domain.TabDefinition {
	return []domain.TabDefinition{
		{Key: "general", ID: "general", Localization: "party.tab.general"},
		{Key: "traits", ID: "traits", Localization: "party.tab.traits"},
	}
}

func (f fakeAdapter) ActorDetails(actor domain.Actor) (domain.Details, error) {
	if f.fail[actor.ID] {
		return nil, errors.New("bad sheet")
	}
	return domain.Details{"hp": 1}, nil
}

func (fakeAdapter) Update(actors []domain.ActorRecord) ([]domain.ActorRecord, map[string]any) {
	return actors, map[string]any{"count": len(actors)}
}

func placed(id, name string) domain.Actor {
	return domain.Actor{ID: id, Name: name, PlayerOwned: true, Tokens: []domain.Token{{ID: "t-" + id, ActorID: id}}}
}

func newTestPanel(roster *fakeRoster, settings *memorySettings) *Panel {
	return New(Deps{Roster: roster, Settings: settings, Adapter: fakeAdapter{}})
}

func actorIDs(state domain.ViewState) []string {
	ids := make([]string, 0, len(state.Actors))
	for _, actor := range state.Actors {
		ids = append(ids, actor.ID)
	}
	return ids
}

func TestRenderDefaults(t *testing.T) {
	t.Parallel()

	roster := &fakeRoster{actors: []domain.Actor{placed("a", "Alice Smith"), placed("b", "Bob")}}
	p := newTestPanel(roster, &memorySettings{})

	state, err := p.Render(context.Background(), player, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if state.Mode != domain.ShowVisible || state.ActiveTab != "general" {
		t.Fatalf("mode/tab = %s/%s", state.Mode, state.ActiveTab)
	}
	if got := fmt.Sprint(actorIDs(state)); got != "[a b]" {
		t.Fatalf("actors = %s", got)
	}
	if state.Extras["count"] != 2 {
		t.Fatalf("extras = %v", state.Extras)
	}
	if !state.Tabs["traits"].Visible {
		t.Fatalf("tabs = %+v", state.Tabs)
	}
}

func TestRenderHidesToggledActors(t *testing.T) {
	t.Parallel()

	roster := &fakeRoster{actors: []domain.Actor{placed("a", "Alice"), placed("b", "Bob")}}
	p := newTestPanel(roster, &memorySettings{})

	hidden, err := p.ToggleHidden("a")
	if err != nil || !hidden {
		t.Fatalf("ToggleHidden = %v, %v", hidden, err)
	}
	state, err := p.Render(context.Background(), gm, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := fmt.Sprint(actorIDs(state)); got != "[b]" {
		t.Fatalf("visible actors = %s", got)
	}

	p.AdvanceMode() // hidden
	state, err = p.Render(context.Background(), gm, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := fmt.Sprint(actorIDs(state)); got != "[a]" || !state.Actors[0].IsHidden {
		t.Fatalf("hidden actors = %s", got)
	}

	if _, err := p.ToggleHidden(""); apperrors.CodeOf(err) != apperrors.CodeActorIDEmpty {
		t.Fatalf("ToggleHidden(empty) err = %v", err)
	}
}

func TestRenderEmptyGuardKeepsPreviousState(t *testing.T) {
	t.Parallel()

	roster := &fakeRoster{actors: []domain.Actor{placed("a", "Alice")}}
	p := newTestPanel(roster, &memorySettings{})
	first, err := p.Render(context.Background(), player, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	roster.set()
	second, err := p.Render(context.Background(), player, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if fmt.Sprint(actorIDs(second)) != fmt.Sprint(actorIDs(first)) {
		t.Fatalf("empty guard changed state: %v -> %v", actorIDs(first), actorIDs(second))
	}

	forced, err := p.Render(context.Background(), player, RenderOptions{IgnoreEmpty: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(forced.Actors) != 0 {
		t.Fatalf("IgnoreEmpty actors = %v", actorIDs(forced))
	}
}

func TestRenderEmptyInitialState(t *testing.T) {
	t.Parallel()

	p := newTestPanel(&fakeRoster{}, &memorySettings{})
	state, err := p.Render(context.Background(), player, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if state.Actors == nil || len(state.Actors) != 0 {
		t.Fatalf("actors = %#v, want empty", state.Actors)
	}
	if len(state.Tabs) != 2 {
		t.Fatalf("tabs = %+v", state.Tabs)
	}
}

func TestRenderReportsDiagnostics(t *testing.T) {
	t.Parallel()

	var reported []domain.Diagnostic
	roster := &fakeRoster{actors: []domain.Actor{placed("a", "Alice"), placed("b", "Bob")}}
	p := New(Deps{
		Roster:   roster,
		Adapter:  fakeAdapter{fail: map[string]bool{"b": true}},
		Reporter: domain.ReporterFunc(func(d domain.Diagnostic) { reported = append(reported, d) }),
	})
	state, err := p.Render(context.Background(), player, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(state.Actors) != 2 || state.Actors[1].Details != nil {
		t.Fatalf("actors = %+v", state.Actors)
	}
	if len(reported) != 1 || reported[0].ActorID != "b" {
		t.Fatalf("reported = %+v", reported)
	}
}

func TestRenderRosterError(t *testing.T) {
	t.Parallel()

	p := newTestPanel(&fakeRoster{err: errors.New("db down")}, &memorySettings{})
	if _, err := p.Render(context.Background(), player, RenderOptions{}); err == nil {
		t.Fatal("expected roster error")
	}
}

func TestCloseResetsAndRequiresForce(t *testing.T) {
	t.Parallel()

	roster := &fakeRoster{actors: []domain.Actor{placed("a", "Alice")}}
	p := newTestPanel(roster, &memorySettings{})
	if _, err := p.ToggleHidden("a"); err != nil {
		t.Fatalf("ToggleHidden: %v", err)
	}
	p.AdvanceMode()
	if err := p.SelectTab("traits"); err != nil {
		t.Fatalf("SelectTab: %v", err)
	}

	p.Close()
	snap := p.snapshot()
	if snap.Active || snap.Mode != domain.DefaultFilterMode || snap.ActiveTab != "general" || len(snap.Hidden) != 0 {
		t.Fatalf("snapshot after close = %+v", snap)
	}

	_, err := p.Render(context.Background(), player, RenderOptions{})
	if !errors.Is(err, ErrPanelClosed) {
		t.Fatalf("Render closed err = %v, want ErrPanelClosed", err)
	}
	if apperrors.CodeOf(err) != apperrors.CodePanelClosed {
		t.Fatalf("code = %s", apperrors.CodeOf(err))
	}

	state, err := p.Render(context.Background(), player, RenderOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Render: %v", err)
	}
	if len(state.Actors) != 1 || state.Actors[0].IsHidden {
		t.Fatalf("actors after reopen = %+v", state.Actors)
	}
	if !p.snapshot().Active {
		t.Fatal("panel should be active after forced render")
	}
}

func TestClosedPanelRejectsActions(t *testing.T) {
	t.Parallel()

	settings := &memorySettings{}
	roster := &fakeRoster{actors: []domain.Actor{placed("a1", "Alice"), placed("a2", "Bob")}}
	p := newTestPanel(roster, settings)
	ctx := context.Background()
	p.Close()

	if _, err := p.ToggleHidden("a1"); !errors.Is(err, ErrPanelClosed) {
		t.Fatalf("ToggleHidden err = %v, want ErrPanelClosed", err)
	}
	if _, err := p.AdvanceMode(); !errors.Is(err, ErrPanelClosed) {
		t.Fatalf("AdvanceMode err = %v, want ErrPanelClosed", err)
	}
	if err := p.SelectTab("traits"); !errors.Is(err, ErrPanelClosed) {
		t.Fatalf("SelectTab err = %v, want ErrPanelClosed", err)
	}
	if err := p.SetTabVisible(ctx, gm, "traits", false); !errors.Is(err, ErrPanelClosed) {
		t.Fatalf("SetTabVisible err = %v, want ErrPanelClosed", err)
	}
	if len(settings.values) != 0 {
		t.Fatalf("settings written while closed: %v", settings.values)
	}

	state, err := p.Render(ctx, gm, RenderOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Render: %v", err)
	}
	if state.Mode != domain.ShowVisible || state.ActiveTab != "general" {
		t.Fatalf("after reopen mode=%s tab=%s", state.Mode, state.ActiveTab)
	}
	if got := fmt.Sprint(actorIDs(state)); got != "[a1 a2]" {
		t.Fatalf("after reopen actors = %s", got)
	}
	if hidden := p.snapshot().Hidden; len(hidden) != 0 {
		t.Fatalf("after reopen hidden = %v", hidden)
	}

	if _, err := p.ToggleHidden("a1"); err != nil {
		t.Fatalf("ToggleHidden after reopen: %v", err)
	}
	if mode, err := p.AdvanceMode(); err != nil || mode != domain.ShowHidden {
		t.Fatalf("AdvanceMode after reopen = %s, %v", mode, err)
	}
}

func TestSelectTabUnknown(t *testing.T) {
	t.Parallel()

	p := newTestPanel(&fakeRoster{}, &memorySettings{})
	err := p.SelectTab("spells")
	if apperrors.CodeOf(err) != apperrors.CodeUnknownTab {
		t.Fatalf("err = %v, want unknown tab", err)
	}
}

func TestSetTabVisible(t *testing.T) {
	t.Parallel()

	settings := &memorySettings{}
	roster := &fakeRoster{actors: []domain.Actor{placed("a", "Alice")}}
	p := newTestPanel(roster, settings)
	ctx := context.Background()

	if err := p.SetTabVisible(ctx, player, "traits", false); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Fatalf("player err = %v, want forbidden", err)
	}
	if err := p.SetTabVisible(ctx, gm, "spells", false); apperrors.CodeOf(err) != apperrors.CodeUnknownTab {
		t.Fatalf("unknown tab err = %v", err)
	}
	if err := p.SetTabVisible(ctx, gm, "traits", false); err != nil {
		t.Fatalf("SetTabVisible: %v", err)
	}

	persisted, err := storage.LoadTabVisibility(ctx, settings)
	if err != nil {
		t.Fatalf("LoadTabVisibility: %v", err)
	}
	if persisted["traits"].Visible || !persisted["general"].Visible {
		t.Fatalf("persisted = %+v", persisted)
	}

	state, err := p.Render(ctx, player, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if state.Tabs["traits"].Visible {
		t.Fatal("player should not see hidden tab")
	}
	state, err = p.Render(ctx, gm, RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !state.Tabs["traits"].Visible {
		t.Fatal("gamemaster should see every tab")
	}

	settings.putErr = errors.New("disk full")
	if err := p.SetTabVisible(ctx, gm, "traits", true); err == nil {
		t.Fatal("expected save error")
	}
}

func TestLayout(t *testing.T) {
	t.Parallel()

	p := newTestPanel(&fakeRoster{}, &memorySettings{})
	layout := p.Layout(domain.ViewState{Actors: make([]domain.ActorRecord, 3)})
	if layout.Width != 500 || layout.MinWidth != 400 || layout.MinHeight != 78+33*3 {
		t.Fatalf("layout = %+v", layout)
	}
	if p.SystemID() != "fake" || p.Template() != "generic" {
		t.Fatalf("system/template = %s/%s", p.SystemID(), p.Template())
	}
}

func TestRenderRecordsSpan(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	roster := &fakeRoster{actors: []domain.Actor{placed("a", "Alice")}}
	p := New(Deps{
		Roster:  roster,
		Adapter: fakeAdapter{fail: map[string]bool{"a": true}},
		Tracer:  provider.Tracer("test"),
	})
	if _, err := p.Render(context.Background(), gm, RenderOptions{}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "panel.render" {
		t.Fatalf("spans = %d", len(spans))
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"party.mode":             "visible",
		"party.actor_count":      "1",
		"party.diagnostic_count": "1",
		"party.system":           "fake",
	}
	for key, value := range want {
		if attrs[key] != value {
			t.Errorf("%s = %q, want %q", key, attrs[key], value)
		}
	}
}

func TestHubPanelsAndNotifications(t *testing.T) {
	t.Parallel()

	hub := NewHub(Deps{Roster: &fakeRoster{}, Adapter: fakeAdapter{}})
	alice := hub.Panel("alice")
	if hub.Panel("alice") != alice {
		t.Fatal("expected the same panel for the same viewer")
	}
	if hub.Panel("bob") == alice {
		t.Fatal("expected distinct panels per viewer")
	}
	if got := fmt.Sprint(hub.viewers()); got != "[alice bob]" {
		t.Fatalf("viewers = %s", got)
	}

	aliceCh, cancelAlice := hub.Subscribe("alice")
	bobCh, cancelBob := hub.Subscribe("bob")
	defer cancelBob()

	alice.AdvanceMode()
	alice.AdvanceMode()
	waitFor(t, aliceCh, "alice after mode change")
	expectNone(t, aliceCh, "coalesced alice notification")
	expectNone(t, bobCh, "bob after alice change")

	hub.NotifyAll()
	waitFor(t, aliceCh, "alice after roster change")
	waitFor(t, bobCh, "bob after roster change")

	cancelAlice()
	cancelAlice()
	alice.Close()
	expectNone(t, aliceCh, "alice after cancel")
}

func waitFor(t *testing.T, ch <-chan struct{}, label string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", label)
	}
}

func expectNone(t *testing.T, ch <-chan struct{}, label string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected notification: %s", label)
	default:
	}
}

func TestHubCloseReleasesPanel(t *testing.T) {
	t.Parallel()

	hub := NewHub(Deps{Roster: &fakeRoster{}, Adapter: fakeAdapter{}})
	alice := hub.Panel("alice")
	hub.Panel("bob")
	hub.Close("alice")
	if got := fmt.Sprint(hub.viewers()); got != "[bob]" {
		t.Fatalf("viewers after close = %s", got)
	}
	reopened := hub.Panel("alice")
	if reopened == alice {
		t.Fatal("expected a fresh panel after close")
	}
	if _, err := reopened.Render(context.Background(), player, RenderOptions{}); !errors.Is(err, ErrPanelClosed) {
		t.Fatalf("recreated panel Render err = %v, want ErrPanelClosed", err)
	}
	if _, err := reopened.Render(context.Background(), player, RenderOptions{Force: true}); err != nil {
		t.Fatalf("forced Render: %v", err)
	}
	hub.Close("nobody")

	ch, cancel := hub.Subscribe("bob")
	hub.Close("bob")
	waitFor(t, ch, "bob after close")
	if got := fmt.Sprint(hub.viewers()); got != "[alice bob]" {
		t.Fatalf("subscribed panel released early: %s", got)
	}
	cancel()
	if got := fmt.Sprint(hub.viewers()); got != "[alice]" {
		t.Fatalf("viewers after unsubscribe = %s", got)
	}

	ch, cancel = hub.Subscribe("alice")
	cancel()
	if got := fmt.Sprint(hub.viewers()); got != "[alice]" {
		t.Fatalf("open panel released on unsubscribe: %s", got)
	}
	expectNone(t, ch, "alice after cancel")
}
