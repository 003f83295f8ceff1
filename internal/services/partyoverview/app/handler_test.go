package app

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/panel"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/storage/sqlite"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/systems/daggerheart"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/viewer"
)

const testSheet = `{"level":1,"hp":4,"hpMax":6,"stress":1,"stressMax":6,"hope":2,"evasion":10,"armor":1,"armorMax":3,"thresholds":{"major":5,"severe":10},"traits":{"agility":1}}`

type testEnv struct {
	handler *Handler
	store   *sqlite.Store
	hub     *panel.Hub
}

func newTestEnv(t *testing.T, cfg viewer.Config) testEnv {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "party.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	resolver, err := viewer.NewResolver(cfg)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	adapter := daggerheart.New()
	logger := log.New(io.Discard, "", 0)
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
		t.Fatalf("new handler: %v", err)
	}
	t.Cleanup(handler.Close)
	return testEnv{handler: handler, store: store, hub: hub}
}

func newLocalGMEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnv(t, viewer.Config{LocalGM: true})
}

// seedParty stores player actors and places each in the active scene.
func seedParty(t *testing.T, store *sqlite.Store, names ...string) {
	t.Helper()
	ctx := context.Background()
	tokens := make([]domain.Token, 0, len(names))
	for idx, name := range names {
		id := "a" + string(rune('1'+idx))
		if err := store.PutActor(ctx, domain.Actor{ID: id, Name: name, PlayerOwned: true, System: json.RawMessage(testSheet)}); err != nil {
			t.Fatalf("put actor %s: %v", id, err)
		}
		tokens = append(tokens, domain.Token{ID: "t-" + id, ActorID: id})
	}
	if err := store.PutSceneTokens(ctx, "scene-1", tokens); err != nil {
		t.Fatalf("put scene tokens: %v", err)
	}
	if err := store.ActivateScene(ctx, "scene-1"); err != nil {
		t.Fatalf("activate scene: %v", err)
	}
}

func serve(h http.Handler, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var htmx = map[string]string{"HX-Request": "true"}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var state map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func stateActorIDs(t *testing.T, state map[string]any) []string {
	t.Helper()
	raw, _ := state["actors"].([]any)
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		record, _ := item.(map[string]any)
		id, _ := record["id"].(string)
		ids = append(ids, id)
	}
	return ids
}

func TestNewHandlerRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(HandlerDeps{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestUpAndRootRedirect(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	if rec := serve(env.handler, http.MethodGet, "/up", nil, nil); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("/up = %d %q", rec.Code, rec.Body.String())
	}
	rec := serve(env.handler, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/party/" {
		t.Fatalf("/ = %d location %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestStaticAssetsServed(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	for _, path := range []string{"/static/party-overview.css", "/static/party-overview.js"} {
		if rec := serve(env.handler, http.MethodGet, path, nil, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s = %d", path, rec.Code)
		}
	}
}

func TestPanelRendersPageAndFragment(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	seedParty(t, env.store, "Aria Stormwind", "Bram")

	page := serve(env.handler, http.MethodGet, "/party/", nil, nil)
	if page.Code != http.StatusOK {
		t.Fatalf("page status = %d body %s", page.Code, page.Body.String())
	}
	if !strings.Contains(page.Body.String(), "<html") {
		t.Fatal("expected full document for a plain request")
	}

	fragment := serve(env.handler, http.MethodGet, "/party/", nil, htmx)
	body := fragment.Body.String()
	if strings.Contains(body, "<html") {
		t.Fatal("expected fragment for an HTMX request")
	}
	for _, marker := range []string{`id="party-overview"`, "party-overview-window daggerheart", `data-mode="visible"`, "Aria", "Bram"} {
		if !strings.Contains(body, marker) {
			t.Fatalf("fragment missing %q: %s", marker, body)
		}
	}
}

func TestStateJSONReflectsHiddenToggle(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	seedParty(t, env.store, "Aria", "Bram")

	state := decodeState(t, serve(env.handler, http.MethodGet, "/party/state", nil, nil))
	if state["mode"] != "visible" || state["modeIndex"] != float64(1) || state["activeTab"] != "general" {
		t.Fatalf("state defaults = mode %v index %v tab %v", state["mode"], state["modeIndex"], state["activeTab"])
	}
	if got := stateActorIDs(t, state); strings.Join(got, ",") != "a1,a2" {
		t.Fatalf("actors = %v", got)
	}

	rec := serve(env.handler, http.MethodPost, "/party/actors/a1/visibility", nil, htmx)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d body %s", rec.Code, rec.Body.String())
	}
	state = decodeState(t, serve(env.handler, http.MethodGet, "/party/state", nil, nil))
	if got := stateActorIDs(t, state); strings.Join(got, ",") != "a2" {
		t.Fatalf("actors after hide = %v", got)
	}
	if _, ok := state["totalHP"]; !ok {
		t.Fatalf("expected flattened extras in state: %v", state)
	}
}

func TestAdvanceModeRendersNextMode(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	seedParty(t, env.store, "Aria")

	rec := serve(env.handler, http.MethodPost, "/party/mode", nil, htmx)
	if rec.Code != http.StatusOK {
		t.Fatalf("mode status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `data-mode="hidden"`) {
		t.Fatalf("expected hidden mode, got %s", rec.Body.String())
	}
}

func TestClosedPanelReturnsConflictUntilForced(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	seedParty(t, env.store, "Aria")

	if rec := serve(env.handler, http.MethodDelete, "/party/", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rec.Code)
	}
	rec := serve(env.handler, http.MethodGet, "/party/state", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("closed state status = %d", rec.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload["code"] != "PANEL_CLOSED" {
		t.Fatalf("error code = %q", payload["code"])
	}
	for _, target := range []string{"/party/actors/a1/visibility", "/party/mode", "/party/tabs/traits"} {
		if rec := serve(env.handler, http.MethodPost, target, nil, htmx); rec.Code != http.StatusConflict {
			t.Fatalf("POST %s on closed panel = %d", target, rec.Code)
		}
	}
	rec = serve(env.handler, http.MethodGet, "/party/state?force=1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forced state status = %d", rec.Code)
	}
	state := decodeState(t, rec)
	if state["mode"] != "visible" || state["activeTab"] != "general" {
		t.Fatalf("reopened state = mode %v tab %v", state["mode"], state["activeTab"])
	}
	if got := stateActorIDs(t, state); strings.Join(got, ",") != "a1" {
		t.Fatalf("reopened actors = %v", got)
	}
	if rec := serve(env.handler, http.MethodGet, "/party/state", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("reopened state status = %d", rec.Code)
	}
}

func TestActorToggleEscapesReservedIDs(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	ctx := context.Background()
	for _, id := range []string{"npc?7", "a/b#c"} {
		if err := env.store.PutActor(ctx, domain.Actor{ID: id, Name: "Odd " + id, PlayerOwned: true, System: json.RawMessage(testSheet)}); err != nil {
			t.Fatalf("put actor: %v", err)
		}
	}
	tokens := []domain.Token{{ID: "t-1", ActorID: "npc?7"}, {ID: "t-2", ActorID: "a/b#c"}}
	if err := env.store.PutSceneTokens(ctx, "scene-1", tokens); err != nil {
		t.Fatalf("put scene tokens: %v", err)
	}
	if err := env.store.ActivateScene(ctx, "scene-1"); err != nil {
		t.Fatalf("activate scene: %v", err)
	}

	body := serve(env.handler, http.MethodGet, "/party/", nil, htmx).Body.String()
	for _, path := range []string{"/party/actors/npc%3F7/visibility", "/party/actors/a%2Fb%23c/visibility"} {
		if !strings.Contains(body, `data-po-post="`+path+`"`) {
			t.Fatalf("expected %s in %s", path, body)
		}
	}

	rec := serve(env.handler, http.MethodPost, "/party/actors/npc%3F7/visibility", nil, htmx)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d body %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, serve(env.handler, http.MethodGet, "/party/state", nil, nil))
	if got := stateActorIDs(t, state); strings.Join(got, ",") != "a/b#c" {
		t.Fatalf("actors after hide = %v", got)
	}
}

func TestSelectTab(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	seedParty(t, env.store, "Aria")

	if rec := serve(env.handler, http.MethodPost, "/party/tabs/traits", nil, htmx); rec.Code != http.StatusOK {
		t.Fatalf("select status = %d", rec.Code)
	}
	state := decodeState(t, serve(env.handler, http.MethodGet, "/party/state", nil, nil))
	if state["activeTab"] != "traits" {
		t.Fatalf("activeTab = %v", state["activeTab"])
	}
	if rec := serve(env.handler, http.MethodPost, "/party/tabs/spells", nil, htmx); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown tab status = %d", rec.Code)
	}
}

func TestTabVisibilityPersistsForPlayers(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)
	seedParty(t, env.store, "Aria")

	if rec := serve(env.handler, http.MethodPost, "/party/tabs/traits/visibility?visible=false", nil, htmx); rec.Code != http.StatusOK {
		t.Fatalf("visibility status = %d body %s", rec.Code, rec.Body.String())
	}
	if rec := serve(env.handler, http.MethodPost, "/party/tabs/traits/visibility?visible=maybe", nil, htmx); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad flag status = %d", rec.Code)
	}

	player := env.hub.Panel("p1")
	state, err := player.Render(context.Background(), viewer.Viewer{UserID: "p1"}, panel.RenderOptions{})
	if err != nil {
		t.Fatalf("player render: %v", err)
	}
	if state.Tabs["traits"].Visible {
		t.Fatal("expected traits hidden for players")
	}
}

func TestRosterAPI(t *testing.T) {
	t.Parallel()

	env := newLocalGMEnv(t)

	put := serve(env.handler, http.MethodPut, "/api/actors/a1",
		strings.NewReader(`{"name":"Aria","playerOwned":true,"system":`+testSheet+`}`), nil)
	if put.Code != http.StatusOK {
		t.Fatalf("put status = %d body %s", put.Code, put.Body.String())
	}
	serve(env.handler, http.MethodPut, "/api/actors/npc", strings.NewReader(`{"name":"Goblin","playerOwned":false}`), nil)

	list := serve(env.handler, http.MethodGet, "/api/actors?filter=player_owned%20%3D%20true", nil, nil)
	var payload struct {
		Actors []actorPayload `json:"actors"`
	}
	if err := json.NewDecoder(list.Body).Decode(&payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(payload.Actors) != 1 || payload.Actors[0].ID != "a1" {
		t.Fatalf("filtered actors = %+v", payload.Actors)
	}

	if rec := serve(env.handler, http.MethodGet, "/api/actors?filter=level%20%3E%203", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid filter status = %d", rec.Code)
	}
	if rec := serve(env.handler, http.MethodPut, "/api/actors/a2", strings.NewReader(`{"name":"x","bogus":1}`), nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}

	tokens := serve(env.handler, http.MethodPut, "/api/scenes/s1/tokens",
		strings.NewReader(`{"tokens":[{"id":"t1","actorId":"a1"}]}`), nil)
	if tokens.Code != http.StatusNoContent {
		t.Fatalf("tokens status = %d body %s", tokens.Code, tokens.Body.String())
	}
	if rec := serve(env.handler, http.MethodPost, "/api/scenes/s1/activate", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("activate status = %d", rec.Code)
	}
	state := decodeState(t, serve(env.handler, http.MethodGet, "/party/state", nil, nil))
	if got := stateActorIDs(t, state); strings.Join(got, ",") != "a1" {
		t.Fatalf("actors = %v", got)
	}

	if rec := serve(env.handler, http.MethodDelete, "/api/actors/a1", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := serve(env.handler, http.MethodDelete, "/api/actors/a1", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestTokenViewerEnforcement(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	env := newTestEnv(t, viewer.Config{Issuer: "campaign", Key: pub})
	sign := func(subject string, gm bool) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
			"iss": "campaign",
			"sub": subject,
			"gm":  gm,
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(priv)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return "Bearer " + token
	}

	if rec := serve(env.handler, http.MethodGet, "/party/state", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	playerAuth := map[string]string{"Authorization": sign("p1", false)}
	if rec := serve(env.handler, http.MethodGet, "/party/state", nil, playerAuth); rec.Code != http.StatusOK {
		t.Fatalf("player state status = %d", rec.Code)
	}
	if rec := serve(env.handler, http.MethodPut, "/api/actors/a1", strings.NewReader(`{"name":"Aria"}`), playerAuth); rec.Code != http.StatusForbidden {
		t.Fatalf("player put status = %d", rec.Code)
	}
	if rec := serve(env.handler, http.MethodPost, "/party/tabs/traits/visibility?visible=false", nil, playerAuth); rec.Code != http.StatusForbidden {
		t.Fatalf("player tab visibility status = %d", rec.Code)
	}

	gmAuth := map[string]string{"Authorization": sign("gm", true)}
	if rec := serve(env.handler, http.MethodPut, "/api/actors/a1", strings.NewReader(`{"name":"Aria"}`), gmAuth); rec.Code != http.StatusOK {
		t.Fatalf("gm put status = %d", rec.Code)
	}
}

func TestPanelsAreScopedPerViewer(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	env := newTestEnv(t, viewer.Config{Key: pub})
	seedParty(t, env.store, "Aria")
	cookie := func(subject string) map[string]string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
			"sub": subject,
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(priv)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return map[string]string{"Cookie": viewer.CookieName + "=" + token}
	}

	if rec := serve(env.handler, http.MethodDelete, "/party/", nil, cookie("p1")); rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rec.Code)
	}
	if rec := serve(env.handler, http.MethodGet, "/party/state", nil, cookie("p2")); rec.Code != http.StatusOK {
		t.Fatalf("other viewer status = %d", rec.Code)
	}
	if rec := serve(env.handler, http.MethodGet, "/party/state", nil, cookie("p1")); rec.Code != http.StatusConflict {
		t.Fatalf("closed viewer status = %d", rec.Code)
	}
}

func TestQueryFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"1", true},
		{"true", true},
		{" TRUE ", true},
		{"0", false},
		{"yes", false},
	}
	for _, tt := range tests {
		if got := queryFlag(tt.value); got != tt.want {
			t.Fatalf("queryFlag(%q) = %t, want %t", tt.value, got, tt.want)
		}
	}
}
