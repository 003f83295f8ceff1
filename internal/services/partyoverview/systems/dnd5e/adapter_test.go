package dnd5e

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

func TestModifier(t *testing.T) {
	t.Parallel()

	tests := map[int]int{1: -5, 8: -1, 9: -1, 10: 0, 11: 0, 12: 1, 15: 2, 20: 5}
	for score, want := range tests {
		if got := Modifier(score); got != want {
			t.Errorf("Modifier(%d) = %d, want %d", score, got, want)
		}
	}
}

func TestHPTitle(t *testing.T) {
	t.Parallel()

	if got := HPTitle(HitPoints{Value: 12, Temp: 3}); got != "12 (+3)" {
		t.Fatalf("HPTitle = %q, want %q", got, "12 (+3)")
	}
	if got := HPTitle(HitPoints{Value: 12}); got != "12" {
		t.Fatalf("HPTitle = %q, want %q", got, "12")
	}
}

func TestActorDetails(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"hp": {"value": 9, "max": 14, "temp": 2},
		"ac": 15,
		"abilities": {"str": 8, "dex": 16},
		"passive": {"perception": 13, "insight": 11, "investigation": 10},
		"languages": ["Elvish", "Common", "Elvish", " "],
		"currency": {"gp": 25, "sp": 3}
	}`)
	details, err := New().ActorDetails(domain.Actor{ID: "a1", Name: "Vex", System: raw})
	if err != nil {
		t.Fatalf("ActorDetails: %v", err)
	}
	if got := details.String("hpTitle"); got != "9 (+2)" {
		t.Fatalf("hpTitle = %q, want %q", got, "9 (+2)")
	}
	checks := map[string]int{
		"hp": 9, "hpMax": 14, "ac": 15, "str": 8, "strMod": -1, "dex": 16, "dexMod": 3,
		"con": 10, "conMod": 0, "perception": 13, "gp": 25, "sp": 3, "pp": 0,
	}
	for key, want := range checks {
		if got := details.Int(key); got != want {
			t.Errorf("%s = %d, want %d", key, got, want)
		}
	}
	if got, want := details.Strings("languages"), []string{"Common", "Elvish"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("languages = %v, want %v", got, want)
	}
}

func TestActorDetailsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing sheet", raw: ""},
		{name: "malformed", raw: `{"hp": []}`},
		{name: "negative hp", raw: `{"hp": {"value": -1, "max": 3}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := domain.Actor{ID: "a1"}
			if tt.raw != "" {
				actor.System = json.RawMessage(tt.raw)
			}
			if _, err := New().ActorDetails(actor); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestUpdateBuildsLanguageTableAndPurse(t *testing.T) {
	t.Parallel()

	actors := []domain.ActorRecord{
		{ID: "a", Details: domain.Details{"languages": []string{"Common", "Elvish"}, "gp": 10, "cp": 4}},
		{ID: "b", Details: domain.Details{"languages": []string{"Common", "Dwarvish"}, "gp": 5}},
		{ID: "broken"},
	}
	got, extras := New().Update(actors)
	if len(got) != 3 {
		t.Fatalf("actors = %d, want 3", len(got))
	}

	languages, ok := extras["languages"].([]LanguageRow)
	if !ok {
		t.Fatalf("languages extra = %T", extras["languages"])
	}
	var names []string
	for _, row := range languages {
		names = append(names, row.Name)
	}
	if want := []string{"Common", "Dwarvish", "Elvish"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("language names = %v, want %v", names, want)
	}
	if !languages[0].Known["a"] || !languages[0].Known["b"] {
		t.Fatalf("Common known = %v", languages[0].Known)
	}
	if languages[1].Known["a"] || !languages[1].Known["b"] {
		t.Fatalf("Dwarvish known = %v", languages[1].Known)
	}
	if known, ok := languages[2].Known["broken"]; !ok || known {
		t.Fatalf("Elvish known for broken = %v, %v", known, ok)
	}

	total, ok := extras["totalCurrency"].(map[string]int)
	if !ok {
		t.Fatalf("totalCurrency extra = %T", extras["totalCurrency"])
	}
	if total["gp"] != 15 || total["cp"] != 4 || total["pp"] != 0 {
		t.Fatalf("totalCurrency = %v", total)
	}
}

func TestAdapterMetadata(t *testing.T) {
	t.Parallel()

	adapter := New()
	if adapter.ID() != "dnd5e" || adapter.Width() != 800 || adapter.Template() != "dnd5e" {
		t.Fatalf("metadata = %s/%d/%s", adapter.ID(), adapter.Width(), adapter.Template())
	}
	if got := len(adapter.Tabs()); got != 4 {
		t.Fatalf("tabs = %d, want 4", got)
	}
}
