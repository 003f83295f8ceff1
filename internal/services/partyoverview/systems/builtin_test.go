package systems

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

func TestBuiltin(t *testing.T) {
	t.Parallel()

	registry, err := Builtin("", nil)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	if got := fmt.Sprint(registry.IDs()); got != "[daggerheart dnd5e]" {
		t.Fatalf("IDs = %s", got)
	}
}

func TestBuiltinWithScript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.lua")
	script := `id = "custom"
function details(actor) return {} end`
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	registry, err := Builtin(path, nil)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	adapter, err := registry.Get("custom")
	if err != nil {
		t.Fatalf("Get(custom): %v", err)
	}
	if adapter.Template() != "generic" {
		t.Fatalf("Template = %q, want generic", adapter.Template())
	}
}

func TestBuiltinRejectsScriptShadowingBundledSystem(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shadow.lua")
	if err := os.WriteFile(path, []byte(`id = "dnd5e" function details(a) return {} end`), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if _, err := Builtin(path, nil); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestBuiltinScriptLogsThroughLogger(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.lua")
	script := `id = "broken"
function details(actor) return {} end
function update(actors) error("boom") end`
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	var buf bytes.Buffer
	registry, err := Builtin(path, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	adapter, err := registry.Get("broken")
	if err != nil {
		t.Fatalf("Get(broken): %v", err)
	}
	got, _ := adapter.Update([]domain.ActorRecord{{ID: "a"}})
	if len(got) != 1 {
		t.Fatalf("Update = %v", got)
	}
	if !strings.Contains(buf.String(), "lua update failed system=broken") {
		t.Fatalf("log = %q", buf.String())
	}
}
