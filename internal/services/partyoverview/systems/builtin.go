package systems

import (
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/systems/daggerheart"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/systems/dnd5e"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/systems/luascript"
)

// Builtin returns a registry with the bundled rulesets. A non-empty
// scriptPath also registers the Lua ruleset it defines, reporting script
// failures to logger.
func Builtin(scriptPath string, logger *log.Logger) (*Registry, error) {
	registry := NewRegistry()
	if err := registry.Register(daggerheart.New()); err != nil {
		return nil, err
	}
	if err := registry.Register(dnd5e.New()); err != nil {
		return nil, err
	}
	if scriptPath = strings.TrimSpace(scriptPath); scriptPath != "" {
		adapter, err := luascript.Load(scriptPath)
		if err != nil {
			return nil, err
		}
		adapter.SetLogger(logger)
		if err := registry.Register(adapter); err != nil {
			return nil, fmt.Errorf("register lua ruleset: %w", err)
		}
	}
	return registry, nil
}
