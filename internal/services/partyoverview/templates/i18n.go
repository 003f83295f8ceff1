package templates

import (
	"fmt"
	"strings"

	"golang.org/x/text/message"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

// Localizer translates catalog keys; *message.Printer satisfies it.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// T translates key with loc. Without a localizer a string key is
// formatted with args.
func T(loc Localizer, key message.Reference, args ...any) string {
	if loc != nil {
		return loc.Sprintf(key, args...)
	}
	switch key := key.(type) {
	case string:
		if len(args) > 0 {
			return fmt.Sprintf(key, args...)
		}
		return key
	default:
		return ""
	}
}

// tabLabel names a tab by its localization key, or by its id when the
// ruleset did not provide one.
func tabLabel(loc Localizer, def domain.TabDefinition) string {
	if key := strings.TrimSpace(def.Localization); key != "" {
		return T(loc, key)
	}
	if def.ID != "" {
		return def.ID
	}
	return def.Key
}
