package domain

// TabState is the persisted visibility preference for one tab.
type TabState struct {
	ID           string `json:"id"`
	Localization string `json:"localization"`
	Visible      bool   `json:"visible"`
}

// TabVisibility maps tab keys to their visibility preference.
type TabVisibility map[string]TabState

// Clone returns a copy of the map.
func (t TabVisibility) Clone() TabVisibility {
	out := make(TabVisibility, len(t))
	for key, state := range t {
		out[key] = state
	}
	return out
}

// ReconcileTabs fills persisted with a visible default entry for every
// ruleset tab it lacks and, for a gamemaster, forces every entry visible.
// persisted is never modified.
func ReconcileTabs(persisted TabVisibility, defs []TabDefinition, viewerIsGM bool) TabVisibility {
	tabs := persisted.Clone()
	for _, def := range defs {
		if def.Key == "" {
			continue
		}
		if _, ok := tabs[def.Key]; ok {
			continue
		}
		tabs[def.Key] = TabState{ID: def.ID, Localization: def.Localization, Visible: true}
	}
	if viewerIsGM {
		for key, state := range tabs {
			state.Visible = true
			tabs[key] = state
		}
	}
	return tabs
}
