package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultActiveTab is the tab a freshly opened panel shows.
const DefaultActiveTab = "general"

// Input gathers everything one overview refresh depends on.
type Input struct {
	// Roster is every actor the host knows about; non player-owned actors
	// are ignored.
	Roster        []Actor
	Mode          FilterMode
	Hidden        HiddenSet
	ActiveTab     string
	Adapter       SystemAdapter
	ViewerIsGM    bool
	PersistedTabs TabVisibility
	// IgnoreEmpty produces a state even when no actor qualifies.
	IgnoreEmpty bool
	Reporter    Reporter
}

// ViewState is the render-ready overview snapshot.
type ViewState struct {
	ActiveTab   string         `json:"activeTab"`
	Mode        FilterMode     `json:"mode"`
	Actors      []ActorRecord  `json:"actors"`
	Extras      map[string]any `json:"-"`
	Tabs        TabVisibility  `json:"tabs"`
	Diagnostics []Diagnostic   `json:"-"`
}

// MarshalJSON flattens Extras into the top-level object. Core fields win
// over extras with the same name. The mode is written by name with its
// position in the all/visible/hidden/more cycle as modeIndex.
func (v ViewState) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Extras)+6)
	for key, value := range v.Extras {
		out[key] = value
	}
	actors := v.Actors
	if actors == nil {
		actors = []ActorRecord{}
	}
	tabs := v.Tabs
	if tabs == nil {
		tabs = TabVisibility{}
	}
	out["activeTab"] = v.ActiveTab
	out["mode"] = v.Mode
	out["modeIndex"] = int(v.Mode)
	out["actors"] = actors
	out["tabs"] = tabs
	if len(v.Diagnostics) > 0 {
		messages := make([]string, 0, len(v.Diagnostics))
		for _, d := range v.Diagnostics {
			messages = append(messages, d.Error())
		}
		out["diagnostics"] = messages
	}
	return json.Marshal(out)
}

// Compute derives the overview state from the current inputs.
//
// The second result is false when no actor qualifies and IgnoreEmpty is
// unset; callers keep displaying their previous state in that case.
func Compute(in Input) (ViewState, bool) {
	actors := selectSource(in.Roster, in.Mode)
	if len(actors) == 0 && !in.IgnoreEmpty {
		return ViewState{}, false
	}

	actors = dedupe(actors)
	actors = filterHidden(actors, in.Mode, in.Hidden)

	records, diagnostics := project(actors, in.Adapter, in.Hidden)
	for _, d := range diagnostics {
		if in.Reporter != nil {
			in.Reporter.ReportActorFailure(d)
		}
	}

	var extras map[string]any
	var defs []TabDefinition
	if in.Adapter != nil {
		records, extras = in.Adapter.Update(records)
		defs = in.Adapter.Tabs()
	}
	if records == nil {
		records = []ActorRecord{}
	}

	return ViewState{
		ActiveTab:   in.ActiveTab,
		Mode:        in.Mode,
		Actors:      records,
		Extras:      extras,
		Tabs:        ReconcileTabs(in.PersistedTabs, defs, in.ViewerIsGM),
		Diagnostics: diagnostics,
	}, true
}

func selectSource(roster []Actor, mode FilterMode) []Actor {
	owned := make([]Actor, 0, len(roster))
	for _, actor := range roster {
		if actor.PlayerOwned {
			owned = append(owned, actor)
		}
	}
	if mode == ShowMore {
		return owned
	}
	placed := make([]Actor, 0, len(owned))
	for _, actor := range owned {
		for range actor.Tokens {
			placed = append(placed, actor)
		}
	}
	return placed
}

func dedupe(actors []Actor) []Actor {
	seen := make(map[string]struct{}, len(actors))
	out := make([]Actor, 0, len(actors))
	for _, actor := range actors {
		if _, ok := seen[actor.ID]; ok {
			continue
		}
		seen[actor.ID] = struct{}{}
		out = append(out, actor)
	}
	return out
}

func filterHidden(actors []Actor, mode FilterMode, hidden HiddenSet) []Actor {
	if mode != ShowHidden && mode != ShowVisible {
		return actors
	}
	out := make([]Actor, 0, len(actors))
	for _, actor := range actors {
		if hidden.Has(actor.ID) == (mode == ShowHidden) {
			out = append(out, actor)
		}
	}
	return out
}

// actorResult is the outcome of projecting one actor.
type actorResult struct {
	record ActorRecord
	err    error
}

func project(actors []Actor, adapter SystemAdapter, hidden HiddenSet) ([]ActorRecord, []Diagnostic) {
	results := make([]actorResult, 0, len(actors))
	for _, actor := range actors {
		results = append(results, projectActor(actor, adapter, hidden))
	}

	records := make([]ActorRecord, 0, len(results))
	var diagnostics []Diagnostic
	for idx, result := range results {
		records = append(records, result.record)
		if result.err != nil {
			diagnostics = append(diagnostics, Diagnostic{
				ActorID:   actors[idx].ID,
				ActorName: actors[idx].Name,
				Err:       result.err,
			})
		}
	}
	return records, diagnostics
}

func projectActor(actor Actor, adapter SystemAdapter, hidden HiddenSet) (result actorResult) {
	result.record = ActorRecord{
		ID:           actor.ID,
		Name:         actor.Name,
		ShortestName: ShortestName(actor.Name),
		IsHidden:     hidden.Has(actor.ID),
	}
	if adapter == nil {
		return result
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			result.record.Details = nil
			result.err = fmt.Errorf("actor details panicked: %v", recovered)
		}
	}()
	details, err := adapter.ActorDetails(actor)
	if err != nil {
		result.err = err
		return result
	}
	result.record.Details = details
	return result
}
