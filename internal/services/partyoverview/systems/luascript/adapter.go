// Package luascript implements a ruleset adapter defined by a Lua script.
//
// A script declares the globals:
//
//	id = "mysystem"                 -- required ruleset identifier
//	width = 640                     -- optional panel width, defaults to 600
//	tabs = { {key = "general", id = "general", localization = "party.tab.general"} }
//	function details(actor) ... end -- returns a table of display fields
//	function update(actors) ... end -- optional; returns actors, extras
//
// details receives {id, name, playerOwned, tokens, system} where system is
// the decoded character sheet. update receives the projected records
// ({id, name, shortestName, isHidden, details}) and may reorder them, drop
// them, or replace their details.
package luascript

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	lua "github.com/Shopify/go-lua"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

const (
	// Template is the generic panel body template used by scripted rulesets.
	Template = "generic"

	defaultWidth = 600
)

// Adapter runs ruleset callbacks inside a single Lua state.
type Adapter struct {
	mu        sync.Mutex
	state     *lua.State
	id        string
	width     int
	tabs      []domain.TabDefinition
	hasUpdate bool
	logger    *log.Logger
}

// Load reads and evaluates the script at path.
func Load(path string) (*Adapter, error) {
	state := newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua script %s: %w", path, err)
	}
	return evaluate(state)
}

// LoadString evaluates script source.
func LoadString(source string) (*Adapter, error) {
	state := newState()
	if err := lua.LoadString(state, source); err != nil {
		return nil, fmt.Errorf("load lua script: %w", err)
	}
	return evaluate(state)
}

// SetLogger replaces the logger used for update failures.
func (a *Adapter) SetLogger(logger *log.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = logger
}

func newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	return state
}

func evaluate(state *lua.State) (*Adapter, error) {
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run lua script: %w", err)
	}

	adapter := &Adapter{state: state, width: defaultWidth}

	state.Global("id")
	id, _ := state.ToString(-1)
	state.Pop(1)
	if id == "" {
		return nil, fmt.Errorf("lua script must declare a string global id")
	}
	adapter.id = id

	state.Global("width")
	if state.TypeOf(-1) == lua.TypeNumber {
		value, _ := state.ToNumber(-1)
		if value <= 0 {
			state.Pop(1)
			return nil, fmt.Errorf("lua script width must be positive")
		}
		adapter.width = int(value)
	}
	state.Pop(1)

	state.Global("tabs")
	tabs, err := parseTabs(tableToGo(state, -1))
	state.Pop(1)
	if err != nil {
		return nil, err
	}
	adapter.tabs = tabs

	state.Global("details")
	isFunction := state.IsFunction(-1)
	state.Pop(1)
	if !isFunction {
		return nil, fmt.Errorf("lua script must declare function details(actor)")
	}

	state.Global("update")
	adapter.hasUpdate = state.IsFunction(-1)
	state.Pop(1)

	return adapter, nil
}

func parseTabs(value any) ([]domain.TabDefinition, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("lua script tabs must be a list")
	}
	tabs := make([]domain.TabDefinition, 0, len(items))
	for idx, item := range items {
		switch tab := item.(type) {
		case string:
			tabs = append(tabs, domain.TabDefinition{Key: tab, ID: tab, Localization: "party.tab." + tab})
		case map[string]any:
			key, _ := tab["key"].(string)
			if key == "" {
				return nil, fmt.Errorf("lua script tab %d has no key", idx+1)
			}
			def := domain.TabDefinition{Key: key, ID: key, Localization: "party.tab." + key}
			if id, ok := tab["id"].(string); ok && id != "" {
				def.ID = id
			}
			if localization, ok := tab["localization"].(string); ok && localization != "" {
				def.Localization = localization
			}
			tabs = append(tabs, def)
		default:
			return nil, fmt.Errorf("lua script tab %d must be a string or table", idx+1)
		}
	}
	return tabs, nil
}

func (a *Adapter) ID() string       { return a.id }
func (a *Adapter) Width() int       { return a.width }
func (a *Adapter) Template() string { return Template }

func (a *Adapter) Tabs() []domain.TabDefinition {
	out := make([]domain.TabDefinition, len(a.tabs))
	copy(out, a.tabs)
	return out
}

// ActorDetails calls the script's details function.
func (a *Adapter) ActorDetails(actor domain.Actor) (domain.Details, error) {
	var system any
	if len(actor.System) > 0 {
		if err := json.Unmarshal(actor.System, &system); err != nil {
			return nil, fmt.Errorf("decode sheet: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.state.SetTop(0)

	a.state.Global("details")
	goToLua(a.state, map[string]any{
		"id":          actor.ID,
		"name":        actor.Name,
		"playerOwned": actor.PlayerOwned,
		"tokens":      len(actor.Tokens),
		"system":      system,
	})
	if err := a.state.ProtectedCall(1, 1, 0); err != nil {
		return nil, fmt.Errorf("lua details: %w", err)
	}
	switch a.state.TypeOf(-1) {
	case lua.TypeTable:
		return domain.Details(tableToMap(a.state, -1)), nil
	case lua.TypeNil:
		return domain.Details{}, nil
	default:
		return nil, fmt.Errorf("lua details returned %s, want table", lua.TypeNameOf(a.state, -1))
	}
}

// Update calls the script's update function when declared. A failing
// update leaves the records untouched.
func (a *Adapter) Update(actors []domain.ActorRecord) ([]domain.ActorRecord, map[string]any) {
	if !a.hasUpdate {
		return actors, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.state.SetTop(0)

	records := make([]any, 0, len(actors))
	byID := make(map[string]domain.ActorRecord, len(actors))
	for _, actor := range actors {
		byID[actor.ID] = actor
		var details any
		if actor.Details != nil {
			details = map[string]any(actor.Details)
		}
		records = append(records, map[string]any{
			"id":           actor.ID,
			"name":         actor.Name,
			"shortestName": actor.ShortestName,
			"isHidden":     actor.IsHidden,
			"details":      details,
		})
	}

	a.state.Global("update")
	goToLua(a.state, records)
	if err := a.state.ProtectedCall(1, 2, 0); err != nil {
		a.logf("party overview: lua update failed system=%s err=%v", a.id, err)
		return actors, nil
	}

	extras := tableToMap(a.state, -1)
	if a.state.IsNil(-2) {
		return actors, extras
	}
	converted := tableToGo(a.state, -2)
	list, ok := converted.([]any)
	if !ok {
		if empty, isMap := converted.(map[string]any); isMap && len(empty) == 0 {
			return []domain.ActorRecord{}, extras
		}
		a.logf("party overview: lua update returned non-list actors system=%s", a.id)
		return actors, extras
	}

	out := make([]domain.ActorRecord, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := entry["id"].(string)
		record, known := byID[id]
		if !known {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if details, ok := entry["details"].(map[string]any); ok {
			record.Details = domain.Details(details)
		}
		out = append(out, record)
	}
	return out, extras
}

func (a *Adapter) logf(format string, args ...any) {
	logger := a.logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(format, args...)
}

func goToLua(state *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		state.PushNil()
	case string:
		state.PushString(v)
	case bool:
		state.PushBoolean(v)
	case int:
		state.PushInteger(v)
	case int64:
		state.PushNumber(float64(v))
	case float64:
		state.PushNumber(v)
	case json.Number:
		number, err := v.Float64()
		if err != nil {
			state.PushString(v.String())
			return
		}
		state.PushNumber(number)
	case []string:
		state.CreateTable(len(v), 0)
		for idx, item := range v {
			state.PushString(item)
			state.RawSetInt(-2, idx+1)
		}
	case []any:
		state.CreateTable(len(v), 0)
		for idx, item := range v {
			goToLua(state, item)
			state.RawSetInt(-2, idx+1)
		}
	case map[string]any:
		state.CreateTable(0, len(v))
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			goToLua(state, v[key])
			state.SetField(-2, key)
		}
	case domain.Details:
		goToLua(state, map[string]any(v))
	default:
		state.PushString(fmt.Sprint(v))
	}
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo returns a []any for sequence tables and a map otherwise.
func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}

var _ domain.SystemAdapter = (*Adapter)(nil)
