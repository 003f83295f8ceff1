// Package templates renders the party overview panel.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/systems/dnd5e"
)

// PanelID is the DOM id of the panel root element.
const PanelID = "party-overview"

// PanelView is everything the panel markup needs.
type PanelView struct {
	State    domain.ViewState
	Layout   domain.Layout
	System   string
	Template string
	// TabOrder lists the ruleset tabs in display order.
	TabOrder []domain.TabDefinition
	IsGM     bool
	// PlayerTabs is the tab visibility players get; gamemaster views use it
	// to label the visibility toggles.
	PlayerTabs domain.TabVisibility
}

// PageView wraps the panel in a standalone document.
type PageView struct {
	Lang  string
	Panel PanelView
	// Languages are the locales offered in the language switcher.
	Languages []LanguageOption
}

// LanguageOption is one entry in the language switcher.
type LanguageOption struct {
	Tag      string
	LabelKey string
	Current  bool
}

var (
	daggerheartStats  = []string{"hp", "stress", "hope", "evasion", "armor", "thresholds"}
	daggerheartTraits = []string{"agility", "strength", "finesse", "instinct", "presence", "knowledge"}
	dnd5eStats        = []string{"hp", "ac", "perception", "insight", "investigation"}
)

func panelStyle(layout domain.Layout) templ.SafeCSS {
	return templ.SafeCSS(fmt.Sprintf("--party-overview-min-width: %dpx; --party-overview-min-height: %dpx;", layout.MinWidth, layout.MinHeight))
}

func modeLabel(loc Localizer, mode domain.FilterMode) string {
	return T(loc, "party.mode.label", T(loc, "party.mode."+mode.String()))
}

// effectiveTab is the active tab, or the first tab the viewer can see when
// the active one is hidden from them.
func effectiveTab(view PanelView) string {
	active := view.State.ActiveTab
	if state, ok := view.State.Tabs[active]; ok && state.Visible {
		return active
	}
	for _, def := range view.TabOrder {
		if view.State.Tabs[def.Key].Visible {
			return def.Key
		}
	}
	return active
}

func visibleTabs(view PanelView) []domain.TabDefinition {
	defs := make([]domain.TabDefinition, 0, len(view.TabOrder))
	for _, def := range view.TabOrder {
		if state, ok := view.State.Tabs[def.Key]; ok && state.Visible {
			defs = append(defs, def)
		}
	}
	return defs
}

// playerVisible reports the persisted player visibility of key. Unknown
// tabs default to visible.
func playerVisible(view PanelView, key string) bool {
	if state, ok := view.PlayerTabs[key]; ok {
		return state.Visible
	}
	return true
}

func tabPath(key string) string {
	return "/party/tabs/" + url.PathEscape(key)
}

func tabVisibilityPath(key string, visible bool) string {
	return tabPath(key) + "/visibility?visible=" + strconv.FormatBool(visible)
}

func actorVisibilityPath(actorID string) string {
	return "/party/actors/" + url.PathEscape(actorID) + "/visibility"
}

func visibilityAction(actor domain.ActorRecord) string {
	if actor.IsHidden {
		return "show"
	}
	return "hide"
}

func visibilityLabel(loc Localizer, actor domain.ActorRecord) string {
	return T(loc, "party.action."+visibilityAction(actor))
}

// genericColumns is the sorted union of detail keys across actors.
func genericColumns(actors []domain.ActorRecord) []string {
	keys := map[string]struct{}{}
	for _, actor := range actors {
		for key := range actor.Details {
			keys[key] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keys))
	for key := range keys {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}

func diagnosticsTitle(diagnostics []domain.Diagnostic) string {
	lines := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		lines = append(lines, d.Error())
	}
	return strings.Join(lines, "\n")
}

func languageRows(extras map[string]any) []dnd5e.LanguageRow {
	rows, _ := extras["languages"].([]dnd5e.LanguageRow)
	return rows
}

func currencyTotal(extras map[string]any, coin string) string {
	total, _ := extras["totalCurrency"].(map[string]int)
	return strconv.Itoa(total[coin])
}

func abilityScore(d domain.Details, ability string) string {
	if !d.Has(ability) {
		return ""
	}
	return fmt.Sprintf("%d (%s)", d.Int(ability), signed(d.Int(ability+"Mod")))
}

func detailOrBlank(d domain.Details, key string, format func(int) string) string {
	if !d.Has(key) {
		return ""
	}
	return format(d.Int(key))
}

func signed(value int) string {
	if value > 0 {
		return "+" + strconv.Itoa(value)
	}
	return strconv.Itoa(value)
}

func fraction(value, max int) string {
	return strconv.Itoa(value) + "/" + strconv.Itoa(max)
}
