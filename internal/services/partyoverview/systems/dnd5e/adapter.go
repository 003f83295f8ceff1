// Package dnd5e projects D&D fifth edition character sheets for the party
// overview.
package dnd5e

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

// ID is the ruleset identifier.
const ID = "dnd5e"

const width = 800

// AbilityNames lists the six abilities in sheet order.
var AbilityNames = []string{"str", "dex", "con", "int", "wis", "cha"}

// CurrencyNames lists coin denominations from most to least valuable.
var CurrencyNames = []string{"pp", "gp", "ep", "sp", "cp"}

// Sheet is the dnd5e character data stored on an actor.
type Sheet struct {
	HP        HitPoints      `json:"hp"`
	AC        int            `json:"ac"`
	Abilities map[string]int `json:"abilities"`
	Passive   Passive        `json:"passive"`
	Languages []string       `json:"languages"`
	Currency  map[string]int `json:"currency"`
}

// HitPoints are current, maximum and temporary hit points.
type HitPoints struct {
	Value   int `json:"value"`
	Max     int `json:"max"`
	Temp    int `json:"temp"`
	TempMax int `json:"tempmax"`
}

// Passive holds passive skill scores.
type Passive struct {
	Perception    int `json:"perception"`
	Insight       int `json:"insight"`
	Investigation int `json:"investigation"`
}

// LanguageRow is one language and which actors know it.
type LanguageRow struct {
	Name  string          `json:"name"`
	Known map[string]bool `json:"known"`
}

// Modifier returns the ability modifier for score.
func Modifier(score int) int {
	diff := score - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}

// HPTitle renders hit points as "value (+temp)", omitting empty temp.
func HPTitle(hp HitPoints) string {
	if hp.Temp > 0 {
		return fmt.Sprintf("%d (+%d)", hp.Value, hp.Temp)
	}
	return fmt.Sprintf("%d", hp.Value)
}

// Adapter implements domain.SystemAdapter for dnd5e.
type Adapter struct{}

// New returns the dnd5e adapter.
func New() Adapter {
	return Adapter{}
}

func (Adapter) ID() string       { return ID }
func (Adapter) Width() int       { return width }
func (Adapter) Template() string { return ID }

func (Adapter) Tabs() []domain.TabDefinition {
	return []domain.TabDefinition{
		{Key: "general", ID: "general", Localization: "party.tab.general"},
		{Key: "abilities", ID: "abilities", Localization: "party.tab.abilities"},
		{Key: "languages", ID: "languages", Localization: "party.tab.languages"},
		{Key: "currency", ID: "currency", Localization: "party.tab.currency"},
	}
}

// ActorDetails decodes the actor's sheet.
func (Adapter) ActorDetails(actor domain.Actor) (domain.Details, error) {
	if len(actor.System) == 0 {
		return nil, fmt.Errorf("actor has no dnd5e sheet")
	}
	var sheet Sheet
	if err := json.Unmarshal(actor.System, &sheet); err != nil {
		return nil, fmt.Errorf("decode dnd5e sheet: %w", err)
	}
	if sheet.HP.Max < 0 || sheet.HP.Value < 0 || sheet.HP.Temp < 0 {
		return nil, fmt.Errorf("hit points must be non-negative")
	}

	details := domain.Details{
		"hp":            sheet.HP.Value,
		"hpMax":         sheet.HP.Max,
		"hpTemp":        sheet.HP.Temp,
		"hpTempMax":     sheet.HP.TempMax,
		"hpTitle":       HPTitle(sheet.HP),
		"ac":            sheet.AC,
		"perception":    sheet.Passive.Perception,
		"insight":       sheet.Passive.Insight,
		"investigation": sheet.Passive.Investigation,
		"languages":     normalizeLanguages(sheet.Languages),
	}
	for _, name := range AbilityNames {
		score, ok := sheet.Abilities[name]
		if !ok {
			score = 10
		}
		details[name] = score
		details[name+"Mod"] = Modifier(score)
	}
	for _, name := range CurrencyNames {
		details[name] = sheet.Currency[name]
	}
	return details, nil
}

// Update adds the language table and the party's combined purse.
func (Adapter) Update(actors []domain.ActorRecord) ([]domain.ActorRecord, map[string]any) {
	rows := map[string]*LanguageRow{}
	total := make(map[string]int, len(CurrencyNames))
	for _, name := range CurrencyNames {
		total[name] = 0
	}
	for _, actor := range actors {
		if actor.Details == nil {
			continue
		}
		for _, language := range actor.Details.Strings("languages") {
			row, ok := rows[language]
			if !ok {
				row = &LanguageRow{Name: language, Known: map[string]bool{}}
				rows[language] = row
			}
			row.Known[actor.ID] = true
		}
		for _, name := range CurrencyNames {
			total[name] += actor.Details.Int(name)
		}
	}

	languages := make([]LanguageRow, 0, len(rows))
	for _, row := range rows {
		for _, actor := range actors {
			if !row.Known[actor.ID] {
				row.Known[actor.ID] = false
			}
		}
		languages = append(languages, *row)
	}
	sort.Slice(languages, func(i, j int) bool {
		return languages[i].Name < languages[j].Name
	})

	return actors, map[string]any{
		"languages":     languages,
		"totalCurrency": total,
	}
}

func normalizeLanguages(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

var _ domain.SystemAdapter = Adapter{}
