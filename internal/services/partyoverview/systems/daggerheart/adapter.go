// Package daggerheart projects Daggerheart character sheets for the party
// overview.
package daggerheart

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

// ID is the ruleset identifier.
const ID = "daggerheart"

const (
	width = 600

	hpMaxCap     = 12
	stressMaxCap = 12
	armorMaxCap  = 12
	hopeMax      = 6
	traitMin     = -2
	traitMax     = 4
)

// TraitNames lists the six traits in sheet order.
var TraitNames = []string{"agility", "strength", "finesse", "instinct", "presence", "knowledge"}

// Sheet is the Daggerheart character data stored on an actor.
type Sheet struct {
	Level      int            `json:"level"`
	HP         int            `json:"hp"`
	HPMax      int            `json:"hpMax"`
	Stress     int            `json:"stress"`
	StressMax  int            `json:"stressMax"`
	Hope       int            `json:"hope"`
	Evasion    int            `json:"evasion"`
	Armor      int            `json:"armor"`
	ArmorMax   int            `json:"armorMax"`
	Thresholds Thresholds     `json:"thresholds"`
	Traits     map[string]int `json:"traits"`
}

// Thresholds are the damage thresholds.
type Thresholds struct {
	Major  int `json:"major"`
	Severe int `json:"severe"`
}

// Validate checks the sheet ranges.
func (s Sheet) Validate() error {
	switch {
	case s.HPMax < 1 || s.HPMax > hpMaxCap:
		return fmt.Errorf("hp_max must be in range 1..%d", hpMaxCap)
	case s.HP < 0 || s.HP > s.HPMax:
		return fmt.Errorf("hp %d must be in range 0..%d", s.HP, s.HPMax)
	case s.StressMax < 0 || s.StressMax > stressMaxCap:
		return fmt.Errorf("stress_max must be in range 0..%d", stressMaxCap)
	case s.Stress < 0 || s.Stress > s.StressMax:
		return fmt.Errorf("stress %d must be in range 0..%d", s.Stress, s.StressMax)
	case s.Hope < 0 || s.Hope > hopeMax:
		return fmt.Errorf("hope %d must be in range 0..%d", s.Hope, hopeMax)
	case s.Evasion < 0:
		return fmt.Errorf("evasion must be non-negative")
	case s.ArmorMax < 0 || s.ArmorMax > armorMaxCap:
		return fmt.Errorf("armor_max must be in range 0..%d", armorMaxCap)
	case s.Armor < 0 || s.Armor > s.ArmorMax:
		return fmt.Errorf("armor %d must be in range 0..%d", s.Armor, s.ArmorMax)
	case s.Thresholds.Major < 0 || s.Thresholds.Severe < s.Thresholds.Major:
		return fmt.Errorf("severe threshold must be >= major threshold >= 0")
	}
	for _, name := range TraitNames {
		if value := s.Traits[name]; value < traitMin || value > traitMax {
			return fmt.Errorf("trait %q has value %d, must be in range %d..%d", name, value, traitMin, traitMax)
		}
	}
	return nil
}

// Adapter implements domain.SystemAdapter for Daggerheart.
type Adapter struct{}

// New returns the Daggerheart adapter.
func New() Adapter {
	return Adapter{}
}

// ID returns the ruleset identifier.
func (Adapter) ID() string { return ID }

// Width returns the panel width in pixels.
func (Adapter) Width() int { return width }

// Template names the panel body template.
func (Adapter) Template() string { return ID }

// Tabs returns the ruleset tabs.
func (Adapter) Tabs() []domain.TabDefinition {
	return []domain.TabDefinition{
		{Key: "general", ID: "general", Localization: "party.tab.general"},
		{Key: "traits", ID: "traits", Localization: "party.tab.traits"},
	}
}

// ActorDetails decodes and validates the actor's sheet.
func (Adapter) ActorDetails(actor domain.Actor) (domain.Details, error) {
	if len(actor.System) == 0 {
		return nil, fmt.Errorf("actor has no daggerheart sheet")
	}
	var sheet Sheet
	if err := json.Unmarshal(actor.System, &sheet); err != nil {
		return nil, fmt.Errorf("decode daggerheart sheet: %w", err)
	}
	if err := sheet.Validate(); err != nil {
		return nil, err
	}

	details := domain.Details{
		"level":     sheet.Level,
		"hp":        sheet.HP,
		"hpMax":     sheet.HPMax,
		"stress":    sheet.Stress,
		"stressMax": sheet.StressMax,
		"hope":      sheet.Hope,
		"hopeMax":   hopeMax,
		"evasion":   sheet.Evasion,
		"armor":     sheet.Armor,
		"armorMax":  sheet.ArmorMax,
		"major":     sheet.Thresholds.Major,
		"severe":    sheet.Thresholds.Severe,
	}
	for _, name := range TraitNames {
		details[name] = sheet.Traits[name]
	}
	return details, nil
}

// Update adds party totals. Actors whose sheet failed to load are skipped.
func (Adapter) Update(actors []domain.ActorRecord) ([]domain.ActorRecord, map[string]any) {
	var hp, hpMax, hope, evasion, counted int
	for _, actor := range actors {
		if actor.Details == nil {
			continue
		}
		counted++
		hp += actor.Details.Int("hp")
		hpMax += actor.Details.Int("hpMax")
		hope += actor.Details.Int("hope")
		evasion += actor.Details.Int("evasion")
	}
	average := 0.0
	if counted > 0 {
		average = math.Round(float64(evasion)/float64(counted)*10) / 10
	}
	return actors, map[string]any{
		"totalHP":        hp,
		"totalHPMax":     hpMax,
		"totalHope":      hope,
		"averageEvasion": average,
	}
}

var _ domain.SystemAdapter = Adapter{}
