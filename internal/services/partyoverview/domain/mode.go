package domain

import (
	"fmt"
	"strings"
)

// FilterMode selects which actors the overview lists.
type FilterMode int

const (
	// ShowAll lists every placed actor regardless of hidden state.
	ShowAll FilterMode = iota
	// ShowVisible lists placed actors that are not hidden.
	ShowVisible
	// ShowHidden lists placed actors that are hidden.
	ShowHidden
	// ShowMore lists every player-owned actor, placed or not.
	ShowMore

	filterModeCount = 4
)

// DefaultFilterMode is the mode a freshly opened panel starts in.
const DefaultFilterMode = ShowVisible

var filterModeNames = [filterModeCount]string{"all", "visible", "hidden", "more"}

// NextMode returns the mode that follows current in the cycle
// all -> visible -> hidden -> more -> all.
func NextMode(current FilterMode) FilterMode {
	next := (int(current) + 1) % filterModeCount
	if next < 0 {
		next += filterModeCount
	}
	return FilterMode(next)
}

// Valid reports whether m is one of the declared modes.
func (m FilterMode) Valid() bool {
	return m >= ShowAll && m <= ShowMore
}

// String returns the lowercase mode name.
func (m FilterMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return filterModeNames[m]
}

// ParseFilterMode resolves a mode by name.
func ParseFilterMode(value string) (FilterMode, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for idx, name := range filterModeNames {
		if name == value {
			return FilterMode(idx), nil
		}
	}
	return 0, fmt.Errorf("unknown filter mode %q", value)
}

// MarshalText encodes the mode by name.
func (m FilterMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid filter mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *FilterMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFilterMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
