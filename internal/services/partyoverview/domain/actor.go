package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Actor is a character tracked by the campaign host.
type Actor struct {
	ID          string
	Name        string
	PlayerOwned bool
	// System holds the ruleset-specific character sheet as raw JSON.
	System json.RawMessage
	// Tokens are the actor's placed instances in the active scene.
	Tokens []Token
}

// Token is one placed instance of an actor in a scene.
type Token struct {
	ID      string
	ActorID string
	SceneID string
}

// ActorRecord is the per-actor display record rendered by the panel.
type ActorRecord struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ShortestName string  `json:"shortestName"`
	IsHidden     bool    `json:"isHidden"`
	Details      Details `json:"details,omitempty"`
}

// Details are ruleset-specific display fields for one actor.
type Details map[string]any

// Value returns the raw value stored under key.
func (d Details) Value(key string) any {
	if d == nil {
		return nil
	}
	return d[key]
}

// Has reports whether key is present.
func (d Details) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Int returns the value under key as an int, or 0.
func (d Details) Int(key string) int {
	switch value := d.Value(key).(type) {
	case int:
		return value
	case int32:
		return int(value)
	case int64:
		return int(value)
	case float64:
		return int(math.Round(value))
	case json.Number:
		parsed, err := value.Int64()
		if err == nil {
			return int(parsed)
		}
	}
	return 0
}

// String returns the value under key formatted as text.
func (d Details) String(key string) string {
	switch value := d.Value(key).(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		if value == math.Trunc(value) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	default:
		return fmt.Sprint(value)
	}
}

// Strings returns the value under key as a string slice.
func (d Details) Strings(key string) []string {
	switch value := d.Value(key).(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// ShortestName returns the first whitespace-delimited token of name.
func ShortestName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
