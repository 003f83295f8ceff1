// Package storage defines persistence contracts for the party overview.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

const (
	// SettingsNamespace scopes every setting owned by the overview.
	SettingsNamespace = "party-overview"
	// TabVisibilityKey stores the per-tab visibility preferences.
	TabVisibilityKey = "tabVisibility"
)

// RosterSource lists the actors the overview may display.
type RosterSource interface {
	// PlayerActors returns every player-owned actor with its tokens in the
	// active scene.
	PlayerActors(ctx context.Context) ([]domain.Actor, error)
}

// SettingsStore persists opaque namespaced settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, namespace, key string) ([]byte, bool, error)
	PutSetting(ctx context.Context, namespace, key string, value []byte) error
}

// RosterWriter mutates the roster and scene placement.
type RosterWriter interface {
	PutActor(ctx context.Context, actor domain.Actor) error
	DeleteActor(ctx context.Context, actorID string) error
	PutSceneTokens(ctx context.Context, sceneID string, tokens []domain.Token) error
	ActivateScene(ctx context.Context, sceneID string) error
	// ListActors returns actors matching an AIP-160 filter; tokens are not
	// populated.
	ListActors(ctx context.Context, filter string) ([]domain.Actor, error)
}

// LoadTabVisibility reads the persisted tab preferences. A missing setting
// yields an empty map.
func LoadTabVisibility(ctx context.Context, store SettingsStore) (domain.TabVisibility, error) {
	if store == nil {
		return domain.TabVisibility{}, nil
	}
	raw, ok, err := store.GetSetting(ctx, SettingsNamespace, TabVisibilityKey)
	if err != nil {
		return nil, fmt.Errorf("load tab visibility: %w", err)
	}
	tabs := domain.TabVisibility{}
	if !ok || len(raw) == 0 {
		return tabs, nil
	}
	if err := json.Unmarshal(raw, &tabs); err != nil {
		return nil, fmt.Errorf("decode tab visibility: %w", err)
	}
	return tabs, nil
}

// SaveTabVisibility writes the tab preferences.
func SaveTabVisibility(ctx context.Context, store SettingsStore, tabs domain.TabVisibility) error {
	if store == nil {
		return errors.New("settings store is not configured")
	}
	if tabs == nil {
		tabs = domain.TabVisibility{}
	}
	raw, err := json.Marshal(tabs)
	if err != nil {
		return fmt.Errorf("encode tab visibility: %w", err)
	}
	if err := store.PutSetting(ctx, SettingsNamespace, TabVisibilityKey, raw); err != nil {
		return fmt.Errorf("save tab visibility: %w", err)
	}
	return nil
}
