// Package sqlite provides the SQLite-backed roster and settings store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/louisbranch/party-overview/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/party-overview/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/storage"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/storage/rosterfilter"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists the roster, scene placement and overview settings.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PlayerActors returns player-owned actors in insertion order with the
// tokens placed in the active scene.
func (s *Store) PlayerActors(ctx context.Context) ([]domain.Actor, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	actors, err := s.queryActors(ctx, rosterfilter.Condition{Clause: "player_owned = ?", Params: []any{1}})
	if err != nil {
		return nil, err
	}
	if len(actors) == 0 {
		return actors, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT t.id, t.actor_id, t.scene_id
		   FROM tokens t
		   JOIN scenes sc ON sc.id = t.scene_id
		  WHERE sc.active = 1
		  ORDER BY t.position ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int, len(actors))
	for i, actor := range actors {
		index[actor.ID] = i
	}
	for rows.Next() {
		var token domain.Token
		if err := rows.Scan(&token.ID, &token.ActorID, &token.SceneID); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		if i, ok := index[token.ActorID]; ok {
			actors[i].Tokens = append(actors[i].Tokens, token)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return actors, nil
}

// ListActors returns actors matching an AIP-160 filter in insertion order.
func (s *Store) ListActors(ctx context.Context, filter string) ([]domain.Actor, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	cond, err := rosterfilter.Parse(filter)
	if err != nil {
		return nil, apperrors.WithMetadata(apperrors.CodeFilterInvalid, err.Error(), map[string]string{"Filter": filter})
	}
	return s.queryActors(ctx, cond)
}

func (s *Store) queryActors(ctx context.Context, cond rosterfilter.Condition) ([]domain.Actor, error) {
	query := `SELECT id, name, player_owned, system_json FROM actors`
	if !cond.Empty() {
		query += " WHERE " + cond.Clause
	}
	query += " ORDER BY rowid ASC"

	rows, err := s.sqlDB.QueryContext(ctx, query, cond.Params...)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	actors := []domain.Actor{}
	for rows.Next() {
		var actor domain.Actor
		var playerOwned int
		var system string
		if err := rows.Scan(&actor.ID, &actor.Name, &playerOwned, &system); err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		actor.PlayerOwned = playerOwned == 1
		actor.System = json.RawMessage(system)
		actors = append(actors, actor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actors: %w", err)
	}
	return actors, nil
}

// PutActor inserts or replaces one actor. Existing actors keep their roster
// position.
func (s *Store) PutActor(ctx context.Context, actor domain.Actor) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(actor.ID)
	name := strings.TrimSpace(actor.Name)
	if id == "" {
		return apperrors.New(apperrors.CodeActorIDEmpty, "actor id is required")
	}
	if name == "" {
		return apperrors.New(apperrors.CodeActorNameEmpty, "actor name is required")
	}
	system := "{}"
	if len(actor.System) > 0 {
		if !json.Valid(actor.System) {
			return apperrors.New(apperrors.CodeInvalidInput, "actor system data must be valid JSON")
		}
		system = string(actor.System)
	}
	playerOwned := 0
	if actor.PlayerOwned {
		playerOwned = 1
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO actors (id, name, player_owned, system_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   player_owned = excluded.player_owned,
		   system_json = excluded.system_json,
		   updated_at = excluded.updated_at`,
		id, name, playerOwned, system, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put actor: %w", err)
	}
	return nil
}

// DeleteActor removes an actor and its tokens.
func (s *Store) DeleteActor(ctx context.Context, actorID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return apperrors.New(apperrors.CodeActorIDEmpty, "actor id is required")
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM actors WHERE id = ?`, actorID)
	if err != nil {
		return fmt.Errorf("delete actor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete actor: %w", err)
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.CodeNotFound, "delete actor "+actorID, storage.ErrNotFound)
	}
	return nil
}

// PutSceneTokens replaces the tokens placed in sceneID, creating the scene
// when needed. Token order is preserved.
func (s *Store) PutSceneTokens(ctx context.Context, sceneID string, tokens []domain.Token) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sceneID = strings.TrimSpace(sceneID)
	if sceneID == "" {
		return apperrors.New(apperrors.CodeSceneIDEmpty, "scene id is required")
	}
	for _, token := range tokens {
		if strings.TrimSpace(token.ID) == "" {
			return apperrors.New(apperrors.CodeInvalidInput, "token id is required")
		}
		if strings.TrimSpace(token.ActorID) == "" {
			return apperrors.New(apperrors.CodeActorIDEmpty, "token actor id is required")
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scene tokens: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO scenes (id, active) VALUES (?, 0)`, sceneID); err != nil {
		return fmt.Errorf("ensure scene: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM tokens WHERE scene_id = ?`, sceneID); err != nil {
		return fmt.Errorf("clear scene tokens: %w", err)
	}
	for position, token := range tokens {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO tokens (id, scene_id, actor_id, position) VALUES (?, ?, ?, ?)`,
			strings.TrimSpace(token.ID), sceneID, strings.TrimSpace(token.ActorID), position,
		); err != nil {
			if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY) {
				err = apperrors.Wrap(apperrors.CodeNotFound, "token actor "+token.ActorID, storage.ErrNotFound)
				return err
			}
			if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE) {
				err = apperrors.New(apperrors.CodeInvalidInput, "duplicate token id "+token.ID)
				return err
			}
			return fmt.Errorf("insert token: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit scene tokens: %w", err)
	}
	return nil
}

// ActivateScene makes sceneID the only active scene.
func (s *Store) ActivateScene(ctx context.Context, sceneID string) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sceneID = strings.TrimSpace(sceneID)
	if sceneID == "" {
		return apperrors.New(apperrors.CodeSceneIDEmpty, "scene id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate scene: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE scenes SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("deactivate scenes: %w", err)
	}
	result, err := tx.ExecContext(ctx, `UPDATE scenes SET active = 1 WHERE id = ?`, sceneID)
	if err != nil {
		return fmt.Errorf("activate scene: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("activate scene: %w", err)
	}
	if affected == 0 {
		err = apperrors.Wrap(apperrors.CodeNotFound, "activate scene "+sceneID, storage.ErrNotFound)
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit activate scene: %w", err)
	}
	return nil
}

// GetSetting returns the raw value stored under namespace and key.
func (s *Store) GetSetting(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	if err := s.ready(ctx); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get setting %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

// PutSetting stores value under namespace and key.
func (s *Store) PutSetting(ctx context.Context, namespace, key string, value []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(namespace) == "" || strings.TrimSpace(key) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "setting namespace and key are required")
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put setting %s/%s: %w", namespace, key, err)
	}
	return nil
}

func isConstraint(err error, codes ...int) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.Code() == code {
			return true
		}
	}
	return false
}

var (
	_ storage.RosterSource  = (*Store)(nil)
	_ storage.RosterWriter  = (*Store)(nil)
	_ storage.SettingsStore = (*Store)(nil)
)
