package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tapestry/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/game/storage"
	"github.com/louisbranch/tapestry/internal/services/game/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Store implements storage.CharacterStore over SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.CharacterStore = (*Store)(nil)

// Open opens the game database at path and applies bundled migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sqlitedb.Open(ctx, path, migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open game store: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// execer is satisfied by *sql.DB and *sql.Conn.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PutCharacter inserts or replaces a sheet.
func (s *Store) PutCharacter(ctx context.Context, sheet character.Sheet) error {
	return putCharacter(ctx, s.sqlDB, sheet)
}

func putCharacter(ctx context.Context, db execer, sheet character.Sheet) error {
	doc, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("encode sheet: %w", err)
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO characters (id, player_id, campaign_id, name, status, archetype_key, weave_level, document, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    campaign_id = excluded.campaign_id,
    name = excluded.name,
    status = excluded.status,
    archetype_key = excluded.archetype_key,
    weave_level = excluded.weave_level,
    document = excluded.document,
    updated_at = excluded.updated_at`,
		sheet.ID,
		sheet.Player,
		sheet.Campaign,
		sheet.Name,
		string(sheet.Status),
		sheet.Body.ArchetypeKey,
		sheet.Body.WeaveLevel,
		string(doc),
		toMillis(sheet.CreatedAt),
		toMillis(sheet.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put character: %w", err)
	}
	return nil
}

// UpdateCharacter runs fn against the stored sheet inside a BEGIN IMMEDIATE
// transaction and writes its result. Concurrent writers queue on the
// database write lock.
func (s *Store) UpdateCharacter(ctx context.Context, sheetID string, fn storage.UpdateFunc) (_ character.Sheet, err error) {
	conn, err := s.sqlDB.Conn(ctx)
	if err != nil {
		return character.Sheet{}, fmt.Errorf("update character: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return character.Sheet{}, fmt.Errorf("begin character update: %w", err)
	}
	defer func() {
		if err != nil {
			if _, rbErr := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback character update: %w", rbErr))
			}
		}
	}()

	var doc string
	err = conn.QueryRowContext(ctx, `SELECT document FROM characters WHERE id = ?`, sheetID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return character.Sheet{}, storage.ErrNotFound
	}
	if err != nil {
		return character.Sheet{}, fmt.Errorf("get character: %w", err)
	}
	current, err := decodeSheet(doc)
	if err != nil {
		return character.Sheet{}, err
	}
	next, err := fn(current)
	if err != nil {
		return character.Sheet{}, err
	}
	if err := putCharacter(ctx, conn, next); err != nil {
		return character.Sheet{}, err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return character.Sheet{}, fmt.Errorf("commit character update: %w", err)
	}
	return next, nil
}

// GetCharacter loads one sheet.
func (s *Store) GetCharacter(ctx context.Context, sheetID string) (character.Sheet, error) {
	var doc string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT document FROM characters WHERE id = ?`, sheetID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return character.Sheet{}, storage.ErrNotFound
	}
	if err != nil {
		return character.Sheet{}, fmt.Errorf("get character: %w", err)
	}
	return decodeSheet(doc)
}

func decodeSheet(doc string) (character.Sheet, error) {
	var sheet character.Sheet
	if err := json.Unmarshal([]byte(doc), &sheet); err != nil {
		return character.Sheet{}, fmt.Errorf("decode sheet: %w", err)
	}
	return sheet, nil
}

// ListCharacters returns a page of sheets matching q, newest update first.
func (s *Store) ListCharacters(ctx context.Context, q storage.ListQuery) (storage.Page, error) {
	q = q.Normalize()

	var (
		where  []string
		params []any
	)
	if q.PlayerID != "" {
		where = append(where, "player_id = ?")
		params = append(params, q.PlayerID)
	}
	if keyword := strings.TrimSpace(q.Keyword); keyword != "" {
		where = append(where, "name LIKE ? ESCAPE '\\'")
		params = append(params, "%"+escapeLike(keyword)+"%")
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		params = append(params, string(q.Status))
	}
	if q.Campaign != "" {
		where = append(where, "campaign_id = ?")
		params = append(params, q.Campaign)
	}
	if !q.Filter.Empty() {
		where = append(where, q.Filter.Clause)
		params = append(params, q.Filter.Params...)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM characters"+clause, params...).Scan(&total); err != nil {
		return storage.Page{}, fmt.Errorf("count characters: %w", err)
	}

	pageParams := append(append([]any{}, params...), q.Limit, (q.Page-1)*q.Limit)
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT document FROM characters"+clause+" ORDER BY updated_at DESC, id ASC LIMIT ? OFFSET ?",
		pageParams...,
	)
	if err != nil {
		return storage.Page{}, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	page := storage.Page{Sheets: []character.Sheet{}, Total: total, Page: q.Page, Limit: q.Limit}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return storage.Page{}, fmt.Errorf("scan character: %w", err)
		}
		sheet, err := decodeSheet(doc)
		if err != nil {
			return storage.Page{}, err
		}
		page.Sheets = append(page.Sheets, sheet)
	}
	if err := rows.Err(); err != nil {
		return storage.Page{}, fmt.Errorf("iterate characters: %w", err)
	}
	return page, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// DeleteCharacter removes one sheet.
func (s *Store) DeleteCharacter(ctx context.Context, sheetID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, sheetID)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteCharactersByPlayer removes every sheet owned by playerID and returns
// how many were deleted.
func (s *Store) DeleteCharactersByPlayer(ctx context.Context, playerID string) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM characters WHERE player_id = ?`, playerID)
	if err != nil {
		return 0, fmt.Errorf("delete player characters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete player characters: %w", err)
	}
	return int(n), nil
}
