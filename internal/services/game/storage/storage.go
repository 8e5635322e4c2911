package storage

import (
	"context"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/game/filter"
)

// ErrNotFound indicates a requested sheet is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "character not found")

// Page size limits for ListCharacters.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListQuery selects sheets. An empty PlayerID lists every player's sheets.
type ListQuery struct {
	PlayerID string
	// Keyword matches a case-insensitive substring of the name.
	Keyword  string
	Status   character.Status
	Campaign string
	Filter   filter.Condition
	// Page is 1-based.
	Page  int
	Limit int
}

// Normalize applies page defaults and limits.
func (q ListQuery) Normalize() ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Page is one page of sheets, most recently updated first.
type Page struct {
	Sheets []character.Sheet `json:"items"`
	Total  int               `json:"total"`
	Page   int               `json:"page"`
	Limit  int               `json:"limit"`
}

// UpdateFunc derives the next sheet from the stored one.
type UpdateFunc func(current character.Sheet) (character.Sheet, error)

// CharacterStore persists character sheets.
type CharacterStore interface {
	PutCharacter(ctx context.Context, s character.Sheet) error
	GetCharacter(ctx context.Context, sheetID string) (character.Sheet, error)
	// UpdateCharacter reads, transforms and writes one sheet atomically, so
	// concurrent updates never work from the same base.
	UpdateCharacter(ctx context.Context, sheetID string, fn UpdateFunc) (character.Sheet, error)
	ListCharacters(ctx context.Context, q ListQuery) (Page, error)
	DeleteCharacter(ctx context.Context, sheetID string) error
	DeleteCharactersByPlayer(ctx context.Context, playerID string) (int, error)
}
