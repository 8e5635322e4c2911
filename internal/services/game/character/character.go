package character

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/platform/id"
)

// DefaultName is used when a sheet is created without a name.
const DefaultName = "New Character"

var (
	// ErrEmptyName indicates a missing character name.
	ErrEmptyName = apperrors.New(apperrors.CodeCharacterEmptyName, "character name is required")
	// ErrInvalidStatus indicates a status outside active/archived.
	ErrInvalidStatus = apperrors.New(apperrors.CodeCharacterInvalidStatus, "character status must be active or archived")
	// ErrProtectedPath indicates a patch touching a server-owned field.
	ErrProtectedPath = apperrors.New(apperrors.CodeCharacterProtected, "field cannot be updated")
)

// ProtectedPaths are owned by the server and rejected in patches.
var ProtectedPaths = []string{"_id", "player", "createdAt", "updatedAt"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateInput describes a new sheet.
type CreateInput struct {
	PlayerID string
	Name     string
	Campaign string
}

// New builds a default sheet owned by input.PlayerID.
func New(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Sheet, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if strings.TrimSpace(input.PlayerID) == "" {
		return Sheet{}, apperrors.New(apperrors.CodeInvalidRequest, "player id is required")
	}
	name := NormalizeName(input.Name)
	if name == "" {
		name = DefaultName
	}
	sheetID, err := idGenerator()
	if err != nil {
		return Sheet{}, fmt.Errorf("generate sheet id: %w", err)
	}
	createdAt := now().UTC()
	return Sheet{
		ID:       sheetID,
		Player:   input.PlayerID,
		Campaign: strings.TrimSpace(input.Campaign),
		Name:     name,
		Status:   StatusActive,
		Tags:     []string{},
		Body: Body{
			WeaveLevel: 1,
			Skills:     map[string]int{},
			Features:   []string{},
			Resources: Resources{
				HP:      ResourceTrack{Current: 10, Max: 10, Temp: new(int)},
				Threads: ResourceTrack{Current: 3, Max: 3},
				Other:   map[string]int{},
			},
			Conditions: []ConditionInstance{},
			Inventory:  []InventoryItem{},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeName trims, collapses inner whitespace and applies Unicode NFC.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// Normalize returns s with canonical name, tags and nil collections replaced
// by empty ones.
func Normalize(s Sheet) Sheet {
	s.Name = NormalizeName(s.Name)
	s.Campaign = strings.TrimSpace(s.Campaign)
	if s.Status == "" {
		s.Status = StatusActive
	}
	tags := make([]string, 0, len(s.Tags))
	seen := make(map[string]struct{}, len(s.Tags))
	for _, tag := range s.Tags {
		tag = strings.ToLower(NormalizeName(tag))
		if _, dup := seen[tag]; tag == "" || dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	s.Tags = tags
	if s.Body.Skills == nil {
		s.Body.Skills = map[string]int{}
	}
	if s.Body.Features == nil {
		s.Body.Features = []string{}
	}
	if s.Body.Resources.Other == nil {
		s.Body.Resources.Other = map[string]int{}
	}
	if s.Body.Conditions == nil {
		s.Body.Conditions = []ConditionInstance{}
	}
	if s.Body.Inventory == nil {
		s.Body.Inventory = []InventoryItem{}
	}
	return s
}

// Validate checks a normalized sheet.
func Validate(s Sheet) error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if s.Status != StatusActive && s.Status != StatusArchived {
		return ErrInvalidStatus
	}
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return apperrors.WithMetadata(apperrors.CodeCharacterInvalidSheet, "character sheet is invalid", map[string]string{
				"field": first.Namespace(),
				"rule":  first.Tag(),
			})
		}
		return apperrors.Wrap(apperrors.CodeCharacterInvalidSheet, "character sheet is invalid", err)
	}
	return nil
}

// CheckPatch rejects malformed paths and paths touching ProtectedPaths.
func CheckPatch(patch dotpath.Patch) error {
	for _, u := range patch.Paths() {
		if _, err := dotpath.Split(u); err != nil {
			return apperrors.Wrap(apperrors.CodeCharacterInvalidPatch, "invalid update path", err)
		}
		for _, protected := range ProtectedPaths {
			if u == protected || strings.HasPrefix(u, protected+dotpath.Separator) {
				return apperrors.WithMetadata(ErrProtectedPath.Code, ErrProtectedPath.Message, map[string]string{"path": u})
			}
		}
	}
	return nil
}

// ApplyPatch applies patch to s and returns the normalized, validated result
// with UpdatedAt set to now.
func ApplyPatch(s Sheet, patch dotpath.Patch, now func() time.Time) (Sheet, error) {
	if now == nil {
		now = time.Now
	}
	if err := CheckPatch(patch); err != nil {
		return Sheet{}, err
	}
	doc, err := ToDocument(s)
	if err != nil {
		return Sheet{}, err
	}
	patched, err := dotpath.Apply(doc, patch)
	if err != nil {
		return Sheet{}, apperrors.Wrap(apperrors.CodeCharacterInvalidPatch, "patch cannot be applied", err)
	}
	next, err := FromDocument(patched)
	if err != nil {
		return Sheet{}, err
	}
	next = Normalize(next)
	next.ID, next.Player, next.CreatedAt = s.ID, s.Player, s.CreatedAt
	if err := Validate(next); err != nil {
		return Sheet{}, err
	}
	next.UpdatedAt = now().UTC()
	return next, nil
}

// DisplayStatus renders a status for people ("Active").
func DisplayStatus(status Status) string {
	return cases.Title(language.English).String(string(status))
}
