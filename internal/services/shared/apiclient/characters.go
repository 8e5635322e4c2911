package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
)

// Sheet is a character sheet document as served by the API.
type Sheet = map[string]any

// ListParams filters ListCharacters. Zero values are omitted.
type ListParams struct {
	Keyword  string
	Status   string
	Campaign string
	// Player is honored for admins only.
	Player string
	// Filter is an AIP-160 expression, e.g. `weave_level >= 2`.
	Filter string
	Page   int
	Limit  int
}

// Values returns the raw parameter map before cleaning.
func (p ListParams) Values() map[string]string {
	values := map[string]string{
		"keyword":  p.Keyword,
		"status":   p.Status,
		"campaign": p.Campaign,
		"player":   p.Player,
		"filter":   p.Filter,
	}
	if p.Page != 0 {
		values["page"] = strconv.Itoa(p.Page)
	}
	if p.Limit != 0 {
		values["limit"] = strconv.Itoa(p.Limit)
	}
	return values
}

// CleanParams drops empty and whitespace-only values.
func CleanParams(params map[string]string) url.Values {
	cleaned := url.Values{}
	for key, value := range params {
		if value = strings.TrimSpace(value); value != "" {
			cleaned.Set(key, value)
		}
	}
	return cleaned
}

// Page is a page of sheets.
type Page struct {
	Items []Sheet `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

// CreateCharacterInput names a new sheet.
type CreateCharacterInput struct {
	Name     string `json:"name,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

func characterPath(id string) string {
	return "/game/characters/" + url.PathEscape(id)
}

// ListCharacters returns the caller's sheets (every sheet for admins).
func (c *Client) ListCharacters(ctx context.Context, params ListParams) (Page, error) {
	var page Page
	if _, err := c.do(ctx, http.MethodGet, "/game/characters", CleanParams(params.Values()), nil, &page); err != nil {
		return Page{}, err
	}
	if page.Items == nil {
		page.Items = []Sheet{}
	}
	return page, nil
}

// GetCharacter returns one sheet.
func (c *Client) GetCharacter(ctx context.Context, id string) (Sheet, error) {
	var sheet Sheet
	if _, err := c.do(ctx, http.MethodGet, characterPath(id), nil, nil, &sheet); err != nil {
		return nil, err
	}
	return sheet, nil
}

// CreateCharacter creates a default sheet.
func (c *Client) CreateCharacter(ctx context.Context, input CreateCharacterInput) (Sheet, error) {
	var sheet Sheet
	if _, err := c.do(ctx, http.MethodPost, "/game/characters", nil, input, &sheet); err != nil {
		return nil, err
	}
	return sheet, nil
}

type updateBody struct {
	Set dotpath.Patch `json:"$set"`
}

// UpdateCharacter sends patch as a partial update and returns the stored
// sheet.
func (c *Client) UpdateCharacter(ctx context.Context, id string, patch dotpath.Patch) (Sheet, error) {
	var sheet Sheet
	if _, err := c.do(ctx, http.MethodPut, characterPath(id), nil, updateBody{Set: patch}, &sheet); err != nil {
		return nil, err
	}
	return sheet, nil
}

// DeleteCharacter removes one sheet.
func (c *Client) DeleteCharacter(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, characterPath(id), nil, nil, nil)
	return err
}
