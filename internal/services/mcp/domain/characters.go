package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SheetService is the sheet surface the tools need.
type SheetService interface {
	Sheets(ctx context.Context, params apiclient.ListParams) (apiclient.Page, error)
	Sheet(ctx context.Context, id string) (apiclient.Sheet, error)
	PatchSheet(ctx context.Context, id string, patch dotpath.Patch) (apiclient.Sheet, error)
	AdjustHP(ctx context.Context, id string, change character.HPChange) (apiclient.Sheet, error)
	AdjustThreads(ctx context.Context, id string, change character.ThreadsChange) (apiclient.Sheet, error)
}

// CharacterListInput represents the MCP tool input for listing sheets.
type CharacterListInput struct {
	Keyword  string `json:"keyword,omitempty" jsonschema:"case-insensitive name match"`
	Status   string `json:"status,omitempty" jsonschema:"active or archived"`
	Campaign string `json:"campaign,omitempty" jsonschema:"campaign identifier"`
	Filter   string `json:"filter,omitempty" jsonschema:"AIP-160 filter, e.g. weave_level >= 2"`
	Page     int    `json:"page,omitempty" jsonschema:"page number starting at 1"`
	Limit    int    `json:"limit,omitempty" jsonschema:"page size"`
}

// CharacterListResult represents the MCP tool output for listing sheets.
type CharacterListResult struct {
	Items []map[string]any `json:"items" jsonschema:"character sheets"`
	Total int              `json:"total" jsonschema:"matching sheet count"`
	Page  int              `json:"page" jsonschema:"current page"`
	Limit int              `json:"limit" jsonschema:"page size"`
}

// CharacterGetInput identifies one sheet.
type CharacterGetInput struct {
	CharacterID string `json:"character_id" jsonschema:"character identifier"`
}

// CharacterResult wraps one sheet document.
type CharacterResult struct {
	Character map[string]any `json:"character" jsonschema:"character sheet"`
}

// PatchUpdate is one dot-path assignment.
type PatchUpdate struct {
	Path  string `json:"path" jsonschema:"dot path such as sheet.resources.hp.current"`
	Value any    `json:"value" jsonschema:"new value"`
}

// CharacterPatchInput represents an ordered dot-path update.
type CharacterPatchInput struct {
	CharacterID string        `json:"character_id" jsonschema:"character identifier"`
	Updates     []PatchUpdate `json:"updates" jsonschema:"updates applied in order"`
}

// CharacterHPInput represents an HP adjustment.
type CharacterHPInput struct {
	CharacterID  string `json:"character_id" jsonschema:"character identifier"`
	Mode         string `json:"mode" jsonschema:"damage, heal or set"`
	Amount       int    `json:"amount" jsonschema:"points to apply"`
	Max          *int   `json:"max,omitempty" jsonschema:"new maximum HP"`
	Temp         *int   `json:"temp,omitempty" jsonschema:"new temporary HP"`
	UseTempFirst bool   `json:"use_temp_first,omitempty" jsonschema:"temporary HP absorbs damage first"`
}

// CharacterThreadsInput represents a threads adjustment.
type CharacterThreadsInput struct {
	CharacterID string `json:"character_id" jsonschema:"character identifier"`
	Mode        string `json:"mode" jsonschema:"spend, gain or set"`
	Amount      int    `json:"amount" jsonschema:"threads to apply"`
}

// CharacterListTool defines the MCP tool schema for listing sheets.
func CharacterListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "character_list",
		Description: "Lists the signed-in player's character sheets",
	}
}

// CharacterGetTool defines the MCP tool schema for reading a sheet.
func CharacterGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "character_get",
		Description: "Returns one character sheet",
	}
}

// CharacterPatchTool defines the MCP tool schema for dot-path updates.
func CharacterPatchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "character_patch",
		Description: "Applies ordered dot-path updates to a character sheet and returns the saved sheet",
	}
}

// CharacterHPTool defines the MCP tool schema for HP changes.
func CharacterHPTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "character_hp",
		Description: "Applies damage, healing or a set value to a character's HP",
	}
}

// CharacterThreadsTool defines the MCP tool schema for threads changes.
func CharacterThreadsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "character_threads",
		Description: "Spends, gains or sets a character's threads",
	}
}

// CharacterListHandler lists sheets.
func CharacterListHandler(svc SheetService) mcp.ToolHandlerFor[CharacterListInput, CharacterListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CharacterListInput) (*mcp.CallToolResult, CharacterListResult, error) {
		page, err := svc.Sheets(ctx, apiclient.ListParams{
			Keyword:  input.Keyword,
			Status:   input.Status,
			Campaign: input.Campaign,
			Filter:   input.Filter,
			Page:     input.Page,
			Limit:    input.Limit,
		})
		if err != nil {
			return nil, CharacterListResult{}, fmt.Errorf("character list failed: %w", err)
		}
		result := CharacterListResult{Items: page.Items, Total: page.Total, Page: page.Page, Limit: page.Limit}
		if result.Items == nil {
			result.Items = []map[string]any{}
		}
		return &mcp.CallToolResult{}, result, nil
	}
}

// CharacterGetHandler returns one sheet.
func CharacterGetHandler(svc SheetService) mcp.ToolHandlerFor[CharacterGetInput, CharacterResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CharacterGetInput) (*mcp.CallToolResult, CharacterResult, error) {
		id, err := requireID(input.CharacterID)
		if err != nil {
			return nil, CharacterResult{}, err
		}
		sheet, err := svc.Sheet(ctx, id)
		if err != nil {
			return nil, CharacterResult{}, fmt.Errorf("character get failed: %w", err)
		}
		return &mcp.CallToolResult{}, CharacterResult{Character: sheet}, nil
	}
}

// CharacterPatchHandler applies ordered dot-path updates.
func CharacterPatchHandler(svc SheetService) mcp.ToolHandlerFor[CharacterPatchInput, CharacterResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CharacterPatchInput) (*mcp.CallToolResult, CharacterResult, error) {
		id, err := requireID(input.CharacterID)
		if err != nil {
			return nil, CharacterResult{}, err
		}
		if len(input.Updates) == 0 {
			return nil, CharacterResult{}, fmt.Errorf("at least one update must be provided")
		}
		var patch dotpath.Patch
		for _, u := range input.Updates {
			patch = patch.Set(strings.TrimSpace(u.Path), u.Value)
		}
		if err := character.CheckPatch(patch); err != nil {
			return nil, CharacterResult{}, err
		}
		sheet, err := svc.PatchSheet(ctx, id, patch)
		if err != nil {
			return nil, CharacterResult{}, fmt.Errorf("character patch failed: %w", err)
		}
		return &mcp.CallToolResult{}, CharacterResult{Character: sheet}, nil
	}
}

// CharacterHPHandler applies an HP change.
func CharacterHPHandler(svc SheetService) mcp.ToolHandlerFor[CharacterHPInput, CharacterResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CharacterHPInput) (*mcp.CallToolResult, CharacterResult, error) {
		id, err := requireID(input.CharacterID)
		if err != nil {
			return nil, CharacterResult{}, err
		}
		sheet, err := svc.AdjustHP(ctx, id, character.HPChange{
			Mode:         character.HPMode(strings.ToLower(strings.TrimSpace(input.Mode))),
			Amount:       input.Amount,
			Max:          input.Max,
			Temp:         input.Temp,
			UseTempFirst: input.UseTempFirst,
		})
		if err != nil {
			return nil, CharacterResult{}, fmt.Errorf("character hp failed: %w", err)
		}
		return &mcp.CallToolResult{}, CharacterResult{Character: sheet}, nil
	}
}

// CharacterThreadsHandler applies a threads change.
func CharacterThreadsHandler(svc SheetService) mcp.ToolHandlerFor[CharacterThreadsInput, CharacterResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CharacterThreadsInput) (*mcp.CallToolResult, CharacterResult, error) {
		id, err := requireID(input.CharacterID)
		if err != nil {
			return nil, CharacterResult{}, err
		}
		sheet, err := svc.AdjustThreads(ctx, id, character.ThreadsChange{
			Mode:   character.ThreadsMode(strings.ToLower(strings.TrimSpace(input.Mode))),
			Amount: input.Amount,
		})
		if err != nil {
			return nil, CharacterResult{}, fmt.Errorf("character threads failed: %w", err)
		}
		return &mcp.CallToolResult{}, CharacterResult{Character: sheet}, nil
	}
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("character_id is required")
	}
	return id, nil
}
