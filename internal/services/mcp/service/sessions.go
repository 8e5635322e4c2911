package service

import (
	"context"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/mcp/domain"
	"github.com/louisbranch/tapestry/internal/services/player"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
)

// sessionSheets runs tool calls through a player session and waits for each
// optimistic write to settle, since a tool result must be authoritative.
type sessionSheets struct {
	session *player.Session
}

var _ domain.SheetService = sessionSheets{}

func (s sessionSheets) Sheets(ctx context.Context, params apiclient.ListParams) (apiclient.Page, error) {
	return s.session.Sheets(ctx, params)
}

func (s sessionSheets) Sheet(ctx context.Context, id string) (apiclient.Sheet, error) {
	return s.session.Sheet(ctx, id)
}

func (s sessionSheets) PatchSheet(ctx context.Context, id string, patch dotpath.Patch) (apiclient.Sheet, error) {
	return s.session.UpdateSheet(ctx, id, patch).Wait(ctx)
}

func (s sessionSheets) AdjustHP(ctx context.Context, id string, change character.HPChange) (apiclient.Sheet, error) {
	m, err := s.session.AdjustHP(ctx, id, change)
	if err != nil {
		return nil, err
	}
	return m.Wait(ctx)
}

func (s sessionSheets) AdjustThreads(ctx context.Context, id string, change character.ThreadsChange) (apiclient.Sheet, error) {
	m, err := s.session.AdjustThreads(ctx, id, change)
	if err != nil {
		return nil, err
	}
	return m.Wait(ctx)
}
