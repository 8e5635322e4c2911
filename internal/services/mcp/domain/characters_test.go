package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
)

type fakeSheetService struct {
	page       apiclient.Page
	sheet      apiclient.Sheet
	err        error
	lastParams apiclient.ListParams
	lastID     string
	lastPatch  dotpath.Patch
	lastHP     character.HPChange
	lastThread character.ThreadsChange
}

func (f *fakeSheetService) Sheets(_ context.Context, params apiclient.ListParams) (apiclient.Page, error) {
	f.lastParams = params
	return f.page, f.err
}

func (f *fakeSheetService) Sheet(_ context.Context, id string) (apiclient.Sheet, error) {
	f.lastID = id
	return f.sheet, f.err
}

func (f *fakeSheetService) PatchSheet(_ context.Context, id string, patch dotpath.Patch) (apiclient.Sheet, error) {
	f.lastID = id
	f.lastPatch = patch
	return f.sheet, f.err
}

func (f *fakeSheetService) AdjustHP(_ context.Context, id string, change character.HPChange) (apiclient.Sheet, error) {
	f.lastID = id
	f.lastHP = change
	return f.sheet, f.err
}

func (f *fakeSheetService) AdjustThreads(_ context.Context, id string, change character.ThreadsChange) (apiclient.Sheet, error) {
	f.lastID = id
	f.lastThread = change
	return f.sheet, f.err
}

func TestCharacterListHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &fakeSheetService{page: apiclient.Page{Items: []apiclient.Sheet{{"_id": "c1"}}, Total: 1, Page: 1, Limit: 20}}
		toolResult, result, err := CharacterListHandler(svc)(context.Background(), nil, CharacterListInput{Keyword: "aria", Filter: "weave_level >= 2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if toolResult == nil {
			t.Fatal("expected non-nil tool result")
		}
		if result.Total != 1 || result.Items[0]["_id"] != "c1" {
			t.Fatalf("unexpected result %+v", result)
		}
		if svc.lastParams.Keyword != "aria" || svc.lastParams.Filter != "weave_level >= 2" {
			t.Fatalf("expected params forwarded, got %+v", svc.lastParams)
		}
	})

	t.Run("empty page", func(t *testing.T) {
		_, result, err := CharacterListHandler(&fakeSheetService{})(context.Background(), nil, CharacterListInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Items == nil {
			t.Fatal("expected empty items, got nil")
		}
	})

	t.Run("service error", func(t *testing.T) {
		_, _, err := CharacterListHandler(&fakeSheetService{err: errors.New("offline")})(context.Background(), nil, CharacterListInput{})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestCharacterGetHandlerRequiresID(t *testing.T) {
	svc := &fakeSheetService{sheet: apiclient.Sheet{"_id": "c1"}}
	if _, _, err := CharacterGetHandler(svc)(context.Background(), nil, CharacterGetInput{CharacterID: "  "}); err == nil {
		t.Fatal("expected error for blank id")
	}
	_, result, err := CharacterGetHandler(svc)(context.Background(), nil, CharacterGetInput{CharacterID: " c1 "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.lastID != "c1" || result.Character["_id"] != "c1" {
		t.Fatalf("expected trimmed id, got %q %+v", svc.lastID, result)
	}
}

func TestCharacterPatchHandler(t *testing.T) {
	t.Run("keeps update order", func(t *testing.T) {
		svc := &fakeSheetService{sheet: apiclient.Sheet{"_id": "c1"}}
		_, _, err := CharacterPatchHandler(svc)(context.Background(), nil, CharacterPatchInput{
			CharacterID: "c1",
			Updates: []PatchUpdate{
				{Path: "sheet.resources", Value: map[string]any{}},
				{Path: "sheet.resources.hp.current", Value: 4},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		paths := svc.lastPatch.Paths()
		if len(paths) != 2 || paths[0] != "sheet.resources" || paths[1] != "sheet.resources.hp.current" {
			t.Fatalf("expected ordered paths, got %v", paths)
		}
	})

	t.Run("rejects protected path", func(t *testing.T) {
		svc := &fakeSheetService{}
		_, _, err := CharacterPatchHandler(svc)(context.Background(), nil, CharacterPatchInput{
			CharacterID: "c1",
			Updates:     []PatchUpdate{{Path: "player", Value: "p2"}},
		})
		if !errors.Is(err, character.ErrProtectedPath) {
			t.Fatalf("expected protected path error, got %v", err)
		}
		if svc.lastPatch != nil {
			t.Fatal("expected no write for rejected patch")
		}
	})

	t.Run("requires updates", func(t *testing.T) {
		if _, _, err := CharacterPatchHandler(&fakeSheetService{})(context.Background(), nil, CharacterPatchInput{CharacterID: "c1"}); err == nil {
			t.Fatal("expected error for empty updates")
		}
	})
}

func TestCharacterResourceHandlers(t *testing.T) {
	svc := &fakeSheetService{sheet: apiclient.Sheet{"_id": "c1"}}
	maxHP := 12
	if _, _, err := CharacterHPHandler(svc)(context.Background(), nil, CharacterHPInput{CharacterID: "c1", Mode: " Damage ", Amount: 3, Max: &maxHP, UseTempFirst: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.lastHP.Mode != character.HPDamage || svc.lastHP.Amount != 3 || *svc.lastHP.Max != 12 || !svc.lastHP.UseTempFirst {
		t.Fatalf("unexpected hp change %+v", svc.lastHP)
	}
	if _, _, err := CharacterThreadsHandler(svc)(context.Background(), nil, CharacterThreadsInput{CharacterID: "c1", Mode: "SPEND", Amount: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.lastThread.Mode != character.ThreadsSpend || svc.lastThread.Amount != 1 {
		t.Fatalf("unexpected threads change %+v", svc.lastThread)
	}
}
