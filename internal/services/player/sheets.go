package player

import (
	"context"
	"fmt"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/shared/alert"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
	"github.com/louisbranch/tapestry/internal/services/shared/optimistic"
	"github.com/louisbranch/tapestry/internal/services/shared/querycache"
)

// KeyCharacterList is the cache key of one sheet list query. Empty params are
// dropped so equivalent queries share an entry.
func KeyCharacterList(params apiclient.ListParams) querycache.Key {
	return querycache.Key{"characters", apiclient.CleanParams(params.Values()).Encode()}
}

// Sheets lists the caller's sheets through the cache.
func (s *Session) Sheets(ctx context.Context, params apiclient.ListParams) (apiclient.Page, error) {
	if !s.SignedIn() {
		return apiclient.Page{}, ErrSignedOut
	}
	opts := querycache.FetchOptions{StaleTime: SheetsStaleTime, Retry: 1, RetryDelay: s.retryDelay}
	data, err := s.cache.Fetch(ctx, KeyCharacterList(params), opts, func(ctx context.Context) (any, error) {
		return s.client.ListCharacters(ctx, params)
	})
	if err != nil {
		return apiclient.Page{}, err
	}
	page, ok := data.(apiclient.Page)
	if !ok {
		return apiclient.Page{}, fmt.Errorf("cached sheet list is %T", data)
	}
	return page, nil
}

// Sheet returns one sheet, served from the cache while fresh.
func (s *Session) Sheet(ctx context.Context, id string) (apiclient.Sheet, error) {
	if !s.SignedIn() {
		return nil, ErrSignedOut
	}
	return s.coord.Read(ctx, id)
}

// SheetModel decodes the sheet into the typed model.
func (s *Session) SheetModel(ctx context.Context, id string) (character.Sheet, error) {
	doc, err := s.Sheet(ctx, id)
	if err != nil {
		return character.Sheet{}, err
	}
	return character.FromDocument(doc)
}

// UpdateSheet applies patch optimistically and sends it. Sheet lists are
// marked stale once the write lands; a failed write raises an error alert.
func (s *Session) UpdateSheet(ctx context.Context, id string, patch dotpath.Patch) *optimistic.Mutation {
	m := s.coord.Start(ctx, id, patch, KeyCharacters)
	go func() {
		<-m.Done()
		if m.State() != optimistic.StateFailed {
			return
		}
		_, err := m.Wait(context.Background())
		s.alerts.Add(alert.Input{
			Type:        alert.TypeError,
			Message:     "Could not save changes",
			Description: apiclient.MessageOf(err),
			ShowIcon:    true,
		})
	}()
	return m
}

// CreateCharacter creates a sheet, caches it and marks lists stale.
func (s *Session) CreateCharacter(ctx context.Context, input apiclient.CreateCharacterInput) (apiclient.Sheet, error) {
	if !s.SignedIn() {
		return nil, ErrSignedOut
	}
	sheet, err := s.client.CreateCharacter(ctx, input)
	if err != nil {
		return nil, err
	}
	if id, _ := sheet["_id"].(string); id != "" {
		s.cache.Set(KeyCharacter(id), sheet)
	}
	s.cache.Invalidate(KeyCharacters)
	s.alerts.AddMessage("Character created", alert.TypeSuccess, 0)
	return sheet, nil
}

// DeleteCharacter deletes a sheet and drops it from the cache.
func (s *Session) DeleteCharacter(ctx context.Context, id string) error {
	if !s.SignedIn() {
		return ErrSignedOut
	}
	if err := s.client.DeleteCharacter(ctx, id); err != nil {
		return err
	}
	s.cache.Remove(KeyCharacter(id))
	s.cache.Invalidate(KeyCharacters)
	s.alerts.AddMessage("Character deleted", alert.TypeSuccess, 0)
	return nil
}

// AdjustHP resolves an HP change against the current sheet and saves it.
func (s *Session) AdjustHP(ctx context.Context, id string, change character.HPChange) (*optimistic.Mutation, error) {
	sheet, err := s.SheetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, _, err := change.Patch(sheet)
	if err != nil {
		return nil, err
	}
	return s.UpdateSheet(ctx, id, patch), nil
}

// AdjustThreads resolves a threads change against the current sheet and
// saves it.
func (s *Session) AdjustThreads(ctx context.Context, id string, change character.ThreadsChange) (*optimistic.Mutation, error) {
	sheet, err := s.SheetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, _, err := change.Patch(sheet)
	if err != nil {
		return nil, err
	}
	return s.UpdateSheet(ctx, id, patch), nil
}

// StepAspect moves one aspect score by delta and saves it.
func (s *Session) StepAspect(ctx context.Context, id, group, key string, delta int) (*optimistic.Mutation, error) {
	sheet, err := s.SheetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, err := character.AspectStep(sheet, group, key, delta)
	if err != nil {
		return nil, err
	}
	return s.UpdateSheet(ctx, id, patch), nil
}
