package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/platform/httpx"
	"github.com/louisbranch/tapestry/internal/platform/id"
	"github.com/louisbranch/tapestry/internal/platform/requestctx"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/game/filter"
	"github.com/louisbranch/tapestry/internal/services/game/storage"
)

var (
	errAuthRequired = apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	errNotOwner     = apperrors.New(apperrors.CodeForbidden, "character belongs to another player")
	errEmptyUpdate  = apperrors.New(apperrors.CodeCharacterInvalidPatch, "update must contain a non-empty $set")
)

// Handler serves character endpoints.
type Handler struct {
	store       storage.CharacterStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// New builds a Handler over store.
func New(store storage.CharacterStore, now func() time.Time, idGenerator func() (string, error)) (*Handler, error) {
	if store == nil {
		return nil, errors.New("character store is required")
	}
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &Handler{store: store, clock: now, idGenerator: idGenerator}, nil
}

// Register mounts the character routes under prefix (e.g. "/api/v1"). Every
// route requires an authenticated principal in the request context.
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	base := prefix + "/game/characters"
	mux.HandleFunc("GET "+base, h.list)
	mux.HandleFunc("POST "+base, h.create)
	mux.HandleFunc("GET "+base+"/{id}", h.get)
	mux.HandleFunc("PUT "+base+"/{id}", h.update)
	mux.HandleFunc("DELETE "+base+"/{id}", h.delete)
}

// DeletePlayerSheets removes every sheet owned by playerID. It is the account
// deletion hook.
func (h *Handler) DeletePlayerSheets(ctx context.Context, playerID string) error {
	n, err := h.store.DeleteCharactersByPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	log.Printf("player sheets deleted player=%s count=%d", playerID, n)
	return nil
}

func principal(r *http.Request) (requestctx.Principal, error) {
	p, ok := requestctx.PrincipalFromContext(r.Context())
	if !ok {
		return requestctx.Principal{}, errAuthRequired
	}
	return p, nil
}

// owned loads the sheet named in the path and checks the caller may use it.
func (h *Handler) owned(r *http.Request) (character.Sheet, error) {
	p, err := principal(r)
	if err != nil {
		return character.Sheet{}, err
	}
	sheet, err := h.store.GetCharacter(r.Context(), strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		return character.Sheet{}, err
	}
	if sheet.Player != p.AccountID && !p.IsAdmin() {
		return character.Sheet{}, errNotOwner
	}
	return sheet, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	query, err := parseListQuery(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if !p.IsAdmin() {
		query.PlayerID = p.AccountID
	}
	page, err := h.store.ListCharacters(r.Context(), query)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, page, "")
}

func parseListQuery(r *http.Request) (storage.ListQuery, error) {
	values := r.URL.Query()
	q := storage.ListQuery{
		PlayerID: strings.TrimSpace(values.Get("player")),
		Keyword:  strings.TrimSpace(values.Get("keyword")),
		Campaign: strings.TrimSpace(values.Get("campaign")),
	}
	if status := strings.TrimSpace(values.Get("status")); status != "" {
		q.Status = character.Status(strings.ToLower(status))
		if q.Status != character.StatusActive && q.Status != character.StatusArchived {
			return storage.ListQuery{}, character.ErrInvalidStatus
		}
	}
	for name, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return storage.ListQuery{}, apperrors.WithMetadata(apperrors.CodeInvalidRequest, "query parameter must be a positive integer", map[string]string{"param": name})
		}
		*dst = n
	}
	if raw := strings.TrimSpace(values.Get("filter")); raw != "" {
		cond, err := filter.Parse(raw)
		if err != nil {
			return storage.ListQuery{}, err
		}
		q.Filter = cond
	}
	return q.Normalize(), nil
}

type createRequest struct {
	Name     string `json:"name"`
	Campaign string `json:"campaign"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var input createRequest
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.WriteError(w, err)
		return
	}
	sheet, err := character.New(character.CreateInput{
		PlayerID: p.AccountID,
		Name:     input.Name,
		Campaign: input.Campaign,
	}, h.clock, h.idGenerator)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.store.PutCharacter(r.Context(), sheet); err != nil {
		httpx.WriteError(w, err)
		return
	}
	log.Printf("character created id=%s player=%s", sheet.ID, sheet.Player)
	httpx.WriteOK(w, http.StatusCreated, sheet, "character created")
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.owned(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, sheet, "")
}

type updateRequest struct {
	Set dotpath.Patch `json:"$set"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.owned(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var input updateRequest
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if len(input.Set) == 0 {
		httpx.WriteError(w, errEmptyUpdate)
		return
	}
	next, err := h.store.UpdateCharacter(r.Context(), sheet.ID, func(current character.Sheet) (character.Sheet, error) {
		return character.ApplyPatch(current, input.Set, h.clock)
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, next, "character updated")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.owned(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.store.DeleteCharacter(r.Context(), sheet.ID); err != nil {
		httpx.WriteError(w, err)
		return
	}
	log.Printf("character deleted id=%s", sheet.ID)
	httpx.WriteOK(w, http.StatusOK, nil, "character deleted")
}
