package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/codehut/snippethub/internal/auth"
	"github.com/codehut/snippethub/internal/model"
	"github.com/codehut/snippethub/internal/repository"
	"github.com/codehut/snippethub/internal/service"
)

// SnippetHandler exposes the snippet CRUD, listing, and favorite endpoints.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

// NewSnippetHandler creates a SnippetHandler.
func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// snippetRequest is the JSON body for create and update. IsPublic is a
// pointer so the service can tell "omitted" from "false".
type snippetRequest struct {
	Title       string   `json:"title"`
	Language    string   `json:"language"`
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	IsPublic    *bool    `json:"isPublic"`
}

func (req snippetRequest) toInput() service.SnippetInput {
	return service.SnippetInput{
		Title:       req.Title,
		Language:    req.Language,
		Code:        req.Code,
		Description: req.Description,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	}
}

// listResponse is the window shape for every listing endpoint.
type listResponse struct {
	Items   []model.Snippet `json:"items"`
	HasMore bool            `json:"hasMore"`
}

// parseListParams reads filter and pagination query parameters.
//
// page/limit: non-numeric or non-positive values fall back to the defaults
// (page 1, limit 12) rather than erroring. tags may be repeated
// (?tags=a&tags=b) or comma-separated (?tags=a,b); normalization happens
// downstream.
func parseListParams(r *http.Request) (repository.SnippetFilter, repository.ListOptions) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	var tags []string
	for _, raw := range q["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			tags = append(tags, strings.TrimSpace(tag))
		}
	}

	filter := repository.SnippetFilter{
		Title:    q.Get("title"),
		Language: q.Get("language"),
		Tags:     tags,
	}
	opts := repository.ListOptions{Page: page, Limit: limit}.Normalize()

	return filter, opts
}

// HandleCreate saves a new snippet owned by the caller.
//
// HTTP: POST /api/snippets (RequireAuth)
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "unauthorized", Message: "valid authentication required",
		})
		return
	}

	var req snippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "validation_error", Message: "invalid JSON body",
		})
		return
	}

	snippet, err := h.snippets.Create(r.Context(), user, req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, snippet)
}

// HandleGetByID returns one snippet, subject to the visibility rule.
//
// HTTP: GET /api/snippets/{id} (RequireAuth)
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	snippet, err := h.snippets.GetByID(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleGetPublicByID returns one public snippet without authentication.
//
// HTTP: GET /api/snippets/public/{id}
func (h *SnippetHandler) HandleGetPublicByID(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.GetPublicByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate replaces the mutable fields of a snippet the caller owns.
//
// HTTP: PUT /api/snippets/{id} (RequireAuth)
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req snippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "validation_error", Message: "invalid JSON body",
		})
		return
	}

	snippet, err := h.snippets.Update(r.Context(), user, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet the caller owns.
//
// HTTP: DELETE /api/snippets/{id} (RequireAuth)
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.snippets.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListByUser pages through a user's snippets: all of them for the
// owner, public only for anyone else.
//
// HTTP: GET /api/snippets/user/{userID} (RequireAuth)
func (h *SnippetHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	filter, opts := parseListParams(r)

	page, err := h.snippets.ListByOwner(r.Context(), user, chi.URLParam(r, "userID"), filter, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Items: page.Items, HasMore: page.HasMore})
}

// HandleListPublic pages through public snippets, excluding the caller's
// own. An unknown ?username yields an empty page.
//
// HTTP: GET /api/snippets/public (RequireAuth)
func (h *SnippetHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	filter, opts := parseListParams(r)

	page, err := h.snippets.ListPublic(r.Context(), user, r.URL.Query().Get("username"), filter, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Items: page.Items, HasMore: page.HasMore})
}

// HandleListFavorites pages through the caller's favorited snippets.
//
// HTTP: GET /api/snippets/favorites (RequireAuth)
func (h *SnippetHandler) HandleListFavorites(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	filter, opts := parseListParams(r)

	page, err := h.snippets.ListFavorites(r.Context(), user, filter, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Items: page.Items, HasMore: page.HasMore})
}

// HandleToggleFavorite flips the caller's favorite on a snippet.
//
// HTTP: POST /api/snippets/{id}/favorite (RequireAuth)
func (h *SnippetHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	favorited, count, err := h.snippets.ToggleFavorite(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"favorited":      favorited,
		"favoritesCount": count,
	})
}

// HandleFavoriteCount returns the size of a snippet's favorites set.
//
// HTTP: GET /api/snippets/{id}/favorites/count
func (h *SnippetHandler) HandleFavoriteCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.snippets.FavoriteCount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"favoritesCount": count})
}
