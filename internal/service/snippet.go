package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codehut/snippethub/internal/apperror"
	"github.com/codehut/snippethub/internal/model"
	"github.com/codehut/snippethub/internal/repository"
)

// Validation bounds for snippet fields.
const (
	MinTitleLength       = 2
	MaxTitleLength       = 100
	MaxCodeLength        = 100000 // ~100KB
	MaxDescriptionLength = 1000
)

// SnippetInput is the request contract shared by Create and Update: a full
// set of the mutable fields. IsPublic is a pointer so a payload that omits
// the visibility flag is rejected instead of silently defaulting to private.
type SnippetInput struct {
	Title       string
	Language    string
	Code        string
	Description string
	Tags        []string
	IsPublic    *bool
}

// SnippetService handles business logic for snippets: validation, the
// ownership/visibility rules, and composition of listing scopes.
type SnippetService struct {
	snippets repository.SnippetRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

// NewSnippetService creates a SnippetService.
func NewSnippetService(
	snippets repository.SnippetRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *SnippetService {
	return &SnippetService{
		snippets: snippets,
		users:    users,
		logger:   logger,
	}
}

// validateInput enforces the snippet field rules. Runs before any write,
// so a rejected create or update never touches storage.
func validateInput(in *SnippetInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Language = strings.TrimSpace(in.Language)

	if in.Title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(in.Title) < MinTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be at least %d characters", MinTitleLength))
	}
	if len(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if in.Language == "" {
		return apperror.ValidationFailed("language", "language is required")
	}
	if strings.TrimSpace(in.Code) == "" {
		return apperror.ValidationFailed("code", "code cannot be empty")
	}
	if len(in.Code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	if len(in.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description cannot exceed %d characters", MaxDescriptionLength))
	}
	if in.IsPublic == nil {
		return apperror.ValidationFailed("isPublic", "isPublic must be a boolean")
	}
	return nil
}

// Create validates the input and stores a new snippet owned by owner.
func (s *SnippetService) Create(ctx context.Context, owner *model.User, in SnippetInput) (*model.Snippet, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		OwnerID:       owner.ID,
		OwnerUsername: owner.Username,
		Title:         in.Title,
		Language:      in.Language,
		Code:          in.Code,
		Description:   in.Description,
		IsPublic:      *in.IsPublic,
		Tags:          normalizeTags(in.Tags),
	}

	if err := s.snippets.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("ownerID", owner.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("ownerID", owner.ID),
	)

	return snippet, nil
}

// GetByID retrieves a snippet for an authenticated caller.
//
// A private snippet is visible only to its owner: a non-owner gets
// Forbidden, which is distinct from the NotFound returned for a missing ID.
// The record's existence is not hidden from authenticated callers, only its
// content.
func (s *SnippetService) GetByID(ctx context.Context, caller *model.User, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.snippets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !snippet.IsPublic && snippet.OwnerID != caller.ID {
		return nil, apperror.Forbidden("not authorized to view this snippet")
	}

	return snippet, nil
}

// GetPublicByID retrieves a snippet on the unauthenticated read path.
// Private and missing snippets are indistinguishable here: both NotFound,
// so anonymous callers can't probe for the existence of private records.
func (s *SnippetService) GetPublicByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.snippets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snippet.IsPublic {
		return nil, apperror.NotFound("snippet", id)
	}

	return snippet, nil
}

// Update replaces all mutable fields of a snippet owned by caller.
// Authorization precedes validation precedes the write; a rejected update
// leaves the stored record fully intact.
func (s *SnippetService) Update(ctx context.Context, caller *model.User, id string, in SnippetInput) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.snippets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if snippet.OwnerID != caller.ID {
		return nil, apperror.Forbidden("not authorized to modify this snippet")
	}

	if err := validateInput(&in); err != nil {
		return nil, err
	}

	snippet.Title = in.Title
	snippet.Language = in.Language
	snippet.Code = in.Code
	snippet.Description = in.Description
	snippet.IsPublic = *in.IsPublic
	snippet.Tags = normalizeTags(in.Tags)

	if err := s.snippets.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated", slog.String("id", id))

	return snippet, nil
}

// Delete removes a snippet owned by caller. Deletion also clears the
// snippet's favorites set, so it disappears from every favoriter's listing.
func (s *SnippetService) Delete(ctx context.Context, caller *model.User, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.snippets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if snippet.OwnerID != caller.ID {
		return apperror.Forbidden("not authorized to delete this snippet")
	}

	if err := s.snippets.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}

// ListByOwner pages through a user's snippets. The owner sees everything;
// everyone else sees only the public ones. A target user that doesn't exist
// yields an empty page, same as a user with no snippets.
func (s *SnippetService) ListByOwner(ctx context.Context, caller *model.User, targetUserID string, filter repository.SnippetFilter, opts repository.ListOptions) (*repository.Page, error) {
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	scope := repository.ListScope{
		OwnerID:    targetUserID,
		PublicOnly: caller.ID != targetUserID,
	}

	return s.list(ctx, scope, filter, opts)
}

// ListPublic pages through public snippets, always excluding the caller's
// own. If username is given and resolves, results are further restricted to
// that user; if it doesn't resolve, the page is empty rather than an error,
// so the listing can't be used to probe which usernames exist.
func (s *SnippetService) ListPublic(ctx context.Context, caller *model.User, username string, filter repository.SnippetFilter, opts repository.ListOptions) (*repository.Page, error) {
	scope := repository.ListScope{
		PublicOnly:     true,
		ExcludeOwnerID: caller.ID,
	}

	if username = strings.TrimSpace(username); username != "" {
		owner, err := s.users.GetUserByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return &repository.Page{Items: []model.Snippet{}, HasMore: false}, nil
			}
			return nil, fmt.Errorf("resolving username %q: %w", username, err)
		}
		scope.OwnerID = owner.ID
	}

	return s.list(ctx, scope, filter, opts)
}

// ListFavorites pages through the snippets the caller has favorited.
func (s *SnippetService) ListFavorites(ctx context.Context, caller *model.User, filter repository.SnippetFilter, opts repository.ListOptions) (*repository.Page, error) {
	scope := repository.ListScope{
		FavoritedBy: caller.ID,
	}

	return s.list(ctx, scope, filter, opts)
}

func (s *SnippetService) list(ctx context.Context, scope repository.ListScope, filter repository.SnippetFilter, opts repository.ListOptions) (*repository.Page, error) {
	page, err := s.snippets.List(ctx, scope, filter, opts.Normalize())
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return page, nil
}

// ToggleFavorite flips the caller's membership in a snippet's favorites set.
// Any authenticated caller may favorite any existing snippet, public or
// private, own or not. Favoriting discloses nothing but existence, which
// authenticated callers can already observe.
func (s *SnippetService) ToggleFavorite(ctx context.Context, caller *model.User, id string) (bool, int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, 0, apperror.ValidationFailed("id", "snippet ID is required")
	}

	favorited, count, err := s.snippets.ToggleFavorite(ctx, id, caller.ID)
	if err != nil {
		return false, 0, err
	}

	s.logger.Info("favorite toggled",
		slog.String("snippetID", id),
		slog.String("userID", caller.ID),
		slog.Bool("favorited", favorited),
	)

	return favorited, count, nil
}

// FavoriteCount returns the size of a snippet's favorites set.
// Requires only that the snippet exists; there is no ownership check.
func (s *SnippetService) FavoriteCount(ctx context.Context, id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, apperror.ValidationFailed("id", "snippet ID is required")
	}

	return s.snippets.FavoriteCount(ctx, id)
}

// normalizeTags trims, lowercases, drops empties, and collapses duplicates.
// The repository applies the same normalization on write; doing it here too
// means the returned model matches what will be read back.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
