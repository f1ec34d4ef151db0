// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage is the only implementation; services are
// written against these interfaces so tests can substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/codehut/snippethub/internal/model"
)

// Pagination defaults. A request with a non-positive page or limit falls
// back to these instead of failing.
const (
	DefaultPage  = 1
	DefaultLimit = 12
	MaxLimit     = 100
)

// SnippetFilter narrows a snippet listing. All fields are optional: a blank
// title or language adds no constraint, and an empty tag list (after
// normalization) adds no constraint.
//
//   - Title: case-insensitive substring match
//   - Language: case-insensitive exact match (anchored, not substring)
//   - Tags: match if the snippet has AT LEAST ONE of the given tags (OR
//     across tags, not AND)
type SnippetFilter struct {
	Title    string
	Language string
	Tags     []string
}

// ListOptions is a 1-indexed page window.
type ListOptions struct {
	Page  int
	Limit int
}

// Normalize clamps a ListOptions to valid bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Page <= 0 {
		o.Page = DefaultPage
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	return o
}

// Offset returns the row offset for the window.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// Page is one window of a larger result set, ordered newest first.
// HasMore reports whether any matching row exists beyond this window.
type Page struct {
	Items   []model.Snippet
	HasMore bool
}

// ListScope is the authorization predicate for a snippet listing: who the
// results are restricted to, beyond what SnippetFilter narrows.
type ListScope struct {
	// OwnerID restricts to snippets owned by this user (empty = no restriction).
	OwnerID string
	// PublicOnly restricts to snippets with the public visibility flag.
	PublicOnly bool
	// ExcludeOwnerID drops snippets owned by this user (empty = drop none).
	ExcludeOwnerID string
	// FavoritedBy restricts to snippets whose favorites set contains this
	// user (empty = no restriction).
	FavoritedBy string
}

// UserRepository persists user accounts.
type UserRepository interface {
	// CreateUser inserts a new user. Returns apperror.ErrConflict if the
	// username or email is already taken case-insensitively.
	CreateUser(ctx context.Context, user *model.User) error
	// GetUserByID returns apperror.ErrNotFound if no such user exists.
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail looks up case-insensitively via the email_lower shadow
	// column. Returns apperror.ErrNotFound if no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// GetUserByUsername looks up case-insensitively via the username_lower
	// shadow column. Returns apperror.ErrNotFound if no such user exists.
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// SnippetRepository persists snippets and their tag/favorites sets.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	// GetByID loads a snippet with its tags, owner username, and derived
	// favorites count. Returns apperror.ErrNotFound if it doesn't exist.
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	// Update replaces the mutable fields (title, language, code,
	// description, visibility, tags) of an existing snippet.
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error

	// List returns one page of snippets matching both scope and filter,
	// ordered by creation time descending.
	List(ctx context.Context, scope ListScope, filter SnippetFilter, opts ListOptions) (*Page, error)

	// ToggleFavorite flips userID's membership in the snippet's favorites
	// set and returns the new membership state and set size, atomically with
	// the mutation. Returns apperror.ErrNotFound if the snippet doesn't
	// exist.
	ToggleFavorite(ctx context.Context, snippetID, userID string) (favorited bool, count int, err error)
	// FavoriteCount returns the size of the snippet's favorites set.
	// Returns apperror.ErrNotFound if the snippet doesn't exist.
	FavoriteCount(ctx context.Context, snippetID string) (int, error)
}
