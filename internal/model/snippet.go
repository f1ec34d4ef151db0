package model

import "time"

// Snippet represents a saved, owned piece of code.
//
// OwnerID is set at creation and never changes. Tags is a set: values are
// stored trimmed and lowercased, duplicates collapsed, empties dropped. The
// repository enforces this shape, so Tags as read from storage is always
// normalized. FavoritesCount is derived from the favorites membership set at
// query time; it is never stored as its own counter.
//
// OwnerUsername is denormalized into the struct when reading (joined from the
// users table) so list responses can show who wrote a snippet without a
// second query.
type Snippet struct {
	ID             string    `json:"id"             db:"id"`
	OwnerID        string    `json:"ownerId"        db:"user_id"`
	OwnerUsername  string    `json:"ownerUsername"  db:"owner_username"`
	Title          string    `json:"title"          db:"title"`
	Language       string    `json:"language"       db:"language"`
	Code           string    `json:"code"           db:"code"`
	Description    string    `json:"description"    db:"description"`
	IsPublic       bool      `json:"isPublic"       db:"is_public"`
	Tags           []string  `json:"tags"`
	FavoritesCount int       `json:"favoritesCount"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}
