package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"

	"github.com/codehut/snippethub/internal/apperror"
	"github.com/codehut/snippethub/internal/model"
	"github.com/codehut/snippethub/internal/repository"
)

// compile-time check that *DB implements repository.SnippetRepository
var _ repository.SnippetRepository = (*DB)(nil)

// snippetColumns are the columns selected for every snippet read. The owner
// username is joined from users, and the favorites count is derived from the
// membership table on every read; there is no stored counter to drift.
var snippetColumns = []string{
	"s.id",
	"s.user_id",
	"u.username",
	"s.title",
	"s.language",
	"s.code",
	"s.description",
	"s.is_public",
	"s.created_at",
	"s.updated_at",
	"(SELECT COUNT(*) FROM snippet_favorites f WHERE f.snippet_id = s.id) AS favorites_count",
}

// Create inserts a snippet and its tag set in one transaction.
// Fills ID and timestamps on the passed struct.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()

	now := time.Now()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snippets (id, user_id, title, language, code, description, is_public, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.OwnerID,
		snippet.Title,
		snippet.Language,
		snippet.Code,
		snippet.Description,
		snippet.IsPublic,
		snippet.CreatedAt,
		snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	if err := replaceTags(ctx, tx, snippet.ID, snippet.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing snippet create: %w", err)
	}

	return nil
}

// GetByID retrieves a single snippet with tags, owner username, and
// favorites count.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	query, args, err := sq.
		Select(snippetColumns...).
		From("snippets s").
		Join("users u ON u.id = s.user_id").
		Where(sq.Eq{"s.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building snippet query: %w", err)
	}

	var s model.Snippet
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(
		&s.ID,
		&s.OwnerID,
		&s.OwnerUsername,
		&s.Title,
		&s.Language,
		&s.Code,
		&s.Description,
		&s.IsPublic,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.FavoritesCount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	tags, err := db.loadTags(ctx, []string{s.ID})
	if err != nil {
		return nil, err
	}
	s.Tags = tags[s.ID]
	if s.Tags == nil {
		s.Tags = []string{}
	}

	return &s, nil
}

// Update replaces the mutable fields and the tag set of an existing snippet.
// The owner reference and creation time are never touched.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, language = ?, code = ?, description = ?, is_public = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title,
		snippet.Language,
		snippet.Code,
		snippet.Description,
		snippet.IsPublic,
		snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippet.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snippet_tags WHERE snippet_id = ?`, snippet.ID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing snippet tags: %w", err)
	}
	if err := replaceTags(ctx, tx, snippet.ID, snippet.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing snippet update: %w", err)
	}

	return nil
}

// Delete removes a snippet. The tag and favorites rows go with it via
// ON DELETE CASCADE, which is what removes the snippet from every
// favoriter's listing.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", id)
	}

	return nil
}

// List returns one page of snippets matching both scope and filter, newest
// first, plus whether more rows exist past the window.
//
// The count and the window fetch run as two queries over the same composed
// predicate. They are not in one transaction: a write landing between them
// can make HasMore momentarily stale, which the listing contract accepts.
func (db *DB) List(ctx context.Context, scope repository.ListScope, filter repository.SnippetFilter, opts repository.ListOptions) (*repository.Page, error) {
	opts = opts.Normalize()
	pred := buildPredicate(scope, filter)

	countQuery, countArgs, err := sq.
		Select("COUNT(*)").
		From("snippets s").
		Join("users u ON u.id = s.user_id").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building count query: %w", err)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: counting snippets: %w", err)
	}

	listQuery, listArgs, err := sq.
		Select(snippetColumns...).
		From("snippets s").
		Join("users u ON u.id = s.user_id").
		Where(pred).
		OrderBy("s.created_at DESC", "s.id DESC").
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building list query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	items := make([]model.Snippet, 0, opts.Limit)
	ids := make([]string, 0, opts.Limit)
	for rows.Next() {
		var s model.Snippet
		if err := rows.Scan(
			&s.ID, &s.OwnerID, &s.OwnerUsername,
			&s.Title, &s.Language, &s.Code, &s.Description, &s.IsPublic,
			&s.CreatedAt, &s.UpdatedAt, &s.FavoritesCount,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		s.Tags = []string{}
		items = append(items, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	if len(ids) > 0 {
		tags, err := db.loadTags(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if t, ok := tags[items[i].ID]; ok {
				items[i].Tags = t
			}
		}
	}

	return &repository.Page{
		Items:   items,
		HasMore: total > opts.Page*opts.Limit,
	}, nil
}

// ToggleFavorite flips userID's membership in the snippet's favorites set.
//
// The existence check, the flip, and the count run inside one transaction,
// so the returned state and size are consistent with each other even when
// two toggles on the same snippet race. The composite primary key on
// snippet_favorites makes the insert side idempotent.
func (db *DB) ToggleFavorite(ctx context.Context, snippetID, userID string) (bool, int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM snippets WHERE id = ?`, snippetID,
	).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, 0, apperror.NotFound("snippet", snippetID)
		}
		return false, 0, fmt.Errorf("sqlite: checking snippet %s: %w", snippetID, err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM snippet_favorites WHERE snippet_id = ? AND user_id = ?`,
		snippetID, userID,
	)
	if err != nil {
		return false, 0, fmt.Errorf("sqlite: removing favorite: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	favorited := removed == 0
	if favorited {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO snippet_favorites (snippet_id, user_id) VALUES (?, ?)`,
			snippetID, userID,
		); err != nil {
			return false, 0, fmt.Errorf("sqlite: adding favorite: %w", err)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snippet_favorites WHERE snippet_id = ?`, snippetID,
	).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("sqlite: counting favorites: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("sqlite: committing favorite toggle: %w", err)
	}

	return favorited, count, nil
}

// FavoriteCount returns the size of the snippet's favorites set.
func (db *DB) FavoriteCount(ctx context.Context, snippetID string) (int, error) {
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM snippets WHERE id = ?`, snippetID,
	).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, apperror.NotFound("snippet", snippetID)
		}
		return 0, fmt.Errorf("sqlite: checking snippet %s: %w", snippetID, err)
	}

	var count int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snippet_favorites WHERE snippet_id = ?`, snippetID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: counting favorites: %w", err)
	}

	return count, nil
}

// buildPredicate composes the authorization scope and the optional filter
// into one conjunctive WHERE clause.
//
// Filter semantics: title is a case-insensitive substring match, language a
// case-insensitive exact match, and tags match if the snippet carries at
// least one of them (OR across tags). Blank inputs add no constraint.
func buildPredicate(scope repository.ListScope, filter repository.SnippetFilter) sq.Sqlizer {
	pred := sq.And{}

	if scope.OwnerID != "" {
		pred = append(pred, sq.Eq{"s.user_id": scope.OwnerID})
	}
	if scope.PublicOnly {
		pred = append(pred, sq.Eq{"s.is_public": true})
	}
	if scope.ExcludeOwnerID != "" {
		pred = append(pred, sq.NotEq{"s.user_id": scope.ExcludeOwnerID})
	}
	if scope.FavoritedBy != "" {
		pred = append(pred, sq.Expr(
			`EXISTS (SELECT 1 FROM snippet_favorites f2 WHERE f2.snippet_id = s.id AND f2.user_id = ?)`,
			scope.FavoritedBy,
		))
	}

	if title := strings.TrimSpace(filter.Title); title != "" {
		pred = append(pred, sq.Expr(
			`LOWER(s.title) LIKE ?`, "%"+strings.ToLower(title)+"%",
		))
	}
	if language := strings.TrimSpace(filter.Language); language != "" {
		pred = append(pred, sq.Expr(
			`LOWER(s.language) = ?`, strings.ToLower(language),
		))
	}
	if tags := normalizeTags(filter.Tags); len(tags) > 0 {
		sub, args, _ := sq.
			Select("1").
			From("snippet_tags t").
			Where("t.snippet_id = s.id").
			Where(sq.Eq{"t.tag": tags}).
			ToSql()
		pred = append(pred, sq.Expr("EXISTS ("+sub+")", args...))
	}

	if len(pred) == 0 {
		return sq.Expr("1 = 1")
	}
	return pred
}

// normalizeTags trims, lowercases, drops empties, and collapses duplicates,
// preserving first-seen order.
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

// replaceTags inserts the normalized tag set for a snippet.
// INSERT OR IGNORE plus the composite primary key keep the set free of
// duplicates even if a caller passes unnormalized input.
func replaceTags(ctx context.Context, tx *sql.Tx, snippetID string, tags []string) error {
	for _, tag := range normalizeTags(tags) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO snippet_tags (snippet_id, tag) VALUES (?, ?)`,
			snippetID, tag,
		); err != nil {
			return fmt.Errorf("sqlite: inserting tag %q: %w", tag, err)
		}
	}
	return nil
}

// loadTags fetches the tag sets for the given snippet IDs in one query.
func (db *DB) loadTags(ctx context.Context, ids []string) (map[string][]string, error) {
	query, args, err := sq.
		Select("snippet_id", "tag").
		From("snippet_tags").
		Where(sq.Eq{"snippet_id": ids}).
		OrderBy("tag").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building tags query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string][]string, len(ids))
	for rows.Next() {
		var snippetID, tag string
		if err := rows.Scan(&snippetID, &tag); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		tags[snippetID] = append(tags[snippetID], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}

	return tags, nil
}
