package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/codehut/snippethub/internal/apperror"
	"github.com/codehut/snippethub/internal/model"
	"github.com/codehut/snippethub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, role, is_verified, created_at, updated_at`

// CreateUser inserts a new user, filling ID and timestamps on the passed
// struct.
//
// The username_lower/email_lower shadow columns are written here from the
// canonical values, so case-insensitive uniqueness holds no matter which
// caller inserts. The UNIQUE constraints are the source of truth for
// conflicts: the service pre-checks for friendly ordering of errors, and
// this mapping catches the race where two registrations slip past the
// pre-check.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, username_lower, email, email_lower,
		                    password_hash, role, is_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		strings.ToLower(user.Username),
		user.Email,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Role,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if conflictErr := mapUserConflict(err); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

// mapUserConflict translates a UNIQUE violation on one of the shadow columns
// into the matching domain conflict. Returns nil for any other error.
func mapUserConflict(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username_lower"):
		return apperror.Conflict("username is taken")
	case strings.Contains(msg, "users.email_lower"):
		return apperror.Conflict("email is already registered")
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id, id)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return db.getUser(ctx, `WHERE email_lower = ?`, normalized, email)
}

// GetUserByUsername retrieves a user by username, case-insensitively.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(username))
	return db.getUser(ctx, `WHERE username_lower = ?`, normalized, username)
}

func (db *DB) getUser(ctx context.Context, where string, arg any, display string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.IsVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", display)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", display, err)
	}

	return &u, nil
}
