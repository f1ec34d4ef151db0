package auth

import (
	"context"
	"net/http"

	"github.com/codehut/snippethub/internal/model"
)

// CookieName is the name of the HttpOnly cookie carrying the access token.
const CookieName = "token"

// UserResolver loads a user by ID. Satisfied by repository.UserRepository;
// declared here so this package doesn't depend on the repository package.
type UserResolver interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// contextKey is unexported so only this package can read or write the
// resolved user in a request context.
type contextKey int

const userKey contextKey = 0

// RequireAuth enforces authentication on protected routes.
//
// It reads the token cookie, validates the JWT, and loads the referenced
// user. Missing cookie, invalid or expired token, and a deleted user all
// produce the same 401 body, so the caller learns nothing about which check
// failed.
func RequireAuth(tokens *TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(r, tokens, users)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the caller's identity if a valid token is present but
// never blocks the request. Handlers on routes using this middleware treat a
// missing user as an anonymous caller.
func OptionalAuth(tokens *TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := resolveUser(r, tokens, users); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), userKey, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext retrieves the authenticated user from the request context.
// Returns (nil, false) for anonymous requests.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// resolveUser performs the full cookie → token → user resolution.
func resolveUser(r *http.Request, tokens *TokenService, users UserResolver) (*model.User, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}

	userID, err := tokens.Validate(cookie.Value)
	if err != nil {
		return nil, err
	}

	return users.GetUserByID(r.Context(), userID)
}
