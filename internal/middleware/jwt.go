package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/workhub/workhub/internal/apperr"
	"github.com/workhub/workhub/internal/permission"
)

type contextKey string

const (
	UserKey contextKey = "user_id"
	NameKey contextKey = "name"
	RoleKey contextKey = "role"
)

// TokenValidator decouples 'middleware' from 'user'.
type TokenValidator interface {
	ValidateToken(tokenString string) (int, string, permission.Role, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		// Fallback for websocket clients that cannot set headers.
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		userID, name, role, err := am.validator.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, userID)
		ctx = context.WithValue(ctx, NameKey, name)
		ctx = context.WithValue(ctx, RoleKey, role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID pulls the authenticated user id out of the request context.
func UserID(r *http.Request) (int, bool) {
	id, ok := r.Context().Value(UserKey).(int)
	return id, ok
}

// Role pulls the authenticated account role out of the request context.
func Role(r *http.Request) permission.Role {
	role, ok := r.Context().Value(RoleKey).(permission.Role)
	if !ok {
		return permission.RoleViewer
	}
	return role
}

// RequirePermission gates a route group on a static permission check.
func RequirePermission(perm permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !permission.Has(Role(r), perm) {
				apperr.Write(w, apperr.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
