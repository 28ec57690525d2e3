package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/locolive/proconnect/internal/auth"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/pkg/response"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	ViewerKey contextKey = "viewer"
)

// AuthMiddleware creates JWT authentication middleware
func AuthMiddleware(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := jwtManager.ValidateAccessToken(parts[1])
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					response.Unauthorized(w, "token has expired")
					return
				}
				response.Unauthorized(w, "invalid token")
				return
			}

			if holder, ok := r.Context().Value(userHolderKey).(*userHolder); ok {
				holder.id = claims.UserID
			}
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ViewerKey, claims.Viewer())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (domain.UserID, bool) {
	userID, ok := ctx.Value(UserIDKey).(domain.UserID)
	return userID, ok
}

// GetViewer extracts the authenticated user as named in the token
func GetViewer(ctx context.Context) (domain.UserRef, bool) {
	viewer, ok := ctx.Value(ViewerKey).(domain.UserRef)
	return viewer, ok
}
