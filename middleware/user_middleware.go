package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bibmap/bibmap-api/auth"
	"github.com/bibmap/bibmap-api/models"
	"gorm.io/gorm"
)

type contextKey string

const userKey contextKey = "user"

// tokenFromRequest extracts the access token from the Authorization header
// or, failing that, the access_token cookie.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func loadUser(db *gorm.DB, r *http.Request) *models.User {
	tokenString := tokenFromRequest(r)
	if tokenString == "" {
		return nil
	}

	userID, err := auth.VerifyToken(tokenString)
	if err != nil {
		return nil
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil
	}
	if !user.IsActive {
		return nil
	}
	return &user
}

// WithUser attaches the authenticated user to the request context when a
// valid token is present. Requests without one pass through as anonymous
// (local mode).
func WithUser(db *gorm.DB) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if user := loadUser(db, r); user != nil {
				r = r.WithContext(context.WithValue(r.Context(), userKey, user))
			}
			next.ServeHTTP(w, r)
		}
	}
}

// RequireUser rejects requests that do not carry a valid token.
func RequireUser(db *gorm.DB) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := loadUser(db, r)
			if user == nil {
				http.Error(w, "Not authenticated", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// RequireAdmin rejects requests from anyone but an active admin.
func RequireAdmin(db *gorm.DB) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := loadUser(db, r)
			if user == nil {
				http.Error(w, "Not authenticated", http.StatusUnauthorized)
				return
			}
			if !user.IsAdmin() {
				http.Error(w, "Admin access required", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// UserFrom returns the authenticated user attached to the request, or nil
// for anonymous requests.
func UserFrom(r *http.Request) *models.User {
	user, _ := r.Context().Value(userKey).(*models.User)
	return user
}
