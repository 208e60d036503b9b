package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"ms-payment-tracking/internal/models"
)

type contextKey string

const (
	// UserIDKey holds the authenticated user's subject claim.
	UserIDKey contextKey = "userID"
	// UserEmailKey holds the authenticated user's email claim, when present.
	UserEmailKey contextKey = "userEmail"
)

// ProfileDirectory resolves the payment profile linked to an auth user.
type ProfileDirectory interface {
	ProfileByUserID(userID string) (*models.Profile, error)
}

// GetUserIDFromContext extracts userID from context
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok || userID == "" {
		return "", errors.New("user ID not found in context")
	}
	return userID, nil
}

// GetUserEmailFromContext extracts the user's email from context
func GetUserEmailFromContext(ctx context.Context) (string, error) {
	email, ok := ctx.Value(UserEmailKey).(string)
	if !ok || email == "" {
		return "", errors.New("user email not found in context")
	}
	return email, nil
}

// AuthMiddleware extracts user ID from the auth token and puts it in the request context
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractTokenFromRequest(r)
		if err != nil {
			log.Printf("Error extracting token: %v", err)
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		userID, err := ExtractUserIDFromJWT(token)
		if err != nil {
			log.Printf("Error extracting user ID from JWT: %v", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		if email, err := ExtractEmailFromJWT(token); err == nil {
			ctx = context.WithValue(ctx, UserEmailKey, email)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorizer decides whether an authenticated user holds admin rights.
// A user is an admin when their email is on the configured allowlist or
// their linked profile carries the admin flag.
type Authorizer struct {
	Profiles    ProfileDirectory
	AdminEmails []string
}

// IsAdmin reports whether the user identified by userID/email is an admin.
func (a *Authorizer) IsAdmin(userID, email string) (bool, error) {
	for _, allowed := range a.AdminEmails {
		if allowed != "" && strings.EqualFold(allowed, email) {
			return true, nil
		}
	}

	if a.Profiles == nil || userID == "" {
		return false, nil
	}
	profile, err := a.Profiles.ProfileByUserID(userID)
	if err != nil {
		return false, err
	}
	if profile == nil {
		return false, nil
	}
	return profile.IsAdmin, nil
}

// AdminMiddleware rejects requests from users without admin rights. It must
// run after AuthMiddleware so the user claims are already in the context.
func (a *Authorizer) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := GetUserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		email, _ := GetUserEmailFromContext(r.Context())

		isAdmin, err := a.IsAdmin(userID, email)
		if err != nil {
			log.Printf("Error checking admin rights for user %s: %v", userID, err)
			http.Error(w, "Failed to validate authorization", http.StatusInternalServerError)
			return
		}
		if !isAdmin {
			http.Error(w, "Forbidden - Admin access required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
