package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payment-tracking/internal/models"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Token abc")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Bearer abc123")
	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestExtractUserIDFromJWT(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-42", "email": "ann@example.com"})

	userID, err := ExtractUserIDFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	email, err := ExtractEmailFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", email)
}

func TestExtractUserIDFromJWTMissingSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"email": "ann@example.com"})

	_, err := ExtractUserIDFromJWT(token)
	assert.Error(t, err)
}

type stubDirectory struct {
	profile *models.Profile
	err     error
}

func (s *stubDirectory) ProfileByUserID(userID string) (*models.Profile, error) {
	return s.profile, s.err
}

func TestAuthorizerAllowlist(t *testing.T) {
	a := &Authorizer{AdminEmails: []string{"ops@example.com"}}

	isAdmin, err := a.IsAdmin("user-1", "OPS@example.com")
	require.NoError(t, err)
	assert.True(t, isAdmin, "allowlist match is case-insensitive")

	isAdmin, err = a.IsAdmin("user-1", "guest@example.com")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestAuthorizerProfileFlag(t *testing.T) {
	a := &Authorizer{Profiles: &stubDirectory{profile: &models.Profile{ProfileID: 1, IsAdmin: true}}}

	isAdmin, err := a.IsAdmin("user-1", "")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	a.Profiles = &stubDirectory{profile: nil}
	isAdmin, err = a.IsAdmin("user-1", "")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestAuthMiddlewarePopulatesContext(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-42", "email": "ann@example.com"})

	var gotUserID, gotEmail string
	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		gotEmail, _ = GetUserEmailFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", gotUserID)
	assert.Equal(t, "ann@example.com", gotEmail)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
