package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

type adminMap map[int]bool

func (m adminMap) IsAdmin(_ context.Context, userID int) (bool, error) {
	return m[userID], nil
}

func TestRequireAuthStashesUserID(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, adminMap{})

	var got int
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserID(r)
	}))

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": 42,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 42, got)
}

func TestRequireAuthRejections(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, adminMap{})
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := map[string]string{
		"no header":     "",
		"not bearer":    "Basic abc",
		"garbage token": "Bearer not.a.jwt",
		"wrong secret": "Bearer " + signToken(t, []byte("other-secret"), jwt.MapClaims{
			"sub": 1, "exp": time.Now().Add(time.Hour).Unix(),
		}),
		"expired": "Bearer " + signToken(t, testSecret, jwt.MapClaims{
			"sub": 1, "exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"no subject": "Bearer " + signToken(t, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}),
	}
	for name, authz := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if authz != "" {
				req.Header.Set("Authorization", authz)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, adminMap{1: true})
	h := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	admin := httptest.NewRequest(http.MethodGet, "/", nil)
	admin = admin.WithContext(WithUserID(admin.Context(), 1))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, admin)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	regular := httptest.NewRequest(http.MethodGet, "/", nil)
	regular = regular.WithContext(WithUserID(regular.Context(), 2))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, regular)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
