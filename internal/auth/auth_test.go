package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func protected(m *JWTMiddleware) http.Handler {
	return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := CallerFromContext(r.Context())
		_, _ = w.Write([]byte(c.ID + "|" + c.Email))
	}))
}

func call(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateAcceptsValidToken(t *testing.T) {
	tok, err := Issue(secret, "pdfmate", "user_1", "a@b.c", time.Hour)
	require.NoError(t, err)

	rec := call(protected(NewJWTMiddleware(secret, "pdfmate")), tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user_1|a@b.c", rec.Body.String())
}

func TestAuthenticateRejections(t *testing.T) {
	good, err := Issue(secret, "pdfmate", "user_1", "a@b.c", time.Hour)
	require.NoError(t, err)
	expired, err := Issue(secret, "pdfmate", "user_1", "a@b.c", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := Issue("other", "pdfmate", "user_1", "a@b.c", time.Hour)
	require.NoError(t, err)
	noSub, err := Issue(secret, "pdfmate", "", "a@b.c", time.Hour)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "u"}).SignedString([]byte(secret))
	require.NoError(t, err)

	cases := []struct {
		name, token, issuer, msg string
	}{
		{"missing", "", "", "missing authorization token"},
		{"expired", expired, "", "token expired"},
		{"wrong key", wrongKey, "", "invalid token"},
		{"wrong issuer", good, "someone-else", "invalid token"},
		{"no subject", noSub, "", "token has no subject"},
		{"other alg", hs512, "", "invalid token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(protected(NewJWTMiddleware(secret, tc.issuer)), tc.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.msg)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	policy := NewStaticAdmins("admin_1")
	h := RequireAdmin(policy)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(c *Caller) int {
		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		if c != nil {
			req = req.WithContext(WithCaller(req.Context(), c))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(&Caller{ID: "admin_1"}))
	assert.Equal(t, http.StatusUnauthorized, serve(&Caller{ID: "user_1"}))
	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.False(t, NewStaticAdmins().IsAdmin(""))
}
