package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	v := NewVerifier("secret")
	tok, err := v.Issue("u1", "ana@example.com", time.Hour)
	require.NoError(t, err)

	u, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, User{ID: "u1", Email: "ana@example.com"}, u)

	t.Run("missing", func(t *testing.T) {
		_, err := v.Verify("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewVerifier("other").Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := v.Issue("u1", "", -time.Minute)
		require.NoError(t, err)
		_, err = v.Verify(old)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.Verify(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no subject", func(t *testing.T) {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: "x@y"}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.Verify(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r), "header wins")

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "from-cookie", TokenFromRequest(r))
}

func TestPageGuard(t *testing.T) {
	v := NewVerifier("secret")
	var seen User
	h := PageGuard(v, "/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	tok, err := v.Issue("u1", "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", seen.ID)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret")
	_, api := humatest.New(t)

	var remembered []string
	api.UseMiddleware(Middleware(api, v, func(_ context.Context, u User) {
		remembered = append(remembered, u.ID)
	}))

	type out struct {
		Body struct {
			ID string `json:"id"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "me", Method: http.MethodGet, Path: "/me", Security: Security,
	}, func(ctx context.Context, _ *struct{}) (*out, error) {
		u, _ := UserFrom(ctx)
		o := &out{}
		o.Body.ID = u.ID
		return o, nil
	})
	huma.Get(api, "/open", func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		return nil, nil
	})

	resp := api.Get("/me")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	tok, err := v.Issue("u7", "", time.Hour)
	require.NoError(t, err)
	resp = api.Get("/me", "Authorization: Bearer "+tok)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"id":"u7"`)
	assert.Equal(t, []string{"u7"}, remembered)

	resp = api.Get("/open")
	assert.Equal(t, http.StatusNoContent, resp.Code)
}
