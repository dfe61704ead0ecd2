package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	a, ok := Actor(c)
	if !ok {
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": a.UserID, "role": a.Role})
}

func serve(t *testing.T, e *echo.Echo, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, "missing bearer token"},
		{"malformed", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"guest", bearer(t, 7, "guest"), http.StatusOK, `"role":"GUEST"`},
		{"no role", bearer(t, 7, ""), http.StatusOK, `"role":"GUEST"`},
		{"admin", bearer(t, 1, model.RoleAdmin), http.StatusOK, `"user_id":1`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, e, tc.header)
			require.Equal(t, tc.status, rec.Code)
			require.Contains(t, rec.Body.String(), tc.body)
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret), RequireRole(model.RoleAdmin))

	require.Equal(t, http.StatusForbidden, serve(t, e, bearer(t, 7, model.RoleGuest)).Code)
	require.Equal(t, http.StatusOK, serve(t, e, bearer(t, 1, model.RoleAdmin)).Code)
}

func TestTokenBucket(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "user",
		Prefix:         "rl",
	}
	mr := miniredis.RunT(t)
	backends := map[string]*redis.Client{
		"redis": redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		"local": nil,
	}

	for name, rdb := range backends {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.GET("/me", whoami, JWTAuth(secret), NewTokenBucket(cfg, rdb))
			guest, other := bearer(t, 7, model.RoleGuest), bearer(t, 8, model.RoleGuest)

			require.Equal(t, http.StatusOK, serve(t, e, guest).Code)
			require.Equal(t, http.StatusOK, serve(t, e, guest).Code)

			rec := serve(t, e, guest)
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
			require.NotEmpty(t, rec.Header().Get("Retry-After"))

			require.Equal(t, http.StatusOK, serve(t, e, other).Code)
		})
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret), NewTokenBucket(config.RateLimitConfig{Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(t, e, bearer(t, 7, model.RoleGuest)).Code)
	}
}
