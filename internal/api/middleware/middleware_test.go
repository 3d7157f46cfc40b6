package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-apime/evomanager/internal/pkg/ratelimiter/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func authRouter(secret string) *gin.Engine {
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := authRouter("segredo")

	w := do(r, "Bearer "+signed(t, "segredo", jwt.MapClaims{"sub": "op-1", "exp": time.Now().Add(time.Hour).Unix()}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "op-1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer "+signed(t, "outro", jwt.MapClaims{"sub": "op-1"})).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer "+signed(t, "segredo", jwt.MapClaims{"sub": "op-1", "exp": time.Now().Add(-time.Minute).Unix()})).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer "+signed(t, "segredo", jwt.MapClaims{"role": "admin"})).Code)
}

func TestRateLimitPerToken(t *testing.T) {
	limiter := memory.NewLimiter()
	defer limiter.Stop()

	r := gin.New()
	r.Use(RateLimit(RateLimitOption{Enabled: true, Requests: 2, Window: time.Minute, Limiter: limiter}))
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, "Bearer a").Code)
	assert.Equal(t, http.StatusNoContent, do(r, "Bearer a").Code)
	w := do(r, "Bearer a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, do(r, "Bearer b").Code)
}

func TestGetClientIP(t *testing.T) {
	r := gin.New()
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, GetClientIP(c)) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-Forwarded-For", "lixo, 203.0.113.7:4455, 10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "203.0.113.7", w.Body.String())

	assert.True(t, IsPrivateIP("10.1.2.3"))
	assert.True(t, IsPrivateIP("127.0.0.1"))
	assert.False(t, IsPrivateIP("203.0.113.7"))
	assert.False(t, IsPrivateIP("nope"))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderRequestID, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))

	w = do(r, "")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
