package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/pkg/ratelimiter"
	"github.com/open-apime/evomanager/internal/pkg/response"
)

// RateLimitOption parametriza o limite por token.
type RateLimitOption struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	Prefix   string
	Limiter  ratelimiter.Limiter
	Logger   *zap.Logger
}

// RateLimit conta requisições por hash do bearer. Requisições sem token
// seguem para o Auth, que as recusa.
func RateLimit(opts RateLimitOption) gin.HandlerFunc {
	if !opts.Enabled || opts.Limiter == nil || opts.Requests <= 0 || opts.Window <= 0 {
		return passThrough
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "api"
	}

	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		key := prefix + ":" + hashToken(token)
		if !allow(c, opts.Limiter, opts.Logger, key, opts.Requests, opts.Window) {
			response.ErrorWithMessage(c, http.StatusTooManyRequests, "limite de requisições excedido")
			return
		}
		c.Next()
	}
}

func passThrough(c *gin.Context) { c.Next() }

// allow consulta o limiter e escreve os cabeçalhos X-RateLimit-*. Erro do
// limiter libera a requisição.
func allow(c *gin.Context, l ratelimiter.Limiter, log *zap.Logger, key string, limit int, window time.Duration) bool {
	res, err := l.Allow(c.Request.Context(), key, limit, window)
	if err != nil {
		if log != nil {
			log.Warn("rate limit: limiter indisponível", zap.String("path", c.FullPath()), zap.Error(err))
		}
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
	if !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
	}
	return res.Allowed
}

func extractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
