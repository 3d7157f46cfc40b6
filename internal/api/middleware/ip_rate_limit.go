package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/pkg/ratelimiter"
	"github.com/open-apime/evomanager/internal/pkg/response"
)

type IPRateLimitOption struct {
	Enabled        bool
	Requests       int
	WindowSeconds  int
	Limiter        ratelimiter.Limiter
	Logger         *zap.Logger
	SkipPrivateIPs bool
}

// IPRateLimit protege a rota de callbacks do Evolution, que não tem JWT.
// Com SkipPrivateIPs, containers na mesma rede não são contados.
func IPRateLimit(opts IPRateLimitOption) gin.HandlerFunc {
	if !opts.Enabled || opts.Limiter == nil || opts.Requests <= 0 || opts.WindowSeconds <= 0 {
		return passThrough
	}
	window := time.Duration(opts.WindowSeconds) * time.Second

	return func(c *gin.Context) {
		ip := GetClientIP(c)
		if opts.SkipPrivateIPs && IsPrivateIP(ip) {
			c.Next()
			return
		}

		if !allow(c, opts.Limiter, opts.Logger, "ip:"+hashToken(ip), opts.Requests, window) {
			if opts.Logger != nil {
				opts.Logger.Warn("callback evolution: limite por IP excedido",
					zap.String("ip", ip),
					zap.String("client_id", c.Param("clientId")),
				)
			}
			response.ErrorWithMessage(c, http.StatusTooManyRequests, "muitas requisições. tente novamente mais tarde")
			return
		}
		c.Next()
	}
}
