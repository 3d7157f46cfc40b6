package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger registra uma linha por requisição. Erros 5xx saem em nível error
// com os erros anexados ao contexto.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", GetClientIP(c)),
			zap.String("request_id", c.GetString("requestID")),
		}
		switch {
		case status >= 500:
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("errors", c.Errors.String()))
			}
			log.Error("http: requisição falhou", fields...)
		case status >= 400:
			log.Info("http: requisição rejeitada", fields...)
		default:
			log.Debug("http: requisição", fields...)
		}
	}
}
