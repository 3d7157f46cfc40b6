package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/open-apime/evomanager/internal/pkg/response"
)

// Chaves gravadas no contexto do gin após a autenticação.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// Auth exige um JWT HS256 assinado com secret. O dashboard é o único
// emissor; sub identifica o operador.
func Auth(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(secret)

	return func(c *gin.Context) {
		tokenString := extractBearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			response.ErrorWithMessage(c, http.StatusUnauthorized, "token ausente")
			return
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			response.ErrorWithMessage(c, http.StatusUnauthorized, "token inválido")
			return
		}

		sub, _ := claims.GetSubject()
		if sub == "" {
			response.ErrorWithMessage(c, http.StatusUnauthorized, "token sem sub")
			return
		}
		c.Set(ContextUserID, sub)
		if role, ok := claims["role"].(string); ok {
			c.Set(ContextRole, role)
		}
		c.Next()
	}
}
