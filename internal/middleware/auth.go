package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"ticketshow/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type AuthConfig struct {
	JWTSecret string
}

// JWTAuth проверяет Bearer токен провайдера идентификации (HS256) и
// сохраняет claim "sub" как id пользователя. Без секрета отклоняет все запросы.
func JWTAuth(cfg AuthConfig) gin.HandlerFunc {
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set, all authenticated requests will be rejected")
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication is not configured"})
		}
	}
	secret := []byte(cfg.JWTSecret)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(auth, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token subject"})
			return
		}

		c.Set(userIDKey, sub)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), sub))
		c.Next()
	}
}
