package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
)

const (
	contextUserID      = "user_id"
	contextEmail       = "email"
	contextAccessToken = "access_token"
)

// TokenValidator checks bearer tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// AuthMiddleware validates JWT token and adds user info to context
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}
		token = strings.TrimSpace(token)

		claims, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextEmail, claims.Email)
		c.Set(contextAccessToken, token)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "Unauthorized",
		Message: message,
		Code:    CodeInvalidToken,
	})
}

// currentUserID returns the authenticated caller set by AuthMiddleware
func currentUserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}
