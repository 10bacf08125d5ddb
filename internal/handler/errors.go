package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/service"
	"go.uber.org/zap"
)

// Error codes returned in dto.ErrorResponse.Code. Clients match on these,
// never on messages.
const (
	CodeInvalidEmail       = "invalid-email"
	CodeWeakPassword       = "weak-password"
	CodeEmailInUse         = "email-already-in-use"
	CodeUserNotFound       = "user-not-found"
	CodeWrongPassword      = "wrong-password"
	CodeInvalidCredential  = "invalid-credential"
	CodeInvalidToken       = "invalid-token"
	CodeInvalidActionCode  = "invalid-action-code"
	CodeInvalidDisplayName = "invalid-display-name"
	CodeInvalidArgument    = "invalid-argument"
	CodePermissionDenied   = "permission-denied"
	CodeNotFound           = "not-found"
	CodeTooManyRequests    = "too-many-requests"
	CodeInternal           = "internal"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrInvalidEmail, http.StatusBadRequest, CodeInvalidEmail},
	{service.ErrWeakPassword, http.StatusBadRequest, CodeWeakPassword},
	{service.ErrEmailInUse, http.StatusConflict, CodeEmailInUse},
	{service.ErrUserNotFound, http.StatusUnauthorized, CodeUserNotFound},
	{service.ErrWrongPassword, http.StatusUnauthorized, CodeWrongPassword},
	{service.ErrInvalidCredential, http.StatusUnauthorized, CodeInvalidCredential},
	{service.ErrInvalidToken, http.StatusUnauthorized, CodeInvalidToken},
	{service.ErrInvalidResetToken, http.StatusBadRequest, CodeInvalidActionCode},
	{service.ErrInvalidDisplayName, http.StatusBadRequest, CodeInvalidDisplayName},
	{service.ErrInvalidTodo, http.StatusBadRequest, CodeInvalidArgument},
	{service.ErrForbidden, http.StatusForbidden, CodePermissionDenied},
	{service.ErrNotFound, http.StatusNotFound, CodeNotFound},
}

// respondError writes the response for a service error. Unknown errors are
// logged and reported as 500 without their message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, dto.ErrorResponse{
				Error:   http.StatusText(m.status),
				Message: m.err.Error(),
				Code:    m.code,
			})
			return
		}
	}

	logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal server error",
		Message: "An unexpected error occurred",
		Code:    CodeInternal,
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Validation failed",
		Message: err.Error(),
		Code:    CodeInvalidArgument,
	})
}
