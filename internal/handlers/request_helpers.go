package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"storefront/internal/api"
	"storefront/internal/apperr"
)

// Renewer reacquires the session credential in the background.
type Renewer interface {
	SilentRenew(ctx context.Context) error
}

// renewOnUnauthorized starts a silent renewal when the backend rejected the
// session token. The rejected call itself is not repeated.
func renewOnUnauthorized(c *gin.Context, sessions Renewer, route string, err error) {
	if sessions == nil || !api.IsUnauthorized(err) {
		return
	}
	if rerr := sessions.SilentRenew(c.Request.Context()); rerr != nil {
		slog.Info("renewal after rejected token failed", slog.String("component", "gateway"), slog.String("route", route), slog.String("error", rerr.Error()))
	}
}

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		slog.Error("panic recovered", slog.String("component", "gateway"), slog.String("route", route), slog.Any("panic", r))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	slog.Info("request failed", slog.String("component", "gateway"), slog.String("route", route), slog.Int("status", status), slog.String("error", message))
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondWithErr maps err onto a status and writes it. Backend error details
// are passed through.
func respondWithErr(c *gin.Context, route string, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": err.Error()}

	var remote *apperr.RemoteError
	if errors.As(err, &remote) {
		if remote.Message != "" {
			body["error"] = remote.Message
		}
		if len(remote.Details) > 0 {
			body["details"] = remote.Details
		}
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		body["error"] = "internal server error"
	}

	slog.Info("request failed", slog.String("component", "gateway"), slog.String("route", route), slog.Int("status", status), slog.String("error", err.Error()))
	c.AbortWithStatusJSON(status, body)
}

// respondValidationError reports binding failures field by field.
func respondValidationError(c *gin.Context, route string, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		slog.Info("validation failed", slog.String("component", "gateway"), slog.String("route", route), slog.Any("details", details))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	respondWithError(c, http.StatusBadRequest, route, "invalid body")
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
