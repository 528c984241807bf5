package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/guard"
	"storefront/internal/models"
)

// Guard aborts requests that fail req. Callers without a session get 401 and
// the login boundary; signed-in callers lacking the role get 403.
func Guard(checker *guard.Checker, req guard.Requirement) gin.HandlerFunc {
	log := checker.Logger()
	return func(c *gin.Context) {
		decision := checker.Check(c.Request.Context(), req)
		if decision.Forbidden {
			log.Warn("forbidden", slog.String("path", c.FullPath()), slog.String("requirement", req.String()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "redirect": decision.Redirect})
			return
		}
		if !decision.Allowed {
			log.Info("unauthenticated", slog.String("path", c.FullPath()), slog.String("requirement", req.String()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": decision.Redirect})
			return
		}

		if decision.User != nil {
			c.Set(userKey, *decision.User)
		}
		c.Next()
	}
}

func RequireRole(checker *guard.Checker, role string) gin.HandlerFunc {
	return Guard(checker, guard.Role(role))
}

func AdminAuth(checker *guard.Checker) gin.HandlerFunc {
	return RequireRole(checker, models.RoleAdmin)
}
