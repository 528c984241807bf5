package middleware

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/guard"
	"storefront/internal/models"
)

const userKey = "user"

// RequireSession allows only callers with a valid session and injects the
// session user into the context.
func RequireSession(checker *guard.Checker) gin.HandlerFunc {
	return Guard(checker, guard.Authenticated)
}

// CurrentUser returns the user injected by a guard.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
