package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/api"
	"storefront/internal/session"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// sessionResponse is the session as the UI shell sees it.
type sessionResponse struct {
	session.Snapshot
	Valid bool `json:"valid"`
}

func snapshotResponse(sessions *session.Manager) sessionResponse {
	return sessionResponse{Snapshot: sessions.Snapshot(), Valid: sessions.IsValid()}
}

func Login(sessions *session.Manager) gin.HandlerFunc {
	return login("POST /session/login", sessions.Login)
}

func AdminLogin(sessions *session.Manager) gin.HandlerFunc {
	return login("POST /session/admin-login", sessions.LoginAdmin)
}

func login(route string, fn func(ctx context.Context, creds api.Credentials) (session.LoginResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		result, err := fn(c.Request.Context(), api.Credentials{Email: req.Email, Password: req.Password})
		if err != nil {
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func Register(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /session/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		user, err := sessions.Register(c.Request.Context(), api.Registration{
			Email:     req.Email,
			Password:  req.Password,
			Name:      req.Name,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		})
		if err != nil {
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user, "redirect": session.LoginPath})
	}
}

func Logout(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /session/logout"
		defer handlePanic(c, route)

		_ = sessions.Logout(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"message": "logged out", "redirect": session.LoginPath})
	}
}

func Verify(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /session/verify"
		defer handlePanic(c, route)

		ok, err := sessions.Verify(c.Request.Context())
		if err != nil {
			respondWithErr(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"verified": ok, "session": snapshotResponse(sessions)})
	}
}

func GetSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "GET /session")
		c.JSON(http.StatusOK, snapshotResponse(sessions))
	}
}
