package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"storefront/internal/guard"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/session"
)

type stubView struct {
	user *models.User
}

func (s stubView) IsValid() bool                        { return s.user != nil }
func (s stubView) NeedsVerify() bool                    { return false }
func (s stubView) Snapshot() session.Snapshot           { return session.Snapshot{User: s.user} }
func (s stubView) Verify(context.Context) (bool, error) { return s.user != nil, nil }

func checker(view guard.SessionView) *guard.Checker {
	return guard.New(view, logger.Discard())
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", mw, func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	return r
}

func serve(r *gin.Engine) (*httptest.ResponseRecorder, map[string]string) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRequireSession(t *testing.T) {
	w, body := serve(newRouter(RequireSession(checker(stubView{}))))
	if w.Code != http.StatusUnauthorized || body["redirect"] != session.LoginPath {
		t.Fatalf("anonymous: status %d body %v", w.Code, body)
	}

	w, body = serve(newRouter(RequireSession(checker(stubView{user: &models.User{ID: "U1"}}))))
	if w.Code != http.StatusOK || body["id"] != "U1" {
		t.Fatalf("signed in: status %d body %v", w.Code, body)
	}
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name     string
		view     stubView
		status   int
		redirect string
	}{
		{"anonymous", stubView{}, http.StatusUnauthorized, session.AdminLoginPath},
		{"customer", stubView{user: &models.User{ID: "U1", Role: models.RoleUser}}, http.StatusForbidden, session.HomePath},
		{"admin", stubView{user: &models.User{ID: "A1", Role: models.RoleAdmin}}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		w, body := serve(newRouter(AdminAuth(checker(tt.view))))
		redirect := body["redirect"]
		if w.Code != tt.status || redirect != tt.redirect {
			t.Fatalf("%s: status %d body %v, want %d redirect %q", tt.name, w.Code, body, tt.status, tt.redirect)
		}
	}
}
