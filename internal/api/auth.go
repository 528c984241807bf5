package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration covers both backend account shapes: customers send first and
// last name, plain users send Name.
type Registration struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Name      string `json:"name,omitempty" validate:"required_without_all=FirstName LastName"`
	FirstName string `json:"firstName,omitempty" validate:"required_with=LastName"`
	LastName  string `json:"lastName,omitempty" validate:"required_with=FirstName"`
	Phone     string `json:"phone,omitempty"`
}

// TokenGrant is a credential issued by login, refresh or registration.
// ExpiresIn is zero when the backend did not report a lifetime.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	User         *models.User
}

type tokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         *models.User `json:"user"`
}

func (r tokenResponse) grant() TokenGrant {
	access := r.AccessToken
	if access == "" {
		access = r.Token
	}
	return TokenGrant{
		AccessToken:  access,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    time.Duration(r.ExpiresIn) * time.Second,
		User:         r.User,
	}
}

var loginKinds = map[int]error{http.StatusUnauthorized: apperr.ErrInvalidCredentials}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *Client) Login(ctx context.Context, creds Credentials) (TokenGrant, error) {
	var out tokenResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   Credentials{Email: normalizeEmail(creds.Email), Password: creds.Password},
		out:    &out,
		kinds:  loginKinds,
	})
	if err != nil {
		return TokenGrant{}, err
	}
	return out.grant(), nil
}

// AdminLogin answers with a bare token; callers derive identity and expiry
// from its claims.
func (c *Client) AdminLogin(ctx context.Context, creds Credentials) (TokenGrant, error) {
	var out tokenResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/admin/login",
		body:   Credentials{Email: normalizeEmail(creds.Email), Password: creds.Password},
		out:    &out,
		kinds:  loginKinds,
	})
	if err != nil {
		return TokenGrant{}, err
	}
	return out.grant(), nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (TokenGrant, error) {
	reg.Email = normalizeEmail(reg.Email)
	var out tokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: reg, out: &out}); err != nil {
		return TokenGrant{}, err
	}
	return out.grant(), nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) Refresh(ctx context.Context, accessToken, refreshToken string) (TokenGrant, error) {
	var out tokenResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/refresh",
		token:  accessToken,
		body:   refreshRequest{RefreshToken: refreshToken},
		out:    &out,
	})
	if err != nil {
		return TokenGrant{}, err
	}
	return out.grant(), nil
}

func (c *Client) Me(ctx context.Context, accessToken string) (models.User, error) {
	var out models.User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me", token: accessToken, out: &out}); err != nil {
		return models.User{}, err
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/logout",
		token:  accessToken,
		body:   refreshRequest{RefreshToken: refreshToken},
	})
}
