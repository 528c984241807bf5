// Package guard holds the access predicates consulted before protected
// routes. Guards read the session through SessionView and never write to it,
// except by asking the session to verify itself.
package guard

import (
	"context"
	"log/slog"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/session"
)

// SessionView is the read side of the session manager plus Verify.
type SessionView interface {
	IsValid() bool
	// NeedsVerify reports a token the backend has not been asked about yet.
	NeedsVerify() bool
	Snapshot() session.Snapshot
	Verify(ctx context.Context) (bool, error)
}

// Checker evaluates requirements against one session.
type Checker struct {
	view SessionView
	log  *slog.Logger
}

func New(view SessionView, log *slog.Logger) *Checker {
	return &Checker{view: view, log: logger.Component(log, "guard")}
}

// Logger is the component logger guards report through.
func (g *Checker) Logger() *slog.Logger {
	return g.log
}

type requirementKind int

const (
	kindNone requirementKind = iota
	kindAuthenticated
	kindRole
)

// Requirement is the capability a route needs.
type Requirement struct {
	kind requirementKind
	role string
}

var (
	None          = Requirement{kind: kindNone}
	Authenticated = Requirement{kind: kindAuthenticated}
)

// Role requires an authenticated session whose user holds role.
func Role(role string) Requirement {
	return Requirement{kind: kindRole, role: role}
}

func (r Requirement) String() string {
	switch r.kind {
	case kindAuthenticated:
		return "authenticated"
	case kindRole:
		return "role:" + r.role
	default:
		return "none"
	}
}

// LoginBoundary is where a denied caller is sent to sign in.
func (r Requirement) LoginBoundary() string {
	if r.kind == kindRole && r.role == models.RoleAdmin {
		return session.AdminLoginPath
	}
	return session.LoginPath
}

// Decision is the outcome of Check. Forbidden is set when the caller is
// signed in but lacks the role; Redirect is empty when Allowed.
type Decision struct {
	Allowed   bool
	Forbidden bool
	Redirect  string
	// Verified reports whether Check had to ask the backend.
	Verified bool
	User     *models.User
}

// Check evaluates req against the session. A token the backend has not yet
// been asked about is verified once before deciding. When the backend cannot
// be reached the local validity decides, and later checks do not retry.
func (g *Checker) Check(ctx context.Context, req Requirement) Decision {
	view := g.view
	if req.kind == kindNone {
		return Decision{Allowed: true, User: view.Snapshot().User}
	}

	var d Decision
	if view.NeedsVerify() {
		d.Verified = true
		if _, err := view.Verify(ctx); err != nil {
			g.log.Warn("session verify failed, using local validity", slog.String("error", err.Error()))
		}
	}

	if !view.IsValid() {
		d.Redirect = req.LoginBoundary()
		return d
	}

	snap := view.Snapshot()
	d.User = snap.User
	if req.kind == kindRole && (snap.User == nil || snap.User.EffectiveRole() != req.role) {
		d.Forbidden = true
		d.Redirect = session.HomePath
		return d
	}

	d.Allowed = true
	return d
}
