// Package session owns the authentication state of the storefront client:
// login, scheduled silent renewal, verification, logout and forced
// invalidation. It is the only writer of the token store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"storefront/internal/api"
	"storefront/internal/apperr"
	"storefront/internal/clock"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/storage"
)

// AuthAPI is the slice of the backend the session manager talks to.
type AuthAPI interface {
	Login(ctx context.Context, creds api.Credentials) (api.TokenGrant, error)
	AdminLogin(ctx context.Context, creds api.Credentials) (api.TokenGrant, error)
	Register(ctx context.Context, reg api.Registration) (api.TokenGrant, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (api.TokenGrant, error)
	Me(ctx context.Context, accessToken string) (models.User, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

type Options struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// RenewLead is how long before expiry the renewal fires.
	RenewLead time.Duration
	// RenewFloor is the minimum delay before a renewal fires.
	RenewFloor time.Duration
	// ValidityMargin is how far in the future expiry must be for IsValid.
	ValidityMargin time.Duration
	// RenewTimeout bounds a timer-driven renewal call.
	RenewTimeout time.Duration
}

const (
	DefaultRenewLead      = 5 * time.Minute
	DefaultRenewFloor     = time.Minute
	DefaultValidityMargin = 60 * time.Second
	defaultRenewTimeout   = 30 * time.Second
)

type Manager struct {
	api      AuthAPI
	store    *storage.TokenStore
	clock    clock.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate

	renewLead    time.Duration
	renewFloor   time.Duration
	margin       time.Duration
	renewTimeout time.Duration

	renewals singleflight.Group

	mu           sync.Mutex
	user         *models.User
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	state        State
	verified     bool
	// verifyTried is set once Verify has asked the backend about this token.
	verifyTried   bool
	generation    uint64
	armSeq        uint64
	timer         clock.Timer
	timerDeadline time.Time
	subs          map[int]*subscriber
	nextSub       int
}

func NewManager(authAPI AuthAPI, store *storage.TokenStore, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.RenewLead <= 0 {
		opts.RenewLead = DefaultRenewLead
	}
	if opts.RenewFloor <= 0 {
		opts.RenewFloor = DefaultRenewFloor
	}
	if opts.ValidityMargin <= 0 {
		opts.ValidityMargin = DefaultValidityMargin
	}
	if opts.RenewTimeout <= 0 {
		opts.RenewTimeout = defaultRenewTimeout
	}
	if store == nil {
		store = storage.NewTokenStore(nil)
	}

	return &Manager{
		api:          authAPI,
		store:        store,
		clock:        opts.Clock,
		log:          logger.Component(opts.Logger, "session"),
		metrics:      opts.Metrics,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		renewLead:    opts.RenewLead,
		renewFloor:   opts.RenewFloor,
		margin:       opts.ValidityMargin,
		renewTimeout: opts.RenewTimeout,
		subs:         make(map[int]*subscriber),
	}
}

// Restore loads a stored session at startup. A snapshot whose expiry is not
// comfortably in the future, or whose fields are inconsistent, is cleared.
func (m *Manager) Restore() bool {
	stored := m.store.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	expiresAt := time.UnixMilli(stored.ExpiresAt)
	if stored.AccessToken == "" || stored.User == nil || stored.ExpiresAt <= 0 || expiresAt.Sub(now) <= m.margin {
		if !m.store.Empty() {
			m.store.Clear()
			m.metrics.Invalidation("restore")
			m.log.Info("stored session discarded", slog.Bool("hasToken", stored.AccessToken != ""), slog.Bool("hasUser", stored.User != nil))
		}
		return false
	}

	m.generation++
	user := *stored.User
	m.user = &user
	m.accessToken = stored.AccessToken
	m.refreshToken = stored.RefreshToken
	m.expiresAt = expiresAt
	m.state = Authenticated
	m.verified = false
	m.verifyTried = false
	m.armLocked(now)
	m.publishLocked(Event{Kind: EventRestored, UserID: user.ID})
	m.log.Info("session restored", slog.String("userId", user.ID), slog.Time("expiresAt", expiresAt))
	return true
}

// Login authenticates against the customer login endpoint.
func (m *Manager) Login(ctx context.Context, creds api.Credentials) (LoginResult, error) {
	return m.login(ctx, creds, "login", m.api.Login)
}

// LoginAdmin authenticates against the back-office login endpoint, whose
// answer carries only a token.
func (m *Manager) LoginAdmin(ctx context.Context, creds api.Credentials) (LoginResult, error) {
	return m.login(ctx, creds, "admin_login", m.api.AdminLogin)
}

func (m *Manager) login(ctx context.Context, creds api.Credentials, kind string, call func(context.Context, api.Credentials) (api.TokenGrant, error)) (LoginResult, error) {
	if err := m.validate.Struct(creds); err != nil {
		m.metrics.Login("invalid")
		return LoginResult{}, validationError(err)
	}

	grant, err := call(ctx, creds)
	if err != nil {
		m.metrics.Login("rejected")
		m.log.Info("login failed", slog.String("kind", kind), slog.String("error", err.Error()))
		return LoginResult{}, fmt.Errorf("%s: %w", kind, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	user, expiresAt, err := m.resolveGrant(grant, nil, now)
	if err != nil {
		m.metrics.Login("rejected")
		return LoginResult{}, fmt.Errorf("%s: %w", kind, err)
	}
	if expiresAt.Sub(now) <= m.margin {
		m.metrics.Login("rejected")
		return LoginResult{}, fmt.Errorf("%s: %w", kind, apperr.Validation("token lifetime %s is below the validity margin", expiresAt.Sub(now)))
	}

	if m.accessToken != "" {
		m.disarmLocked()
	}
	m.generation++
	m.user = user
	m.accessToken = grant.AccessToken
	m.refreshToken = grant.RefreshToken
	m.expiresAt = expiresAt
	m.state = Authenticated
	m.verified = true
	m.verifyTried = false
	m.persistLocked()
	m.armLocked(now)
	m.metrics.Login("ok")
	m.publishLocked(Event{Kind: EventLogin, UserID: user.ID})
	m.log.Info("login succeeded", slog.String("kind", kind), slog.String("userId", user.ID), slog.String("role", user.EffectiveRole()))

	return LoginResult{
		Session:  m.snapshotLocked(),
		Redirect: RedirectFor(user.EffectiveRole()),
	}, nil
}

// Register creates an account. It does not log the user in.
func (m *Manager) Register(ctx context.Context, reg api.Registration) (*models.User, error) {
	if err := m.validate.Struct(reg); err != nil {
		return nil, validationError(err)
	}
	grant, err := m.api.Register(ctx, reg)
	if err != nil {
		m.log.Info("registration failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("register: %w", err)
	}
	m.log.Info("account registered")
	return grant.User, nil
}

// resolveGrant derives the identity and absolute expiry of a grant. previous
// supplies fields a refresh answer may leave out.
func (m *Manager) resolveGrant(grant api.TokenGrant, previous *models.User, now time.Time) (*models.User, time.Time, error) {
	if grant.AccessToken == "" {
		return nil, time.Time{}, apperr.Validation("backend returned no access token")
	}

	claims, claimsErr := parseClaims(grant.AccessToken)

	var expiresAt time.Time
	switch {
	case grant.ExpiresIn > 0:
		expiresAt = now.Add(grant.ExpiresIn)
	case claimsErr == nil && !claims.ExpiresAt.IsZero():
		expiresAt = claims.ExpiresAt
	default:
		return nil, time.Time{}, apperr.Validation("token lifetime unknown")
	}

	var user models.User
	switch {
	case grant.User != nil:
		user = *grant.User
	case previous != nil:
		user = *previous
	case claimsErr == nil && claims.id() != "":
		user = models.User{ID: claims.id(), Email: claims.Email}
	default:
		return nil, time.Time{}, apperr.Validation("backend returned no user identity")
	}
	if user.ID == "" {
		return nil, time.Time{}, apperr.Validation("backend returned a user without id")
	}
	if user.Role == "" {
		switch {
		case claimsErr == nil && claims.Role != "":
			user.Role = claims.Role
		case previous != nil:
			user.Role = previous.Role
		}
	}
	return &user, expiresAt, nil
}

// SilentRenew reacquires a credential in the background. Concurrent callers
// share a single attempt. On failure the session is invalidated, subscribers
// get a redirect signal, and ErrSessionExpired is returned.
func (m *Manager) SilentRenew(ctx context.Context) error {
	_, err, _ := m.renewals.Do("renew", func() (any, error) {
		return nil, m.renew(ctx)
	})
	return err
}

func (m *Manager) renew(ctx context.Context) error {
	m.mu.Lock()
	if m.accessToken == "" && m.refreshToken == "" {
		m.mu.Unlock()
		return apperr.ErrUnauthenticated
	}
	gen := m.generation
	access, refresh := m.accessToken, m.refreshToken
	previous := m.user
	m.state = Expiring
	m.mu.Unlock()

	grant, err := m.api.Refresh(ctx, access, refresh)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		// logout or a new login happened while the call was in flight
		m.metrics.Renewal("stale")
		m.log.Info("renewal result discarded")
		if m.validLocked(m.clock.Now()) {
			return nil
		}
		return fmt.Errorf("renewal discarded: %w", apperr.ErrUnauthenticated)
	}

	now := m.clock.Now()
	if err != nil {
		m.metrics.Renewal("failed")
		m.log.Warn("renewal failed", slog.String("error", err.Error()))
		m.invalidateLocked("renewal_failed", true)
		return fmt.Errorf("%w: %w", apperr.ErrSessionExpired, err)
	}

	user, expiresAt, err := m.resolveGrant(grant, previous, now)
	if err == nil && expiresAt.Sub(now) <= m.margin {
		err = apperr.Validation("renewed token expires too soon")
	}
	if err != nil {
		m.metrics.Renewal("failed")
		m.log.Warn("renewal answer unusable", slog.String("error", err.Error()))
		m.invalidateLocked("renewal_failed", true)
		return fmt.Errorf("%w: %w", apperr.ErrSessionExpired, err)
	}

	m.user = user
	m.accessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		m.refreshToken = grant.RefreshToken
	}
	m.expiresAt = expiresAt
	m.state = Authenticated
	m.persistLocked()
	m.armLocked(now)
	m.metrics.Renewal("ok")
	m.publishLocked(Event{Kind: EventRenewed, UserID: user.ID})
	m.log.Info("session renewed", slog.Time("expiresAt", expiresAt))
	return nil
}

// onTimer runs a scheduled renewal. A callback that fired while a newer
// renewal was being armed finds seq outdated and does nothing.
func (m *Manager) onTimer(seq uint64) {
	m.mu.Lock()
	if seq != m.armSeq || m.timer == nil || m.accessToken == "" {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.timerDeadline = time.Time{}
	m.metrics.TimerArmed(false)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.renewTimeout)
	defer cancel()
	if err := m.SilentRenew(ctx); err != nil {
		m.log.Info("scheduled renewal ended the session", slog.String("error", err.Error()))
	}
}

// Verify reconciles the local session with the backend. A rejected token is
// a benign correction: the session is cleared and (false, nil) returned. A
// transport failure leaves state untouched and is returned.
func (m *Manager) Verify(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.accessToken == "" {
		m.mu.Unlock()
		return false, nil
	}
	gen := m.generation
	token := m.accessToken
	m.verifyTried = true
	m.mu.Unlock()

	remoteUser, err := m.api.Me(ctx, token)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if gen != m.generation {
		return m.validLocked(now), nil
	}

	if err != nil {
		var remote *apperr.RemoteError
		if errors.As(err, &remote) && (remote.Status == http.StatusUnauthorized ||
			remote.Status == http.StatusForbidden ||
			remote.Status == http.StatusNotFound) {
			m.log.Info("session rejected by backend", slog.Int("status", remote.Status))
			m.invalidateLocked("verify_rejected", false)
			return false, nil
		}
		return false, fmt.Errorf("verify: %w", err)
	}

	user := remoteUser
	if user.ID == "" && m.user != nil {
		user.ID = m.user.ID
	}
	if user.Role == "" && m.user != nil {
		user.Role = m.user.Role
	}
	m.user = &user
	m.verified = true
	m.persistLocked()
	m.publishLocked(Event{Kind: EventVerified, UserID: user.ID})
	return m.validLocked(now), nil
}

// Logout clears the session locally, then tells the backend on a best-effort
// basis. It always ends Unauthenticated and never fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	access, refresh := m.accessToken, m.refreshToken
	held := access != "" || m.user != nil
	m.invalidateLocked("logout", false)
	m.mu.Unlock()

	if !held {
		return nil
	}
	if err := m.api.Logout(ctx, access, refresh); err != nil {
		m.log.Warn("remote logout failed", slog.String("error", err.Error()))
	}
	return nil
}

// Close disarms the renewal timer without touching the stored session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disarmLocked()
}

// IsValid reports whether user, token and expiry are all present and the
// expiry is beyond the validity margin. It does no I/O.
func (m *Manager) IsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked(m.clock.Now())
}

func (m *Manager) validLocked(now time.Time) bool {
	return m.user != nil && m.accessToken != "" && !m.expiresAt.IsZero() && m.expiresAt.Sub(now) > m.margin
}

// NeedsVerify reports a token that neither a login nor a Verify call has
// checked with the backend yet. A Verify that failed on transport counts as
// tried.
func (m *Manager) NeedsVerify() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken != "" && !m.verified && !m.verifyTried
}

func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state, ExpiresAt: m.expiresAt, Verified: m.verified}
	if m.timer != nil {
		renewsAt := m.timerDeadline
		snap.RenewsAt = &renewsAt
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// PendingTimers is 1 while a renewal is scheduled, else 0.
func (m *Manager) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer == nil {
		return 0
	}
	return 1
}

// renewDelay schedules renewal RenewLead before expiry, no sooner than
// RenewFloor from now. When the floor would land at or past expiry, renewal
// fires halfway through the remaining lifetime instead.
func (m *Manager) renewDelay(now time.Time) time.Duration {
	remaining := m.expiresAt.Sub(now)
	delay := remaining - m.renewLead
	if delay < m.renewFloor {
		delay = m.renewFloor
	}
	if remaining > 0 && delay >= remaining {
		delay = remaining / 2
	}
	return delay
}

// armLocked replaces any scheduled renewal with one for the current expiry.
func (m *Manager) armLocked(now time.Time) {
	m.disarmLocked()
	delay := m.renewDelay(now)
	m.armSeq++
	seq := m.armSeq
	m.timer = m.clock.AfterFunc(delay, func() { m.onTimer(seq) })
	m.timerDeadline = now.Add(delay)
	m.metrics.TimerArmed(true)
	m.log.Debug("renewal scheduled", slog.Time("at", m.timerDeadline))
}

func (m *Manager) disarmLocked() {
	m.armSeq++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
		m.timerDeadline = time.Time{}
		m.metrics.TimerArmed(false)
	}
}

func (m *Manager) persistLocked() {
	err := m.store.Save(storage.StoredSession{
		AccessToken:  m.accessToken,
		RefreshToken: m.refreshToken,
		User:         m.user,
		ExpiresAt:    m.expiresAt.UnixMilli(),
	})
	if err != nil {
		m.log.Warn("session persist failed", slog.String("error", err.Error()))
	}
}

// invalidateLocked clears user, tokens and expiry together, in memory and in
// the store, and cancels the renewal timer.
func (m *Manager) invalidateLocked(reason string, redirect bool) {
	held := m.accessToken != "" || m.user != nil
	var userID string
	if m.user != nil {
		userID = m.user.ID
	}

	m.disarmLocked()
	m.generation++
	m.user = nil
	m.accessToken = ""
	m.refreshToken = ""
	m.expiresAt = time.Time{}
	m.state = Unauthenticated
	m.verified = false
	m.verifyTried = false
	m.store.Clear()

	if !held {
		return
	}
	m.metrics.Invalidation(reason)
	m.publishLocked(Event{Kind: EventInvalidated, UserID: userID, Reason: reason, RedirectToLogin: redirect})
	m.log.Info("session invalidated", slog.String("reason", reason), slog.Bool("redirect", redirect))
}
