package session

import (
	"time"

	"storefront/internal/models"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
	// Expiring is held while a renewal attempt is running.
	Expiring
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Expiring:
		return "expiring"
	default:
		return "unauthenticated"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type EventKind int

const (
	EventLogin EventKind = iota + 1
	EventRestored
	EventRenewed
	EventVerified
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventRestored:
		return "restored"
	case EventRenewed:
		return "renewed"
	case EventVerified:
		return "verified"
	case EventInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event is pushed to subscribers on every session change. RedirectToLogin is
// set when the UI must send the user to the login boundary.
type Event struct {
	Kind            EventKind
	UserID          string
	Reason          string
	RedirectToLogin bool
	At              time.Time
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	User      *models.User `json:"user"`
	State     State        `json:"state"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Verified  bool         `json:"verified"`
	// RenewsAt is when the scheduled silent renewal fires, if one is armed.
	RenewsAt *time.Time `json:"renewsAt,omitempty"`
}

const (
	LoginPath      = "/login"
	AdminLoginPath = "/admin/login"
	HomePath       = "/"
	AdminHomePath  = "/admin"
)

// RedirectFor is the landing page after a login with role.
func RedirectFor(role string) string {
	if role == models.RoleAdmin {
		return AdminHomePath
	}
	return HomePath
}

// LoginResult carries the new session and the role-based redirect decision.
type LoginResult struct {
	Session  Snapshot `json:"session"`
	Redirect string   `json:"redirect"`
}

type subscriber struct {
	ch chan Event
}

// publishLocked delivers without blocking; a full subscriber misses the event.
func (m *Manager) publishLocked(ev Event) {
	ev.At = m.clock.Now()
	for id, sub := range m.subs {
		select {
		case sub.ch <- ev:
		default:
			m.log.Warn("session event dropped", "subscriber", id, "event", ev.Kind.String())
		}
	}
}

// Subscribe returns a channel of session events and a cancel function that
// unregisters and closes it.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSub++
	id := m.nextSub
	sub := &subscriber{ch: make(chan Event, buffer)}
	m.subs[id] = sub

	var once bool
	return sub.ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if once {
			return
		}
		once = true
		delete(m.subs, id)
		close(sub.ch)
	}
}
