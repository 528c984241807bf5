package storage

import (
	"encoding/json"
	"strconv"

	"storefront/internal/models"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
	keyExpiresAt    = "expires_at"
)

// StoredSession is what the token store holds. Any field may be missing or
// unreadable; the session owner decides whether the combination is usable.
type StoredSession struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
	// epoch milliseconds, 0 when absent or unparsable
	ExpiresAt int64
}

// TokenStore persists the session credentials. Only the session manager
// writes to it.
type TokenStore struct {
	kv KV
}

func NewTokenStore(kv KV) *TokenStore {
	if kv == nil {
		kv = NopKV{}
	}
	return &TokenStore{kv: kv}
}

func (s *TokenStore) Load() StoredSession {
	var out StoredSession
	out.AccessToken, _ = s.kv.Get(keyAccessToken)
	out.RefreshToken, _ = s.kv.Get(keyRefreshToken)

	if raw, ok := s.kv.Get(keyUser); ok && raw != "" {
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil && u.ID != "" {
			out.User = &u
		}
	}
	if raw, ok := s.kv.Get(keyExpiresAt); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			out.ExpiresAt = ms
		}
	}
	return out
}

func (s *TokenStore) Save(sess StoredSession) error {
	var userJSON []byte
	if sess.User != nil {
		var err error
		if userJSON, err = json.Marshal(sess.User); err != nil {
			return err
		}
	}

	s.kv.Set(keyAccessToken, sess.AccessToken)
	if sess.RefreshToken != "" {
		s.kv.Set(keyRefreshToken, sess.RefreshToken)
	} else {
		s.kv.Remove(keyRefreshToken)
	}
	if userJSON != nil {
		s.kv.Set(keyUser, string(userJSON))
	} else {
		s.kv.Remove(keyUser)
	}
	s.kv.Set(keyExpiresAt, strconv.FormatInt(sess.ExpiresAt, 10))
	return nil
}

func (s *TokenStore) Clear() {
	s.kv.Remove(keyAccessToken)
	s.kv.Remove(keyRefreshToken)
	s.kv.Remove(keyUser)
	s.kv.Remove(keyExpiresAt)
}

// Empty reports whether no credential key is stored at all.
func (s *TokenStore) Empty() bool {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyUser, keyExpiresAt} {
		if _, ok := s.kv.Get(key); ok {
			return false
		}
	}
	return true
}
