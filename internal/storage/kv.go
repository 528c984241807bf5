// Package storage holds the key/value capability the client core persists
// to, and the typed stores the session and checkout owners write through.
package storage

import (
	"sync"
)

// KV is a durable, synchronous key/value surface. Implementations never
// return errors to callers: backend failures are logged and read as absent.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// NopKV stores nothing. It stands in for storage in non-interactive contexts.
type NopKV struct{}

func (NopKV) Get(string) (string, bool) { return "", false }
func (NopKV) Set(string, string)        {}
func (NopKV) Remove(string)             {}

// MemoryKV keeps values for the lifetime of the process.
type MemoryKV struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (s *MemoryKV) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryKV) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *MemoryKV) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Len returns the number of stored keys.
func (s *MemoryKV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Namespaced prefixes every key so several clients can share one backend.
type Namespaced struct {
	kv     KV
	prefix string
}

func WithNamespace(kv KV, namespace string) KV {
	if namespace == "" {
		return kv
	}
	return &Namespaced{kv: kv, prefix: namespace + ":"}
}

func (n *Namespaced) Get(key string) (string, bool) { return n.kv.Get(n.prefix + key) }
func (n *Namespaced) Set(key, value string)         { n.kv.Set(n.prefix+key, value) }
func (n *Namespaced) Remove(key string)             { n.kv.Remove(n.prefix + key) }
