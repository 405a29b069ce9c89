package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Store keeps one Manager per client session id. Idle sessions expire after ttl and are
// canceled on the way out. Every manager shares the store's RateLimiter.
type Store struct {
	sessions   *ttlcache.Cache[string, *Manager]
	loader     ttlcache.Loader[string, *Manager]
	limiter    *RateLimiter
	unsubEvict func()
	closeOnce  sync.Once
}

// NewStore builds a store and starts its expiry loop; Close stops it. newManager should
// build managers on limiter.
func NewStore(ttl time.Duration, limiter *RateLimiter, newManager func() *Manager) *Store {
	sessions := ttlcache.New[string, *Manager](
		ttlcache.WithTTL[string, *Manager](ttl),
	)
	unsub := sessions.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Manager]) {
		// Drop and Close cancel synchronously
		if reason != ttlcache.EvictionReasonDeleted {
			item.Value().Cancel()
		}
	})
	loader := ttlcache.NewSuppressedLoader[string, *Manager](
		ttlcache.LoaderFunc[string, *Manager](func(c *ttlcache.Cache[string, *Manager], id string) *ttlcache.Item[string, *Manager] {
			return c.Set(id, newManager(), ttlcache.DefaultTTL)
		}),
		nil,
	)
	go sessions.Start()

	return &Store{sessions: sessions, loader: loader, limiter: limiter, unsubEvict: unsub}
}

// Get returns the manager for id, creating one on first use. A hit extends the session.
func (s *Store) Get(id string) *Manager {
	return s.sessions.Get(strings.TrimSpace(id), ttlcache.WithLoader[string, *Manager](s.loader)).Value()
}

// Lookup returns the manager for id without creating one.
func (s *Store) Lookup(id string) (*Manager, bool) {
	item := s.sessions.Get(strings.TrimSpace(id))
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Drop cancels and forgets the session.
func (s *Store) Drop(id string) {
	item, ok := s.sessions.GetAndDelete(strings.TrimSpace(id))
	if ok {
		item.Value().Cancel()
	}
}

func (s *Store) Len() int { return s.sessions.Len() }

// Close stops the expiry loop, cancels every session and resets the shared rate limiter.
// Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.sessions.Stop()
		s.unsubEvict()

		items := s.sessions.Items()
		s.sessions.DeleteAll()
		for _, item := range items {
			item.Value().Cancel()
		}
		s.limiter.Reset()
	})
}
