package session

import (
	"context"
	"sync"

	"ride-booking/internal/ports"

	"github.com/google/uuid"
)

// ChallengeState is the lifecycle of the session's security challenge.
type ChallengeState string

const (
	ChallengeUninitialized ChallengeState = "uninitialized"
	ChallengeInitialized   ChallengeState = "initialized"
	ChallengeExpired       ChallengeState = "expired"
	ChallengeErrored       ChallengeState = "errored"
)

// ChallengeContainer is the host a challenge is mounted into. It must be empty when a
// challenge mounts, and once detached it is never mounted into again.
type ChallengeContainer struct {
	id       string
	mounted  bool
	detached bool
}

func newChallengeContainer() *ChallengeContainer {
	return &ChallengeContainer{id: "otp-challenge-" + uuid.NewString()}
}

func (c *ChallengeContainer) ID() string { return c.id }

// Reset clears stale content left by a previous challenge.
func (c *ChallengeContainer) Reset() { c.mounted = false }

// Detach marks the container torn down.
func (c *ChallengeContainer) Detach() {
	c.mounted = false
	c.detached = true
}

func (c *ChallengeContainer) Detached() bool { return c.detached }

// challengeSlot owns at most one live challenge and its container.
type challengeSlot struct {
	factory ports.ChallengeFactory

	mu        sync.Mutex
	container *ChallengeContainer
	live      ports.SecurityChallenge
	state     ChallengeState
}

func newChallengeSlot(factory ports.ChallengeFactory) *challengeSlot {
	return &challengeSlot{factory: factory, state: ChallengeUninitialized}
}

// token returns a challenge token, creating and initializing the challenge when needed.
func (s *challengeSlot) token(ctx context.Context) (string, error) {
	ch, err := s.ensure(ctx)
	if err != nil {
		return "", err
	}
	tok, err := ch.Render(ctx)
	if err != nil {
		s.invalidate(ch, ChallengeErrored)
		return "", err
	}
	return tok, nil
}

func (s *challengeSlot) ensure(ctx context.Context) (ports.SecurityChallenge, error) {
	s.mu.Lock()
	if s.live != nil && s.state == ChallengeInitialized {
		ch := s.live
		s.mu.Unlock()
		return ch, nil
	}
	if s.container == nil || s.container.Detached() {
		s.container = newChallengeContainer()
	}
	s.container.Reset()
	ch := s.factory(s.container.ID())
	s.container.mounted = true
	s.live = ch
	s.state = ChallengeUninitialized
	s.mu.Unlock()

	// callbacks may run synchronously from Render, so they must not be invoked under s.mu
	ch.OnExpired(func() { s.invalidate(ch, ChallengeExpired) })
	ch.OnError(func(error) { s.invalidate(ch, ChallengeErrored) })

	if err := ch.Initialize(ctx); err != nil {
		s.invalidate(ch, ChallengeErrored)
		return nil, err
	}

	s.mu.Lock()
	if s.live == ch {
		s.state = ChallengeInitialized
	}
	s.mu.Unlock()
	return ch, nil
}

// invalidate tears ch down if it is still the live challenge.
func (s *challengeSlot) invalidate(ch ports.SecurityChallenge, st ChallengeState) {
	s.mu.Lock()
	if s.live != ch {
		s.mu.Unlock()
		return
	}
	s.live = nil
	s.state = st
	if s.container != nil {
		s.container.Detach()
	}
	s.mu.Unlock()
	ch.Clear()
}

// teardown clears any live challenge and returns the slot to uninitialized.
func (s *challengeSlot) teardown() {
	s.mu.Lock()
	ch := s.live
	s.live = nil
	s.state = ChallengeUninitialized
	if s.container != nil {
		s.container.Detach()
	}
	s.mu.Unlock()
	if ch != nil {
		ch.Clear()
	}
}

func (s *challengeSlot) State() ChallengeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *challengeSlot) containerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.container == nil {
		return ""
	}
	return s.container.ID()
}
