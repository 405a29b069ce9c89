package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"ride-booking/internal/general/config"
	"ride-booking/internal/general/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestStoreKeepsOneManagerPerSession(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(&mockConfirmation{}, nil)
	factory := &challengeFactory{}
	limiter := NewRateLimiter(time.Minute, 5*time.Minute)
	log := logger.NewWithCore("auth-service", zapcore.NewNopCore())
	cfg := config.PhoneAuthConfig{DefaultCountry: "+46", MaxAttempts: 3}

	store := NewStore(time.Hour, limiter, func() *Manager {
		return NewManager(provider, factory.factory, limiter, cfg, log)
	})
	defer store.Close()

	a := store.Get("session-a")
	assert.Same(t, a, store.Get(" session-a "))
	assert.NotSame(t, a, store.Get("session-b"))
	assert.Equal(t, 2, store.Len())

	_, ok := store.Lookup("session-c")
	assert.False(t, ok)

	require.NoError(t, a.SendCode(context.Background(), "0701234567"))
	require.Equal(t, StateAwaitingCode, a.State())

	store.Drop("session-a")
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, 1, store.Len())
}

func TestStoreEvictionCancelsSession(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(&mockConfirmation{}, nil)
	factory := &challengeFactory{}
	limiter := NewRateLimiter(time.Minute, 5*time.Minute)
	log := logger.NewWithCore("auth-service", zapcore.NewNopCore())

	store := NewStore(20*time.Millisecond, limiter, func() *Manager {
		return NewManager(provider, factory.factory, limiter, config.PhoneAuthConfig{DefaultCountry: "+46"}, log)
	})
	defer store.Close()

	m := store.Get("idle")
	require.NoError(t, m.SendCode(context.Background(), "0701234567"))

	assert.Eventually(t, func() bool {
		return store.Len() == 0 && m.State() == StateIdle
	}, time.Second, 5*time.Millisecond)
	assert.True(t, factory.all()[0].isCleared())
}

func TestStoreCloseResetsLimiter(t *testing.T) {
	provider := &mockProvider{}
	provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(&mockConfirmation{}, nil)
	factory := &challengeFactory{}
	limiter := NewRateLimiter(time.Minute, 5*time.Minute)
	log := logger.NewWithCore("auth-service", zapcore.NewNopCore())

	store := NewStore(time.Hour, limiter, func() *Manager {
		return NewManager(provider, factory.factory, limiter, config.PhoneAuthConfig{DefaultCountry: "+46"}, log)
	})

	a := store.Get("a")
	require.NoError(t, a.SendCode(context.Background(), "0701234567"))
	require.Equal(t, 1, limiter.Len())

	store.Close()
	store.Close()
	assert.Zero(t, limiter.Len())
	assert.Zero(t, store.Len())
	assert.Equal(t, StateIdle, a.State())
	assert.True(t, factory.all()[0].isCleared())
}

func TestStoreLookupNeverCreates(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 5*time.Minute)
	log := logger.NewWithCore("auth-service", zapcore.NewNopCore())
	var mu sync.Mutex
	created := 0
	store := NewStore(time.Hour, limiter, func() *Manager {
		mu.Lock()
		created++
		mu.Unlock()
		return NewManager(&mockProvider{}, (&challengeFactory{}).factory, limiter, config.PhoneAuthConfig{DefaultCountry: "+46"}, log)
	})
	defer store.Close()

	_, ok := store.Lookup("x")
	assert.False(t, ok)
	m := store.Get("x")
	store.Get("x")
	got, ok := store.Lookup("x")
	require.True(t, ok)
	assert.Same(t, m, got)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, created)
}
