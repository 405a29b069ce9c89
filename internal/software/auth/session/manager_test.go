package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ride-booking/internal/domain/verification"
	"ride-booking/internal/general/config"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ----- test doubles -----

type mockProvider struct{ mock.Mock }

func (p *mockProvider) SendCode(ctx context.Context, phoneNumber, token string) (ports.Confirmation, error) {
	args := p.Called(ctx, phoneNumber, token)
	conf, _ := args.Get(0).(ports.Confirmation)
	return conf, args.Error(1)
}

type mockConfirmation struct{ mock.Mock }

func (c *mockConfirmation) Confirm(ctx context.Context, code string) (*ports.PhoneIdentity, error) {
	args := c.Called(ctx, code)
	id, _ := args.Get(0).(*ports.PhoneIdentity)
	return id, args.Error(1)
}

type fakeChallenge struct {
	container string
	renderErr error

	mu        sync.Mutex
	inits     int
	renders   int
	cleared   bool
	onExpired func()
	onError   func(error)
}

func (c *fakeChallenge) Initialize(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inits++
	return nil
}

func (c *fakeChallenge) Render(context.Context) (string, error) {
	c.mu.Lock()
	c.renders++
	err, onError := c.renderErr, c.onError
	c.mu.Unlock()
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return "", err
	}
	return "token-" + c.container, nil
}

func (c *fakeChallenge) Clear() {
	c.mu.Lock()
	c.cleared = true
	c.mu.Unlock()
}

func (c *fakeChallenge) OnExpired(fn func()) {
	c.mu.Lock()
	c.onExpired = fn
	c.mu.Unlock()
}

func (c *fakeChallenge) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func (c *fakeChallenge) expire() {
	c.mu.Lock()
	fn := c.onExpired
	c.mu.Unlock()
	fn()
}

func (c *fakeChallenge) isCleared() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleared
}

type challengeFactory struct {
	mu        sync.Mutex
	created   []*fakeChallenge
	renderErr error
}

func (f *challengeFactory) factory(containerID string) ports.SecurityChallenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &fakeChallenge{container: containerID, renderErr: f.renderErr}
	f.created = append(f.created, ch)
	return ch
}

func (f *challengeFactory) all() []*fakeChallenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeChallenge(nil), f.created...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	mgr      *Manager
	provider *mockProvider
	limiter  *RateLimiter
	clock    *clock
	factory  *challengeFactory
	sleeps   []time.Duration
	sleepsMu sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: &mockProvider{},
		clock:    &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		factory:  &challengeFactory{},
	}
	f.limiter = NewRateLimiter(60*time.Second, 5*time.Minute)
	f.limiter.now = f.clock.Now

	cfg := config.PhoneAuthConfig{DefaultCountry: "+46", MaxAttempts: 3, RetryBackoff: 2 * time.Second}
	log := logger.NewWithCore("auth-service", zapcore.NewNopCore())
	f.mgr = NewManager(f.provider, f.factory.factory, f.limiter, cfg, log)
	f.mgr.now = f.clock.Now
	f.mgr.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleepsMu.Lock()
		f.sleeps = append(f.sleeps, d)
		f.sleepsMu.Unlock()
		return ctx.Err()
	}
	t.Cleanup(func() { f.provider.AssertExpectations(t) })
	return f
}

func providerErr(code verification.ProviderCode) error {
	return &verification.ProviderError{Code: code, Message: string(code)}
}

// ----- tests -----

func TestSendVerifyThenResendScenario(t *testing.T) {
	f := newFixture(t)
	conf := &mockConfirmation{}
	identity := &ports.PhoneIdentity{ProviderUserID: "uid-1", PhoneNumber: "+46701234567"}

	f.provider.On("SendCode", mock.Anything, "+46701234567", mock.AnythingOfType("string")).Return(conf, nil).Once()
	conf.On("Confirm", mock.Anything, "123456").Return(identity, nil).Once()

	ctx := context.Background()
	require.NoError(t, f.mgr.SendCode(ctx, "070-123 45 67"))
	assert.Equal(t, StateAwaitingCode, f.mgr.State())
	assert.Equal(t, ChallengeInitialized, f.mgr.ChallengeState())

	got, err := f.mgr.VerifyCode(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, identity, got)
	assert.Equal(t, StateIdle, f.mgr.State())
	assert.Empty(t, f.mgr.PhoneNumber())
	assert.Equal(t, ChallengeUninitialized, f.mgr.ChallengeState())

	err = f.mgr.ResendCode(ctx)
	assert.ErrorIs(t, err, verification.ErrInvalidPhone)

	_, err = f.mgr.VerifyCode(ctx, "123456")
	assert.ErrorIs(t, err, verification.ErrVerificationFailed)
	conf.AssertExpectations(t)
}

func TestInvalidPhoneFailsWithoutProviderCall(t *testing.T) {
	f := newFixture(t)

	for _, raw := range []string{"", "12", "+0123456789", "abc", "+1234567890123456"} {
		err := f.mgr.SendCode(context.Background(), raw)
		assert.ErrorIs(t, err, verification.ErrInvalidPhone, raw)
	}
	f.provider.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.factory.all())
}

func TestSecondSendWithinIntervalIsRateLimited(t *testing.T) {
	f := newFixture(t)
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(&mockConfirmation{}, nil).Times(3)

	ctx := context.Background()
	require.NoError(t, f.mgr.SendCode(ctx, "0701234567"))

	f.clock.Advance(10 * time.Second)
	err := f.mgr.SendCode(ctx, "+46701234567")
	require.ErrorIs(t, err, verification.ErrRateLimited)
	ve, ok := verification.As(err)
	require.True(t, ok)
	assert.Equal(t, 50*time.Second, ve.RetryAfter)
	assert.Equal(t, 50, ve.RetryAfterSeconds())

	// other numbers are unaffected
	require.NoError(t, f.mgr.SendCode(ctx, "0731234567"))

	f.clock.Advance(51 * time.Second)
	require.NoError(t, f.mgr.SendCode(ctx, "0701234567"))
}

func TestVerifyCodeValidatesLocally(t *testing.T) {
	f := newFixture(t)
	conf := &mockConfirmation{}
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(conf, nil).Once()

	_, err := f.mgr.VerifyCode(context.Background(), "123456")
	assert.ErrorIs(t, err, verification.ErrVerificationFailed)

	require.NoError(t, f.mgr.SendCode(context.Background(), "0701234567"))
	for _, code := range []string{"12345", "1234567", "", "abcdef"} {
		_, err := f.mgr.VerifyCode(context.Background(), code)
		assert.ErrorIs(t, err, verification.ErrVerificationFailed, code)
	}
	conf.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	assert.Equal(t, StateAwaitingCode, f.mgr.State())
}

func TestWrongCodeKeepsAwaitingState(t *testing.T) {
	f := newFixture(t)
	conf := &mockConfirmation{}
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(conf, nil).Once()
	conf.On("Confirm", mock.Anything, "000000").Return(nil, providerErr(verification.CodeInvalidVerificationCode)).Once()

	require.NoError(t, f.mgr.SendCode(context.Background(), "0701234567"))
	_, err := f.mgr.VerifyCode(context.Background(), "000 000")
	assert.ErrorIs(t, err, verification.ErrVerificationFailed)
	assert.Equal(t, StateAwaitingCode, f.mgr.State())
	conf.AssertExpectations(t)
}

func TestRetryableFailureRetriesWithFreshChallenge(t *testing.T) {
	f := newFixture(t)
	conf := &mockConfirmation{}
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, providerErr(verification.CodeNetworkRequestFailed)).Twice()
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(conf, nil).Once()

	require.NoError(t, f.mgr.SendCode(context.Background(), "0701234567"))
	assert.Equal(t, StateAwaitingCode, f.mgr.State())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, f.sleeps)

	created := f.factory.all()
	require.Len(t, created, 3)
	assert.True(t, created[0].isCleared())
	assert.True(t, created[1].isCleared())
	assert.False(t, created[2].isCleared())
	assert.NotEqual(t, created[0].container, created[1].container)
}

func TestRetriesExhaustedReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, providerErr(verification.CodeInternalError)).Times(3)

	err := f.mgr.SendCode(context.Background(), "0701234567")
	require.ErrorIs(t, err, verification.ErrNetwork)
	assert.Equal(t, StateIdle, f.mgr.State())
	assert.Len(t, f.sleeps, 2)
	assert.Zero(t, f.limiter.Len())
}

func TestNonRetryableFailureSurfacesImmediately(t *testing.T) {
	f := newFixture(t)
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, providerErr(verification.CodeInvalidAPIKey)).Once()

	err := f.mgr.SendCode(context.Background(), "0701234567")
	require.ErrorIs(t, err, verification.ErrProviderConfiguration)
	assert.Empty(t, f.sleeps)
	assert.Len(t, f.factory.all(), 1)
}

func TestFailedSendKeepsNumberOnRecord(t *testing.T) {
	f := newFixture(t)
	first := &mockConfirmation{}
	f.provider.On("SendCode", mock.Anything, "+46701234567", mock.Anything).Return(first, nil).Once()
	f.provider.On("SendCode", mock.Anything, "+46731234567", mock.Anything).
		Return(nil, providerErr(verification.CodeInvalidAPIKey)).Once()

	ctx := context.Background()
	require.NoError(t, f.mgr.SendCode(ctx, "0701234567"))
	require.Error(t, f.mgr.SendCode(ctx, "0731234567"))
	assert.Equal(t, "+46701234567", f.mgr.PhoneNumber())

	// resend still targets the number that received the last code
	f.clock.Advance(61 * time.Second)
	f.provider.On("SendCode", mock.Anything, "+46701234567", mock.Anything).Return(&mockConfirmation{}, nil).Once()
	require.NoError(t, f.mgr.ResendCode(ctx))
	assert.Equal(t, StateAwaitingCode, f.mgr.State())
}

func TestFailedFirstSendLeavesNoNumber(t *testing.T) {
	f := newFixture(t)
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, providerErr(verification.CodeInvalidAPIKey)).Once()

	require.Error(t, f.mgr.SendCode(context.Background(), "0701234567"))
	assert.Empty(t, f.mgr.PhoneNumber())
	assert.ErrorIs(t, f.mgr.ResendCode(context.Background()), verification.ErrInvalidPhone)
}

func TestChallengeFailureDoesNotCallProvider(t *testing.T) {
	f := newFixture(t)
	f.factory.renderErr = errors.New("widget failed")

	err := f.mgr.SendCode(context.Background(), "0701234567")
	require.ErrorIs(t, err, verification.ErrSecurityChallengeFailed)
	assert.Equal(t, ChallengeErrored, f.mgr.ChallengeState())

	f.factory.renderErr = nil
	conf := &mockConfirmation{}
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(conf, nil).Once()
	require.NoError(t, f.mgr.SendCode(context.Background(), "0701234567"))

	created := f.factory.all()
	require.Len(t, created, 2)
	assert.NotEqual(t, created[0].container, created[1].container)
}

func TestExpiredChallengeIsRecreated(t *testing.T) {
	f := newFixture(t)
	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(&mockConfirmation{}, nil).Twice()

	require.NoError(t, f.mgr.SendCode(context.Background(), "0701234567"))
	first := f.factory.all()[0]
	first.expire()
	assert.Equal(t, ChallengeExpired, f.mgr.ChallengeState())
	assert.True(t, first.isCleared())

	f.clock.Advance(61 * time.Second)
	require.NoError(t, f.mgr.ResendCode(context.Background()))

	created := f.factory.all()
	require.Len(t, created, 2)
	assert.NotEqual(t, first.container, created[1].container)
	assert.Equal(t, ChallengeInitialized, f.mgr.ChallengeState())
}

func TestConcurrentVerifyIsRejected(t *testing.T) {
	f := newFixture(t)
	conf := &mockConfirmation{}
	started := make(chan struct{})
	release := make(chan struct{})

	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).Return(conf, nil).Once()
	conf.On("Confirm", mock.Anything, "123456").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&ports.PhoneIdentity{ProviderUserID: "uid"}, nil).Once()

	require.NoError(t, f.mgr.SendCode(context.Background(), "0701234567"))

	done := make(chan error, 1)
	go func() {
		_, err := f.mgr.VerifyCode(context.Background(), "123456")
		done <- err
	}()

	<-started
	_, err := f.mgr.VerifyCode(context.Background(), "123456")
	assert.ErrorIs(t, err, ErrVerifyInFlight)

	close(release)
	require.NoError(t, <-done)
	conf.AssertNumberOfCalls(t, "Confirm", 1)
}

func TestCancelDiscardsInFlightSend(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})

	f.provider.On("SendCode", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&mockConfirmation{}, nil).Once()

	done := make(chan error, 1)
	go func() { done <- f.mgr.SendCode(context.Background(), "0701234567") }()

	<-started
	f.mgr.Cancel()
	f.mgr.Cancel()
	close(release)

	assert.ErrorIs(t, <-done, ErrCanceled)
	assert.Equal(t, StateIdle, f.mgr.State())
	assert.Empty(t, f.mgr.PhoneNumber())
	assert.Zero(t, f.limiter.Len())
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepCtx(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}

func TestRateLimiterPrunesOldEntries(t *testing.T) {
	c := &clock{now: time.Now()}
	rl := NewRateLimiter(time.Minute, 5*time.Minute)
	rl.now = c.Now

	for i := 0; i < 3; i++ {
		rl.Record(fmt.Sprintf("+4670000000%d", i))
	}
	assert.Equal(t, 3, rl.Len())

	c.Advance(6 * time.Minute)
	rl.Record("+46709999999")
	assert.Equal(t, 1, rl.Len())

	_, ok := rl.Check("+46700000000")
	assert.True(t, ok)
	wait, ok := rl.Check("+46709999999")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)
}
