// Package session drives the phone sign-in flow for one client session: send a code,
// verify it, resend or cancel.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ride-booking/internal/domain/phone"
	"ride-booking/internal/domain/verification"
	"ride-booking/internal/general/config"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/metrics"
	"ride-booking/internal/ports"
)

// State is the externally visible state of a Manager.
type State string

const (
	StateIdle         State = "idle"
	StateAwaitingCode State = "awaiting_code"
)

var (
	// ErrVerifyInFlight is returned when a second verify arrives while one is still running.
	ErrVerifyInFlight = errors.New("session: verification already in progress")
	// ErrCanceled is returned to an operation whose result arrived after Cancel.
	ErrCanceled = errors.New("session: canceled")
)

// codeLength is the number of digits in a verification code.
const codeLength = 6

// PendingVerification is the confirmation handle kept between send and verify.
type PendingVerification struct {
	Phone        string
	Confirmation ports.Confirmation
	CreatedAt    time.Time
}

// Manager is the per-session sign-in state machine. It is safe for concurrent use;
// sends are serialized and a cancel invalidates in-flight results.
type Manager struct {
	provider ports.PhoneAuthProvider
	limiter  *RateLimiter
	slot     *challengeSlot
	log      *logger.Logger

	defaultCountry string
	maxAttempts    int
	backoff        time.Duration

	sendMu sync.Mutex

	mu        sync.Mutex
	phone     string
	pending   *PendingVerification
	gen       uint64
	verifying bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager wires a manager for one session. limiter is shared across sessions.
func NewManager(
	provider ports.PhoneAuthProvider,
	challenges ports.ChallengeFactory,
	limiter *RateLimiter,
	cfg config.PhoneAuthConfig,
	log *logger.Logger,
) *Manager {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Manager{
		provider:       provider,
		limiter:        limiter,
		slot:           newChallengeSlot(challenges),
		log:            log,
		defaultCountry: cfg.DefaultCountry,
		maxAttempts:    maxAttempts,
		backoff:        cfg.RetryBackoff,
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

// SendCode normalizes raw, checks the rate limit and asks the provider to send a code.
// Retryable provider failures are retried with a fresh challenge after a fixed backoff.
func (m *Manager) SendCode(ctx context.Context, raw string) error {
	number := phone.Normalize(raw, m.defaultCountry)
	if !phone.Validate(number) {
		return verification.InvalidPhone("")
	}
	if wait, ok := m.limiter.Check(number); !ok {
		return verification.RateLimited(wait)
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	// a send that queued behind another may now be throttled
	if wait, ok := m.limiter.Check(number); !ok {
		return verification.RateLimited(wait)
	}

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	masked := phone.Mask(number)
	var lastErr *verification.Error

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		token, err := m.slot.token(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return verification.NetworkError(ctxErr)
			}
			m.log.Warn(ctx, "otp_challenge_failed", "security challenge failed", map[string]any{
				"phone": masked, "attempt": attempt, "reason": err.Error(),
			})
			return verification.SecurityChallengeFailed(err)
		}

		conf, err := m.provider.SendCode(ctx, number, token)
		if err == nil {
			return m.storePending(gen, number, conf)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return verification.NetworkError(ctxErr)
		}

		lastErr = verification.ClassifyError(err)
		if !lastErr.Code.Retryable() {
			return lastErr
		}

		m.log.Warn(ctx, "otp_send_retry", "transient provider failure", map[string]any{
			"phone": masked, "attempt": attempt, "code": lastErr.Code.String(),
		})
		m.slot.teardown()
		if attempt == m.maxAttempts {
			break
		}
		metrics.OTPProviderRetries.Inc()
		if err := m.sleep(ctx, m.backoff); err != nil {
			return verification.NetworkError(err)
		}
		if !m.current(gen) {
			return ErrCanceled
		}
	}

	// retries exhausted
	m.mu.Lock()
	if m.gen == gen {
		m.pending = nil
	}
	m.mu.Unlock()
	return lastErr
}

func (m *Manager) storePending(gen uint64, number string, conf ports.Confirmation) error {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return ErrCanceled
	}
	m.phone = number
	m.pending = &PendingVerification{Phone: number, Confirmation: conf, CreatedAt: m.now()}
	m.mu.Unlock()

	m.limiter.Record(number)
	return nil
}

// VerifyCode confirms code against the pending verification. Success clears all session state.
func (m *Manager) VerifyCode(ctx context.Context, code string) (*ports.PhoneIdentity, error) {
	digits := onlyDigits(code)

	m.mu.Lock()
	if m.verifying {
		m.mu.Unlock()
		return nil, ErrVerifyInFlight
	}
	if m.pending == nil {
		m.mu.Unlock()
		return nil, verification.VerificationFailed("No verification in progress. Please request a new code.")
	}
	if len(digits) != codeLength {
		m.mu.Unlock()
		return nil, verification.VerificationFailed("Please enter the 6-digit code.")
	}
	m.verifying = true
	conf := m.pending.Confirmation
	gen := m.gen
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.verifying = false
		m.mu.Unlock()
	}()

	identity, err := conf.Confirm(ctx, digits)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, verification.NetworkError(ctxErr)
		}
		return nil, verification.ClassifyError(err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return nil, ErrCanceled
	}
	m.pending = nil
	m.phone = ""
	m.mu.Unlock()

	m.slot.teardown()
	return identity, nil
}

// ResendCode drops any pending verification and sends a new code to the stored number.
func (m *Manager) ResendCode(ctx context.Context) error {
	m.mu.Lock()
	number := m.phone
	if number == "" {
		m.mu.Unlock()
		return verification.InvalidPhone("No phone number on record. Please enter your number again.")
	}
	m.pending = nil
	m.mu.Unlock()

	return m.SendCode(ctx, number)
}

// Cancel clears the pending verification, the stored number and the challenge. Idempotent.
func (m *Manager) Cancel() {
	m.mu.Lock()
	m.gen++
	m.pending = nil
	m.phone = ""
	m.mu.Unlock()

	m.slot.teardown()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		return StateAwaitingCode
	}
	return StateIdle
}

// PhoneNumber is the normalized number on record, if any.
func (m *Manager) PhoneNumber() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phone
}

// ChallengeState reports the lifecycle state of the session's security challenge.
func (m *Manager) ChallengeState() ChallengeState {
	return m.slot.State()
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
