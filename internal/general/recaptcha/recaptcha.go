// Package recaptcha adapts reCAPTCHA siteverify to the SecurityChallenge capability.
//
// The client solves the challenge in the app and sends the response token with the request;
// handlers put it in the context with WithResponseToken, and Render picks it up from there.
package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"ride-booking/internal/general/config"
	"ride-booking/internal/ports"

	"github.com/jellydator/ttlcache/v3"
)

// maxVerifiedTokens bounds the verified-token set; the oldest entries go first.
const maxVerifiedTokens = 4096

var (
	ErrMissingToken   = errors.New("recaptcha: missing response token")
	ErrNotInitialized = errors.New("recaptcha: challenge not initialized")
	ErrCleared        = errors.New("recaptcha: challenge already cleared")
	ErrExpired        = errors.New("recaptcha: challenge expired")
	ErrRejected       = errors.New("recaptcha: challenge rejected")
)

type ctxKey struct{}

// WithResponseToken attaches the client-supplied challenge response to ctx.
func WithResponseToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(token))
}

// ResponseToken returns the token attached with WithResponseToken.
func ResponseToken(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// Verifier holds the site secret and builds per-session challenges.
type Verifier struct {
	secret     string
	verifyURL  string
	ttl        time.Duration
	httpClient *http.Client
	now        func() time.Time

	// tokens already accepted by siteverify; a retried send reuses the same token
	verified *ttlcache.Cache[string, struct{}]
}

// NewVerifier builds a Verifier. With an empty secret, tokens are passed through unverified
// and the identity provider remains the only check.
func NewVerifier(cfg config.RecaptchaConfig, httpClient *http.Client) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Verifier{
		secret:     strings.TrimSpace(cfg.SecretKey),
		verifyURL:  cfg.VerifyURL,
		ttl:        ttl,
		httpClient: httpClient,
		now:        time.Now,
		verified: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](ttl),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
			ttlcache.WithCapacity[string, struct{}](maxVerifiedTokens),
		),
	}
}

// Factory returns a ports.ChallengeFactory producing challenges backed by v.
func (v *Verifier) Factory() ports.ChallengeFactory {
	return func(containerID string) ports.SecurityChallenge {
		return &Challenge{verifier: v, containerID: containerID}
	}
}

type state int

const (
	stateNew state = iota
	stateReady
	stateExpired
	stateErrored
	stateCleared
)

// Challenge is one mounted reCAPTCHA instance.
type Challenge struct {
	verifier    *Verifier
	containerID string

	mu        sync.Mutex
	state     state
	readyAt   time.Time
	onExpired func()
	onError   func(error)
}

// ContainerID is the host container this challenge was mounted into.
func (c *Challenge) ContainerID() string { return c.containerID }

func (c *Challenge) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateCleared {
		return ErrCleared
	}
	c.state = stateReady
	c.readyAt = c.verifier.now()
	return nil
}

func (c *Challenge) OnExpired(fn func()) {
	c.mu.Lock()
	c.onExpired = fn
	c.mu.Unlock()
}

func (c *Challenge) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Clear tears the challenge down; it cannot be initialized again.
func (c *Challenge) Clear() {
	c.mu.Lock()
	c.state = stateCleared
	c.onExpired = nil
	c.onError = nil
	c.mu.Unlock()
}

// Render returns the verified response token for this attempt.
func (c *Challenge) Render(ctx context.Context) (string, error) {
	c.mu.Lock()
	st, readyAt := c.state, c.readyAt
	c.mu.Unlock()

	switch st {
	case stateCleared:
		return "", ErrCleared
	case stateNew:
		return "", ErrNotInitialized
	case stateExpired:
		return "", ErrExpired
	}

	if c.verifier.now().Sub(readyAt) > c.verifier.ttl {
		c.expire()
		return "", ErrExpired
	}

	token := ResponseToken(ctx)
	if token == "" {
		c.fail(ErrMissingToken)
		return "", ErrMissingToken
	}
	if c.verifier.secret == "" {
		return token, nil
	}
	c.verifier.verified.DeleteExpired()
	if c.verifier.verified.Has(token) {
		return token, nil
	}

	res, err := c.verifier.siteverify(ctx, token)
	if err != nil {
		c.fail(err)
		return "", err
	}
	if !res.Success {
		if slices.Contains(res.ErrorCodes, "timeout-or-duplicate") {
			c.expire()
			return "", ErrExpired
		}
		err := fmt.Errorf("%w: %s", ErrRejected, strings.Join(res.ErrorCodes, ","))
		c.fail(err)
		return "", err
	}
	c.verifier.verified.Set(token, struct{}{}, ttlcache.DefaultTTL)
	return token, nil
}

func (c *Challenge) expire() {
	c.mu.Lock()
	if c.state == stateCleared {
		c.mu.Unlock()
		return
	}
	c.state = stateExpired
	fn := c.onExpired
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Challenge) fail(err error) {
	c.mu.Lock()
	if c.state == stateCleared {
		c.mu.Unlock()
		return
	}
	c.state = stateErrored
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

type siteverifyResponse struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

func (v *Verifier) siteverify(ctx context.Context, token string) (*siteverifyResponse, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("recaptcha: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recaptcha: siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recaptcha: siteverify status %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("recaptcha: decode: %w", err)
	}
	return &out, nil
}
