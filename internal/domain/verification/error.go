package verification

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Error is a classified phone-verification failure. Message is safe to show to end users.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration // set for RateLimited and Timeout
	Code       ProviderCode  // provider code that produced this error, if any
	Err        error         // underlying cause, never rendered
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel so callers can write errors.Is(err, verification.ErrRateLimited).
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// As extracts a *Error from err.
func As(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	if ve, ok := As(err); ok {
		return ve.Kind
	}
	return KindUnknown
}

// ----- constructors -----

func InvalidPhone(msg string) *Error {
	if msg == "" {
		msg = "Please enter a valid phone number including country code."
	}
	return &Error{Kind: KindInvalidPhone, Message: msg}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("Too many attempts. Please wait %d seconds before requesting a new code.", secondsCeil(retryAfter)),
		RetryAfter: retryAfter,
	}
}

func SecurityChallengeFailed(cause error) *Error {
	return &Error{
		Kind:    KindSecurityChallengeFailed,
		Message: "Security verification failed. Please complete the challenge again.",
		Err:     cause,
	}
}

func NetworkError(cause error) *Error {
	return &Error{
		Kind:    KindNetworkError,
		Message: "Network problem. Check your connection and try again.",
		Err:     cause,
	}
}

func VerificationFailed(msg string) *Error {
	if msg == "" {
		msg = "The verification code is incorrect. Please try again."
	}
	return &Error{Kind: KindVerificationFailed, Message: msg}
}

func Timeout(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindTimeout,
		Message:    "The verification code has expired. Please request a new one.",
		RetryAfter: retryAfter,
	}
}

func secondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
