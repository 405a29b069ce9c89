package verification

import "errors"

// Kind is the closed set of failure categories surfaced to callers of the phone sign-in flow.
type Kind string

const (
	KindInvalidPhone               Kind = "invalid_phone"
	KindRateLimited                Kind = "rate_limited"
	KindSecurityChallengeFailed    Kind = "security_challenge_failed"
	KindNetworkError               Kind = "network_error"
	KindProviderConfigurationError Kind = "provider_configuration_error"
	KindVerificationFailed         Kind = "verification_failed"
	KindTimeout                    Kind = "timeout"
	KindUnknown                    Kind = "unknown"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrInvalidPhone            = errors.New("invalid phone number")
	ErrRateLimited             = errors.New("rate limited")
	ErrSecurityChallengeFailed = errors.New("security challenge failed")
	ErrNetwork                 = errors.New("network error")
	ErrProviderConfiguration   = errors.New("provider configuration error")
	ErrVerificationFailed      = errors.New("verification failed")
	ErrTimeout                 = errors.New("verification timed out")
	ErrUnknown                 = errors.New("unknown verification error")
)

// Valid reports whether kind is one of the declared kinds.
func (kind Kind) Valid() bool {
	switch kind {
	case KindInvalidPhone, KindRateLimited, KindSecurityChallengeFailed, KindNetworkError,
		KindProviderConfigurationError, KindVerificationFailed, KindTimeout, KindUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Kind.
func (kind Kind) String() string {
	return string(kind)
}

func (kind Kind) sentinel() error {
	switch kind {
	case KindInvalidPhone:
		return ErrInvalidPhone
	case KindRateLimited:
		return ErrRateLimited
	case KindSecurityChallengeFailed:
		return ErrSecurityChallengeFailed
	case KindNetworkError:
		return ErrNetwork
	case KindProviderConfigurationError:
		return ErrProviderConfiguration
	case KindVerificationFailed:
		return ErrVerificationFailed
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrUnknown
	}
}
