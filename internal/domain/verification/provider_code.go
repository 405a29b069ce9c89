package verification

import (
	"errors"
	"strings"
	"time"
)

// ProviderCode is the closed set of identity-provider error codes the sign-in flow understands.
type ProviderCode string

const (
	CodeInvalidPhoneNumber      ProviderCode = "invalid-phone-number"
	CodeMissingPhoneNumber      ProviderCode = "missing-phone-number"
	CodeQuotaExceeded           ProviderCode = "quota-exceeded"
	CodeTooManyRequests         ProviderCode = "too-many-requests"
	CodeNetworkRequestFailed    ProviderCode = "network-request-failed"
	CodeInternalError           ProviderCode = "internal-error"
	CodeInvalidVerificationCode ProviderCode = "invalid-verification-code"
	CodeInvalidVerificationID   ProviderCode = "invalid-verification-id"
	CodeCodeExpired             ProviderCode = "code-expired"
	CodeCaptchaCheckFailed      ProviderCode = "captcha-check-failed"
	CodeMissingRecaptchaToken   ProviderCode = "missing-recaptcha-token"
	CodeInvalidAppCredential    ProviderCode = "invalid-app-credential"
	CodeInvalidAPIKey           ProviderCode = "invalid-api-key"
	CodeOperationNotAllowed     ProviderCode = "operation-not-allowed"
	CodeUserDisabled            ProviderCode = "user-disabled"
	CodeUnknown                 ProviderCode = "unknown"
)

// Suggested waits attached to provider-originated RateLimited and Timeout errors.
const (
	CodeExpiredRetryAfter      = 60 * time.Second
	ProviderThrottleRetryAfter = 60 * time.Second
)

// ParseProviderCode maps a raw code (case-insensitive, optional "auth/" prefix) into the closed enum.
func ParseProviderCode(raw string) ProviderCode {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "auth/")
	switch c := ProviderCode(s); c {
	case CodeInvalidPhoneNumber, CodeMissingPhoneNumber, CodeQuotaExceeded, CodeTooManyRequests,
		CodeNetworkRequestFailed, CodeInternalError, CodeInvalidVerificationCode, CodeInvalidVerificationID,
		CodeCodeExpired, CodeCaptchaCheckFailed, CodeMissingRecaptchaToken, CodeInvalidAppCredential,
		CodeInvalidAPIKey, CodeOperationNotAllowed, CodeUserDisabled:
		return c
	default:
		return CodeUnknown
	}
}

// Retryable reports whether a send that failed with code may be retried after resetting the challenge.
func (code ProviderCode) Retryable() bool {
	switch code {
	case CodeNetworkRequestFailed, CodeInternalError, CodeTooManyRequests, CodeOperationNotAllowed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the ProviderCode.
func (code ProviderCode) String() string {
	return string(code)
}

// ProviderError is what provider adapters return; Classify turns it into an *Error.
type ProviderError struct {
	Code    ProviderCode
	Message string // raw provider message, kept for logs and the Unknown kind
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return "provider: " + string(e.Code)
	}
	return "provider: " + string(e.Code) + ": " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Classify maps a provider code to the user-facing taxonomy. The switch is exhaustive over
// ProviderCode; anything unexpected falls through to Unknown carrying the raw message.
func Classify(code ProviderCode, rawMessage string) *Error {
	var out *Error
	switch code {
	case CodeInvalidPhoneNumber, CodeMissingPhoneNumber:
		out = InvalidPhone("")
	case CodeQuotaExceeded, CodeTooManyRequests:
		out = &Error{
			Kind:       KindRateLimited,
			Message:    "Too many attempts. Please try again later.",
			RetryAfter: ProviderThrottleRetryAfter,
		}
	case CodeNetworkRequestFailed:
		out = NetworkError(nil)
	case CodeInternalError:
		out = &Error{Kind: KindNetworkError, Message: "The verification service is temporarily unavailable. Please try again."}
	case CodeInvalidVerificationCode:
		out = VerificationFailed("")
	case CodeInvalidVerificationID:
		out = VerificationFailed("This verification session is no longer valid. Please request a new code.")
	case CodeCodeExpired:
		out = Timeout(CodeExpiredRetryAfter)
	case CodeCaptchaCheckFailed, CodeMissingRecaptchaToken:
		out = SecurityChallengeFailed(nil)
	case CodeInvalidAppCredential, CodeInvalidAPIKey, CodeOperationNotAllowed:
		out = &Error{Kind: KindProviderConfigurationError, Message: "Phone sign-in is not available right now. Please try another sign-in method."}
	case CodeUserDisabled:
		out = VerificationFailed("This account has been disabled.")
	case CodeUnknown:
		out = unknown(rawMessage)
	default:
		out = unknown(rawMessage)
	}
	out.Code = code
	return out
}

// ClassifyError classifies any error returned by a provider adapter.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	if ve, ok := As(err); ok {
		return ve
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		out := Classify(pe.Code, pe.Message)
		out.Err = err
		return out
	}
	out := unknown(err.Error())
	out.Code = CodeUnknown
	out.Err = err
	return out
}

func unknown(raw string) *Error {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		msg = "Something went wrong. Please try again."
	}
	return &Error{Kind: KindUnknown, Message: msg}
}
