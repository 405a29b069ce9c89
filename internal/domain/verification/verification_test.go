package verification

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		code ProviderCode
		kind Kind
	}{
		{CodeInvalidPhoneNumber, KindInvalidPhone},
		{CodeMissingPhoneNumber, KindInvalidPhone},
		{CodeQuotaExceeded, KindRateLimited},
		{CodeTooManyRequests, KindRateLimited},
		{CodeNetworkRequestFailed, KindNetworkError},
		{CodeInternalError, KindNetworkError},
		{CodeInvalidVerificationCode, KindVerificationFailed},
		{CodeInvalidVerificationID, KindVerificationFailed},
		{CodeCodeExpired, KindTimeout},
		{CodeCaptchaCheckFailed, KindSecurityChallengeFailed},
		{CodeMissingRecaptchaToken, KindSecurityChallengeFailed},
		{CodeInvalidAppCredential, KindProviderConfigurationError},
		{CodeInvalidAPIKey, KindProviderConfigurationError},
		{CodeOperationNotAllowed, KindProviderConfigurationError},
		{CodeUserDisabled, KindVerificationFailed},
		{CodeUnknown, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			got := Classify(tc.code, "raw")
			assert.Equal(t, tc.kind, got.Kind)
			assert.Equal(t, tc.code, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestClassifyUnknownKeepsRawMessage(t *testing.T) {
	got := Classify(ProviderCode("auth/brand-new"), "something odd happened")
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, "something odd happened", got.Message)
}

func TestRateLimitedAndTimeoutCarryRetryAfter(t *testing.T) {
	assert.Equal(t, ProviderThrottleRetryAfter, Classify(CodeTooManyRequests, "").RetryAfter)
	assert.Equal(t, CodeExpiredRetryAfter, Classify(CodeCodeExpired, "").RetryAfter)

	rl := RateLimited(41500 * time.Millisecond)
	assert.Equal(t, 42, rl.RetryAfterSeconds())
	assert.Contains(t, rl.Message, "42 seconds")
}

func TestParseProviderCode(t *testing.T) {
	assert.Equal(t, CodeTooManyRequests, ParseProviderCode("auth/too-many-requests"))
	assert.Equal(t, CodeCodeExpired, ParseProviderCode(" CODE-EXPIRED "))
	assert.Equal(t, CodeUnknown, ParseProviderCode("auth/whatever"))
}

func TestRetryable(t *testing.T) {
	retryable := map[ProviderCode]bool{
		CodeNetworkRequestFailed: true,
		CodeInternalError:        true,
		CodeTooManyRequests:      true,
		CodeOperationNotAllowed:  true,
	}
	all := []ProviderCode{
		CodeInvalidPhoneNumber, CodeMissingPhoneNumber, CodeQuotaExceeded, CodeTooManyRequests,
		CodeNetworkRequestFailed, CodeInternalError, CodeInvalidVerificationCode, CodeInvalidVerificationID,
		CodeCodeExpired, CodeCaptchaCheckFailed, CodeMissingRecaptchaToken, CodeInvalidAppCredential,
		CodeInvalidAPIKey, CodeOperationNotAllowed, CodeUserDisabled, CodeUnknown,
	}
	for _, c := range all {
		assert.Equal(t, retryable[c], c.Retryable(), c)
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	var err error = fmt.Errorf("send: %w", RateLimited(time.Second))

	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestClassifyError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	pe := &ProviderError{Code: CodeNetworkRequestFailed, Message: "NETWORK", Err: cause}

	got := ClassifyError(fmt.Errorf("wrapped: %w", pe))
	require.NotNil(t, got)
	assert.Equal(t, KindNetworkError, got.Kind)
	assert.ErrorIs(t, got, cause)

	already := InvalidPhone("")
	assert.Same(t, already, ClassifyError(already))

	plain := ClassifyError(errors.New("mystery"))
	assert.Equal(t, KindUnknown, plain.Kind)
	assert.Equal(t, "mystery", plain.Message)

	assert.Nil(t, ClassifyError(nil))
}
