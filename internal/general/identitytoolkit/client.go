// Package identitytoolkit is a phone sign-in client for the Google Identity Toolkit REST API.
package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ride-booking/internal/domain/verification"
	"ride-booking/internal/general/config"
	"ride-booking/internal/ports"
)

// Client implements ports.PhoneAuthProvider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ ports.PhoneAuthProvider = (*Client)(nil)

// New builds a client from the phone_auth config section. A nil httpClient gets a default
// one with cfg.RequestTimeout.
func New(cfg config.PhoneAuthConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
	}
}

type sendCodeRequest struct {
	PhoneNumber    string `json:"phoneNumber"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
}

type sendCodeResponse struct {
	SessionInfo string `json:"sessionInfo"`
}

type signInRequest struct {
	SessionInfo string `json:"sessionInfo"`
	Code        string `json:"code"`
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	LocalID      string `json:"localId"`
	IsNewUser    bool   `json:"isNewUser"`
	PhoneNumber  string `json:"phoneNumber"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendCode asks the provider to text a code to phoneNumber.
func (c *Client) SendCode(ctx context.Context, phoneNumber, challengeToken string) (ports.Confirmation, error) {
	var out sendCodeResponse
	if err := c.call(ctx, "accounts:sendVerificationCode", sendCodeRequest{
		PhoneNumber:    phoneNumber,
		RecaptchaToken: challengeToken,
	}, &out); err != nil {
		return nil, err
	}
	if out.SessionInfo == "" {
		return nil, &verification.ProviderError{Code: verification.CodeInternalError, Message: "empty sessionInfo in response"}
	}
	return &confirmation{client: c, sessionInfo: out.SessionInfo, phone: phoneNumber}, nil
}

type confirmation struct {
	client      *Client
	sessionInfo string
	phone       string
}

// Confirm exchanges the code for a signed-in identity.
func (cf *confirmation) Confirm(ctx context.Context, code string) (*ports.PhoneIdentity, error) {
	var out signInResponse
	if err := cf.client.call(ctx, "accounts:signInWithPhoneNumber", signInRequest{
		SessionInfo: cf.sessionInfo,
		Code:        code,
	}, &out); err != nil {
		return nil, err
	}

	number := out.PhoneNumber
	if number == "" {
		number = cf.phone
	}
	return &ports.PhoneIdentity{
		ProviderUserID: out.LocalID,
		PhoneNumber:    number,
		IDToken:        out.IDToken,
		RefreshToken:   out.RefreshToken,
		IsNewUser:      out.IsNewUser,
	}, nil
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	if c.apiKey == "" {
		return &verification.ProviderError{Code: verification.CodeInvalidAPIKey, Message: "no API key configured"}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("identitytoolkit: encode %s: %w", method, err)
	}

	endpoint := c.baseURL + "/" + method + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("identitytoolkit: build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &verification.ProviderError{Code: verification.CodeNetworkRequestFailed, Message: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &verification.ProviderError{Code: verification.CodeNetworkRequestFailed, Message: "read response", Err: err}
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &verification.ProviderError{Code: verification.CodeInternalError, Message: "malformed response", Err: err}
	}
	return nil
}

// decodeError turns {"error":{"message":"CODE : detail"}} into a ProviderError.
func decodeError(status int, raw []byte) error {
	var er errorResponse
	_ = json.Unmarshal(raw, &er)

	msg := strings.TrimSpace(er.Error.Message)
	serverCode, detail, _ := strings.Cut(msg, ":")
	serverCode = strings.TrimSpace(serverCode)

	code := mapServerCode(serverCode)
	if code == verification.CodeUnknown && status >= 500 {
		code = verification.CodeInternalError
	}
	if code == verification.CodeUnknown && strings.Contains(msg, "API key not valid") {
		code = verification.CodeInvalidAPIKey
	}

	text := strings.TrimSpace(detail)
	if text == "" {
		text = msg
	}
	if text == "" {
		text = http.StatusText(status)
	}
	return &verification.ProviderError{Code: code, Message: text}
}

func mapServerCode(s string) verification.ProviderCode {
	switch s {
	case "INVALID_PHONE_NUMBER":
		return verification.CodeInvalidPhoneNumber
	case "MISSING_PHONE_NUMBER":
		return verification.CodeMissingPhoneNumber
	case "QUOTA_EXCEEDED":
		return verification.CodeQuotaExceeded
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return verification.CodeTooManyRequests
	case "INVALID_CODE", "MISSING_CODE":
		return verification.CodeInvalidVerificationCode
	case "INVALID_SESSION_INFO", "MISSING_SESSION_INFO":
		return verification.CodeInvalidVerificationID
	case "SESSION_EXPIRED":
		return verification.CodeCodeExpired
	case "CAPTCHA_CHECK_FAILED":
		return verification.CodeCaptchaCheckFailed
	case "MISSING_RECAPTCHA_TOKEN":
		return verification.CodeMissingRecaptchaToken
	case "INVALID_APP_CREDENTIAL", "MISSING_APP_CREDENTIAL":
		return verification.CodeInvalidAppCredential
	case "API_KEY_INVALID", "INVALID_API_KEY":
		return verification.CodeInvalidAPIKey
	case "OPERATION_NOT_ALLOWED":
		return verification.CodeOperationNotAllowed
	case "USER_DISABLED":
		return verification.CodeUserDisabled
	case "INTERNAL_ERROR":
		return verification.CodeInternalError
	default:
		return verification.CodeUnknown
	}
}
