package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// sessionHeader carries the client's sign-in session id.
	sessionHeader = "X-Session-ID"
	// defaultPhoneTimeout applies when no call timeout is configured.
	defaultPhoneTimeout = 40 * time.Second
	requestTimeout      = 5 * time.Second
)

// AuthHTTPHandler adapts HTTP requests to the AuthService.
type AuthHTTPHandler struct {
	svc          ports.AuthService
	logger       *logger.Logger
	auth         *jwt.Manager
	validate     *validator.Validate
	issueTokens  bool
	phoneTimeout time.Duration
}

// NewAuthHTTPHandler wires an HTTP handler around the AuthService. issueTokens mounts the
// development-only POST /tokens endpoint. phoneTimeout bounds each phone sign-in call and
// should cover the provider's full retry budget.
func NewAuthHTTPHandler(svc ports.AuthService, logger *logger.Logger, auth *jwt.Manager, issueTokens bool, phoneTimeout time.Duration) *AuthHTTPHandler {
	if phoneTimeout <= 0 {
		phoneTimeout = defaultPhoneTimeout
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names in validation errors
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &AuthHTTPHandler{svc: svc, logger: logger, auth: auth, validate: v, issueTokens: issueTokens, phoneTimeout: phoneTimeout}
}

// RegisterRoutes mounts auth endpoints on the provided mux.
func (handler *AuthHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/phone/send", handler.handleSendCode)
	mux.HandleFunc("POST /auth/phone/resend", handler.handleResendCode)
	mux.HandleFunc("POST /auth/phone/verify", handler.handleVerifyCode)
	mux.HandleFunc("POST /auth/phone/cancel", handler.handleCancel)

	mux.HandleFunc("POST /auth/register", handler.handleRegister)
	mux.HandleFunc("POST /auth/login", handler.handleLogin)

	mux.HandleFunc("GET /profile",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger, user.RoleDriver, user.RoleAdmin)(handler.handleGetProfile),
	)
	mux.HandleFunc("PUT /profile",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger, user.RoleDriver, user.RoleAdmin)(handler.handleUpdateProfile),
	)

	if handler.issueTokens {
		mux.HandleFunc("POST /tokens", handler.handleCreateToken)
	}
	mux.HandleFunc("GET /auth/health", handler.handleHealth)
}

// ----- general helpers -----

// decodeJSON strictly decodes and validates the request body into dst. On failure it has
// already written the response.
func (handler *AuthHTTPHandler) decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return false
	}

	if err := handler.validate.Struct(dst); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, validationMessage(err), err)
		return false
	}
	return true
}

// validationMessage renders the first failed rule as "<field> failed <rule>".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fe.Field() + " failed " + fe.Tag() + "=" + fe.Param()
		}
		return fe.Field() + " failed " + fe.Tag()
	}
	return "invalid request"
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *AuthHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *AuthHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *AuthHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// ----- Handler: GET /auth/health -----

func (handler *AuthHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "auth-service",
	})
}
