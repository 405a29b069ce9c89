package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/domain/verification"
	"ride-booking/internal/ports"
	"ride-booking/internal/software/auth/service"
	"ride-booking/internal/software/auth/session"

	"github.com/jackc/pgx/v5/pgconn"
)

// verificationStatus maps each verification kind to its HTTP status.
var verificationStatus = map[verification.Kind]int{
	verification.KindInvalidPhone:               http.StatusBadRequest,
	verification.KindVerificationFailed:         http.StatusBadRequest,
	verification.KindRateLimited:                http.StatusTooManyRequests,
	verification.KindTimeout:                    http.StatusGone,
	verification.KindSecurityChallengeFailed:    http.StatusForbidden,
	verification.KindNetworkError:               http.StatusServiceUnavailable,
	verification.KindProviderConfigurationError: http.StatusInternalServerError,
	verification.KindUnknown:                    http.StatusBadGateway,
}

type verificationErrorBody struct {
	Error             string `json:"error"`
	Kind              string `json:"kind"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// serviceError renders err with the status its type implies.
func (handler *AuthHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	if ve, ok := verification.As(err); ok {
		handler.verificationError(ctx, w, ve)
		return
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
	case errors.Is(err, session.ErrVerifyInFlight):
		handler.httpError(ctx, w, http.StatusConflict, "verification already in progress", err)
	case errors.Is(err, session.ErrCanceled):
		handler.httpError(ctx, w, http.StatusConflict, "verification was canceled", err)
	case errors.Is(err, service.ErrMissingSession):
		handler.httpError(ctx, w, http.StatusBadRequest, sessionHeader+" header is required", err)
	case errors.Is(err, service.ErrInvalidCredentials):
		handler.httpError(ctx, w, http.StatusUnauthorized, err.Error(), err)
	case errors.Is(err, service.ErrAccountDisabled), errors.Is(err, service.ErrRoleNotAllowed):
		handler.httpError(ctx, w, http.StatusForbidden, err.Error(), err)
	case errors.Is(err, service.ErrEmailTaken):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)
	case errors.Is(err, ports.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "user not found", err)
	case errors.Is(err, user.ErrInvalidEmail), errors.Is(err, user.ErrInvalidPhone),
		errors.Is(err, user.ErrDisplayNameTooLong), errors.Is(err, user.ErrInvalidRole):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		handler.httpError(ctx, w, http.StatusGatewayTimeout, "request timed out", err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

// verificationError renders only the classified message, never the underlying cause.
func (handler *AuthHTTPHandler) verificationError(ctx context.Context, w http.ResponseWriter, ve *verification.Error) {
	status, ok := verificationStatus[ve.Kind]
	if !ok {
		status = http.StatusBadGateway
	}

	body := verificationErrorBody{Error: ve.Message, Kind: ve.Kind.String()}
	if ve.Kind == verification.KindRateLimited || ve.Kind == verification.KindTimeout {
		body.RetryAfterSeconds = ve.RetryAfterSeconds()
	}
	if ve.Kind == verification.KindRateLimited && body.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}

	details := map[string]any{"kind": ve.Kind.String(), "status": status}
	if status >= 500 {
		handler.logger.Error(ctx, "verification_failed", "Phone verification failed", ve, details)
	} else {
		handler.logger.Warn(ctx, "verification_rejected", ve.Message, details)
	}
	handler.jsonResponse(ctx, w, status, body)
}
