package handler

import (
	"context"
	"net/http"
	"strings"

	"ride-booking/internal/ports"

	"github.com/google/uuid"
)

// --- Request DTOs (HTTP boundary) ---

type sendCodeRequest struct {
	PhoneNumber    string `json:"phone_number" validate:"required,max=32"`
	ChallengeToken string `json:"challenge_token" validate:"max=4096"`
}

type resendCodeRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"max=4096"`
}

type verifyCodeRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

// ----- Handler: POST /auth/phone/send -----

// handleSendCode starts a verification. A missing session id is minted and echoed back in
// the X-Session-ID response header.
func (handler *AuthHTTPHandler) handleSendCode(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req sendCodeRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	w.Header().Set(sessionHeader, sessionID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, handler.phoneTimeout)
	defer cancel()

	res, err := handler.svc.SendCode(ctxWithTimeout, ports.SendCodeInput{
		SessionID:      sessionID,
		PhoneNumber:    req.PhoneNumber,
		ChallengeToken: req.ChallengeToken,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusAccepted, res)
}

// ----- Handler: POST /auth/phone/resend -----

func (handler *AuthHTTPHandler) handleResendCode(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req resendCodeRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, handler.phoneTimeout)
	defer cancel()

	res, err := handler.svc.ResendCode(ctxWithTimeout, ports.ResendCodeInput{
		SessionID:      r.Header.Get(sessionHeader),
		ChallengeToken: req.ChallengeToken,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusAccepted, res)
}

// ----- Handler: POST /auth/phone/verify -----

func (handler *AuthHTTPHandler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req verifyCodeRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, handler.phoneTimeout)
	defer cancel()

	res, err := handler.svc.VerifyCode(ctxWithTimeout, ports.VerifyCodeInput{
		SessionID: r.Header.Get(sessionHeader),
		Code:      req.Code,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: POST /auth/phone/cancel -----

func (handler *AuthHTTPHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if err := handler.svc.CancelVerification(ctx, r.Header.Get(sessionHeader)); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
