package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/ports"
)

// --- Request DTOs (HTTP boundary) ---

type registerRequest struct {
	Email       string `json:"email" validate:"required,email,max=100"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=80"`
	Role        string `json:"role" validate:"omitempty,oneof=PASSENGER DRIVER passenger driver"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"max=80"`
	Email       string `json:"email" validate:"omitempty,email,max=100"`
}

type tokenRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Role   string `json:"role" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

// ----- Handler: POST /auth/register -----

func (handler *AuthHTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req registerRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	var role user.Role
	if req.Role != "" {
		parsed, err := user.ParseRole(req.Role)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "role must be one of: PASSENGER, DRIVER", err)
			return
		}
		role = parsed
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.Register(ctxWithTimeout, ports.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        role,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, res)
}

// ----- Handler: POST /auth/login -----

func (handler *AuthHTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req loginRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.Login(ctxWithTimeout, ports.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /profile -----

func (handler *AuthHTTPHandler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.GetProfile(ctxWithTimeout, claims.Subject)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: PUT /profile -----

func (handler *AuthHTTPHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	var req updateProfileRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.svc.UpdateProfile(ctxWithTimeout, ports.UpdateProfileInput{
		UserID:      claims.Subject,
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: POST /tokens -----

func (handler *AuthHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req tokenRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	role, err := user.ParseRole(req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "role must be one of: PASSENGER, DRIVER, ADMIN", err)
		return
	}

	res, err := handler.svc.IssueToken(ctx, strings.TrimSpace(req.UserID), role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, tokenResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		UserID:    strings.TrimSpace(req.UserID),
		Role:      role,
	})
}
