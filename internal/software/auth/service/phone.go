package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ride-booking/internal/domain/phone"
	"ride-booking/internal/domain/user"
	"ride-booking/internal/domain/verification"
	"ride-booking/internal/general/metrics"
	"ride-booking/internal/general/recaptcha"
	"ride-booking/internal/ports"
	"ride-booking/internal/software/auth/session"
)

const (
	actionSend   = "send"
	actionResend = "resend"
	actionVerify = "verify"
)

// SendCode starts a phone verification for the caller's session.
func (service *authService) SendCode(ctx context.Context, in ports.SendCodeInput) (ports.SendCodeResult, error) {
	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		return ports.SendCodeResult{}, ErrMissingSession
	}
	m := service.sessions.Get(id)

	masked := phone.Mask(phone.Normalize(in.PhoneNumber, service.defaultCountry))
	err := m.SendCode(recaptcha.WithResponseToken(ctx, in.ChallengeToken), in.PhoneNumber)
	service.recordOutcome(ctx, actionSend, masked, err)
	if err != nil {
		return ports.SendCodeResult{}, err
	}

	return ports.SendCodeResult{
		State:       string(m.State()),
		PhoneNumber: masked,
		Message:     "Verification code sent.",
	}, nil
}

// ResendCode sends a fresh code to the number already on record for the session.
func (service *authService) ResendCode(ctx context.Context, in ports.ResendCodeInput) (ports.SendCodeResult, error) {
	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		return ports.SendCodeResult{}, ErrMissingSession
	}
	m, ok := service.sessions.Lookup(id)
	if !ok {
		err := verification.InvalidPhone("No phone number on record. Please enter your number again.")
		service.recordOutcome(ctx, actionResend, "", err)
		return ports.SendCodeResult{}, err
	}

	masked := phone.Mask(m.PhoneNumber())
	err := m.ResendCode(recaptcha.WithResponseToken(ctx, in.ChallengeToken))
	service.recordOutcome(ctx, actionResend, masked, err)
	if err != nil {
		return ports.SendCodeResult{}, err
	}

	return ports.SendCodeResult{
		State:       string(m.State()),
		PhoneNumber: masked,
		Message:     "A new verification code was sent.",
	}, nil
}

// VerifyCode confirms the code, then finds or creates the passenger owning the number.
func (service *authService) VerifyCode(ctx context.Context, in ports.VerifyCodeInput) (ports.AuthResult, error) {
	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		return ports.AuthResult{}, ErrMissingSession
	}
	m, ok := service.sessions.Lookup(id)
	if !ok {
		return ports.AuthResult{}, verification.VerificationFailed("No verification in progress. Please request a new code.")
	}

	number := m.PhoneNumber()
	identity, err := m.VerifyCode(ctx, in.Code)
	if errors.Is(err, session.ErrVerifyInFlight) {
		return ports.AuthResult{}, err
	}
	service.recordOutcome(ctx, actionVerify, phone.Mask(number), err)
	if err != nil {
		return ports.AuthResult{}, err
	}
	if identity.PhoneNumber != "" {
		number = identity.PhoneNumber
	}

	var (
		u     *user.User
		isNew bool
	)
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		existing, err := service.userRepo.GetByPhone(txCtx, number)
		if err == nil {
			u = existing
			return nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return err
		}

		created, err := user.NewPhoneUser(number, user.RolePassenger)
		if err != nil {
			return err
		}
		if identity.ProviderUserID != "" {
			created.Attrs["provider_user_id"] = identity.ProviderUserID
		}
		if err := service.userRepo.CreateUser(txCtx, created); err != nil {
			return err
		}
		u, isNew = created, true
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "phone_user_upsert_failed", "Failed to find or create phone user", err, map[string]any{
			"phone": phone.Mask(number),
		})
		return ports.AuthResult{}, err
	}

	service.sessions.Drop(id)

	res, err := service.signIn(u, isNew)
	if err != nil {
		return ports.AuthResult{}, err
	}
	service.logger.Info(ctx, "phone_sign_in", "User signed in with phone number", map[string]any{
		"user_id":  u.ID,
		"new_user": isNew,
	})
	return res, nil
}

// CancelVerification abandons the session's pending verification. Unknown sessions are ignored.
func (service *authService) CancelVerification(ctx context.Context, sessionID string) error {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return ErrMissingSession
	}
	if _, ok := service.sessions.Lookup(id); !ok {
		return nil
	}
	service.sessions.Drop(id)
	service.logger.Debug(ctx, "otp_canceled", "Phone verification canceled", nil)
	return nil
}

// recordOutcome counts the outcome and appends it to the audit table. Audit failures are logged only.
func (service *authService) recordOutcome(ctx context.Context, action, masked string, err error) {
	outcome, kind := "success", ""
	if err != nil {
		outcome, kind = "failure", verification.KindOf(err).String()
	}

	label := kind
	switch {
	case err == nil && action == actionVerify:
		label = "verified"
	case err == nil:
		label = "sent"
	}
	if action == actionVerify {
		metrics.OTPVerifyTotal.WithLabelValues(label).Inc()
	} else {
		metrics.OTPSendTotal.WithLabelValues(label).Inc()
	}

	if err != nil {
		service.logger.Warn(ctx, "otp_"+action+"_failed", "Phone verification step failed", map[string]any{
			"phone": masked,
			"kind":  kind,
		})
	}

	if masked == "" {
		masked = "unknown"
	}
	event := ports.VerificationEvent{
		PhoneMasked: masked,
		Action:      action,
		Outcome:     outcome,
		Kind:        kind,
		CreatedAt:   time.Now().UTC(),
	}
	if err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.auditRepo.Append(txCtx, event)
	}); err != nil {
		service.logger.Error(ctx, "otp_audit_failed", "Failed to append verification event", err, map[string]any{
			"action": action,
		})
	}
}
