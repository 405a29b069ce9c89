package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/ports"

	"golang.org/x/crypto/bcrypt"
)

// Register creates an email/password account and signs it in.
func (service *authService) Register(ctx context.Context, in ports.RegisterInput) (ports.AuthResult, error) {
	role := in.Role
	if role == "" {
		role = user.RolePassenger
	}
	if role.IsAdmin() || !role.Valid() {
		return ports.AuthResult{}, ErrRoleNotAllowed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return ports.AuthResult{}, err
	}

	u, err := user.NewEmailUser(in.Email, in.DisplayName, role, string(hash), nil)
	if err != nil {
		return ports.AuthResult{}, err
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if _, err := service.userRepo.GetByEmail(txCtx, u.Email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, ports.ErrNotFound) {
			return err
		}
		return service.userRepo.CreateUser(txCtx, u)
	})
	if err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			service.logger.Error(ctx, "user_register_failed", "Failed to register user", err, map[string]any{
				"role": role.String(),
			})
		}
		return ports.AuthResult{}, err
	}

	service.logger.Info(ctx, "user_registered", "User registered with email", map[string]any{
		"user_id": u.ID,
		"role":    role.String(),
	})
	return service.signIn(u, true)
}

// Login checks an email/password pair.
func (service *authService) Login(ctx context.Context, in ports.LoginInput) (ports.AuthResult, error) {
	var u *user.User
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		found, err := service.userRepo.GetByEmail(txCtx, strings.ToLower(strings.TrimSpace(in.Email)))
		if err != nil {
			return err
		}
		u = found
		return nil
	})
	if errors.Is(err, ports.ErrNotFound) {
		return ports.AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return ports.AuthResult{}, err
	}

	if !u.HasPassword() {
		return ports.AuthResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return ports.AuthResult{}, ErrInvalidCredentials
	}

	return service.signIn(u, false)
}

// GetProfile returns the caller's profile.
func (service *authService) GetProfile(ctx context.Context, userID string) (ports.UserProfile, error) {
	var out ports.UserProfile
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		u, err := service.userRepo.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		out = profileOf(u)
		return nil
	})
	return out, err
}

// UpdateProfile changes display name and email; the email must not belong to another user.
func (service *authService) UpdateProfile(ctx context.Context, in ports.UpdateProfileInput) (ports.UserProfile, error) {
	var out ports.UserProfile
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		u, err := service.userRepo.GetByID(txCtx, in.UserID)
		if err != nil {
			return err
		}

		if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != u.Email {
			other, err := service.userRepo.GetByEmail(txCtx, email)
			switch {
			case err == nil && other.ID != u.ID:
				return ErrEmailTaken
			case err != nil && !errors.Is(err, ports.ErrNotFound):
				return err
			}
		}

		if err := u.UpdateProfile(in.DisplayName, in.Email); err != nil {
			return err
		}
		if err := service.userRepo.UpdateProfile(txCtx, u); err != nil {
			return err
		}
		out = profileOf(u)
		return nil
	})
	return out, err
}

// IssueToken mints a token without a sign-in; mounted only for development.
func (service *authService) IssueToken(ctx context.Context, userID string, role user.Role) (ports.TokenResult, error) {
	token, claims, err := service.jwtMgr.IssueUserToken(userID, role)
	if err != nil {
		return ports.TokenResult{}, err
	}
	service.logger.Info(ctx, "token_generated", "JWT token generated successfully", map[string]any{
		"user_id": userID,
		"role":    role.String(),
		"ttl_s":   int(service.jwtMgr.TTL() / time.Second),
	})
	return ports.TokenResult{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}
