package service

import (
	"errors"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/jwt"
	"ride-booking/internal/general/logger"
	"ride-booking/internal/ports"
	"ride-booking/internal/software/auth/session"
)

var (
	ErrMissingSession     = errors.New("session id is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrAccountDisabled    = errors.New("account is not active")
	ErrRoleNotAllowed     = errors.New("role cannot be self-registered")
)

// authService encapsulates phone and email sign-in and its dependencies.
type authService struct {
	logger         *logger.Logger
	uow            ports.UnitOfWork
	userRepo       ports.UserRepository
	auditRepo      ports.VerificationEventRepository
	sessions       *session.Store
	jwtMgr         *jwt.Manager
	defaultCountry string
}

// NewAuthService creates a new instance of the AuthService with the provided dependencies.
// The service owns sessions and closes it in Close.
func NewAuthService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	userRepo ports.UserRepository,
	auditRepo ports.VerificationEventRepository,
	sessions *session.Store,
	jwtMgr *jwt.Manager,
	defaultCountry string,
) ports.AuthService {
	return &authService{
		logger:         logger,
		uow:            uow,
		userRepo:       userRepo,
		auditRepo:      auditRepo,
		sessions:       sessions,
		jwtMgr:         jwtMgr,
		defaultCountry: defaultCountry,
	}
}

// Close cancels every pending phone verification.
func (service *authService) Close() {
	service.sessions.Close()
}

// profileOf maps a user entity to its public view.
func profileOf(u *user.User) ports.UserProfile {
	return ports.UserProfile{
		ID:          u.ID,
		Email:       u.Email,
		PhoneNumber: u.Phone,
		DisplayName: u.DisplayName,
		Role:        u.Role.String(),
		Status:      u.Status.String(),
		CreatedAt:   u.CreatedAt,
	}
}

// signIn issues an access token for u.
func (service *authService) signIn(u *user.User, isNew bool) (ports.AuthResult, error) {
	if !u.IsActive() {
		return ports.AuthResult{}, ErrAccountDisabled
	}
	token, claims, err := service.jwtMgr.IssueUserToken(u.ID, u.Role)
	if err != nil {
		return ports.AuthResult{}, err
	}
	return ports.AuthResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		IsNewUser: isNew,
		User:      profileOf(u),
	}, nil
}
