package user

import (
	"errors"
	"maps"
	"net/mail"
	"strings"
	"time"

	"ride-booking/internal/domain/phone"
)

// Attrs mirrors the JSONB 'attrs' column for extensible per-user attributes.
type Attrs map[string]any

// User is the domain entity corresponding to the `users` table. A user signs in with a
// verified phone number, an email/password pair, or both.
type User struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Email        string
	Phone        string
	DisplayName  string
	Role         Role
	Status       Status
	PasswordHash string
	Attrs        Attrs
}

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidPhone       = errors.New("phone number must be in E.164 format")
	ErrNoIdentity         = errors.New("user needs an email or a phone number")
	ErrEmptyPasswordHash  = errors.New("password hash cannot be empty")
	ErrDisplayNameTooLong = errors.New("display name must be at most 80 characters")
	ErrBadTimestamps      = errors.New("updated_at cannot be before created_at")
)

// NewPhoneUser constructs a user identified by a verified E.164 phone number.
func NewPhoneUser(phoneNumber string, role Role) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		CreatedAt: now,
		UpdatedAt: now,
		Phone:     strings.TrimSpace(phoneNumber),
		Role:      role,
		Status:    StatusActive,
		Attrs:     Attrs{"phone_verified_at": now.Format(time.RFC3339)},
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// NewEmailUser constructs a user with an already-hashed password.
func NewEmailUser(email, displayName string, role Role, passwordHash string, attrs Attrs) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		DisplayName:  strings.TrimSpace(displayName),
		Role:         role,
		Status:       StatusActive,
		PasswordHash: strings.TrimSpace(passwordHash),
		Attrs:        cloneAttrs(attrs),
	}
	if u.PasswordHash == "" {
		return nil, ErrEmptyPasswordHash
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks invariants of the User entity.
func (user *User) Validate() error {
	if user.Email == "" && user.Phone == "" {
		return ErrNoIdentity
	}
	if user.Email != "" {
		if _, err := mail.ParseAddress(user.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	if user.Phone != "" && !phone.Validate(user.Phone) {
		return ErrInvalidPhone
	}
	if len([]rune(user.DisplayName)) > 80 {
		return ErrDisplayNameTooLong
	}
	if !user.Role.Valid() {
		return ErrInvalidRole
	}
	if !user.Status.Valid() {
		return ErrInvalidStatus
	}
	if !user.CreatedAt.IsZero() && !user.UpdatedAt.IsZero() && user.UpdatedAt.Before(user.CreatedAt) {
		return ErrBadTimestamps
	}
	return nil
}

// UpdateProfile changes the editable profile fields; empty arguments leave a field untouched.
func (user *User) UpdateProfile(displayName, email string) error {
	next := *user
	if dn := strings.TrimSpace(displayName); dn != "" {
		next.DisplayName = dn
	}
	if em := strings.ToLower(strings.TrimSpace(email)); em != "" {
		next.Email = em
	}
	if err := next.Validate(); err != nil {
		return err
	}
	user.DisplayName = next.DisplayName
	user.Email = next.Email
	user.touch()
	return nil
}

// SetStatus transitions user status (e.g., to INACTIVE or BANNED).
func (user *User) SetStatus(status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	user.Status = status
	user.touch()
	return nil
}

// HasPassword reports whether email/password sign-in is possible for this user.
func (user *User) HasPassword() bool {
	return user.PasswordHash != ""
}

// cloneAttrs creates a shallow copy to keep domain invariants safe.
func cloneAttrs(a Attrs) Attrs {
	if a == nil {
		return make(Attrs)
	}
	cp := make(Attrs, len(a))
	maps.Copy(cp, a)
	return cp
}

func (user *User) touch() {
	user.UpdatedAt = time.Now().UTC()
}

// Convenience helpers.
func (user *User) IsActive() bool    { return user.Status.IsActive() }
func (user *User) IsDriver() bool    { return user.Role.IsDriver() }
func (user *User) IsPassenger() bool { return user.Role.IsPassenger() }
func (user *User) IsAdmin() bool     { return user.Role.IsAdmin() }
