package cli

import (
	"fmt"
	"time"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/general/jwt"
)

// GenerateUserToken mints a JWT for a seeded user, for local testing only.
//
//	token, _, err := cli.GenerateUserToken(secret, time.Hour,
//	    "550e8400-e29b-41d4-a716-446655440001", "PASSENGER")
func GenerateUserToken(secret string, ttl time.Duration, userID, roleStr string) (string, jwt.Claims, error) {
	if secret == "" {
		return "", jwt.Claims{}, fmt.Errorf("jwt secret is empty")
	}
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}

	mgr := jwt.NewManager(secret, ttl)
	token, claims, err := mgr.IssueUserToken(userID, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
