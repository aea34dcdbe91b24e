package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for every login failure mode so a
	// caller cannot probe which usernames exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrSessionInvalid     = errors.New("session invalid or expired")
	ErrResetNotFound      = errors.New("no valid reset request")
	ErrResetNotConfirmed  = errors.New("reset request not confirmed")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrStatisticsNotFound = errors.New("no statistics available")
)

// WeakPasswordError carries the list of unmet policy requirements so the
// client can render them.
type WeakPasswordError struct {
	Requirements []string
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password does not meet requirements: %s", strings.Join(e.Requirements, ", "))
}
