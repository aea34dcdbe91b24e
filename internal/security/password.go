package security

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// dummyHash is compared against when a username does not exist so that a
// failed login costs the same whether the user or the password was wrong.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckDummyPassword burns a bcrypt comparison without revealing anything.
func CheckDummyPassword(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}

// ValidatePasswordPolicy returns the list of unmet requirements for a new
// password: minimum length 8, at least one uppercase, one lowercase and one
// digit. An empty slice means the password is acceptable.
func ValidatePasswordPolicy(password string) []string {
	var unmet []string
	if len(password) < 8 {
		unmet = append(unmet, "at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		unmet = append(unmet, "at least one uppercase letter")
	}
	if !hasLower {
		unmet = append(unmet, "at least one lowercase letter")
	}
	if !hasDigit {
		unmet = append(unmet, "at least one digit")
	}
	return unmet
}
