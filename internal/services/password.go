package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/nanafox/tiny-cart/internal/apperr"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 40
)

// HashPassword returns a salted bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func validatePassword(pw string) error {
	if n := len(pw); n < minPasswordLength || n > maxPasswordLength {
		return apperr.New(apperr.InvalidInput, "password must be between %d and %d characters",
			minPasswordLength, maxPasswordLength)
	}
	return nil
}
