package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinAdminPasswordLength is enforced when the admin account is bootstrapped.
const MinAdminPasswordLength = 8

// HashPassword hashes an admin password with bcrypt. bcrypt only reads 72 bytes,
// so longer input is rejected instead of silently truncated.
func HashPassword(password string) (string, error) {
	if len(password) < MinAdminPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", MinAdminPasswordLength)
	}
	if len(password) > 72 {
		return "", bcrypt.ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}

// CheckPassword compares a plain password with its bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
