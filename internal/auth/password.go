package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashServiceKey generates the bcrypt hash stored in SERVICE_API_KEY_HASH.
func HashServiceKey(key string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash service key: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckServiceKey compares a presented service key with the stored bcrypt hash.
func CheckServiceKey(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
