package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to registration, password change and reset.
const MinPasswordLength = 6

// passwordCost matches the salt rounds the existing accounts were hashed with.
const passwordCost = 10

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
