package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OTPTTL is how long a password reset code stays valid.
const OTPTTL = 10 * time.Minute

// MaxOTPAttempts is how many wrong codes void the current one.
const MaxOTPAttempts = 5

// GenerateOTP returns a random 6 digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
