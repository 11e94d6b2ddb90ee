package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmailTaken is returned when registering an already-used email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrAlreadyVerified is returned when verifying or resending an OTP
	// for an account that has completed verification.
	ErrAlreadyVerified = errors.New("account already verified")

	// ErrOTPInvalid is returned for a wrong, expired, or absent OTP.
	// Deliberately one error for all three cases.
	ErrOTPInvalid = errors.New("invalid or expired otp")

	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. Deliberately one error for both cases.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotVerified is returned when logging in before OTP verification.
	ErrNotVerified = errors.New("account not verified")

	// ErrTokenInvalid is returned for an unknown or expired reset token.
	ErrTokenInvalid = errors.New("invalid or expired token")
)

// RateLimitedError reports how long a caller must wait before the next
// OTP resend for the same email.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", int(e.RetryAfter.Seconds()))
}
