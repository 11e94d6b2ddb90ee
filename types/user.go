package types

import "time"

// User represents an account in the system.
// It contains identity, verification state, and profile fields.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's email address. Unique across accounts.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Bio is a free-form profile description.
	Bio string `json:"bio" db:"bio"`

	// Avatar is the blob reference path of the profile picture.
	Avatar string `json:"avatar" db:"avatar"`

	// Role indicates the user's authorization level within the
	// system ("user" or "admin").
	Role string `json:"role" db:"role"`

	// IsVerified reports whether the user has completed OTP email
	// verification. Login is refused until it is true.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// OTP is the pending email-verification code. Set together with
	// OTPExpiry, cleared after successful verification.
	OTP *string `json:"-" db:"otp"`

	// OTPExpiry is the time the pending OTP stops being accepted.
	OTPExpiry *time.Time `json:"-" db:"otp_expiry"`

	// ResetToken is the pending password-reset token. Set together with
	// ResetExpiry, cleared after a successful reset.
	ResetToken *string `json:"-" db:"reset_token"`

	// ResetExpiry is the time the pending reset token stops being accepted.
	ResetExpiry *time.Time `json:"-" db:"reset_expiry"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
