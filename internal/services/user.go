package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/fotofeed/apiserver/internal/mailer"
	"github.com/fotofeed/apiserver/internal/store"
	"github.com/fotofeed/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost     = 12
	otpTTL         = 10 * time.Minute
	resetTokenTTL  = time.Hour
	defaultRole    = "user"
	defaultAvatar  = "/uploads/default.png"
	resetTokenSize = 32
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) error
}

// UserService carries the account lifecycle: registration, OTP
// verification, login, password reset, and profile updates.
type UserService struct {
	repo         UserRepository
	mail         mailer.Sender
	cooldown     *Cooldown
	clientOrigin string
	now          func() time.Time
}

func NewUserService(repo UserRepository, mail mailer.Sender, cooldown *Cooldown, clientOrigin string) *UserService {
	return &UserService{
		repo:         repo,
		mail:         mail,
		cooldown:     cooldown,
		clientOrigin: clientOrigin,
		now:          time.Now,
	}
}

// Register creates an unverified account and emails its OTP.
// The OTP comparison later is exact-string, not constant-time.
func (s *UserService) Register(ctx context.Context, email, password, name string) (types.User, error) {
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return types.User{}, err
	}

	otp, err := generateOTP()
	if err != nil {
		return types.User{}, err
	}
	expiry := s.now().Add(otpTTL)

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Avatar:       defaultAvatar,
		Role:         defaultRole,
		PasswordHash: string(hashed),
		OTP:          &otp,
		OTPExpiry:    &expiry,
	})
	if err != nil {
		return types.User{}, err
	}

	if err := s.sendOTPEmail(ctx, email, otp); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// VerifyOTP marks the account verified when the supplied code matches the
// pending, non-expired OTP, and clears the OTP.
func (s *UserService) VerifyOTP(ctx context.Context, email, otp string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, err
	}
	if user.IsVerified {
		return types.User{}, ErrAlreadyVerified
	}
	if user.OTP == nil || user.OTPExpiry == nil {
		return types.User{}, ErrOTPInvalid
	}
	if *user.OTP != otp || s.now().After(*user.OTPExpiry) {
		return types.User{}, ErrOTPInvalid
	}

	user.IsVerified = true
	user.OTP = nil
	user.OTPExpiry = nil
	return s.repo.Update(ctx, user)
}

// Login checks credentials and verification state. Unknown email and wrong
// password return the same error so responses cannot enumerate accounts.
func (s *UserService) Login(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return types.User{}, ErrNotVerified
	}
	return user, nil
}

// ResendOTP replaces the pending OTP with a fresh one and emails it, at
// most once per email per cooldown window.
func (s *UserService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if remaining, ok := s.cooldown.Reserve(email); !ok {
		return &RateLimitedError{RetryAfter: remaining}
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}
	expiry := s.now().Add(otpTTL)
	user.OTP = &otp
	user.OTPExpiry = &expiry
	if _, err := s.repo.Update(ctx, user); err != nil {
		return err
	}

	return s.sendOTPEmail(ctx, email, otp)
}

// ForgotPassword stores a fresh reset token and emails a reset link. An
// unknown email is not an error; the caller responds identically either
// way so responses cannot enumerate accounts.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}
	expiry := s.now().Add(resetTokenTTL)
	user.ResetToken = &token
	user.ResetExpiry = &expiry
	if _, err := s.repo.Update(ctx, user); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(s.clientOrigin, "/"), token)
	body := fmt.Sprintf("Hello,\n\nYou (or someone else) requested a password reset.\n\n"+
		"Click the link below to reset your password:\n%s\n\n"+
		"This link will expire in 1 hour.\n\n"+
		"If you didn't request this, please ignore this email.\n\nThank you!", resetURL)
	return s.mail.Send(ctx, email, "Reset Your Password", body)
}

// ResetPassword sets a new password for the account holding the given
// non-expired reset token and clears the token.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	if err := s.repo.ResetPassword(ctx, token, string(hashed), s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile updates the name and/or bio. Nil fields are left as-is.
func (s *UserService) UpdateProfile(ctx context.Context, id int, name, bio *string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if name != nil {
		user.Name = *name
	}
	if bio != nil {
		user.Bio = *bio
	}
	return s.repo.Update(ctx, user)
}

// UpdateAvatar records a new avatar blob reference for the user.
func (s *UserService) UpdateAvatar(ctx context.Context, id int, path string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	user.Avatar = path
	return s.repo.Update(ctx, user)
}

func (s *UserService) sendOTPEmail(ctx context.Context, email, otp string) error {
	body := fmt.Sprintf("Hello,\n\nYour OTP code is: %s\n\nValid for 10 minutes.\n\nThank you!", otp)
	return s.mail.Send(ctx, email, "Your OTP Code", body)
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
