package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fotofeed/apiserver/config"
	"github.com/fotofeed/apiserver/internal/auth"
	"github.com/fotofeed/apiserver/internal/services"
	"github.com/fotofeed/apiserver/internal/store"
	"github.com/fotofeed/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	minPasswordLength = 8
	otpLength         = 6
)

// AuthHandler provides the account lifecycle endpoints.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, authCfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		secret:      []byte(authCfg.JWTSecret),
		tokenTTL:    authCfg.TokenTTL,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, authCfg config.AuthConfig) {
	handler := NewAuthHandler(userService, authCfg)

	r.Post("/register", handler.Register)
	r.Post("/verify-otp", handler.VerifyOTP)
	r.Post("/login", handler.Login)
	r.Post("/resend-otp", handler.ResendOTP)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces authentication and injects the claims into context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.secret)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return requireAuth([]byte(jwtSecret))
}

func requireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := auth.Verify(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates an unverified account and triggers the OTP email.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	var fields []string
	if !validEmail(req.Email) {
		fields = append(fields, "email must be a valid email address")
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		fields = append(fields, "password must be at least 8 characters")
	}
	if req.Name == "" {
		fields = append(fields, "name is required")
	}
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	user, err := h.userService.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "registration successful, check your email for the OTP",
		User:    user,
	})
}

// VerifyOTP completes email verification.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)

	var fields []string
	if !validEmail(req.Email) {
		fields = append(fields, "email must be a valid email address")
	}
	if len(req.OTP) != otpLength {
		fields = append(fields, "otp must be 6 digits")
	}
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	if _, err := h.userService.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, services.ErrAlreadyVerified):
			writeError(w, http.StatusBadRequest, "account already verified")
		case errors.Is(err, services.ErrOTPInvalid):
			writeError(w, http.StatusBadRequest, "invalid or expired otp")
		default:
			writeError(w, http.StatusInternalServerError, "failed to verify otp")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "account verified successfully"})
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, services.ErrNotVerified):
			writeError(w, http.StatusForbidden, "account not verified, please verify your email")
		default:
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	token, err := auth.Issue(user.ID, user.Role, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// ResendOTP sends a fresh OTP, subject to the per-email cooldown.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		writeValidationError(w, []string{"email must be a valid email address"})
		return
	}

	if err := h.userService.ResendOTP(r.Context(), req.Email); err != nil {
		var rateLimited *services.RateLimitedError
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, services.ErrAlreadyVerified):
			writeError(w, http.StatusBadRequest, "account already verified")
		case errors.As(err, &rateLimited):
			writeJSON(w, http.StatusTooManyRequests, RateLimitResponse{
				Error:             "too many requests",
				RetryAfterSeconds: int(rateLimited.RetryAfter.Seconds()) + 1,
			})
		default:
			writeError(w, http.StatusInternalServerError, "failed to resend otp")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "a new OTP has been sent"})
}

// ForgotPassword triggers a reset email. The response is identical
// whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		writeValidationError(w, []string{"email must be a valid email address"})
		return
	}

	if err := h.userService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "if the email exists, a password reset link has been sent",
	})
}

// ResetPassword sets a new password using an emailed reset token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Token = strings.TrimSpace(req.Token)

	var fields []string
	if req.Token == "" {
		fields = append(fields, "token is required")
	}
	if utf8.RuneCountInString(req.NewPassword) < minPasswordLength {
		fields = append(fields, "password must be at least 8 characters")
	}
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrTokenInvalid) {
			writeError(w, http.StatusBadRequest, "invalid or expired token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "password reset successfully"})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResendOTPRequest struct {
	Email string `json:"email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type RegisterResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RateLimitResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
