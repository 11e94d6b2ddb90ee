package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fotofeed/apiserver/config"
	"github.com/fotofeed/apiserver/internal/services"
	"github.com/fotofeed/apiserver/internal/store"
	"github.com/fotofeed/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if user.ResetToken != nil && *user.ResetToken == token && user.ResetExpiry != nil && user.ResetExpiry.After(now) {
			user.PasswordHash = passwordHash
			user.ResetToken = nil
			user.ResetExpiry = nil
			r.users[id] = user
			return nil
		}
	}
	return store.ErrNotFound
}

type discardSender struct{}

func (discardSender) Send(ctx context.Context, to, subject, body string) error { return nil }

func newAuthTestServer(t *testing.T) (*httptest.Server, *memUserRepo) {
	t.Helper()
	repo := newMemUserRepo()
	svc := services.NewUserService(repo, discardSender{}, services.NewCooldown(60*time.Second), "http://localhost:3000")

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, svc, config.AuthConfig{JWTSecret: testJWTSecret, TokenTTL: time.Hour})
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func registerUser(t *testing.T, srv *httptest.Server, email, password string) {
	t.Helper()
	resp := postJSON(t, srv.URL+"/auth/register", RegisterRequest{
		Email:    email,
		Password: password,
		Name:     "Ann",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func storedOTP(t *testing.T, repo *memUserRepo, email string) string {
	t.Helper()
	user, err := repo.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, user.OTP)
	return *user.OTP
}

func TestAuthFlow(t *testing.T) {
	srv, repo := newAuthTestServer(t)

	registerUser(t, srv, "a@x.com", "pw123456")

	// Login before verification is refused.
	resp := postJSON(t, srv.URL+"/auth/login", LoginRequest{Email: "a@x.com", Password: "pw123456"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/auth/verify-otp", VerifyOTPRequest{Email: "a@x.com", OTP: storedOTP(t, repo, "a@x.com")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/auth/login", LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	authResp := decodeBody[AuthResponse](t, resp)
	require.NotEmpty(t, authResp.Token)
	assert.Equal(t, "a@x.com", authResp.User.Email)

	// The token works on the protected endpoint.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+authResp.Token)
	meResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, meResp.StatusCode)
	me := decodeBody[types.User](t, meResp)
	assert.Equal(t, authResp.User.ID, me.ID)
}

func TestMeUnauthorized(t *testing.T) {
	srv, _ := newAuthTestServer(t)

	resp, err := http.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterValidation(t *testing.T) {
	srv, _ := newAuthTestServer(t)

	resp := postJSON(t, srv.URL+"/auth/register", RegisterRequest{
		Email:    "not-an-email",
		Password: "short",
		Name:     "",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "validation failed", body.Error)
	assert.Len(t, body.Fields, 3)
}

func TestRegisterDuplicate(t *testing.T) {
	srv, _ := newAuthTestServer(t)

	registerUser(t, srv, "a@x.com", "pw123456")

	resp := postJSON(t, srv.URL+"/auth/register", RegisterRequest{
		Email:    "a@x.com",
		Password: "pw123456",
		Name:     "Ann",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestVerifyOTPWrongCode(t *testing.T) {
	srv, repo := newAuthTestServer(t)

	registerUser(t, srv, "a@x.com", "pw123456")
	if storedOTP(t, repo, "a@x.com") == "000000" {
		t.Skip("generated OTP collided with test constant")
	}

	resp := postJSON(t, srv.URL+"/auth/verify-otp", VerifyOTPRequest{Email: "a@x.com", OTP: "000000"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "invalid or expired otp", body.Error)
}

func TestResendOTPRateLimited(t *testing.T) {
	srv, _ := newAuthTestServer(t)

	registerUser(t, srv, "a@x.com", "pw123456")

	resp := postJSON(t, srv.URL+"/auth/resend-otp", ResendOTPRequest{Email: "a@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/auth/resend-otp", ResendOTPRequest{Email: "a@x.com"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	body := decodeBody[RateLimitResponse](t, resp)
	assert.Equal(t, "too many requests", body.Error)
	assert.Positive(t, body.RetryAfterSeconds)
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	srv, _ := newAuthTestServer(t)

	registerUser(t, srv, "a@x.com", "pw123456")

	known := postJSON(t, srv.URL+"/auth/forgot-password", ForgotPasswordRequest{Email: "a@x.com"})
	unknown := postJSON(t, srv.URL+"/auth/forgot-password", ForgotPasswordRequest{Email: "nobody@x.com"})
	require.Equal(t, http.StatusOK, known.StatusCode)
	require.Equal(t, http.StatusOK, unknown.StatusCode)

	knownBody := decodeBody[MessageResponse](t, known)
	unknownBody := decodeBody[MessageResponse](t, unknown)
	assert.Equal(t, knownBody.Message, unknownBody.Message)
}

func TestResetPasswordFlow(t *testing.T) {
	srv, repo := newAuthTestServer(t)

	registerUser(t, srv, "a@x.com", "pw123456")

	resp := postJSON(t, srv.URL+"/auth/forgot-password", ForgotPasswordRequest{Email: "a@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	user, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.ResetToken)

	resp = postJSON(t, srv.URL+"/auth/reset-password", ResetPasswordRequest{
		Token:       *user.ResetToken,
		NewPassword: "newpass123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The token is single-use.
	resp = postJSON(t, srv.URL+"/auth/reset-password", ResetPasswordRequest{
		Token:       *user.ResetToken,
		NewPassword: "anotherpass1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestResetPasswordInvalidToken(t *testing.T) {
	srv, _ := newAuthTestServer(t)

	resp := postJSON(t, srv.URL+"/auth/reset-password", ResetPasswordRequest{
		Token:       "deadbeef",
		NewPassword: "newpass123",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "invalid or expired token", body.Error)
}

func TestBearerToken(t *testing.T) {
	newReq := func(header string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		return req
	}

	token, err := bearerToken(newReq("Bearer abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	// Scheme matching is case-insensitive.
	token, err = bearerToken(newReq("bearer abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc"} {
		_, err := bearerToken(newReq(header))
		assert.Error(t, err, "header %q", header)
	}
}
