// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloriahq/veloria/internal/platform/apperr"
	"github.com/veloriahq/veloria/internal/platform/constants"
	"github.com/veloriahq/veloria/internal/platform/sec"
	"github.com/veloriahq/veloria/internal/users/auth"
	"github.com/veloriahq/veloria/pkg/uuid"
)

// # Fakes

// fakeUserRepo mirrors the Postgres store contract in memory: passwords are
// hashed on Create/UpdatePassword, and a second Create with the same email
// yields a Conflict.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*auth.User // keyed by ID
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*auth.User{}}
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperr.NotFound("User")
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (r *fakeUserRepo) Create(_ context.Context, user *auth.User, plainPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return apperr.Conflict("Email is already registered")
		}
	}
	hash, err := sec.HashPassword(plainPassword)
	if err != nil {
		return err
	}
	stored := *user
	stored.PasswordHash = hash
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.users[stored.ID] = &stored
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID, newPlainPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	hash, err := sec.HashPassword(newPlainPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	return nil
}

// hashOf reads the stored hash directly, bypassing the service.
func (r *fakeUserRepo) hashOf(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		return u.PasswordHash
	}
	return ""
}

// fakeResetRepo mirrors the Redis store's set-if-absent semantics.
type fakeResetRepo struct {
	mu     sync.Mutex
	tokens map[string]string // userID -> token
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{tokens: map[string]string{}}
}

func (r *fakeResetRepo) GetOrCreate(_ context.Context, userID, candidate string, _ time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tokens[userID]; ok {
		return existing, nil
	}
	r.tokens[userID] = candidate
	return candidate, nil
}

func (r *fakeResetRepo) Find(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tokens[userID]; ok && existing == token {
		return nil
	}
	return apperr.NotFound("Reset token")
}

func (r *fakeResetRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, userID)
	return nil
}

// fakeSigner issues deterministic token strings and treats any refresh token
// it issued as valid.
type fakeSigner struct{}

func (fakeSigner) SignAccess(userID string) (string, error) {
	return "access." + userID, nil
}

func (fakeSigner) SignRefresh(userID string) (string, error) {
	return "refresh." + userID, nil
}

func (fakeSigner) SignSession(userID, _, _ string) (string, error) {
	return "session." + userID, nil
}

func (fakeSigner) VerifyRefresh(token string) (string, error) {
	userID, ok := strings.CutPrefix(token, "refresh.")
	if !ok {
		return "", fmt.Errorf("token malformed")
	}
	return userID, nil
}

// fakeNotifier records every dispatch.
type fakeNotifier struct {
	mu            sync.Mutex
	resetURLs     []string
	confirmations []string
	welcomes      []string
}

func (n *fakeNotifier) SendResetRequest(_ context.Context, _ string, resetURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetURLs = append(n.resetURLs, resetURL)
	return nil
}

func (n *fakeNotifier) SendResetConfirmation(_ context.Context, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, email)
	return nil
}

func (n *fakeNotifier) SendWelcome(_ context.Context, email, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, email)
	return nil
}

// # Harness

type harness struct {
	service  *auth.Service
	users    *fakeUserRepo
	resets   *fakeResetRepo
	notifier *fakeNotifier
}

func newHarness() *harness {
	users := newFakeUserRepo()
	resets := newFakeResetRepo()
	notifier := &fakeNotifier{}
	return &harness{
		service:  auth.NewService(users, resets, fakeSigner{}, notifier, "https://veloria.shop"),
		users:    users,
		resets:   resets,
		notifier: notifier,
	}
}

func validSignup() auth.SignupInput {
	return auth.SignupInput{
		FirstName:       "Mira",
		LastName:        "Chen",
		Email:           "mira@example.com",
		Password:        "correct horse",
		ConfirmPassword: "correct horse",
		DateOfBirth:     "1994-07-21",
		Gender:          auth.GenderFemale,
	}
}

// signup enrolls a user and returns their ID read back from the store.
func (h *harness) signup(t *testing.T, input auth.SignupInput) string {
	t.Helper()
	envelope, err := h.service.Signup(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, envelope.StatusCode)

	user, err := h.users.FindByEmail(context.Background(), input.Email)
	require.NoError(t, err)
	return user.ID
}

// # Signup

/*
TestSignup_Success checks that a fresh signup yields 201 with all three tokens
and that the stored password is a hash, not the plaintext.
*/
func TestSignup_Success(t *testing.T) {
	h := newHarness()

	envelope, err := h.service.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, envelope.StatusCode)
	assert.True(t, envelope.Success)
	assert.False(t, envelope.IsError)

	tokens, ok := envelope.Payload.(map[string]string)
	require.True(t, ok)
	assert.NotEmpty(t, tokens[auth.FieldToken])
	assert.NotEmpty(t, tokens[auth.FieldAccessToken])
	assert.NotEmpty(t, tokens[auth.FieldRefreshToken])

	user, err := h.users.FindByEmail(context.Background(), "mira@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("correct horse", user.PasswordHash))
	assert.Equal(t, sec.RoleUser, user.Role)

	// The welcome message kind exists in the catalogue but is not sent.
	assert.Empty(t, h.notifier.welcomes)
}

/*
TestSignup_DuplicateEmail checks the 409 outcome and that the original
account's credentials survive an attempted re-registration.
*/
func TestSignup_DuplicateEmail(t *testing.T) {
	h := newHarness()
	userID := h.signup(t, validSignup())
	originalHash := h.users.hashOf(userID)

	second := validSignup()
	second.Password = "different password"
	second.ConfirmPassword = "different password"

	envelope, err := h.service.Signup(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, envelope.StatusCode)
	assert.True(t, envelope.IsError)
	assert.Contains(t, envelope.Message, "mira@example.com")
	assert.Nil(t, envelope.Payload)

	assert.Equal(t, originalHash, h.users.hashOf(userID), "existing account must be untouched")
}

/*
TestSignup_Validation checks the 422 outcome: field errors are listed and
oldInput echoes everything except the passwords.
*/
func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*auth.SignupInput)
		field  string
	}{
		{"missing_first_name", func(in *auth.SignupInput) { in.FirstName = "" }, auth.FieldFirstName},
		{"bad_email", func(in *auth.SignupInput) { in.Email = "not-an-email" }, auth.FieldEmail},
		{"short_password", func(in *auth.SignupInput) { in.Password = "short"; in.ConfirmPassword = "short" }, auth.FieldPassword},
		{"password_mismatch", func(in *auth.SignupInput) { in.ConfirmPassword = "something else" }, auth.FieldConfirmPassword},
		{"bad_date", func(in *auth.SignupInput) { in.DateOfBirth = "21/07/1994" }, auth.FieldDateOfBirth},
		{"bad_gender", func(in *auth.SignupInput) { in.Gender = "unknown" }, auth.FieldGender},
		{"bad_role", func(in *auth.SignupInput) { in.Role = "superadmin" }, auth.FieldRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			input := validSignup()
			tt.mutate(&input)

			envelope, err := h.service.Signup(context.Background(), input)
			require.NoError(t, err)

			assert.Equal(t, http.StatusUnprocessableEntity, envelope.StatusCode)
			assert.True(t, envelope.IsError)
			require.NotEmpty(t, envelope.ValidationErrors)

			fields := make([]string, 0, len(envelope.ValidationErrors))
			for _, fe := range envelope.ValidationErrors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)

			// Echo must never contain credentials.
			assert.NotContains(t, envelope.OldInput, auth.FieldPassword)
			assert.NotContains(t, envelope.OldInput, auth.FieldConfirmPassword)
			assert.Equal(t, input.Email, envelope.OldInput[auth.FieldEmail])

			// Nothing persisted on a 422.
			_, findErr := h.users.FindByEmail(context.Background(), input.Email)
			assert.True(t, apperr.IsNotFound(findErr))
		})
	}
}

// # Login

/*
TestLogin_Success checks the 200 outcome: public user fields plus the three
tokens, cookie instructions for all three, and no password hash anywhere in
the serialized payload.
*/
func TestLogin_Success(t *testing.T) {
	h := newHarness()
	h.signup(t, validSignup())

	envelope, err := h.service.Login(context.Background(), auth.LoginInput{
		Email:    "mira@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, envelope.StatusCode)
	assert.True(t, envelope.Success)

	payload, ok := envelope.Payload.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, payload[auth.FieldToken])
	assert.NotEmpty(t, payload[auth.FieldAccessToken])
	assert.NotEmpty(t, payload[auth.FieldRefreshToken])

	user, ok := payload[auth.FieldUser].(*auth.User)
	require.True(t, ok)
	assert.Equal(t, "mira@example.com", user.Email)

	// The hash must not survive serialization.
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), user.PasswordHash)
	assert.NotContains(t, string(raw), "passwordHash")

	cookies := envelope.Cookies()
	require.Len(t, cookies, 3)
	names := map[string]int{}
	for _, c := range cookies {
		names[c.Name] = c.MaxAge
		assert.Positive(t, c.MaxAge)
	}
	assert.Contains(t, names, constants.SessionCookieName)
	assert.Contains(t, names, constants.AccessTokenCookieName)
	assert.Contains(t, names, constants.RefreshTokenCookieName)
	assert.Greater(t, names[constants.SessionCookieName], names[constants.RefreshTokenCookieName])
	assert.Greater(t, names[constants.RefreshTokenCookieName], names[constants.AccessTokenCookieName])
}

/*
TestLogin_Failure_Indistinguishable checks that a wrong password and an
unknown email produce byte-identical 401 envelopes.
*/
func TestLogin_Failure_Indistinguishable(t *testing.T) {
	h := newHarness()
	h.signup(t, validSignup())

	wrongPassword, err := h.service.Login(context.Background(), auth.LoginInput{
		Email:    "mira@example.com",
		Password: "wrong password",
	})
	require.NoError(t, err)

	unknownEmail, err := h.service.Login(context.Background(), auth.LoginInput{
		Email:    "nobody@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.StatusCode)
	assert.Equal(t, wrongPassword.Message, unknownEmail.Message)
	assert.Nil(t, wrongPassword.Payload)
	assert.Nil(t, unknownEmail.Payload)
	assert.Empty(t, wrongPassword.Cookies())
}

/*
TestLogin_Validation checks the 422 outcome and the email/password echo.
*/
func TestLogin_Validation(t *testing.T) {
	h := newHarness()

	envelope, err := h.service.Login(context.Background(), auth.LoginInput{Email: "not-an-email", Password: ""})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, envelope.StatusCode)
	assert.Equal(t, "not-an-email", envelope.OldInput[auth.FieldEmail])
	require.NotEmpty(t, envelope.ValidationErrors)
}

// # Password Reset: Request

/*
TestRequestPasswordReset_Idempotent checks that repeated requests for the same
user return the same token while it lives, and that the emailed link embeds
the user ID and token.
*/
func TestRequestPasswordReset_Idempotent(t *testing.T) {
	h := newHarness()
	userID := h.signup(t, validSignup())

	first, err := h.service.RequestPasswordReset(context.Background(), "mira@example.com")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, first.StatusCode)

	second, err := h.service.RequestPasswordReset(context.Background(), "mira@example.com")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, second.StatusCode)

	token, ok := first.Payload.(string)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, first.Payload, second.Payload, "live token must be reused")

	require.Len(t, h.notifier.resetURLs, 2)
	assert.Equal(t, fmt.Sprintf("https://veloria.shop/reset-password/%s/%s", userID, token), h.notifier.resetURLs[0])
}

/*
TestRequestPasswordReset_UnknownEmail checks the 401 outcome naming the email.
*/
func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	h := newHarness()

	envelope, err := h.service.RequestPasswordReset(context.Background(), "ghost@example.com")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, envelope.StatusCode)
	assert.Contains(t, envelope.Message, "ghost@example.com")
	assert.Empty(t, h.notifier.resetURLs)
}

// # Password Reset: Completion

/*
TestResetPassword_Success checks the full round-trip: the old password stops
working, the new one works, and the token is consumed.
*/
func TestResetPassword_Success(t *testing.T) {
	h := newHarness()
	userID := h.signup(t, validSignup())

	requested, err := h.service.RequestPasswordReset(context.Background(), "mira@example.com")
	require.NoError(t, err)
	token := requested.Payload.(string)

	envelope, err := h.service.ResetPassword(context.Background(), auth.ResetPasswordInput{
		UserID:          userID,
		Token:           token,
		Password:        "brand new pass",
		ConfirmPassword: "brand new pass",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, envelope.StatusCode)
	assert.True(t, envelope.Success)

	oldLogin, err := h.service.Login(context.Background(), auth.LoginInput{Email: "mira@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, oldLogin.StatusCode)

	newLogin, err := h.service.Login(context.Background(), auth.LoginInput{Email: "mira@example.com", Password: "brand new pass"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, newLogin.StatusCode)

	assert.Equal(t, []string{"mira@example.com"}, h.notifier.confirmations)

	// Second attempt with the consumed token.
	replay, err := h.service.ResetPassword(context.Background(), auth.ResetPasswordInput{
		UserID:          userID,
		Token:           token,
		Password:        "another pass 1",
		ConfirmPassword: "another pass 1",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, replay.StatusCode)
}

/*
TestResetPassword_WrongToken checks that a wrong token yields 400 and leaves
the stored credentials untouched.
*/
func TestResetPassword_WrongToken(t *testing.T) {
	h := newHarness()
	userID := h.signup(t, validSignup())
	originalHash := h.users.hashOf(userID)

	_, err := h.service.RequestPasswordReset(context.Background(), "mira@example.com")
	require.NoError(t, err)

	envelope, err := h.service.ResetPassword(context.Background(), auth.ResetPasswordInput{
		UserID:          userID,
		Token:           "definitely-not-the-token",
		Password:        "brand new pass",
		ConfirmPassword: "brand new pass",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, envelope.StatusCode)
	assert.True(t, envelope.IsError)
	assert.Equal(t, originalHash, h.users.hashOf(userID))
}

/*
TestResetPassword_UnknownUser checks that an unknown user ID collapses into
the same vague 400 as a wrong token.
*/
func TestResetPassword_UnknownUser(t *testing.T) {
	h := newHarness()
	h.signup(t, validSignup())

	envelope, err := h.service.ResetPassword(context.Background(), auth.ResetPasswordInput{
		UserID:          uuid.New(),
		Token:           "whatever",
		Password:        "brand new pass",
		ConfirmPassword: "brand new pass",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, envelope.StatusCode)
}

// # Logout

/*
TestLogout covers the three logout outcomes: missing token (422), token for a
live account (200 + cookie clearing), and token for a vanished account (400).
*/
func TestLogout(t *testing.T) {
	t.Run("missing_token", func(t *testing.T) {
		h := newHarness()

		envelope, err := h.service.Logout(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, envelope.StatusCode)
		assert.Contains(t, envelope.Message, "refreshToken")
	})

	t.Run("success_clears_cookies", func(t *testing.T) {
		h := newHarness()
		userID := h.signup(t, validSignup())

		envelope, err := h.service.Logout(context.Background(), "refresh."+userID)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, envelope.StatusCode)
		assert.True(t, envelope.Success)

		cookies := envelope.Cookies()
		require.Len(t, cookies, 2)
		names := make([]string, 0, 2)
		for _, c := range cookies {
			names = append(names, c.Name)
			assert.Negative(t, c.MaxAge)
		}
		assert.Contains(t, names, constants.AccessTokenCookieName)
		assert.Contains(t, names, constants.RefreshTokenCookieName)
		// The long-lived session cookie is deliberately left alone.
		assert.NotContains(t, names, constants.SessionCookieName)
	})

	t.Run("vanished_account", func(t *testing.T) {
		h := newHarness()

		envelope, err := h.service.Logout(context.Background(), "refresh."+uuid.New())
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, envelope.StatusCode)
		assert.Equal(t, "Unauthenticated", envelope.Message)
	})

	t.Run("malformed_token", func(t *testing.T) {
		h := newHarness()

		envelope, err := h.service.Logout(context.Background(), "garbage")
		require.Error(t, err)
		assert.Nil(t, envelope)
	})
}

// # Profile

/*
TestProfile checks the pass-through on an existing identity.
*/
func TestProfile(t *testing.T) {
	h := newHarness()
	userID := h.signup(t, validSignup())

	envelope, err := h.service.Profile(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, envelope.StatusCode)
	payload, ok := envelope.Payload.(map[string]any)
	require.True(t, ok)
	user, ok := payload[auth.FieldUser].(*auth.User)
	require.True(t, ok)
	assert.Equal(t, "mira@example.com", user.Email)
}
