// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/veloriahq/veloria/internal/platform/apperr"
	"github.com/veloriahq/veloria/internal/platform/constants"
	"github.com/veloriahq/veloria/internal/platform/result"
	"github.com/veloriahq/veloria/internal/platform/sec"
	"github.com/veloriahq/veloria/internal/platform/validate"
	"github.com/veloriahq/veloria/pkg/uuid"
)

// # Contracts & Types

// TokenSigner defines the contract for producing and verifying security tokens.
type TokenSigner interface {
	// SignAccess creates a short-lived access token (~1 day) for the user.
	SignAccess(userID string) (string, error)

	// SignRefresh creates a refresh token (~7 days) for the user.
	SignRefresh(userID string) (string, error)

	// SignSession creates the legacy long-lived session token (~1 year),
	// carrying the user's email and role for older clients.
	SignSession(userID, email, role string) (string, error)

	// VerifyRefresh validates a refresh token and extracts the owning user ID.
	VerifyRefresh(token string) (string, error)
}

// Notifier dispatches account emails. Delivery is fire-and-forget: the auth
// flows never fail because a message could not be sent.
type Notifier interface {
	// SendResetRequest emails a password-reset link.
	SendResetRequest(context context.Context, email, resetURL string) error

	// SendResetConfirmation emails a password-changed notice.
	SendResetConfirmation(context context.Context, email string) error

	// SendWelcome emails an onboarding greeting. Part of the message
	// catalogue, but no flow dispatches it today.
	SendWelcome(context context.Context, email, firstName string) error
}

// # Outcome Messages

const (
	// msgInvalidCredentials must stay byte-identical for the missing-account
	// and wrong-password branches of Login (enumeration resistance).
	msgInvalidCredentials = "Auth Failed (Invalid Credentials)"

	// msgResetTokenInvalid deliberately does not distinguish wrong, expired,
	// consumed, or unknown-user cases.
	msgResetTokenInvalid = "Reset token is invalid or expired"

	msgUnauthenticated = "Unauthenticated"
)

// Service implements the account authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, login,
// or reset-token logic must be reviewed by the security team.
type Service struct {
	users    UserRepository
	resets   ResetTokenRepository
	signer   TokenSigner
	notifier Notifier

	// publicBaseURL is the origin used to build reset links in emails.
	publicBaseURL string
}

// NewService constructs a new [Service] with its injected collaborators.
func NewService(
	users UserRepository,
	resets ResetTokenRepository,
	signer TokenSigner,
	notifier Notifier,
	publicBaseURL string,
) *Service {
	return &Service{
		users:         users,
		resets:        resets,
		signer:        signer,
		notifier:      notifier,
		publicBaseURL: publicBaseURL,
	}
}

// # Registration Flow

// SignupInput holds the data required to enroll a new shopper.
//
// Cart is accepted at the transport layer for checkout-flow continuity but is
// not consumed by this module.
type SignupInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	DateOfBirth     string
	Gender          string
	Role            string
}

// echo returns the non-sensitive input fields for form repopulation on 422.
// Passwords are never echoed.
func (input SignupInput) echo() map[string]string {
	return map[string]string{
		FieldFirstName:   input.FirstName,
		FieldLastName:    input.LastName,
		FieldEmail:       input.Email,
		FieldDateOfBirth: input.DateOfBirth,
		FieldGender:      input.Gender,
	}
}

/*
Signup validates, persists, and issues tokens for a brand new account.

Description: Hashing happens inside the store on save; persistence
happens-before token issuance. A duplicate email surfaces as a 409 envelope
naming the conflicting address.

Parameters:
  - context: context.Context
  - input: SignupInput

Returns:
  - *result.Envelope: 201 with the three tokens, 422 validation, or 409 conflict
  - error: Infrastructure failures only (store, signer)
*/
func (service *Service) Signup(context context.Context, input SignupInput) (*result.Envelope, error) {

	validator := &validate.Validator{}
	validator.Required(FieldFirstName, input.FirstName).
		Required(FieldLastName, input.LastName).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.Password).
		Required(FieldDateOfBirth, input.DateOfBirth).
		Date(FieldDateOfBirth, input.DateOfBirth, DateOfBirthLayout).
		OneOf(FieldGender, input.Gender, GenderFemale, GenderMale, GenderOther)

	// Role is optional; it defaults below rather than failing validation.
	if input.Role != "" {
		validator.OneOf(FieldRole, input.Role, string(sec.RoleUser), string(sec.RoleAdmin))
	}

	if err := validator.Err(); err != nil {
		return result.Invalid(apperr.As(err), input.echo()), nil
	}

	role := sec.UserRole(input.Role)
	if input.Role == "" {
		role = sec.RoleUser
	}

	// Validated above, so the parse cannot fail here.
	dateOfBirth, err := time.Parse(DateOfBirthLayout, input.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("auth_service_dob_parse_failed: %w", err)
	}

	// Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:          uuid.New(),
		Email:       input.Email,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		DateOfBirth: dateOfBirth,
		Gender:      input.Gender,
		Role:        role,
	}

	// Persist first; tokens are only issued for accounts that exist.
	if err := service.users.Create(context, user, input.Password); err != nil {
		if apperr.IsConflict(err) {
			return result.Fail(http.StatusConflict, fmt.Sprintf("Email %s is already registered", input.Email)), nil
		}
		return nil, fmt.Errorf("auth_service_signup_failed: %w", err)
	}

	tokens, err := service.issueTokens(user)
	if err != nil {
		return nil, err
	}

	return result.OK(http.StatusCreated, "Account created successfully", tokens), nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

/*
Login validates credentials and issues the three tokens.

Description: A missing account and a wrong password produce byte-identical
401 envelopes to prevent user enumeration. On success the envelope carries
the public user fields plus tokens, and instructs the transport to set the
session (~1y), access (~1d), and refresh (~7d) cookies.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *result.Envelope: 200 success, 422 validation, or 401 generic failure
  - error: Infrastructure failures only
*/
func (service *Service) Login(context context.Context, input LoginInput) (*result.Envelope, error) {

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		return result.Invalid(apperr.As(err), map[string]string{
			FieldEmail:    input.Email,
			FieldPassword: input.Password,
		}), nil
	}

	user, err := service.users.FindByEmail(context, input.Email)
	if err != nil {
		// Unknown email: same generic message as a wrong password.
		if apperr.IsNotFound(err) {
			return result.Fail(http.StatusUnauthorized, msgInvalidCredentials), nil
		}
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	// bcrypt compares in constant time.
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return result.Fail(http.StatusUnauthorized, msgInvalidCredentials), nil
	}

	tokens, err := service.issueTokens(user)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		FieldUser:         user,
		FieldToken:        tokens[FieldToken],
		FieldAccessToken:  tokens[FieldAccessToken],
		FieldRefreshToken: tokens[FieldRefreshToken],
	}

	envelope := result.OK(http.StatusOK, "Login successful", payload).WithCookies(
		result.SetCookie(constants.SessionCookieName, tokens[FieldToken], constants.AuthCookiePath, int(constants.SessionTokenTTL.Seconds())),
		result.SetCookie(constants.AccessTokenCookieName, tokens[FieldAccessToken], constants.AuthCookiePath, int(constants.AccessTokenTTL.Seconds())),
		result.SetCookie(constants.RefreshTokenCookieName, tokens[FieldRefreshToken], constants.AuthCookiePath, int(constants.RefreshTokenTTL.Seconds())),
	)

	return envelope, nil
}

// # Profile

/*
Profile wraps an already-authenticated identity in a success envelope.

Description: The caller (authentication middleware) guarantees the identity
exists, so there is no business failure path — only the generic error path
for store trouble.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *result.Envelope: 200 with the public user fields
  - error: Infrastructure failures only
*/
func (service *Service) Profile(context context.Context, userID string) (*result.Envelope, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_profile_failed: %w", err)
	}

	return result.OK(http.StatusOK, "OK", map[string]any{FieldUser: user}), nil
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Reuses the user's live reset token when one exists (idempotent
reset requests); otherwise claims a freshly generated value. A reset link
embedding the user ID and token is emailed fire-and-forget, and the raw
token is returned in the payload.

NOTE: Unlike Login, an unknown email is reported as such (401 naming the
address). The inconsistency and the raw token in the response body are
both documented legacy behavior — see DESIGN.md before "fixing" either.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *result.Envelope: 200 with the token, 422 validation, or 401 unknown email
  - error: Infrastructure failures only
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) (*result.Envelope, error) {

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).Email(FieldEmail, email)

	if err := validator.Err(); err != nil {
		return result.Invalid(apperr.As(err), map[string]string{FieldEmail: email}), nil
	}

	user, err := service.users.FindByEmail(context, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return result.Fail(http.StatusUnauthorized, fmt.Sprintf("No account is associated with %s", email)), nil
		}
		return nil, fmt.Errorf("auth_service_reset_lookup_failed: %w", err)
	}

	candidate, err := sec.GenerateSecureToken(constants.ResetTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_reset_token_generation_failed: %w", err)
	}

	// The store resolves races and returns the single live token.
	token, err := service.resets.GetOrCreate(context, user.ID, candidate, constants.ResetTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_reset_token_store_failed: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s/%s", service.publicBaseURL, user.ID, token)
	_ = service.notifier.SendResetRequest(context, user.Email, resetURL)

	return result.OK(http.StatusOK, "Password reset link sent", token), nil
}

// ResetPasswordInput carries the path-bound identifiers and the new password.
type ResetPasswordInput struct {
	UserID          string
	Token           string
	Password        string
	ConfirmPassword string
}

/*
ResetPassword completes the forgot-password flow.

Description: Both the unknown-user and bad-token branches collapse into the
same vague 400. On a match the password is replaced (rehash is a store-side
effect of the update) and the token is consumed so a second attempt fails.

Parameters:
  - context: context.Context
  - input: ResetPasswordInput

Returns:
  - *result.Envelope: 200 success, 422 validation, or 400 invalid token
  - error: Infrastructure failures only
*/
func (service *Service) ResetPassword(context context.Context, input ResetPasswordInput) (*result.Envelope, error) {

	validator := &validate.Validator{}
	validator.Required(FieldUserID, input.UserID).
		Required(FieldToken, input.Token).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.Password)

	if err := validator.Err(); err != nil {
		return result.Invalid(apperr.As(err), nil), nil
	}

	user, err := service.users.FindByID(context, input.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return result.Fail(http.StatusBadRequest, msgResetTokenInvalid), nil
		}
		return nil, fmt.Errorf("auth_service_reset_user_lookup_failed: %w", err)
	}

	if err := service.resets.Find(context, user.ID, input.Token); err != nil {
		if apperr.IsNotFound(err) {
			return result.Fail(http.StatusBadRequest, msgResetTokenInvalid), nil
		}
		return nil, fmt.Errorf("auth_service_reset_token_lookup_failed: %w", err)
	}

	if err := service.users.UpdatePassword(context, user.ID, input.Password); err != nil {
		return nil, fmt.Errorf("auth_service_reset_update_failed: %w", err)
	}

	// Single-use invariant: a failed delete would leave the token live, so it
	// is an error, not a best-effort cleanup.
	if err := service.resets.Delete(context, user.ID); err != nil {
		return nil, fmt.Errorf("auth_service_reset_consume_failed: %w", err)
	}

	_ = service.notifier.SendResetConfirmation(context, user.Email)

	return result.OK(http.StatusOK, "Password has been reset", nil), nil
}

// # Logout

/*
Logout verifies the refresh token and instructs the transport to clear the
access and refresh cookies.

Description: No server-side revocation exists — issued tokens stay valid
until natural expiry, and the legacy session cookie is left in place; both
are documented legacy behavior. A refresh token signed for a since-deleted
account yields 400, not success.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *result.Envelope: 200 success, 422 missing token, or 400 unauthenticated
  - error: Token verification and infrastructure failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) (*result.Envelope, error) {

	if refreshToken == "" {
		err := validate.RequiredError(FieldRefreshToken, "Please provide a valid refreshToken")
		return result.Invalid(err, nil), nil
	}

	// Verification failure is NOT a business outcome here: it propagates to
	// the generic error path.
	userID, err := service.signer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("auth_service_logout_verify_failed: %w", err)
	}

	if _, err := service.users.FindByID(context, userID); err != nil {
		if apperr.IsNotFound(err) {
			return result.Fail(http.StatusBadRequest, msgUnauthenticated), nil
		}
		return nil, fmt.Errorf("auth_service_logout_lookup_failed: %w", err)
	}

	envelope := result.OK(http.StatusOK, "Logged out successfully", nil).WithCookies(
		result.ClearCookie(constants.AccessTokenCookieName, constants.AuthCookiePath),
		result.ClearCookie(constants.RefreshTokenCookieName, constants.AuthCookiePath),
	)

	return envelope, nil
}

// # Internal Helpers

// issueTokens signs the legacy session token, the access token, and the
// refresh token for a user, in that order.
func (service *Service) issueTokens(user *User) (map[string]string, error) {
	session, err := service.signer.SignSession(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("auth_service_session_token_failed: %w", err)
	}

	access, err := service.signer.SignAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	refresh, err := service.signer.SignRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	return map[string]string{
		FieldToken:        session,
		FieldAccessToken:  access,
		FieldRefreshToken: refresh,
	}, nil
}
