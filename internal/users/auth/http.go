// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veloriahq/veloria/internal/platform/middleware"
	requestutil "github.com/veloriahq/veloria/internal/platform/request"
	"github.com/veloriahq/veloria/internal/platform/respond"
	"github.com/veloriahq/veloria/internal/platform/result"
)

// Handler exposes the auth service over HTTP.
type Handler struct {
	service *Service

	// secureCookies toggles the Secure attribute; off only in development so
	// cookies survive plain-HTTP local setups.
	secureCookies bool
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{service: service, secureCookies: secureCookies}
}

// Routes mounts the auth endpoints onto a fresh chi router.
func (h *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/signup", h.Signup)
	router.Post("/login", h.Login)
	router.Post("/forgot-password", h.ForgotPassword)
	router.Post("/reset-password/{userId}/{token}", h.ResetPassword)
	router.Post("/logout", h.Logout)

	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Get("/profile", h.Profile)
	})

	return router
}

// write applies any cookie instructions the envelope carries, then renders it.
func (h *Handler) write(w http.ResponseWriter, envelope *result.Envelope) {
	respond.ApplyCookies(w, envelope.Cookies(), h.secureCookies)
	respond.Envelope(w, envelope)
}

type signupRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	DateOfBirth     string `json:"dateOfBirth"`
	Gender          string `json:"gender"`
	Role            string `json:"role"`

	// Cart is accepted so checkout-initiated signups round-trip their basket
	// client-side; this service does not read it.
	Cart json.RawMessage `json:"cart"`
}

// Signup handles POST /signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if err := requestutil.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	envelope, err := h.service.Signup(r.Context(), SignupInput{
		FirstName:       body.FirstName,
		LastName:        body.LastName,
		Email:           body.Email,
		Password:        body.Password,
		ConfirmPassword: body.ConfirmPassword,
		DateOfBirth:     body.DateOfBirth,
		Gender:          body.Gender,
		Role:            body.Role,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.write(w, envelope)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := requestutil.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	envelope, err := h.service.Login(r.Context(), LoginInput{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.write(w, envelope)
}

// Profile handles GET /profile. RequireAuth guarantees claims are present.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := requestutil.RequiredUserID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	envelope, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.write(w, envelope)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /forgot-password.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordRequest
	if err := requestutil.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	envelope, err := h.service.RequestPasswordReset(r.Context(), body.Email)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.write(w, envelope)
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ResetPassword handles POST /reset-password/{userId}/{token}.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if err := requestutil.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	envelope, err := h.service.ResetPassword(r.Context(), ResetPasswordInput{
		UserID:          chi.URLParam(r, "userId"),
		Token:           chi.URLParam(r, "token"),
		Password:        body.Password,
		ConfirmPassword: body.ConfirmPassword,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.write(w, envelope)
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if err := requestutil.DecodeJSON(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	envelope, err := h.service.Logout(r.Context(), body.RefreshToken)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.write(w, envelope)
}
