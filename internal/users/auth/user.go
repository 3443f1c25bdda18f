// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

/*
Package auth implements the account credential and token lifecycle.

It defines the core domain entities (User, ResetToken) and the flows for
registration, authentication, password recovery, and logout.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
transport dependencies and encapsulate all business rules related to
account identity.
*/
package auth

import (
	"time"

	"github.com/veloriahq/veloria/internal/platform/sec"
)

// # Domain Entities

// User represents a registered Veloria shopper.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	DateOfBirth  time.Time    `json:"dateOfBirth"`
	Gender       string       `json:"gender"`
	Role         sec.UserRole `json:"role"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// ResetToken is the single live password-reset credential for a user.
//
// It is volatile state: the Redis store keys it by user ID, which is what
// enforces "at most one live token per user". It never appears in Postgres.
type ResetToken struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// # Genders

// Accepted values for the gender profile field.
const (
	GenderFemale = "female"
	GenderMale   = "male"
	GenderOther  = "other"
)

// # Field Identifiers

// Field names for validation and JSON mapping in the authentication domain.
const (
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldDateOfBirth     = "dateOfBirth"
	FieldGender          = "gender"
	FieldRole            = "role"
	FieldToken           = "token"
	FieldAccessToken     = "accessToken"
	FieldRefreshToken    = "refreshToken"
	FieldUser            = "user"
	FieldUserID          = "userId"
)

// DateOfBirthLayout is the wire format for the dateOfBirth field.
const DateOfBirthLayout = "2006-01-02"
