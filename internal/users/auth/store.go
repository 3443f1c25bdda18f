// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// # Store-Level Invariants
//
// Two invariants live at this boundary, not in the service:
//   - Email uniqueness (unique index on the normalized email column).
//   - Password hashing: Create and UpdatePassword accept PLAINTEXT and hash
//     before persisting, so a password is rehashed whenever its value changes
//     and a plaintext value can never reach a row by accident.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.
		The email is normalized before lookup.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user account, hashing the given
		plaintext password as part of the save.

		Parameters:
		  - context: context.Context
		  - user: *User (PasswordHash is populated by the store)
		  - plainPassword: string

		Returns:
		  - error: apperr.Conflict on duplicate email, or persistence failures
	*/
	Create(context context.Context, user *User, plainPassword string) error

	/*
		UpdatePassword replaces the user's password, hashing the given
		plaintext value.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newPlainPassword: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newPlainPassword string) error
}

// # Volatile Data Access

// ResetTokenRepository defines the contract for the single live password-reset
// token per user.
//
// The "at most one live token" invariant and the race between two concurrent
// creations are both resolved HERE (atomically, via SETNX in the Redis
// implementation), never in the service layer.
type ResetTokenRepository interface {

	/*
		GetOrCreate returns the user's live reset token, storing candidate
		with the given TTL only if no live token exists. Repeated calls
		without an intervening reset return the same value.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - candidate: string (freshly generated opaque value)
		  - ttl: time.Duration

		Returns:
		  - string: The live token (candidate or the pre-existing one)
		  - error: Persistence failures
	*/
	GetOrCreate(context context.Context, userID, candidate string, ttl time.Duration) (string, error)

	/*
		Find checks that token is the live reset token for userID.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - token: string

		Returns:
		  - error: apperr.NotFound when absent, expired, consumed, or
		    mismatched; retrieval failures otherwise
	*/
	Find(context context.Context, userID, token string) error

	/*
		Delete consumes the user's live reset token.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Deletion failures
	*/
	Delete(context context.Context, userID string) error
}
