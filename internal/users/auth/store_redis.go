// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veloriahq/veloria/internal/platform/apperr"
	"github.com/veloriahq/veloria/internal/platform/constants"
)

// RedisResetTokenRepository implements ResetTokenRepository using Redis.
//
// # Invariant Enforcement
//
// The key is the USER ID, not the token. One key per user means at most one
// live token per user; SETNX makes concurrent creations race-safe; the TTL
// gives expiry without a sweeper.
type RedisResetTokenRepository struct {
	client *redis.Client
}

// NewResetTokenRepository creates a new Redis-backed ResetTokenRepository.
func NewResetTokenRepository(client *redis.Client) *RedisResetTokenRepository {
	return &RedisResetTokenRepository{client: client}
}

/*
GetOrCreate returns the user's live reset token, storing candidate only when
none exists.

Description: SETNX claims the slot atomically. If another request (or an
earlier one) already holds a live token, that value is returned instead, which
is what makes repeated reset requests idempotent.

Parameters:
  - context: context.Context
  - userID: string
  - candidate: string
  - ttl: time.Duration

Returns:
  - string: The live token value
  - error: Execution errors
*/
func (repository *RedisResetTokenRepository) GetOrCreate(context context.Context, userID, candidate string, ttl time.Duration) (string, error) {
	key := constants.RedisPrefixResetToken + userID

	created, err := repository.client.SetNX(context, key, candidate, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis_reset_token_setnx_failed: %w", err)
	}
	if created {
		return candidate, nil
	}

	existing, err := repository.client.Get(context, key).Result()
	if err != nil {
		// The live token expired between SETNX and GET. Claim the slot with
		// the candidate; losing a second race here just hands out the winner's
		// token on the next request.
		if errors.Is(err, redis.Nil) {
			if err := repository.client.Set(context, key, candidate, ttl).Err(); err != nil {
				return "", fmt.Errorf("redis_reset_token_set_failed: %w", err)
			}
			return candidate, nil
		}
		return "", fmt.Errorf("redis_reset_token_get_failed: %w", err)
	}

	return existing, nil
}

/*
Find checks that token is the live reset token for userID.

Description: Absent, expired, consumed, and mismatched tokens are all the same
outcome class — apperr.NotFound — so callers cannot distinguish which half of
the lookup failed.

Parameters:
  - context: context.Context
  - userID: string
  - token: string

Returns:
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisResetTokenRepository) Find(context context.Context, userID, token string) error {
	key := constants.RedisPrefixResetToken + userID

	live, err := repository.client.Get(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return apperr.NotFound("Reset token")
		}
		return fmt.Errorf("redis_reset_token_get_failed: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(live), []byte(token)) != 1 {
		return apperr.NotFound("Reset token")
	}

	return nil
}

/*
Delete consumes the user's live reset token.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisResetTokenRepository) Delete(context context.Context, userID string) error {
	key := constants.RedisPrefixResetToken + userID

	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_reset_token_delete_failed: %w", err)
	}

	return nil
}
