// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the domain's TokenSigner interface.
package sec

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veloriahq/veloria/internal/platform/constants"
)

// # Token Kinds

const (
	// TokenKindAccess authorizes API calls. Short-lived (~1 day).
	TokenKindAccess = "access"

	// TokenKindRefresh mints new access tokens. Longer-lived (~7 days).
	TokenKindRefresh = "refresh"

	// TokenKindSession is the legacy long-lived session credential (~1 year),
	// issued alongside the pair for older clients.
	TokenKindSession = "session"
)

// AuthClaims represents the payload embedded inside a Veloria JWT.
//
// # Why custom claims?
//
// By embedding the UserID and Role directly inside the JWT, the
// authentication middleware can reconstruct the active user context WITHOUT
// querying the database on every single API request.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID string `json:"uid"`
	Email  string `json:"eml,omitempty"`
	Role   string `json:"rol,omitempty"`
	Kind   string `json:"knd"`
}

// TokenService handles generation and verification of JWT tokens using RS256.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewTokenService creates a new TokenService.
// It reads RSA keys from the provided filesystem paths.
func NewTokenService(privateKeyPath, publicKeyPath, issuer string) (*TokenService, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
	}, nil
}

// NewTokenServiceFromKey creates a TokenService from an in-memory private key.
// Used by tests that generate throwaway keys instead of reading PEM files.
func NewTokenServiceFromKey(privateKey *rsa.PrivateKey, issuer string) *TokenService {
	return &TokenService{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
	}
}

// # Signing

// SignAccess creates a short-lived access token for the given user.
func (service *TokenService) SignAccess(userID string) (string, error) {
	return service.sign(TokenKindAccess, userID, "", "", constants.AccessTokenTTL)
}

// SignRefresh creates a refresh token for the given user.
func (service *TokenService) SignRefresh(userID string) (string, error) {
	return service.sign(TokenKindRefresh, userID, "", "", constants.RefreshTokenTTL)
}

// SignSession creates the legacy long-lived session token. Unlike the pair,
// it carries the user's email and role so older clients can render identity
// without a follow-up profile call.
func (service *TokenService) SignSession(userID, email, role string) (string, error) {
	return service.sign(TokenKindSession, userID, email, role, constants.SessionTokenTTL)
}

// sign builds and signs a JWT of the given kind.
func (service *TokenService) sign(kind, userID, email, role string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID: userID,
		Email:  email,
		Role:   role,
		Kind:   kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign %s token: %w", kind, err)
	}

	return signedToken, nil
}

// # Verification

// VerifyToken checks the signature and validity of an access or session JWT,
// returning its claims. Refresh tokens are rejected: they must never be used
// to authorize API calls.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	claims, err := service.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Kind == TokenKindRefresh {
		return nil, fmt.Errorf("sec: refresh token cannot authorize requests")
	}

	return claims, nil
}

// VerifyRefresh validates a refresh token and returns the owning user ID.
func (service *TokenService) VerifyRefresh(tokenString string) (string, error) {
	claims, err := service.parse(tokenString)
	if err != nil {
		return "", err
	}

	if claims.Kind != TokenKindRefresh {
		return "", fmt.Errorf("sec: token is not a refresh token")
	}

	return claims.UserID, nil
}

// parse verifies the RS256 signature and expiry of a JWT string.
func (service *TokenService) parse(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.publicKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	return claims, nil
}
