// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

/*
Package result defines the uniform envelope returned by every service operation.

Architecture:

  - Envelope: {payload, success, isError, message, statusCode} plus the optional
    oldInput echo and validation error list.
  - Cookies: transport instructions carried alongside the envelope. The service
    never touches http.ResponseWriter; it records which cookies the transport
    layer must set or clear.

An Envelope is constructed once per operation and never mutated after return.
Expected business-rule failures become envelopes; infrastructure failures stay
plain Go errors and bypass this package entirely.
*/
package result

import (
	"github.com/veloriahq/veloria/internal/platform/apperr"
)

// Envelope is the uniform result of a service operation.
type Envelope struct {
	// Payload carries the operation's success data (tokens, user profile, ...).
	Payload any `json:"payload,omitempty"`
	// Success is true only for the operation's happy path.
	Success bool `json:"success"`
	// IsError is true for every expected business-rule failure.
	IsError bool `json:"isError"`
	// Message is a human-readable outcome description.
	Message string `json:"message"`
	// StatusCode is the HTTP status the transport must write.
	StatusCode int `json:"statusCode"`
	// OldInput echoes non-sensitive input fields for form repopulation on 422.
	OldInput map[string]string `json:"oldInput,omitempty"`
	// ValidationErrors lists every field-level failure on 422.
	ValidationErrors []apperr.FieldError `json:"validationErrors,omitempty"`

	// cookies holds transport instructions; never serialized to the body.
	cookies []Cookie
}

// Cookie instructs the transport layer to set (MaxAge > 0) or clear
// (MaxAge < 0) a named cookie. HttpOnly and the Secure flag are applied
// uniformly by the transport, not decided per cookie.
type Cookie struct {
	Name   string
	Value  string
	Path   string
	MaxAge int
}

// # Constructors

// OK builds a success envelope with the given status code, message, and payload.
func OK(statusCode int, message string, payload any) *Envelope {
	return &Envelope{
		Payload:    payload,
		Success:    true,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Fail builds an error envelope for an expected business-rule failure.
func Fail(statusCode int, message string) *Envelope {
	return &Envelope{
		IsError:    true,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Invalid builds a 422 envelope from a validation [apperr.AppError].
//
// The first field-level failure message is surfaced as the envelope message;
// the full list is attached, and oldInput echoes the caller-supplied
// non-sensitive fields.
func Invalid(err *apperr.AppError, oldInput map[string]string) *Envelope {
	message := err.Message
	if len(err.Details) > 0 {
		message = err.Details[0].Message
	}
	return &Envelope{
		IsError:          true,
		Message:          message,
		StatusCode:       err.HTTPStatus,
		OldInput:         oldInput,
		ValidationErrors: err.Details,
	}
}

// # Cookie Instructions

// WithCookies returns the envelope with the given transport cookie
// instructions attached. It mutates and returns the receiver for chaining
// during construction only.
func (e *Envelope) WithCookies(cookies ...Cookie) *Envelope {
	e.cookies = append(e.cookies, cookies...)
	return e
}

// Cookies returns the transport cookie instructions, if any.
func (e *Envelope) Cookies() []Cookie {
	return e.cookies
}

// SetCookie builds an instruction to set a cookie with the given lifetime in seconds.
func SetCookie(name, value, path string, maxAge int) Cookie {
	return Cookie{Name: name, Value: value, Path: path, MaxAge: maxAge}
}

// ClearCookie builds an instruction to expire a cookie immediately.
func ClearCookie(name, path string) Cookie {
	return Cookie{Name: name, Path: path, MaxAge: -1}
}
