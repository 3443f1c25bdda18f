// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

// Package respond provides HTTP response helpers used by all API handlers.
//
// # Architecture
//
// This package centralizes the presentation logic for HTTP responses. Domain
// operations return a [result.Envelope]; handlers hand it to this package,
// which writes the status code, the JSON body, and any cookie instructions
// the envelope carries. Unhandled errors (infrastructure failures) take the
// generic [Error] path instead.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/veloriahq/veloria/internal/platform/apperr"
	"github.com/veloriahq/veloria/internal/platform/ctxutil"
	"github.com/veloriahq/veloria/internal/platform/result"
)

// ErrorEnvelope is the JSON envelope for unhandled error responses.
type ErrorEnvelope struct {
	Error   string              `json:"error"`
	Code    string              `json:"code"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// OK writes a 200 OK response. Used by infrastructure endpoints (health probes)
// that sit outside the domain envelope contract.
func OK(writer http.ResponseWriter, data interface{}) {
	JSON(writer, http.StatusOK, data)
}

// Envelope writes a domain [result.Envelope]: its status code and JSON body.
// Cookie instructions must be applied by the caller BEFORE this, because
// Set-Cookie headers cannot follow WriteHeader.
func Envelope(writer http.ResponseWriter, envelope *result.Envelope) {
	JSON(writer, envelope.StatusCode, envelope)
}

// ApplyCookies turns the envelope's transport instructions into Set-Cookie
// headers. HttpOnly is always on; the Secure flag is enabled outside
// development so local HTTP testing keeps working.
func ApplyCookies(writer http.ResponseWriter, cookies []result.Cookie, secure bool) {
	for _, instruction := range cookies {
		http.SetCookie(writer, &http.Cookie{
			Name:     instruction.Name,
			Value:    instruction.Value,
			Path:     instruction.Path,
			MaxAge:   instruction.MaxAge,
			Secure:   secure,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// Error converts any Go error into a standardized JSON API error response.
//
// This is the process-level generic error path: validation and business-rule
// failures never reach it (they are envelopes), only infrastructure errors
// and malformed requests do.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	var appError *apperr.AppError
	if !errors.As(err, &appError) {
		// Unexpected internal error: log full details but hide them from the client for security.
		logger := ctxutil.GetLogger(request.Context())
		logger.ErrorContext(request.Context(), "unhandled_error_swallowed",
			slog.String("error", err.Error()),
			slog.String("request_id", ctxutil.GetRequestID(request.Context())),
		)
		appError = apperr.Internal(err)
	}

	// Always log 5xx errors as they indicate server-side issues.
	if appError.HTTPStatus >= 500 {
		logger := ctxutil.GetLogger(request.Context())
		logger.ErrorContext(request.Context(), "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", ctxutil.GetRequestID(request.Context())),
			slog.Any("cause", appError.Cause),
		)
	}

	JSON(writer, appError.HTTPStatus, ErrorEnvelope{
		Error:   appError.Message,
		Code:    appError.Code,
		Details: appError.Details,
	})
}
