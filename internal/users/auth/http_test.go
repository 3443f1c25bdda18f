// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloriahq/veloria/internal/platform/constants"
	"github.com/veloriahq/veloria/internal/platform/middleware"
	"github.com/veloriahq/veloria/internal/platform/sec"
	"github.com/veloriahq/veloria/internal/users/auth"
)

// newTestRouter wires the auth routes behind the real authentication
// middleware, backed by in-memory stores and a throwaway RSA key.
func newTestRouter(t *testing.T) (*chi.Mux, *fakeUserRepo) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tokens := sec.NewTokenServiceFromKey(key, "veloria.shop")

	users := newFakeUserRepo()
	service := auth.NewService(users, newFakeResetRepo(), tokens, &fakeNotifier{}, "https://veloria.shop")
	handler := auth.NewHandler(service, false)

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(tokens, constants.AccessTokenCookieName, constants.SessionCookieName))
	router.Mount("/auth", handler.Routes())
	return router, users
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

const signupBody = `{
	"firstName": "Mira",
	"lastName": "Chen",
	"email": "mira@example.com",
	"password": "correct horse",
	"confirmPassword": "correct horse",
	"dateOfBirth": "1994-07-21",
	"gender": "female",
	"cart": [{"productId": "abc", "qty": 2}]
}`

/*
TestHTTP_Signup posts a signup with a checkout cart attached and checks the
201 envelope shape. The cart must be tolerated, not rejected.
*/
func TestHTTP_Signup(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := postJSON(t, router, "/auth/signup", signupBody)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var body struct {
		Success    bool              `json:"success"`
		IsError    bool              `json:"isError"`
		StatusCode int               `json:"statusCode"`
		Payload    map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.False(t, body.IsError)
	assert.Equal(t, http.StatusCreated, body.StatusCode)
	assert.NotEmpty(t, body.Payload["token"])
	assert.NotEmpty(t, body.Payload["accessToken"])
	assert.NotEmpty(t, body.Payload["refreshToken"])
}

/*
TestHTTP_Login checks cookie issuance: three HttpOnly cookies on success and
no password hash anywhere in the response.
*/
func TestHTTP_Login(t *testing.T) {
	router, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, postJSON(t, router, "/auth/signup", signupBody).Code)

	recorder := postJSON(t, router, "/auth/login", `{"email":"mira@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 3)
	byName := map[string]*http.Cookie{}
	for _, cookie := range cookies {
		byName[cookie.Name] = cookie
		assert.True(t, cookie.HttpOnly)
	}
	require.Contains(t, byName, constants.SessionCookieName)
	require.Contains(t, byName, constants.AccessTokenCookieName)
	require.Contains(t, byName, constants.RefreshTokenCookieName)

	assert.NotContains(t, recorder.Body.String(), "passwordHash")
	assert.NotContains(t, recorder.Body.String(), "$2a$")
}

/*
TestHTTP_MalformedJSON checks that an undecodable body takes the generic
error path instead of a domain envelope.
*/
func TestHTTP_MalformedJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := postJSON(t, router, "/auth/signup", `{"firstName": `)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

/*
TestHTTP_Profile checks the protected route: 401 without credentials, 200
with a Bearer access token, and 401 with a refresh token in the same slot.
*/
func TestHTTP_Profile(t *testing.T) {
	router, _ := newTestRouter(t)
	signup := postJSON(t, router, "/auth/signup", signupBody)
	require.Equal(t, http.StatusCreated, signup.Code)

	var created struct {
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(signup.Body.Bytes(), &created))

	get := func(authorization string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
		if authorization != "" {
			request.Header.Set("Authorization", authorization)
		}
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		return recorder
	}

	assert.Equal(t, http.StatusUnauthorized, get("").Code)
	assert.Equal(t, http.StatusUnauthorized, get("Bearer "+created.Payload["refreshToken"]).Code)

	recorder := get("Bearer " + created.Payload["accessToken"])
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "mira@example.com")
}

/*
TestHTTP_Logout checks that a successful logout expires the access and
refresh cookies but leaves the session cookie untouched.
*/
func TestHTTP_Logout(t *testing.T) {
	router, _ := newTestRouter(t)
	signup := postJSON(t, router, "/auth/signup", signupBody)
	require.Equal(t, http.StatusCreated, signup.Code)

	var created struct {
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(signup.Body.Bytes(), &created))

	recorder := postJSON(t, router, "/auth/logout", `{"refreshToken":"`+created.Payload["refreshToken"]+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, cookie := range cookies {
		assert.NotEqual(t, constants.SessionCookieName, cookie.Name)
		assert.LessOrEqual(t, cookie.MaxAge, 0, "logout cookies must expire")
	}
}
