package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/user"
)

func Test_userApi_register(t *testing.T) {
	env := setupServer(t)
	createUser(t, env.usrRepo, "taken", "pwd", user.RoleStudent)

	tests := []httpTest{
		{
			name:     "teacher registration",
			method:   http.MethodPost,
			path:     "/users/register",
			body:     []byte(`{"username":"prof","role":"Teacher","password":"s3cr3t","password_confirm":"s3cr3t"}`),
			wantCode: http.StatusCreated,
		},
		{
			name:     "student registration",
			method:   http.MethodPost,
			path:     "/users/register",
			body:     []byte(`{"username":"awe","email":"awe@test.cd","role":"Student","password":"s3cr3t","password_confirm":"s3cr3t"}`),
			wantCode: http.StatusCreated,
		},
		{
			name:     "unknown role",
			method:   http.MethodPost,
			path:     "/users/register",
			body:     []byte(`{"username":"kid","role":"Admin","password":"s3cr3t","password_confirm":"s3cr3t"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "password mismatch",
			method:   http.MethodPost,
			path:     "/users/register",
			body:     []byte(`{"username":"kid","role":"Student","password":"s3cr3t","password_confirm":"nope"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "duplicate username",
			method:   http.MethodPost,
			path:     "/users/register",
			body:     []byte(`{"username":"taken","role":"Student","password":"s3cr3t","password_confirm":"s3cr3t"}`),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	env := setupServer(t)
	usr := createUser(t, env.usrRepo, "awe", "s3cr3t", user.RoleStudent)

	t.Run("valid credentials", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/users/login", []byte(`{"username":"awe","password":"s3cr3t"}`))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decodeBody(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("login with email", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/users/login", []byte(`{"username":"`+usr.Email+`","password":"s3cr3t"}`))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/users/login", []byte(`{"username":"awe","password":"nope"}`))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/users/login", []byte(`{"username":"ghost","password":"nope"}`))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/users/login", []byte(`{}`))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
