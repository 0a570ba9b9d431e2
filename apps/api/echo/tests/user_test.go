package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/tadris/apps/api/echo"
	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/user"
	"github.com/trezcool/tadris/tests"
)

func decodeLogin(t *testing.T, body []byte) LoginResponse {
	t.Helper()
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func Test_authApi_login(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, env.usrRepo, "ليلى", "layla@test.cd", strongPassword, []string{user.RoleStudent}, false)

	invalidCreds := user.InvalidCredentialsError().(*core.ValidationError).Map()

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantCode   int
		wantErrors map[string][]string
	}{
		{
			name:     "empty payload",
			body:     map[string]interface{}{},
			wantCode: http.StatusUnprocessableEntity,
			wantErrors: map[string][]string{
				"email":    {"حقل البريد الإلكتروني مطلوب."},
				"password": {"حقل كلمة المرور مطلوب."},
			},
		},
		{
			name:       "wrong password",
			body:       map[string]interface{}{"email": usr.Email, "password": "nope"},
			wantCode:   http.StatusUnprocessableEntity,
			wantErrors: invalidCreds,
		},
		{
			name:       "unknown email",
			body:       map[string]interface{}{"email": "ghost@test.cd", "password": strongPassword},
			wantCode:   http.StatusUnprocessableEntity,
			wantErrors: invalidCreds,
		},
		{
			name:       "inactive account",
			body:       map[string]interface{}{"email": "layla@test.cd", "password": strongPassword},
			wantCode:   http.StatusUnprocessableEntity,
			wantErrors: invalidCreds,
		},
		{
			name:     "success, email is case insensitive",
			body:     map[string]interface{}{"email": " SARA@test.cd ", "password": strongPassword},
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", marchallObj(t, tt.body))
			env.serve(req, rec)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErrors != nil {
				assert.Equal(t, tt.wantErrors, errorsOf(t, rec))
				return
			}

			resp := decodeLogin(t, rec.Body.Bytes())
			assert.Equal(t, usr.ID, resp.User.ID)
			assert.False(t, resp.User.LastLogin.IsZero())

			claims := new(Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(env.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, usr.ID, claims.Subject)
			assert.Equal(t, []string{user.RoleStudent}, claims.Roles)
		})
	}
}

func Test_authApi_register(t *testing.T) {
	env := setup(t)
	testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)

	valid := map[string]interface{}{
		"name":                  "أحمد علي",
		"email":                 "Ahmed@Test.cd",
		"password":              strongPassword,
		"password_confirmation": strongPassword,
		"role":                  user.RoleParent,
	}
	with := func(key string, val interface{}) map[string]interface{} {
		m := make(map[string]interface{}, len(valid))
		for k, v := range valid {
			m[k] = v
		}
		m[key] = val
		return m
	}

	t.Run("taken email and forbidden role", func(t *testing.T) {
		body := with("email", "sara@test.cd")
		body["role"] = user.RoleAdmin
		req, rec := newRequest(http.MethodPost, "/v1/auth/register", marchallObj(t, body))
		env.serve(req, rec)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		errs := errorsOf(t, rec)
		assert.Equal(t, []string{"قيمة حقل البريد الإلكتروني مستخدمة من قبل."}, errs["email"])
		assert.Equal(t, []string{"القيمة المختارة في حقل نوع الحساب غير صالحة."}, errs["role"])
		assert.Len(t, errs, 2)
	})

	t.Run("unconfirmed password", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/register", marchallObj(t, with("password_confirmation", "other")))
		env.serve(req, rec)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, errorsOf(t, rec), "password")
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/register", marchallObj(t, valid))
		env.serve(req, rec)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		resp := decodeLogin(t, rec.Body.Bytes())
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "ahmed@test.cd", resp.User.Email)
		assert.Equal(t, []string{user.RoleParent}, resp.User.Roles)
		assert.True(t, resp.User.IsActive)
	})
}

func Test_authApi_passwordReset(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)
	newPassword := "Zx&7pQe!4nT"

	// unknown emails fail the exists rule
	req, rec := newRequest(http.MethodPost, "/v1/auth/forgot-password", marchallObj(t, map[string]string{"email": "ghost@test.cd"}))
	env.serve(req, rec)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, errorsOf(t, rec), "email")

	req, rec = newRequest(http.MethodPost, "/v1/auth/forgot-password", marchallObj(t, map[string]string{"email": usr.Email}))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := env.mailSvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, usr.Email, sent[0].To[0].Address)

	token := env.usrSvc.MakeResetToken(usr)
	resetBody := func(token string) []byte {
		return marchallObj(t, map[string]string{
			"uid":                   user.EncodeUID(usr),
			"token":                 token,
			"password":              newPassword,
			"password_confirmation": newPassword,
		})
	}

	// another client, with its own quota
	req, rec = newRequest(http.MethodPost, "/v1/auth/reset-password", resetBody("bad-token"))
	req.RemoteAddr = "198.51.100.7:4321"
	env.serve(req, rec)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, errorsOf(t, rec), "token")

	req, rec = newRequest(http.MethodPost, "/v1/auth/reset-password", resetBody(token))
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// the password-reset policy allows 3 requests per minute and IP
	req, rec = newRequest(http.MethodPost, "/v1/auth/reset-password", resetBody(token))
	env.serve(req, rec)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	req, rec = newRequest(http.MethodPost, "/v1/auth/login", marchallObj(t, map[string]string{"email": usr.Email, "password": newPassword}))
	env.serve(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_authApi_profile(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, env.usrRepo, "ليلى", "layla@test.cd", strongPassword, []string{user.RoleStudent}, true)
	token := getToken(t, env.conf, usr)

	tests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/v1/auth/profile",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "retrieve",
			method:   http.MethodGet,
			path:     "/v1/auth/profile",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, DataResponse{Data: usr}),
		},
		{
			name:     "email taken by another user",
			method:   http.MethodPut,
			path:     "/v1/auth/profile",
			token:    token,
			body:     marchallObj(t, map[string]string{"email": "LAYLA@test.cd"}),
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, map[string]interface{}{
				"message": "البيانات المرسلة غير صالحة.",
				"errors":  map[string][]string{"email": {"قيمة حقل البريد الإلكتروني مستخدمة من قبل."}},
			}),
		},
		{
			name:     "own email",
			method:   http.MethodPut,
			path:     "/v1/auth/profile",
			token:    token,
			body:     marchallObj(t, map[string]string{"email": usr.Email, "name": "سارة أحمد"}),
			wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, env, tests)

	updated, err := env.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "سارة أحمد", updated.Name)
	assert.Equal(t, usr.Email, updated.Email)
}

func Test_authApi_changePassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)
	token := getToken(t, env.conf, usr)
	newPassword := "Zx&7pQe!4nT"

	tests := []httpTest{
		{
			name:     "weak password",
			method:   http.MethodPut,
			path:     "/v1/auth/password",
			token:    token,
			body:     marchallObj(t, map[string]string{"current_password": strongPassword, "password": "12345678", "password_confirmation": "12345678"}),
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "wrong current password",
			method:   http.MethodPut,
			path:     "/v1/auth/password",
			token:    token,
			body:     marchallObj(t, map[string]string{"current_password": "wrong", "password": newPassword, "password_confirmation": newPassword}),
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, map[string]interface{}{
				"message": "البيانات المرسلة غير صالحة.",
				"errors":  map[string][]string{"current_password": {"كلمة المرور الحالية غير صحيحة."}},
			}),
		},
		{
			name:     "success",
			method:   http.MethodPut,
			path:     "/v1/auth/password",
			token:    token,
			body:     marchallObj(t, map[string]string{"current_password": strongPassword, "password": newPassword, "password_confirmation": newPassword}),
			wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, env, tests)
}

func Test_authApi_refreshToken(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)

	expired, err := GenerateToken(env.conf, GetUserClaims(env.conf, usr, time.Now().Add(-env.conf.Server.JWTRefreshExpirationDelta-time.Hour).Unix()))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "no token", method: http.MethodPost, path: "/v1/auth/token-refresh", wantCode: http.StatusUnauthorized},
		{name: "refresh expired", method: http.MethodPost, path: "/v1/auth/token-refresh", token: expired, wantCode: http.StatusForbidden},
		{name: "success", method: http.MethodPost, path: "/v1/auth/token-refresh", token: getToken(t, env.conf, usr), wantCode: http.StatusOK},
	}
	runHTTPTests(t, env, tests)
}

func Test_userApi(t *testing.T) {
	env := setup(t)
	student := testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, env.usrRepo, "مدير", "admin@test.cd", strongPassword, []string{user.RoleAdmin}, true)
	adminToken := getToken(t, env.conf, admin)

	tests := []httpTest{
		{name: "not admin", method: http.MethodGet, path: "/v1/users", token: getToken(t, env.conf, student), wantCode: http.StatusForbidden},
		{name: "roles", method: http.MethodGet, path: "/v1/users/roles", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, DataResponse{Data: user.Roles})},
		{name: "retrieve", method: http.MethodGet, path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, DataResponse{Data: student})},
		{name: "delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodGet, path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusNotFound},
		{name: "list", method: http.MethodGet, path: "/v1/users", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, DataResponse{Data: []user.User{admin}})},
	}
	runHTTPTests(t, env, tests)
}
