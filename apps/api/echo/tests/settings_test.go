package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
	"github.com/trezcool/tadris/tests"
)

func Test_settingApi(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.setSvc.Declare(ctx, setting.Descriptor{Key: "maintenance_mode", Type: setting.TypeBoolean}, false)
	require.NoError(t, err)
	_, err = env.setSvc.Declare(ctx, setting.Descriptor{Key: "site_name", Type: setting.TypeString, IsPublic: true}, "تدريس")
	require.NoError(t, err)

	admin := testutil.CreateUser(t, env.usrRepo, "مدير", "admin@test.cd", strongPassword, []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, env.usrRepo, "معلم", "teacher@test.cd", strongPassword, []string{user.RoleTeacher}, true)
	adminToken := getToken(t, env.conf, admin)
	teacherToken := getToken(t, env.conf, teacher)

	tests := []httpTest{
		{name: "public list is anonymous", method: http.MethodGet, path: "/v1/settings/public", wantCode: http.StatusOK},
		{name: "list needs admin", method: http.MethodGet, path: "/v1/settings", token: teacherToken, wantCode: http.StatusForbidden},
		{name: "public setting", method: http.MethodGet, path: "/v1/settings/site_name", token: teacherToken, wantCode: http.StatusOK},
		{name: "private setting", method: http.MethodGet, path: "/v1/settings/maintenance_mode", token: teacherToken, wantCode: http.StatusForbidden},
		{name: "unknown setting", method: http.MethodGet, path: "/v1/settings/nope", token: adminToken, wantCode: http.StatusNotFound},
		{
			name:     "update needs admin",
			method:   http.MethodPut,
			path:     "/v1/settings/maintenance_mode",
			token:    teacherToken,
			body:     []byte(`{"value": true}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "value must match the declared type",
			method:   http.MethodPut,
			path:     "/v1/settings/maintenance_mode",
			token:    adminToken,
			body:     []byte(`{"value": "maybe"}`),
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "update",
			method:   http.MethodPut,
			path:     "/v1/settings/maintenance_mode",
			token:    adminToken,
			body:     []byte(`{"value": "1"}`),
			wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, env, tests)

	s, err := env.setSvc.Get(ctx, "maintenance_mode")
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(s.Value))

	req, rec := newRequest(http.MethodGet, "/v1/settings/public")
	env.serve(req, rec)
	var resp struct {
		Data []setting.Setting `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "site_name", resp.Data[0].Key)
}

func Test_portalGuard(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name         string
		path         string
		cookie       bool
		wantCode     int
		wantLocation string
	}{
		{name: "public page", path: "/about", wantCode: http.StatusNoContent},
		{name: "protected page without token", path: "/dashboard/payments", wantCode: http.StatusFound, wantLocation: "/login?redirect=%2Fdashboard%2Fpayments"},
		{name: "protected page with token", path: "/dashboard/payments", cookie: true, wantCode: http.StatusNoContent},
		{name: "login with token", path: "/login", cookie: true, wantCode: http.StatusFound, wantLocation: "/dashboard"},
		{name: "login without token", path: "/login", wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: env.conf.Portal.TokenCookie, Value: "token"})
			}
			env.serve(req, rec)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}
}
