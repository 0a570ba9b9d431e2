package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/tadris/apps/api/echo"
	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/authz"
	"github.com/trezcool/tadris/core/guard"
	"github.com/trezcool/tadris/core/ratelimit"
	"github.com/trezcool/tadris/core/rules"
	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
	"github.com/trezcool/tadris/core/validation"
	"github.com/trezcool/tadris/services/email"
	"github.com/trezcool/tadris/services/logger"
	"github.com/trezcool/tadris/storage/database/inmem"
)

const strongPassword = "Qz!8vLr#2mW"

type testEnv struct {
	conf    *core.Config
	app     *Server
	db      *inmemdb.DB
	usrRepo user.Repository
	usrSvc  *user.Service
	mailSvc *emailsvc.ConsoleService
	limiter *ratelimit.Limiter
	setSvc  *setting.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := core.NewTestConfig()
	conf.WorkDir = t.TempDir()
	discard := log.New(io.Discard, "", 0)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	settings := inmemdb.NewSettingStore(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(discard, conf, core.NewMailTemplates(conf))
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	setSvc := setting.NewService(settings)

	reg, err := rules.NewRegistry(settings)
	require.NoError(t, err)
	authorizer, err := authz.New(reg.All()...)
	require.NoError(t, err)
	validator := validation.New(reg, validation.Options{
		Lookup:         inmemdb.NewLookup(db),
		Authorizer:     authorizer,
		PasswordPolicy: user.PasswordPolicy,
	})
	limiter := ratelimit.NewLimiter(ratelimit.DefaultTable(), ratelimit.NewMemoryStore())

	// set up server
	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logsvc.NewRollbarLogger(discard, conf),
		UserSvc:    usrSvc,
		SettingSvc: setSvc,
		Validator:  validator,
		Limiter:    limiter,
		Guard: guard.New(guard.Config{
			LoginPath:         conf.Portal.LoginPath,
			HomePath:          conf.Portal.HomePath,
			ReturnParam:       conf.Portal.ReturnParam,
			ProtectedPrefixes: conf.Portal.ProtectedPrefixes,
			AuthPaths:         conf.Portal.AuthPaths,
		}),
		DisableReqLogs: true,
	})

	return &testEnv{
		conf:    conf,
		app:     app,
		db:      db,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		limiter: limiter,
		setSvc:  setSvc,
	}
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, env.serve(req, rec))
		})
	}
}

// errorsOf decodes the field errors of a 422 response.
func errorsOf(t *testing.T, rec *httptest.ResponseRecorder) map[string][]string {
	t.Helper()
	var body struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Message)
	return body.Errors
}
