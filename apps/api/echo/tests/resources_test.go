package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tadris/core/user"
	"github.com/trezcool/tadris/storage/database/inmem"
	"github.com/trezcool/tadris/tests"
)

func Test_resourceApi_students(t *testing.T) {
	env := setup(t)
	teacher := testutil.CreateUser(t, env.usrRepo, "معلم", "teacher@test.cd", strongPassword, []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)
	env.db.Insert("groups", inmemdb.Record{ID: "3"})
	env.db.Insert("students", inmemdb.Record{ID: "7", Fields: map[string]interface{}{"email": "taken@test.cd"}})
	token := getToken(t, env.conf, teacher)

	t.Run("students may not create students, whatever the payload", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", getToken(t, env.conf, student), []byte(`{}`))
		env.serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"message": "غير مصرح لك بتنفيذ هذا الإجراء."}`, rec.Body.String())
	})

	t.Run("every field error is reported", func(t *testing.T) {
		body := []byte(`{"email": "TAKEN@test.cd", "group_id": 9, "gender": "x", "birth_date": "2999-01-01"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", token, body)
		env.serve(req, rec)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errs := errorsOf(t, rec)
		for _, field := range []string{"name", "email", "group_id", "gender", "birth_date"} {
			assert.Contains(t, errs, field)
		}
		assert.Len(t, errs, 5)
	})

	t.Run("create", func(t *testing.T) {
		body := []byte(`{"name": " أحمد علي ", "group_id": 3, "extra": "dropped", "notes": ""}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", token, body)
		env.serve(req, rec)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "أحمد علي", resp.Data["name"])
		assert.EqualValues(t, 3, resp.Data["group_id"])
		assert.NotContains(t, resp.Data, "extra")
		assert.Nil(t, resp.Data["notes"])
	})

	t.Run("update keeps own email and only checks present fields", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/7", token, []byte(`{"email": "taken@test.cd"}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"data": {"email": "taken@test.cd"}}`, rec.Body.String())
	})
}

func Test_resourceApi_throttle(t *testing.T) {
	env := setup(t)
	teacher := testutil.CreateUser(t, env.usrRepo, "معلم", "teacher@test.cd", strongPassword, []string{user.RoleTeacher}, true)
	token := getToken(t, env.conf, teacher)
	body := []byte(`{"title": "تنبيه", "body": "نص", "channel": "email", "recipient_ids": []}`)

	// the notifications policy allows 5 requests per minute and user
	for i := 1; i <= 5; i++ {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications", token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(5-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/notifications", token, body)
	env.serve(req, rec)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other users keep their own quota
	other := testutil.CreateUser(t, env.usrRepo, "معلمة", "teacher2@test.cd", strongPassword, []string{user.RoleTeacher}, true)
	req, rec = newAuthRequest(http.MethodPost, "/v1/notifications", getToken(t, env.conf, other), body)
	env.serve(req, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func newUploadRequest(t *testing.T, token, filename string, content []byte, fields map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_resourceApi_upload(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "سارة", "sara@test.cd", strongPassword, []string{user.RoleStudent}, true)
	token := getToken(t, env.conf, usr)

	t.Run("missing file", func(t *testing.T) {
		req, rec := newUploadRequest(t, token, "", nil, map[string]string{"folder": "avatars"})
		env.serve(req, rec)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, []string{"حقل الملف مطلوب."}, errorsOf(t, rec)["file"])
	})

	t.Run("wrong type and folder", func(t *testing.T) {
		req, rec := newUploadRequest(t, token, "run.exe", []byte("MZ"), map[string]string{"folder": "bin"})
		env.serve(req, rec)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errs := errorsOf(t, rec)
		assert.Contains(t, errs, "file")
		assert.Contains(t, errs, "folder")
	})

	t.Run("stored", func(t *testing.T) {
		req, rec := newUploadRequest(t, token, "Photo.PNG", []byte("png"), map[string]string{"folder": "avatars"})
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			Data struct {
				Path string `json:"path"`
				Name string `json:"name"`
				Size int64  `json:"size"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Photo.PNG", resp.Data.Name)
		assert.EqualValues(t, 3, resp.Data.Size)
		assert.Equal(t, "avatars", filepath.Dir(resp.Data.Path))
		assert.Equal(t, ".png", filepath.Ext(resp.Data.Path))

		content, err := os.ReadFile(filepath.Join(env.conf.WorkDir, "storage", "uploads", filepath.FromSlash(resp.Data.Path)))
		require.NoError(t, err)
		assert.Equal(t, "png", string(content))
	})
}
