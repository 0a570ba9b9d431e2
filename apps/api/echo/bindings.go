package echoapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const maxMultipartMemory = 32 << 20 // 32 MB

// bindPayload reads the request body into a generic payload.
// JSON bodies keep their numbers as json.Number. Form bodies map each key to its value,
// repeated keys and keys ending with "[]" to a list, and uploaded files to their *multipart.FileHeader.
func bindPayload(ctx echo.Context) (map[string]interface{}, error) {
	req := ctx.Request()
	if req.ContentLength == 0 && req.Method == http.MethodGet {
		return map[string]interface{}{}, nil
	}

	ctype := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		return bindJSON(req.Body)
	case strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		if err := req.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, invalidPayload(err)
		}
		data := formData(req.MultipartForm.Value)
		for key, files := range req.MultipartForm.File {
			if len(files) > 0 {
				data[strings.TrimSuffix(key, "[]")] = files[0]
			}
		}
		return data, nil
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		form, err := ctx.FormParams()
		if err != nil {
			return nil, invalidPayload(err)
		}
		return formData(form), nil
	case req.ContentLength == 0:
		return map[string]interface{}{}, nil
	default:
		return nil, echo.ErrUnsupportedMediaType
	}
}

func bindJSON(body io.Reader) (map[string]interface{}, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	data := make(map[string]interface{})
	if err := dec.Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		return nil, invalidPayload(err)
	}
	return data, nil
}

func formData(values map[string][]string) map[string]interface{} {
	data := make(map[string]interface{}, len(values))
	for key, vals := range values {
		if strings.HasSuffix(key, "[]") || len(vals) > 1 {
			items := make([]interface{}, len(vals))
			for i, val := range vals {
				items[i] = val
			}
			data[strings.TrimSuffix(key, "[]")] = items
			continue
		}
		if len(vals) == 1 {
			data[key] = vals[0]
		}
	}
	return data
}

func invalidPayload(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, invalidPayloadText).SetInternal(err)
}
