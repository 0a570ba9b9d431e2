package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core/ratelimit"
	"github.com/trezcool/tadris/core/rules"
)

const defaultUploadFolder = "attachments"

type resourceApi struct {
	val       *requestValidator
	uploadDir string
}

// resource maps the commands of one entity to their operations.
type resource struct {
	path   string
	create string
	update string
}

var resources = []resource{
	{path: "/students", create: rules.OpCreateStudent, update: rules.OpUpdateStudent},
	{path: "/groups", create: rules.OpCreateGroup, update: rules.OpUpdateGroup},
	{path: "/sessions", create: rules.OpCreateSession, update: rules.OpUpdateSession},
	{path: "/attendance", create: rules.OpRecordAttendance, update: rules.OpUpdateAttendance},
	{path: "/payments", create: rules.OpCreatePayment, update: rules.OpUpdatePayment},
	{path: "/quizzes", create: rules.OpCreateQuiz, update: rules.OpUpdateQuiz},
	{path: "/exams", create: rules.OpCreateExam, update: rules.OpUpdateExam},
	{path: "/announcements", create: rules.OpCreateAnnouncement, update: rules.OpUpdateAnnouncement},
}

func registerResourceAPI(g *echo.Group, s *Server) {
	api := resourceApi{
		val:       s.validator(),
		uploadDir: filepath.Join(s.deps.Conf.WorkDir, "storage", "uploads"),
	}

	ag := g.Group("", s.jwt)
	rg := ag.Group("", s.throttle(ratelimit.PolicyAPI))
	for _, res := range resources {
		rg.POST(res.path, api.command(res.create, http.StatusCreated))
		rg.PUT(res.path+"/:"+rules.IDParam, api.command(res.update, http.StatusOK))
	}
	rg.POST("/groups/:"+rules.IDParam+"/students", api.command(rules.OpAssignStudents, http.StatusOK))
	rg.POST("/quizzes/:"+rules.IDParam+"/submit", api.command(rules.OpSubmitQuiz, http.StatusCreated))
	rg.POST("/exams/:"+rules.IDParam+"/results", api.command(rules.OpRecordExamResult, http.StatusCreated))

	ag.POST("/notifications", api.command(rules.OpSendNotification, http.StatusAccepted), s.throttle(ratelimit.PolicyNotifications))
	ag.POST("/reports/export", api.command(rules.OpExportReport, http.StatusAccepted), s.throttle(ratelimit.PolicyReportsExport))
	ag.POST("/uploads", api.upload, s.throttle(ratelimit.PolicyUploads))
}

// command answers with the validated payload once op accepted it.
func (api *resourceApi) command(op string, code int) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		data, err := api.val.validate(ctx, op)
		if err != nil {
			return err
		}
		return ctx.JSON(code, DataResponse{Data: data})
	}
}

type UploadResponse struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (api *resourceApi) upload(ctx echo.Context) error {
	data, err := api.val.validate(ctx, rules.OpUploadFile)
	if err != nil {
		return err
	}
	fh, ok := data["file"].(*multipart.FileHeader)
	if !ok {
		return errors.New("validated upload has no file")
	}
	folder := defaultUploadFolder
	if f := str(data["folder"]); f != "" {
		folder = f
	}

	path, err := api.store(folder, fh)
	if err != nil {
		return errors.Wrap(err, "storing upload")
	}
	return ctx.JSON(http.StatusCreated, DataResponse{Data: UploadResponse{Path: path, Name: fh.Filename, Size: fh.Size}})
}

// store copies the uploaded file under a generated name and returns its path relative to the upload dir.
func (api *resourceApi) store(folder string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening uploaded file")
	}
	defer src.Close()

	dir := filepath.Join(api.uploadDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload folder")
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", errors.Wrap(err, "copying upload")
	}
	return filepath.ToSlash(filepath.Join(folder, name)), nil
}
