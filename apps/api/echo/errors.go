package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
)

const (
	invalidDataText     = "البيانات المرسلة غير صالحة."
	forbiddenText       = "غير مصرح لك بتنفيذ هذا الإجراء."
	unauthenticatedText = "يجب تسجيل الدخول أولاً."
	tooManyRequestsText = "عدد كبير جدًا من الطلبات. يرجى المحاولة لاحقًا."
	notFoundText        = "العنصر المطلوب غير موجود."
	accountInactiveText = "الحساب غير مفعل."
	refreshExpiredText  = "انتهت صلاحية تحديث الجلسة. يرجى تسجيل الدخول من جديد."
	serverErrorText     = "حدث خطأ في الخادم."
	invalidPayloadText  = "تعذر قراءة البيانات المرسلة."
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, unauthenticatedText)
	errAccountInactive = echo.NewHTTPError(http.StatusForbidden, accountInactiveText)
	errRefreshExpired  = echo.NewHTTPError(http.StatusForbidden, refreshExpiredText)
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, forbiddenText)
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			verr  *core.ValidationError
			rlerr *core.RateLimitError
			herr  *echo.HTTPError
		)
		switch {
		case errors.As(err, &verr):
			code = http.StatusUnprocessableEntity
			message = echo.Map{"message": invalidDataText, "errors": verr.Map()}
		case errors.Is(err, core.ErrPermissionDenied):
			code = http.StatusForbidden
			message = echo.Map{"message": forbiddenText}
		case errors.As(err, &rlerr):
			code = http.StatusTooManyRequests
			message = echo.Map{"message": tooManyRequestsText}
			ctx.Response().Header().Set("Retry-After", strconv.Itoa(rlerr.RetryAfterSeconds()))
		case errors.Is(err, user.ErrNotFound), errors.Is(err, setting.ErrNotFound):
			code = http.StatusNotFound
			message = echo.Map{"message": notFoundText}
		case errors.As(err, &herr):
			if herr == middleware.ErrJWTMissing || herr.Code == http.StatusUnauthorized {
				code = http.StatusUnauthorized
				message = echo.Map{"message": unauthenticatedText}
				break
			}
			if herr.Internal != nil {
				if ierr, ok := herr.Internal.(*echo.HTTPError); ok {
					herr = ierr
				}
			}
			code = herr.Code
			message = echo.Map{"message": herr.Message}
			if code == http.StatusNotFound {
				message = echo.Map{"message": notFoundText}
			}
		default: // any other error, lookup failures included, is a server error
			code = http.StatusInternalServerError
			message = echo.Map{"message": serverErrorText}

			var person core.LogPerson
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				person = core.LogPerson{ID: claims.Subject, Username: claims.Name, Email: claims.Email}
			}
			msg := http.StatusText(http.StatusInternalServerError)
			logger.Error(msg, errors.Wrap(err, msg), person)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = echo.Map{"message": serverErrorText, "error": err.Error()}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
