package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/ratelimit"
	"github.com/trezcool/tadris/core/rules"
	"github.com/trezcool/tadris/core/user"
)

const (
	passwordResetSentText = "إذا كان البريد الإلكتروني مرتبطًا بحساب مفعل، فستصلك رسالة قريبًا تتضمن تعليمات إعادة تعيين كلمة المرور."
	passwordResetDoneText = "تمت إعادة تعيين كلمة المرور بنجاح."
	passwordChangedText   = "تم تغيير كلمة المرور بنجاح."
)

type (
	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DataResponse struct {
		Data interface{} `json:"data"`
	}
)

type authApi struct {
	conf *core.Config
	svc  *user.Service
	val  *requestValidator
}

func registerAuthAPI(g *echo.Group, s *Server) {
	api := authApi{conf: s.deps.Conf, svc: s.deps.UserSvc, val: s.validator()}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login, s.throttle(ratelimit.PolicyLogin))
	ag.POST("/register", api.register, s.throttle(ratelimit.PolicyRegister))
	ag.POST("/forgot-password", api.forgotPassword, s.throttle(ratelimit.PolicyPasswordReset))
	ag.POST("/reset-password", api.resetPassword, s.throttle(ratelimit.PolicyPasswordReset))

	// authed endpoints
	jg := ag.Group("", s.jwt, s.throttle(ratelimit.PolicyAPI))
	jg.POST("/token-refresh", api.refreshToken)
	jg.GET("/profile", api.profile)
	jg.PUT("/profile", api.updateProfile)
	jg.PUT("/password", api.changePassword)
}

type userApi struct {
	svc *user.Service
}

func registerUserAPI(g *echo.Group, s *Server) {
	api := userApi{svc: s.deps.UserSvc}

	ug := g.Group("/users", s.jwt, s.throttle(ratelimit.PolicyAPI), roleMiddleware(user.RoleAdmin))
	ug.GET("", api.query)
	ug.GET("/roles", api.queryRoles)
	ug.GET("/:id", api.retrieve)
	ug.DELETE("/:id", api.destroy)
}

// Auth handlers

func (api *authApi) login(ctx echo.Context) error {
	data, err := api.val.validate(ctx, rules.OpLogin)
	if err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), str(data["email"]), str(data["password"]))
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *authApi) register(ctx echo.Context) error {
	data, err := api.val.validate(ctx, rules.OpRegister)
	if err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), user.NewUserFromInput(data))
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, User: usr})
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	data, err := api.val.validate(ctx, rules.OpForgotPassword)
	if err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), str(data["email"])); err != nil && !errors.Is(err, user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetSentText})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	data, err := api.val.validate(ctx, rules.OpResetPassword)
	if err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), str(data["uid"]), str(data["token"]), str(data["password"])); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetDoneText})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *authApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: usr})
}

func (api *authApi) updateProfile(ctx echo.Context) error {
	data, err := api.val.validate(ctx, rules.OpUpdateProfile)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	usr, err := api.svc.UpdateProfile(ctx.Request().Context(), claims.Subject, user.ProfileUpdateFromInput(data))
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: usr})
}

func (api *authApi) changePassword(ctx echo.Context) error {
	data, err := api.val.validate(ctx, rules.OpChangePassword)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.ChangePassword(ctx.Request().Context(), claims.Subject, str(data["current_password"]), str(data["password"])); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordChangedText})
}

// User handlers

func (api *userApi) query(ctx echo.Context) error {
	users, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: users})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, DataResponse{Data: user.Roles})
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: usr})
}

func (api *userApi) destroy(ctx echo.Context) error {
	id := ctx.Param("id")
	if claims, err := getContextClaims(ctx); err == nil && claims.Subject == id {
		return errHttpForbidden
	}
	if _, err := api.svc.GetByID(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
