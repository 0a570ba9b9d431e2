package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core/ratelimit"
	"github.com/trezcool/tadris/core/rules"
	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
)

type settingApi struct {
	svc *setting.Service
	val *requestValidator
}

func registerSettingAPI(g *echo.Group, s *Server) {
	api := settingApi{svc: s.deps.SettingSvc, val: s.validator()}

	sg := g.Group("/settings")
	sg.GET("/public", api.queryPublic, s.throttle(ratelimit.PolicyPublic))

	ag := sg.Group("", s.jwt, s.throttle(ratelimit.PolicyAPI))
	ag.GET("", api.query, roleMiddleware(user.RoleAdmin))
	ag.GET("/:"+setting.KeyParam, api.retrieve)
	ag.PUT("/:"+setting.KeyParam, api.update)
}

func (api *settingApi) query(ctx echo.Context) error {
	return api.list(ctx, false)
}

func (api *settingApi) queryPublic(ctx echo.Context) error {
	return api.list(ctx, true)
}

func (api *settingApi) list(ctx echo.Context, publicOnly bool) error {
	settings, err := api.svc.List(ctx.Request().Context(), publicOnly)
	if err != nil {
		return errors.Wrap(err, "listing settings")
	}
	if settings == nil {
		settings = []setting.Setting{}
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: settings})
}

// retrieve serves public settings to any user and the others to admins only.
func (api *settingApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param(setting.KeyParam))
	if err != nil {
		return errors.Wrap(err, "getting setting")
	}
	if !s.IsPublic {
		claims, err := getContextClaims(ctx)
		if err != nil || !hasRole(claims.Roles, user.RoleAdmin) {
			return errHttpForbidden
		}
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: s})
}

func (api *settingApi) update(ctx echo.Context) error {
	data, err := api.val.validate(ctx, rules.OpUpdateSetting)
	if err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), ctx.Param(setting.KeyParam), data[setting.ValueField])
	if err != nil {
		return errors.Wrap(err, "updating setting")
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: s})
}

func hasRole(roles []string, want string) bool {
	for _, role := range roles {
		if role == want {
			return true
		}
	}
	return false
}
