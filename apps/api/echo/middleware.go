package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core/guard"
	"github.com/trezcool/tadris/core/ratelimit"
)

// throttleMiddleware counts each request against policy, keyed on the authenticated user when there is one.
// It must run after the JWT middleware on authenticated routes.
func throttleMiddleware(limiter *ratelimit.Limiter, policy string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ratelimit.Identity{IP: ctx.RealIP()}
			if claims, err := getContextClaims(ctx); err == nil {
				id.UserID = claims.Subject
			}

			d, err := limiter.Allow(ctx.Request().Context(), policy, id)
			if d.Limit > 0 {
				h := ctx.Response().Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if err != nil {
				return errors.Wrap(err, "throttling")
			}
			return next(ctx)
		}
	}
}

// guardMiddleware redirects portal page requests per the route guard.
// A request is considered authenticated when it carries the token cookie.
func guardMiddleware(g *guard.Guard, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			hasToken := false
			if c, err := ctx.Cookie(cookieName); err == nil && c.Value != "" {
				hasToken = true
			}
			d := g.Evaluate(ctx.Request().URL.Path, hasToken)
			if d.Outcome != guard.Allow {
				return ctx.Redirect(http.StatusFound, d.Location)
			}
			return next(ctx)
		}
	}
}

// roleMiddleware only lets through users holding one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, want := range roles {
				for _, role := range claims.Roles {
					if role == want {
						return next(ctx)
					}
				}
			}
			return errHttpForbidden
		}
	}
}
