package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/guard"
	"github.com/trezcool/tadris/core/ratelimit"
	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
	"github.com/trezcool/tadris/core/validation"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    *user.Service
		SettingSvc *setting.Service
		Validator  *validation.Validator
		Limiter    *ratelimit.Limiter
		Guard      *guard.Guard

		// Portal serves the pages of the web portal; page rendering lives outside this service.
		Portal echo.HandlerFunc

		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		jwt      echo.MiddlewareFunc
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.jwt = middleware.JWTWithConfig(jwtConfig(conf))

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	registerAuthAPI(v1, s)
	registerUserAPI(v1, s)
	registerSettingAPI(v1, s)
	registerResourceAPI(v1, s)

	portal := s.deps.Portal
	if portal == nil {
		portal = func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) }
	}
	s.app.GET("/*", portal, guardMiddleware(s.deps.Guard, conf.Portal.TokenCookie))
}

// throttle counts the request against the named rate limit policy.
func (s *Server) throttle(policy string) echo.MiddlewareFunc {
	return throttleMiddleware(s.deps.Limiter, policy)
}

func (s *Server) Start() {
	s.errors <- s.app.Start(s.deps.Conf.Server.Addr)
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "مرحبًا بك في واجهة "+s.deps.Conf.AppName+"!")
}
