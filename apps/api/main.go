package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tadris/apps/api/echo"
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
	"github.com/trezcool/tadris/storage"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up storage
	stores, err := storage.Open(context.Background(), conf, true /* migrate */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = stores.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	templates := core.NewMailTemplates(conf)
	var mailSvc core.EmailService
	if conf.Debug || conf.Mail.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(log.New(os.Stdout, "MAIL : ", log.LstdFlags), conf, templates)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf, templates)
	}
	usrSvc := user.NewService(stores.Users, mailSvc, conf)
	setSvc := setting.NewService(stores.Settings)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	registry, err := rules.NewRegistry(stores.Settings)
	if err != nil {
		logger.Fatal(fmt.Sprintf("registering rule sets: %v", err), err)
	}
	authorizer, err := authz.New(registry.All()...)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up authorizer: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	policies := ratelimit.DefaultTable()
	if conf.RateLimit.PoliciesFile != "" {
		if policies, err = ratelimit.LoadPolicies(conf.RateLimit.PoliciesFile); err != nil {
			logger.Fatal(fmt.Sprintf("loading rate limit policies: %v", err), err)
		}
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)
	expvar.NewString("ratelimit_store").Set(conf.RateLimit.Store)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			SettingSvc: setSvc,
			Validator: validation.New(registry, validation.Options{
				Lookup:         stores.Lookup,
				Authorizer:     authorizer,
				Validate:       validate,
				Translator:     translator,
				PasswordPolicy: user.PasswordPolicy,
			}),
			Limiter: ratelimit.NewLimiter(policies, stores.Counters),
			Guard: guard.New(guard.Config{
				LoginPath:         conf.Portal.LoginPath,
				HomePath:          conf.Portal.HomePath,
				ReturnParam:       conf.Portal.ReturnParam,
				ProtectedPrefixes: conf.Portal.ProtectedPrefixes,
				AuthPaths:         conf.Portal.AuthPaths,
			}),
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
