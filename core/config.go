package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName      string
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		SecretKey    string
		WorkDir      string
		RollbarToken string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		RateLimit RateLimitConfig
		Portal    PortalConfig
		Mail      MailConfig
	}

	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		FrontendBaseURL           string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	RateLimitConfig struct {
		Store        string // memory | redis | postgres
		PoliciesFile string
	}

	PortalConfig struct {
		TokenCookie       string
		LoginPath         string
		HomePath          string
		ReturnParam       string
		ProtectedPrefixes []string
		AuthPaths         []string
	}

	MailConfig struct {
		DefaultFromEmail string
		SendgridAPIKey   string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c MailConfig) DefaultFrom(appName string) mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: appName, Address: c.DefaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = appName
	}
	return *addr
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file
// and the environment (prefixed with the upper-cased env name, e.g. PROD_SECRET_KEY).
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("app_name", "Tadris")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("secret_key", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debug_host", ":4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.frontend_base_url", "http://localhost:3000")
	v.SetDefault("server.jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration_delta", 4*time.Hour)
	v.SetDefault("server.password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "tadris")
	v.SetDefault("database.user", "tadris")
	v.SetDefault("database.password", "tadris")
	v.SetDefault("database.admin_user", "postgres")
	v.SetDefault("database.admin_password", "postgres")
	v.SetDefault("database.disable_tls", env == "DEV" || env == "TEST")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.store", "memory")
	v.SetDefault("ratelimit.policies_file", "")

	v.SetDefault("portal.token_cookie", "auth_token")
	v.SetDefault("portal.login_path", "/login")
	v.SetDefault("portal.home_path", "/dashboard")
	v.SetDefault("portal.return_param", "redirect")
	v.SetDefault("portal.protected_prefixes", []string{"/dashboard", "/student", "/parent", "/profile"})
	v.SetDefault("portal.auth_paths", []string{"/login", "/register"})

	v.SetDefault("mail.default_from_email", "noreply@localhost")
	v.SetDefault("mail.sendgrid_api_key", "")

	// load .env if it exists (ignore if it does not)
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.Getwd: %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("app_name"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("test_mode"),
		SecretKey:    v.GetString("secret_key"),
		WorkDir:      wd,
		RollbarToken: v.GetString("rollbar_token"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Addr:                      v.GetString("server.addr"),
			DebugHost:                 v.GetString("server.debug_host"),
			ShutdownTimeout:           v.GetDuration("server.shutdown_timeout"),
			FrontendBaseURL:           strings.TrimRight(v.GetString("server.frontend_base_url"), "/"),
			JWTExpirationDelta:        v.GetDuration("server.jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwt_refresh_expiration_delta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.password_reset_timeout_delta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			DisableTLS:    v.GetBool("database.disable_tls"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			Store:        strings.ToLower(v.GetString("ratelimit.store")),
			PoliciesFile: v.GetString("ratelimit.policies_file"),
		},
		Portal: PortalConfig{
			TokenCookie:       v.GetString("portal.token_cookie"),
			LoginPath:         v.GetString("portal.login_path"),
			HomePath:          v.GetString("portal.home_path"),
			ReturnParam:       v.GetString("portal.return_param"),
			ProtectedPrefixes: v.GetStringSlice("portal.protected_prefixes"),
			AuthPaths:         v.GetStringSlice("portal.auth_paths"),
		},
		Mail: MailConfig{
			DefaultFromEmail: v.GetString("mail.default_from_email"),
			SendgridAPIKey:   v.GetString("mail.sendgrid_api_key"),
		},
	}
}

// NewTestConfig returns a config suitable for tests: in-memory storage and rate limiting.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "secret"
	conf.Database.Engine = "memory"
	conf.RateLimit.Store = "memory"
	return conf
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (env=%s, build=%s)", c.AppName, c.Env, c.Build)
}
