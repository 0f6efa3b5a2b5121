package core

import (
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

const (
	CounterBackendMongo    = "mongo"
	CounterBackendPostgres = "postgres"
)

type (
	Config struct {
		Env      string
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration
		OTPTimeoutDelta           time.Duration

		Server     ServerConfig
		Database   DatabaseConfig
		Counter    CounterConfig
		Pagination PaginationConfig

		defaultFromEmail string
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	// DatabaseConfig points at the mongo deployment holding all domain collections.
	DatabaseConfig struct {
		URI            string
		Name           string
		ConnectTimeout time.Duration
	}

	CounterConfig struct {
		Backend  string
		Start    int64
		Postgres SQLConfig
	}

	SQLConfig struct {
		Engine     string
		Host       string
		Port       int
		User       string
		Password   string
		Name       string
		DisableTLS bool
	}

	PaginationConfig struct {
		DefaultPageSize int
		MaxPageSize     int
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c SQLConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Academia")
	v.SetDefault("secretKey", "k1x$5^wq!7p(r0c)f3zv9_n@a2#h6m+u8e*y4t&d0g=b-l")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Academia <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("otpTimeoutDelta", 15*time.Minute)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("database.name", "academia")
	v.SetDefault("database.connectTimeout", 10*time.Second)

	v.SetDefault("counter.backend", CounterBackendMongo)
	v.SetDefault("counter.start", int64(100000))
	v.SetDefault("counter.postgres.engine", "postgres")
	v.SetDefault("counter.postgres.host", "localhost")
	v.SetDefault("counter.postgres.port", 5432)
	v.SetDefault("counter.postgres.user", "postgres")
	v.SetDefault("counter.postgres.password", "")
	v.SetDefault("counter.postgres.name", "academia")
	v.SetDefault("counter.postgres.disableTLS", true)

	v.SetDefault("pagination.defaultPageSize", 10)
	v.SetDefault("pagination.maxPageSize", 100)
}

// NewConfig reads the configuration from defaults, `config/.env.<env>` and the environment.
// Environment variables are prefixed with the uppercased ENV value, e.g. DEV_DATABASE_URI.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:      env,
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		WorkDir:  wd,

		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		OTPTimeoutDelta:           v.GetDuration("otpTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),

		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetInt("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			URI:            v.GetString("database.uri"),
			Name:           v.GetString("database.name"),
			ConnectTimeout: v.GetDuration("database.connectTimeout"),
		},
		Counter: CounterConfig{
			Backend: strings.ToLower(v.GetString("counter.backend")),
			Start:   v.GetInt64("counter.start"),
			Postgres: SQLConfig{
				Engine:     v.GetString("counter.postgres.engine"),
				Host:       v.GetString("counter.postgres.host"),
				Port:       v.GetInt("counter.postgres.port"),
				User:       v.GetString("counter.postgres.user"),
				Password:   v.GetString("counter.postgres.password"),
				Name:       v.GetString("counter.postgres.name"),
				DisableTLS: v.GetBool("counter.postgres.disableTLS"),
			},
		},
		Pagination: PaginationConfig{
			DefaultPageSize: v.GetInt("pagination.defaultPageSize"),
			MaxPageSize:     v.GetInt("pagination.maxPageSize"),
		},
	}
}

// NewTestConfig returns a config suitable for tests: no .env lookup, no network defaults.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("testMode", true)
	v.Set("debug", false)

	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   v.GetString("appName"),
		SecretKey:                 "secret",
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		OTPTimeoutDelta:           v.GetDuration("otpTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		},
		Counter: CounterConfig{
			Backend: CounterBackendMongo,
			Start:   v.GetInt64("counter.start"),
		},
		Pagination: PaginationConfig{
			DefaultPageSize: v.GetInt("pagination.defaultPageSize"),
			MaxPageSize:     v.GetInt("pagination.maxPageSize"),
		},
	}
}
