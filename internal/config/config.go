package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                  = "SEATING"
	defaultHTTPAddress         = "0.0.0.0:8080"
	defaultDatabaseDriver      = DriverSQLite
	defaultDatabasePath        = "seating.db"
	defaultLogLevel            = "info"
	defaultCookieName          = "app_session"
	defaultIssuer              = "tauth"
	defaultTokenTTLMinutes     = 60
	defaultRSVPRequestsPerMin  = 10
	defaultRSVPBurst           = 5
	defaultAMQPQueue           = "seating.changes"
	defaultUniqueGuestNames    = true
	defaultCORSAllowedOrigins  = "http://localhost:3000"
	corsAllowedOriginSeparator = ","
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server and CLI commands.
type AppConfig struct {
	HTTPAddress string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string

	LogLevel string

	TAuthSigningKey string
	TAuthCookieName string
	TAuthIssuer     string
	TokenTTL        time.Duration

	UniqueGuestNames bool

	RSVPRequestsPerMinute int
	RSVPBurst             int

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	AMQPURL   string
	AMQPQueue string

	CORSAllowedOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultIssuer)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("seating.unique_guest_names", defaultUniqueGuestNames)
	configViper.SetDefault("rsvp.rate_limit.requests_per_minute", defaultRSVPRequestsPerMin)
	configViper.SetDefault("rsvp.rate_limit.burst", defaultRSVPBurst)
	configViper.SetDefault("redis.db", 0)
	configViper.SetDefault("amqp.queue", defaultAMQPQueue)
	configViper.SetDefault("cors.allowed_origins", defaultCORSAllowedOrigins)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:           strings.TrimSpace(configViper.GetString("http.address")),
		DatabaseDriver:        strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:          strings.TrimSpace(configViper.GetString("database.path")),
		DatabaseDSN:           strings.TrimSpace(configViper.GetString("database.dsn")),
		LogLevel:              configViper.GetString("log.level"),
		TAuthSigningKey:       configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:       strings.TrimSpace(configViper.GetString("tauth.cookie_name")),
		TAuthIssuer:           strings.TrimSpace(configViper.GetString("tauth.issuer")),
		TokenTTL:              time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		UniqueGuestNames:      configViper.GetBool("seating.unique_guest_names"),
		RSVPRequestsPerMinute: configViper.GetInt("rsvp.rate_limit.requests_per_minute"),
		RSVPBurst:             configViper.GetInt("rsvp.rate_limit.burst"),
		RedisAddress:          strings.TrimSpace(configViper.GetString("redis.address")),
		RedisPassword:         configViper.GetString("redis.password"),
		RedisDB:               configViper.GetInt("redis.db"),
		AMQPURL:               strings.TrimSpace(configViper.GetString("amqp.url")),
		AMQPQueue:             strings.TrimSpace(configViper.GetString("amqp.queue")),
		CORSAllowedOrigins:    splitOrigins(configViper.GetString("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// DatabaseTarget names the database for log output without exposing credentials.
func (c AppConfig) DatabaseTarget() string {
	if c.DatabaseDriver == DriverPostgres {
		return DriverPostgres
	}
	return c.DatabasePath
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if c.TAuthCookieName == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	if c.TAuthIssuer == "" {
		return fmt.Errorf("tauth.issuer is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.RSVPRequestsPerMinute <= 0 {
		return fmt.Errorf("rsvp.rate_limit.requests_per_minute must be positive")
	}
	if c.RSVPBurst <= 0 {
		return fmt.Errorf("rsvp.rate_limit.burst must be positive")
	}
	if c.AMQPURL != "" && c.AMQPQueue == "" {
		return fmt.Errorf("amqp.queue is required when amqp.url is set")
	}
	return nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, corsAllowedOriginSeparator)
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
