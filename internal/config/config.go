package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Config is the backend (identity provider, document store, todos) configuration
type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	JWT      JWTConfig      `env:",prefix=JWT_"`
	Security SecurityConfig `env:",prefix="`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host        string `env:"HOST,default=localhost"`
	Port        string `env:"PORT,default=5432"`
	User        string `env:"USER,default=todo_app"`
	Password    string `env:"PASSWORD,default=todo_app_password"`
	DBName      string `env:"DB,default=todo_app_db"`
	SSLMode     string `env:"SSLMODE,default=disable"`
	AutoMigrate bool   `env:"AUTO_MIGRATE,default=true"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type JWTConfig struct {
	Secret             string   `env:"SECRET,required"`
	AccessTokenExpiry  Duration `env:"ACCESS_TOKEN_EXPIRY,default=15m"`
	RefreshTokenExpiry Duration `env:"REFRESH_TOKEN_EXPIRY,default=7d"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	ResetTokenExpiry  Duration `env:"RESET_TOKEN_EXPIRY,default=1h"`
	ResetLinkBaseURL  string   `env:"RESET_LINK_BASE_URL,default=http://localhost:8081/reset-password"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// ClientConfig configures the todo client: where the backend lives and where
// the local session caches are persisted
type ClientConfig struct {
	API    APIConfig    `env:",prefix=API_"`
	Local  LocalConfig  `env:",prefix=LOCAL_"`
	Routes RoutesConfig `env:",prefix=ROUTE_"`
	Env    string       `env:"ENV,default=development"`
}

type APIConfig struct {
	BaseURL string   `env:"BASE_URL,default=http://localhost:8080/api/v1"`
	Timeout Duration `env:"TIMEOUT,default=15s"`
}

// LocalConfig selects the local key-value storage backing the session caches
type LocalConfig struct {
	Store      string      `env:"STORE,default=redis"`
	Redis      RedisConfig `env:",prefix=REDIS_"`
	ProfileKey string      `env:"PROFILE_KEY,default=@user_profile"`
	RouteKey   string      `env:"ROUTE_KEY,default=@todo:last_route"`
	SessionKey string      `env:"SESSION_KEY,default=@auth_session"`
}

type RoutesConfig struct {
	Login    string `env:"LOGIN,default=/login"`
	Register string `env:"REGISTER,default=/register"`
	Landing  string `env:"LANDING,default=/todos"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// URL returns the connection string in URL form, as the migrator expects
func (p PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + p.DBName,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads the backend configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	return &config, nil
}

// LoadClient loads the client configuration from environment variables
func LoadClient(ctx context.Context) (*ClientConfig, error) {
	var config ClientConfig

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load client configuration: %w", err)
	}

	switch config.Local.Store {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("LOCAL_STORE must be redis or memory, got %q", config.Local.Store)
	}

	for name, path := range map[string]string{
		"ROUTE_LOGIN":    config.Routes.Login,
		"ROUTE_REGISTER": config.Routes.Register,
		"ROUTE_LANDING":  config.Routes.Landing,
	} {
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("%s must be an absolute path, got %q", name, path)
		}
	}

	return &config, nil
}
