package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// MinJWTSecretLength is the shortest signing secret HS256 tokens can be issued with.
const MinJWTSecretLength = 32

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	StoreDriver          string
	DatabaseURL          string
	DatabaseMaxConns     int
	DatabaseMigrate      bool
	JWTSecret            []byte
	JWTIssuer            string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	ServiceName          string
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
	BootstrapOrgName     string
	AdminEmail           string
	AdminPassword        string
	StaticDir            string
}

// BootstrapEnabled reports whether a seed organization and admin should be ensured on start.
func (c Config) BootstrapEnabled() bool {
	return c.BootstrapOrgName != "" && c.AdminEmail != "" && c.AdminPassword != ""
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if len(secret) < MinJWTSecretLength {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DatabaseMaxConns:     getInt("DATABASE_MAX_CONNS", 25),
		DatabaseMigrate:      getBool("DATABASE_MIGRATE", true),
		JWTSecret:            []byte(secret),
		JWTIssuer:            getEnv("JWT_ISSUER", "valora-identity"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		ServiceName:          getEnv("SERVICE_NAME", "valora-identity"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
		BootstrapOrgName:     os.Getenv("BOOTSTRAP_ORG_NAME"),
		AdminEmail:           os.Getenv("ADMIN_EMAIL"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		StaticDir:            strings.TrimSpace(os.Getenv("STATIC_DIR")),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}

	set := 0
	for _, v := range []string{cfg.BootstrapOrgName, cfg.AdminEmail, cfg.AdminPassword} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return Config{}, fmt.Errorf("BOOTSTRAP_ORG_NAME, ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if cfg.DatabaseMaxConns < 1 {
		cfg.DatabaseMaxConns = 1
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
