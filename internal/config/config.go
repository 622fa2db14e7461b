// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds the runtime configuration of the HTTP service.
type Config struct {
	Env            string // application environment (dev, test, prod)
	Port           string // HTTP port to listen on
	LogLevel       string // DEBUG, INFO, WARN or ERROR
	StoreDriver    string // mysql or memory
	DB             DBConfig
	JWTSecret      string // secret used to sign access tokens
	AccessTTLMin   int    // access token lifetime in minutes
	RefreshTTLDays int    // refresh token lifetime in days
	BcryptCost     int    // bcrypt cost for password hashing
}

// DBConfig locates the MySQL database.
type DBConfig struct {
	User string
	Pass string // empty allowed
	Host string
	Port string
	Name string
}

// LoadDotenv reads files (default .env) into the environment without
// overriding variables already set. Missing files are ignored.
func LoadDotenv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("config: cannot read %s: %v", f, err)
		}
	}
}

// Load reads the service configuration. Required variables are enforced
// by must() and a missing value stops the program. Database variables
// are only required with the mysql store.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           envStr("APP_PORT", "8080"),
		LogLevel:       envStr("LOG_LEVEL", "INFO"),
		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		BcryptCost:     envInt("BCRYPT_COST", 12),
	}
	switch cfg.StoreDriver {
	case StoreMySQL:
		cfg.DB = LoadDBConfig()
	case StoreMemory:
	default:
		log.Fatalf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	return cfg
}

// LoadDBConfig reads the MySQL connection variables.
func LoadDBConfig() DBConfig {
	return DBConfig{
		User: must("DB_USER"),
		Pass: os.Getenv("DB_PASS"),
		Host: must("DB_HOST"),
		Port: must("DB_PORT"),
		Name: must("DB_NAME"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
