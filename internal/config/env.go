package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Env struct {
	AppAddr string `yaml:"app_addr"`
	GinMode string `yaml:"gin_mode"`
	Store   string `yaml:"store"`

	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBName     string `yaml:"db_name"`
	DBDSN      string `yaml:"db_dsn"`

	RedisURL string `yaml:"redis_url"`

	JWTSecret string        `yaml:"jwt_secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl"`

	LedgerCallTimeout    time.Duration `yaml:"ledger_call_timeout"`
	ReleaseRetryTimeout  time.Duration `yaml:"release_retry_timeout"`
	AvailabilityCacheTTL time.Duration `yaml:"availability_cache_ttl"`
	BookingRateLimit     int           `yaml:"booking_rate_limit"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

func defaultEnv() Env {
	return Env{
		AppAddr:              ":8080",
		Store:                StoreMySQL,
		DBUser:               "root",
		DBHost:               "127.0.0.1:3306",
		DBName:               "pilgrimage",
		JWTSecret:            "super-secret-key-change-me",
		JWTTTL:               24 * time.Hour,
		LedgerCallTimeout:    3 * time.Second,
		ReleaseRetryTimeout:  30 * time.Second,
		AvailabilityCacheTTL: 15 * time.Second,
		BookingRateLimit:     30,
		CORSAllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
	}
}

// LoadEnv builds the configuration from defaults, then the optional YAML file
// at path (falling back to CONFIG_FILE), then environment variables.
func LoadEnv(path string) (Env, error) {
	env := defaultEnv()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return env, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &env); err != nil {
			return env, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	setString(&env.AppAddr, "APP_ADDR")
	setString(&env.GinMode, "GIN_MODE")
	setString(&env.Store, "STORE")
	setString(&env.DBUser, "DB_USER")
	setString(&env.DBPassword, "DB_PASSWORD")
	setString(&env.DBHost, "DB_HOST")
	setString(&env.DBName, "DB_NAME")
	setString(&env.DBDSN, "DB_DSN")
	setString(&env.RedisURL, "REDIS_URL")
	setString(&env.JWTSecret, "JWT_SECRET")

	for key, dst := range map[string]*time.Duration{
		"JWT_TTL":                &env.JWTTTL,
		"LEDGER_CALL_TIMEOUT":    &env.LedgerCallTimeout,
		"RELEASE_RETRY_TIMEOUT":  &env.ReleaseRetryTimeout,
		"AVAILABILITY_CACHE_TTL": &env.AvailabilityCacheTTL,
	} {
		if err := setDuration(dst, key); err != nil {
			return env, err
		}
	}
	if v := strings.TrimSpace(os.Getenv("BOOKING_RATE_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return env, fmt.Errorf("BOOKING_RATE_LIMIT: %w", err)
		}
		env.BookingRateLimit = n
	}
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		env.CORSAllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				env.CORSAllowedOrigins = append(env.CORSAllowedOrigins, o)
			}
		}
	}

	env.Store = strings.ToLower(strings.TrimSpace(env.Store))
	if env.Store != StoreMySQL && env.Store != StoreMemory {
		return env, fmt.Errorf("unknown store %q (want %s or %s)", env.Store, StoreMySQL, StoreMemory)
	}
	return env, nil
}

// DSN returns DB_DSN when set, otherwise one assembled from the parts.
func (e Env) DSN() string {
	if e.DBDSN != "" {
		return e.DBDSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=Local&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s",
		e.DBUser,
		e.DBPassword,
		e.DBHost,
		e.DBName,
	)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
