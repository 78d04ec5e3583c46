package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-driven settings for the service.
type Config struct {
	Environment string

	Server    ServerConfig
	Store     StoreConfig
	Scylla    ScyllaConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	JWT       JWTConfig
	OTP       OTPConfig
	Auth      AuthConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	EnableTLS    bool
	TLSPort      int
	CertFile     string
	KeyFile      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	// Backend selects the persistence layer: "scylla" or "memory".
	Backend string
	// SeedDemoUsers loads the demo accounts into the memory backend at startup.
	SeedDemoUsers bool
}

type ScyllaConfig struct {
	Hosts    []string
	Keyspace string
	Timeout  time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers             []string
	SecurityEventsTopic string
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type OTPConfig struct {
	Expiry        time.Duration
	MaxAttempts   int
	SweepInterval time.Duration
	Pepper        string
}

type AuthConfig struct {
	// LockThreshold is the number of consecutive failed password checks
	// that sets the account lock flag.
	LockThreshold int
}

type SessionConfig struct {
	IdleTimeout time.Duration
	WarningLead time.Duration
}

type RateLimitConfig struct {
	LoginLimit int
	OTPLimit   int
	Window     time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads configuration from the environment, loading a .env file
// first when one exists.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			Backend:       getEnv("STORE_BACKEND", "memory"),
			SeedDemoUsers: getEnvBool("SEED_DEMO_USERS", false),
		},
		Scylla: ScyllaConfig{
			Hosts:    getEnvList("SCYLLA_HOSTS", []string{"127.0.0.1"}),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "asha_portal"),
			Timeout:  getEnvDuration("SCYLLA_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Kafka: KafkaConfig{
			Brokers:             getEnvList("KAFKA_BROKERS", nil),
			SecurityEventsTopic: getEnv("KAFKA_SECURITY_EVENTS_TOPIC", "security-events"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Issuer:     getEnv("JWT_ISSUER", "asha-portal"),
			Audience:   getEnv("JWT_AUDIENCE", "asha-portal-users"),
			AccessTTL:  getEnvDuration("JWT_EXPIRES_IN", 30*time.Minute),
			RefreshTTL: getEnvDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour),
		},
		OTP: OTPConfig{
			Expiry:        getEnvDuration("OTP_EXPIRY", 2*time.Minute),
			MaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 3),
			SweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", 30*time.Second),
			Pepper:        getEnv("OTP_PEPPER", ""),
		},
		Auth: AuthConfig{
			LockThreshold: getEnvInt("AUTH_LOCK_THRESHOLD", 5),
		},
		Session: SessionConfig{
			IdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			WarningLead: getEnvDuration("SESSION_WARNING_LEAD", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			LoginLimit: getEnvInt("RATE_LIMIT_LOGIN", 10),
			OTPLimit:   getEnvInt("RATE_LIMIT_OTP", 10),
			Window:     getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}
}

// GetServerAddress returns the host:port the HTTP server binds to.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Store.Backend != "memory" && c.Store.Backend != "scylla" {
		return fmt.Errorf("unsupported STORE_BACKEND: %s", c.Store.Backend)
	}
	if c.Session.WarningLead >= c.Session.IdleTimeout {
		return fmt.Errorf("SESSION_WARNING_LEAD must be shorter than SESSION_IDLE_TIMEOUT")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
