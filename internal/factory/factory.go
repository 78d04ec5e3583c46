package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"asha-portal/internal/audit"
	"asha-portal/internal/client"
	"asha-portal/internal/config"
	"asha-portal/internal/handler"
	"asha-portal/internal/hashing"
	"asha-portal/internal/model"
	"asha-portal/internal/repository/memory"
	redisrepo "asha-portal/internal/repository/redis"
	"asha-portal/internal/repository/scylla"
	"asha-portal/internal/service"
	"asha-portal/internal/token"
	"asha-portal/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config

	// Clients
	redisClient   *client.RedisClient
	scyllaClient  *scylla.Client
	kafkaProducer *client.KafkaProducer

	// Stores
	userStore      model.UserStore
	otpStore       model.OTPStore
	memoryOTPStore *memory.OTPStore // set only for the memory backend, drives the sweeper

	// Core
	tokenManager *token.Manager
	hasher       *hashing.Hasher
	authService  *service.AuthService
	rateLimiter  *redisrepo.RateLimitCache

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	f := &Factory{config: cfg}

	if err := f.initializeClients(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeStores(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize stores: %w", err)
	}
	if err := f.initializeCore(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("store_backend", cfg.Store.Backend),
		util.Bool("rate_limiting", f.rateLimiter != nil),
		util.Bool("audit_events", f.kafkaProducer != nil),
	)
	return f, nil
}

func (f *Factory) initializeClients() error {
	cfg := f.config

	if cfg.Redis.URL != "" {
		redisClient, err := client.NewRedisClient(cfg)
		if err != nil {
			return err
		}
		f.redisClient = redisClient
		f.rateLimiter = redisrepo.NewRateLimitCache(redisClient)
	} else {
		util.Warn("REDIS_URL not set, rate limiting disabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		f.kafkaProducer = client.NewKafkaProducer(cfg, util.Get())
	}

	if cfg.Store.Backend == "scylla" {
		scyllaClient, err := scylla.NewClient(cfg)
		if err != nil {
			return err
		}
		f.scyllaClient = scyllaClient
	}
	return nil
}

func (f *Factory) initializeStores() error {
	cfg := f.config

	switch cfg.Store.Backend {
	case "scylla":
		f.userStore = scylla.NewUserRepository(f.scyllaClient)
		f.otpStore = scylla.NewOTPRepository(f.scyllaClient)
	case "memory":
		userStore := memory.NewUserStore(nil)
		otpStore := memory.NewOTPStore(nil)
		f.userStore = userStore
		f.otpStore = otpStore
		f.memoryOTPStore = otpStore

		if cfg.Store.SeedDemoUsers {
			if cfg.IsProduction() {
				return fmt.Errorf("SEED_DEMO_USERS is not allowed in production")
			}
			if err := memory.SeedDemoUsers(context.Background(), userStore); err != nil {
				return fmt.Errorf("failed to seed demo users: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
	return nil
}

func (f *Factory) initializeCore() error {
	cfg := f.config

	tokenManager, err := token.NewManager(token.Config{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return err
	}
	f.tokenManager = tokenManager
	f.hasher = hashing.NewHasher(cfg.OTP.Pepper)

	var publisher audit.Publisher = audit.NopPublisher{}
	if f.kafkaProducer != nil {
		publisher = audit.NewKafkaPublisher(f.kafkaProducer, cfg.Kafka.SecurityEventsTopic)
	}

	f.authService = service.NewAuthService(
		f.userStore,
		f.otpStore,
		tokenManager,
		f.hasher,
		publisher,
		util.Get(),
		service.Options{
			LockThreshold:  cfg.Auth.LockThreshold,
			OTPExpiry:      cfg.OTP.Expiry,
			MaxOTPAttempts: cfg.OTP.MaxAttempts,
		},
	)
	return nil
}

func (f *Factory) Config() *config.Config { return f.config }

func (f *Factory) AuthService() *service.AuthService { return f.authService }

func (f *Factory) TokenManager() *token.Manager { return f.tokenManager }

// MemoryOTPStore returns the in-memory OTP store when that backend is
// active; the caller runs its expiry sweeper. Nil otherwise.
func (f *Factory) MemoryOTPStore() *memory.OTPStore { return f.memoryOTPStore }

// RateLimiter builds the middleware guarding the unauthenticated auth
// endpoints, or nil when Redis is not configured.
func (f *Factory) RateLimiter() func(http.Handler) http.Handler {
	if f.rateLimiter == nil {
		return nil
	}
	return handler.RateLimit(f.rateLimiter, f.config.RateLimit.LoginLimit, f.config.RateLimit.Window)
}

// Close releases every client the factory opened.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if f.kafkaProducer != nil {
			_ = f.kafkaProducer.Close()
		}
		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		util.Sync()
	})
}
