package container

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joshua-takyi/rondpoint/internal/cache"
	"github.com/joshua-takyi/rondpoint/internal/config"
	"github.com/joshua-takyi/rondpoint/internal/connect"
	"github.com/joshua-takyi/rondpoint/internal/helpers"
	"github.com/joshua-takyi/rondpoint/internal/messaging"
	"github.com/joshua-takyi/rondpoint/internal/metrics"
	"github.com/joshua-takyi/rondpoint/internal/migrations"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/payments"
	"github.com/joshua-takyi/rondpoint/internal/services"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Identity helpers.IdentityProvider

	UserService      *services.UserService
	EventService     *services.EventService
	AdminService     *services.AdminService
	FavouriteService *services.FavouriteService
	ContactService   *services.ContactService
	PaymentService   *services.PaymentService
	// AuthService is nil unless the Supabase driver is selected.
	AuthService *services.AuthService

	closers []func() error
}

// NewContainer connects every configured backend and builds the services.
// Redis, RabbitMQ and Cloudinary are skipped when unconfigured.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	outcome, err := models.ParsePaymentStatus(cfg.Payments.SandboxOutcome)
	if err != nil {
		return nil, fmt.Errorf("PAYMENT_SANDBOX_OUTCOME: %w", err)
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: metrics.New()}
	deps := services.Deps{
		Metrics:       c.Metrics,
		Logger:        logger,
		WebhookSecret: cfg.Payments.WebhookSecret,
		Gateway:       payments.NewSandbox(outcome),
	}

	var authClient services.AuthClient
	switch cfg.DatabaseDriver {
	case config.DriverSupabase:
		client, err := connect.InitSupabase(cfg.Supabase)
		if err != nil {
			return nil, err
		}
		deps.Store = models.SupabaseNewRepo(client, cfg.Supabase.URL, cfg.Supabase.AnonKey)
		authClient = client.Auth
		logger.Info("Connected to Supabase successfully")
	case config.DriverPostgres:
		db, err := connect.PostgresConnect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		c.onClose(db.Close)
		if cfg.Postgres.RunMigrations {
			if err := runMigrations(db, logger); err != nil {
				c.Close()
				return nil, err
			}
		}
		deps.Store = models.PostgresNewRepo(db)
		logger.Info("Connected to Postgres successfully")
	case config.DriverMemory:
		mem := models.NewMemoryRepo()
		deps.Store = mem
		deps.Docs = mem
		logger.Warn("Using the in-memory store, data is lost on restart")
	default:
		return nil, fmt.Errorf("unknown DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if deps.Docs == nil {
		docs, err := c.connectMongo(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Docs = docs
	}

	if cfg.Redis.Addr != "" {
		client, err := connect.RedisConnect(ctx, cfg.Redis)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.onClose(client.Close)
		deps.Cache = cache.NewRedisDiscovery(client, cache.DefaultPrefix, cfg.Redis.TTL)
		logger.Info("Connected to Redis successfully")
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := c.connectRabbitMQ(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Notifier = publisher
	}

	if cfg.Cloudinary.CloudName != "" {
		cld, err := connect.CloudinaryCredentials(cfg.Cloudinary)
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Images = helpers.NewCloudinaryUploader(&cld.Upload, helpers.EventsFolder)
		logger.Info("Cloudinary configured")
	}

	identity, err := newIdentityProvider(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	if v, ok := identity.(*helpers.JWKSVerifier); ok {
		c.onClose(func() error { v.Close(); return nil })
	}
	c.Identity = identity

	c.wire(deps, authClient)
	return c, nil
}

// NewFromDeps builds the services over already constructed dependencies.
func NewFromDeps(deps services.Deps, identity helpers.IdentityProvider, authClient services.AuthClient) *Container {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Container{Logger: deps.Logger, Metrics: deps.Metrics, Identity: identity}
	c.wire(deps, authClient)
	return c
}

func (c *Container) wire(deps services.Deps, authClient services.AuthClient) {
	c.UserService = services.NewUserService(deps)
	c.EventService = services.NewEventService(deps)
	c.AdminService = services.NewAdminService(deps)
	c.FavouriteService = services.NewFavouriteService(deps)
	c.ContactService = services.NewContactService(deps)
	c.PaymentService = services.NewPaymentService(deps)
	if authClient != nil {
		c.AuthService = services.NewAuthService(authClient, c.UserService, deps)
	}
}

func (c *Container) connectMongo(ctx context.Context) (*models.MongodbRepo, error) {
	client, err := connect.MongoDBConnect(ctx, c.Config.MongoURI())
	if err != nil {
		return nil, err
	}
	c.onClose(func() error { return connect.MongoDBDisconnect(client) })

	repo := models.MongodbNewRepo(client, c.Config.Mongo.Database)
	if err := ensureIndexes(ctx, repo); err != nil {
		return nil, err
	}
	c.Logger.Info("Connected to MongoDB successfully")
	return repo, nil
}

func ensureIndexes(ctx context.Context, repo *models.MongodbRepo) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := repo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create MongoDB indexes: %w", err)
	}
	return nil
}

func (c *Container) connectRabbitMQ(ctx context.Context) (*messaging.Publisher, error) {
	conn, err := connect.RabbitMQConnect(ctx, c.Config.RabbitMQ.URL, c.Logger)
	if err != nil {
		return nil, err
	}
	c.onClose(conn.Close)

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	publisher, err := messaging.NewPublisher(ch, c.Logger)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	c.onClose(publisher.Close)
	return publisher, nil
}

func runMigrations(db *sql.DB, logger *slog.Logger) error {
	if err := migrations.Run(db, "rondpoint", logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func newIdentityProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (helpers.IdentityProvider, error) {
	if cfg.Auth.JWTSecret != "" {
		return helpers.NewHMACVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience), nil
	}
	return helpers.NewJWKSVerifier(ctx, cfg.JWKSURL(), cfg.Auth.Audience, logger)
}

func (c *Container) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Error("Error closing resource", "error", err)
		}
	}
	c.closers = nil
}
