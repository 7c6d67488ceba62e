package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"taskhub-notify/internal/config"
	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/handler"
	"taskhub-notify/internal/logging"
	"taskhub-notify/internal/middleware"
	"taskhub-notify/internal/repository"
	"taskhub-notify/internal/service/auth"
	"taskhub-notify/internal/service/channel"
	"taskhub-notify/internal/service/email"
	"taskhub-notify/internal/service/notification"
	"taskhub-notify/internal/service/notifier"
	"taskhub-notify/internal/service/stream"
	"taskhub-notify/internal/service/template"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	repos, db, err := openRepositories(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open notification store")
	}
	if db != nil {
		defer db.Close()
	}

	redis, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if redis != nil {
		defer redis.Close()
	} else {
		log.Info().Msg("REDIS_URL not set, unread counts are not cached")
	}

	catalog := loadTemplates(cfg, log)
	registry := newRegistry(cfg, log)
	log.Info().Interface("channels", registry.Channels()).Msg("Channel senders registered")

	var renderer template.Renderer
	if catalog != nil {
		renderer = catalog
	}

	notifService := notification.NewService(
		repos.Notification,
		repos.Recipient,
		registry,
		renderer,
		redis,
		cfg.UnreadCacheTTL,
		log,
	)
	publisher := stream.NewPublisher(repos.Notification, cfg.Stream, log)

	// cancelled on shutdown so open streams end and the server can drain
	streamCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	handlers := handler.NewHandlers(
		handler.NewNotificationHandler(notifService),
		handler.NewStreamHandler(streamCtx, publisher, cfg.Stream.ProbeInterval, log),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Cache-Control",
		AllowMethods: "GET, POST, PATCH, OPTIONS",
	}))

	handler.RegisterRoutes(app, handlers, auth.NewService(cfg.JWTSecret))

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig == syscall.SIGHUP {
			reloadTemplates(catalog, log)
			continue
		}
		break
	}

	log.Info().Msg("Shutting down")
	stopStreams()
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.Error().Err(err).Msg("Server shutdown did not complete")
	}
}

// openRepositories returns the db handle as well so main can close it; it is
// nil for memory://.
func openRepositories(cfg *config.Config) (*repository.Repositories, *sqlx.DB, error) {
	driver, dsn, err := config.ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	var db *sqlx.DB
	switch driver {
	case config.DriverMemory:
		return repository.NewMemoryRepositories(repository.NewMemoryStore()), nil, nil
	case config.DriverPostgres:
		db, err = config.NewPostgresDB(cfg)
	case config.DriverSQLite:
		db, err = config.NewSQLiteDB(dsn)
	}
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return repository.NewRepositories(db), db, nil
}

// loadTemplates returns nil when no catalog can be loaded. Templated
// deliveries then fail per channel instead of blocking startup.
func loadTemplates(cfg *config.Config, log zerolog.Logger) *template.Catalog {
	var source template.Source = template.FileSource{Path: cfg.TemplatesPath}
	if cfg.TemplatesBucket != "" {
		client, err := config.NewMinIOClient(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to MinIO, templated deliveries will fail")
			return nil
		}
		source = template.NewMinIOSource(client, cfg.TemplatesBucket, cfg.TemplatesObject)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	catalog, err := template.NewCatalog(ctx, source)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load notification templates, templated deliveries will fail")
		return nil
	}
	log.Info().Strs("keys", catalog.Keys()).Msg("Notification templates loaded")
	return catalog
}

func reloadTemplates(catalog *template.Catalog, log zerolog.Logger) {
	if catalog == nil {
		log.Warn().Msg("No template catalog to reload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := catalog.Reload(ctx); err != nil {
		log.Error().Err(err).Msg("Template reload failed, keeping previous catalog")
		return
	}
	log.Info().Strs("keys", catalog.Keys()).Msg("Notification templates reloaded")
}

// newRegistry registers a sender for every channel. A channel whose backend
// is not configured still gets a sender, which fails with
// "backend not configured" per delivery.
func newRegistry(cfg *config.Config, log zerolog.Logger) *channel.Registry {
	client := notifier.NewHTTPClient(cfg.NotifierTimeout)
	breakerLog := logging.WithComponent(log, "notifier")
	settings := notifier.DefaultBreakerSettings()

	var mail channel.MailTransport
	if cfg.ResendAPIKey != "" {
		svc, err := email.NewService(cfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialise email transport")
		} else {
			mail = svc
		}
	}

	var telegram, slack, push, sms channel.Notifier
	if cfg.TelegramBotToken != "" {
		telegram = notifier.NewBreaker("telegram",
			notifier.NewTelegramNotifier(cfg.TelegramAPIURL, cfg.TelegramBotToken, client), settings, breakerLog)
	}
	if cfg.SlackBotToken != "" {
		slack = notifier.NewBreaker("slack",
			notifier.NewSlackNotifier(cfg.SlackAPIURL, cfg.SlackBotToken, client), settings, breakerLog)
	}
	if cfg.PushGatewayURL != "" {
		push = notifier.NewBreaker("push",
			notifier.NewWebhookNotifier("push", cfg.PushGatewayURL, cfg.GatewayAPIKey, client), settings, breakerLog)
	}
	if cfg.SMSGatewayURL != "" {
		sms = notifier.NewBreaker("sms",
			notifier.NewWebhookNotifier("sms", cfg.SMSGatewayURL, cfg.GatewayAPIKey, client), settings, breakerLog)
	}

	registry := channel.NewRegistry()
	registry.Register(domain.ChannelInApp, channel.NewInAppSender())
	registry.Register(domain.ChannelEmail, channel.NewEmailSender(mail))
	registry.Register(domain.ChannelPush, channel.NewPushSender(push))
	registry.Register(domain.ChannelSMS, channel.NewSMSSender(sms))
	registry.Register(domain.ChannelSlack, channel.NewSlackSender(slack))
	registry.Register(domain.ChannelTelegram, channel.NewTelegramSender(telegram))
	return registry
}
