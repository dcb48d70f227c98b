package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chess-matchmaking/config"
	"chess-matchmaking/handlers"
	"chess-matchmaking/logger"
	"chess-matchmaking/middleware"
	"chess-matchmaking/services"
	"chess-matchmaking/store"
	"chess-matchmaking/utils"
	"chess-matchmaking/workers"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json, toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger is not up yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]handlers.Pinger{}

	// --- storage ---
	var st store.Store
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn("⚠️ using in-memory store, data is lost on restart")
		st = store.NewMemory()
	default:
		gs, err := openPostgres(ctx, cfg.Database.URL, log)
		if err != nil {
			log.Error("failed to connect to database", err)
			os.Exit(1)
		}
		if err := gs.Migrate(); err != nil {
			log.Error("failed to migrate database", err)
			os.Exit(1)
		}
		health["database"] = gs
		st = gs
	}

	// --- matchmaking mailbox ---
	var mailbox services.Mailbox = services.NewMemoryMailbox()
	if cfg.Matchmaking.MailboxBackend == config.MailboxRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", err, zap.String("addr", cfg.Redis.Addr))
			os.Exit(1)
		}
		health["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		mailbox = services.NewRedisMailbox(rdb, "", cfg.Matchmaking.MailboxTTL)
	}

	// --- services ---
	rules := services.RatingRules{
		Default:   cfg.Rating.Default,
		WinDelta:  cfg.Rating.WinDelta,
		LossDelta: cfg.Rating.LossDelta,
		DrawDelta: cfg.Rating.DrawDelta,
	}
	ratingService := services.NewRatingService(st, rules)
	notificationService := services.NewNotificationService(st, log)
	gameService := services.NewGameService(st, ratingService, notificationService, log)
	matchmaking := services.NewMatchmakingService(
		services.NewUserService(st),
		gameService,
		ratingService,
		services.NewQueue(),
		mailbox,
		log,
		services.MatchmakingOptions{
			Mode:       cfg.Matchmaking.Mode,
			QueueTTL:   cfg.Matchmaking.QueueTTL,
			MailboxTTL: cfg.Matchmaking.MailboxTTL,
		},
	)

	sweeper, err := matchmaking.StartExpiryScheduler(ctx, cfg.Matchmaking.SweepInterval)
	if err != nil {
		log.Error("failed to start expiry scheduler", err)
		os.Exit(1)
	}
	defer sweeper.Shutdown()

	// --- workers ---
	if cfg.ProfileSync.URL != "" {
		workers.NewUserSyncWorker(st, log, cfg.ProfileSync.URL, cfg.ProfileSync.Path,
			cfg.ProfileSync.Token, cfg.ProfileSync.Interval).Start(ctx)
	} else {
		log.Warn("⚠️ profile sync URL not set, user sync worker disabled")
	}

	if cfg.Archive.Enabled {
		r2, err := utils.NewR2Client(ctx, utils.R2Options{
			AccountID:       cfg.R2.AccountID,
			Endpoint:        cfg.R2.Endpoint,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
		})
		if err != nil {
			log.Error("failed to initialize R2 client", err)
			os.Exit(1)
		}
		workers.NewArchiveWorker(st, r2, log, cfg.Archive.Interval, cfg.Archive.BatchSize).Start(ctx)
	}

	// --- http ---
	app := fiber.New(fiber.Config{
		AppName:      cfg.ServiceName,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: fiber.DefaultErrorHandler,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.HTTP.AllowedOrigins,
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, Cache-Control",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
		MaxAge:        86400,
	}))

	// ops endpoints stay reachable for probes and scrapers
	handlers.SetupHealthRoutes(app, matchmaking.QueueSize, health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// 🔐 everything below must come through the gateway
	app.Use(middleware.GatewayAuthMiddleware(cfg.Gateway.Token, log))

	api := app.Group("/api")
	handlers.SetupMatchmakingRoutes(api, matchmaking, log)
	handlers.SetupGameRoutes(api, gameService, log)
	handlers.SetupRatingRoutes(api, ratingService, log)

	notificationRoutes := handlers.NotificationRoutes{Service: notificationService, Log: log}
	if cfg.Auth.URL != "" {
		auth := services.NewAuthServiceClient(cfg.Auth.URL, cfg.Auth.Token)
		notificationRoutes.Validator = auth
	} else {
		log.Warn("⚠️ auth service URL not set, notification stream disabled")
	}
	handlers.SetupNotificationRoutes(api, notificationRoutes)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr); err != nil {
			log.Error("server error", err)
			stop()
		}
	}()

	log.Info("✅ server running",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("store", cfg.Database.Driver),
		zap.String("mailbox", cfg.Matchmaking.MailboxBackend),
		zap.Strings("origins", cfg.HTTP.Origins()),
	)

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", err)
	}
}

// openPostgres connects and pings with backoff, since the database often
// starts alongside the service.
func openPostgres(ctx context.Context, dsn string, log *logger.Logger) (*store.GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	gs := store.NewGormStore(db)

	opts := utils.RetryOptions{
		MaxAttempts:     6,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
	}
	attempt := 0
	err = utils.Retry(ctx, opts, func() error {
		attempt++
		if err := gs.Ping(ctx); err != nil {
			log.Warn("database not ready", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	})
	return gs, err
}
