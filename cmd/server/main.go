package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/saeid-a/SoccerCoachBack/internal/config"
	"github.com/saeid-a/SoccerCoachBack/internal/database"
	"github.com/saeid-a/SoccerCoachBack/internal/events"
	"github.com/saeid-a/SoccerCoachBack/internal/handlers"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
	"github.com/saeid-a/SoccerCoachBack/internal/routes"
	"github.com/saeid-a/SoccerCoachBack/internal/services"
	notifyws "github.com/saeid-a/SoccerCoachBack/internal/websocket"
)

// Leaves headroom over the 100MB video limit for the multipart envelope.
const bodyLimit = 110 << 20

const tokenSweepInterval = time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBUrl == "" {
		return errors.New("DB_URL is required")
	}
	pool, err := database.ConnectDB(ctx, cfg.DBUrl)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps := routes.Dependencies{DB: pool}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		tokens, err := repository.NewRedisRefreshTokenStore(redisClient)
		if err != nil {
			return err
		}
		deps.Tokens = tokens
		logger.Info("refresh tokens stored in redis")
	}

	bus, err := events.NewBus(events.Config{KafkaBrokers: cfg.KafkaBrokers}, logger)
	if err != nil {
		return err
	}
	defer bus.Close()
	deps.Publisher = bus

	hub := notifyws.NewHub()
	deps.Hub = hub

	if cfg.GoogleClientID != "" {
		deps.Verifier = services.NewGoogleVerifier(cfg.GoogleClientID)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set, social login tokens cannot be verified")
	}
	if cfg.StorageEnabled() {
		deps.Storage = services.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	} else {
		logger.Warn("video storage not configured, uploads will be rejected")
	}

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer background.Done()
		if err := events.NewNotifier(bus, hub, logger).Run(ctx, events.Topics...); err != nil {
			logger.Error("notifier stopped", "error", err)
		}
	}()
	if deps.Tokens == nil {
		background.Add(1)
		go func() {
			defer background.Done()
			sweepExpiredTokens(ctx, repository.NewRefreshTokenRepository(pool), logger)
		}()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    bodyLimit,
	})
	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	if err := routes.RegisterRoutes(app, cfg, deps); err != nil {
		return err
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		stop()
		background.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	background.Wait()
	return nil
}

func sweepExpiredTokens(ctx context.Context, repo *repository.RefreshTokenRepository, logger *slog.Logger) {
	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.Error("sweep expired refresh tokens", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("swept expired refresh tokens", "count", removed)
			}
		}
	}
}
