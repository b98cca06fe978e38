package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/SoccerCoachBack/internal/config"
	"github.com/saeid-a/SoccerCoachBack/internal/events"
	"github.com/saeid-a/SoccerCoachBack/internal/handlers"
	"github.com/saeid-a/SoccerCoachBack/internal/middleware"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
	"github.com/saeid-a/SoccerCoachBack/internal/services"
	notifyws "github.com/saeid-a/SoccerCoachBack/internal/websocket"
)

// Dependencies are the long-lived resources owned by main.
type Dependencies struct {
	DB        *pgxpool.Pool
	Tokens    services.RefreshTokenStore
	Publisher events.Publisher
	Hub       *notifyws.Hub
	Verifier  services.SocialVerifier
	Storage   services.VideoStorage
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, deps Dependencies) error {
	userRepo := repository.NewUserRepository(deps.DB)
	sessionRepo := repository.NewSessionRepository(deps.DB)
	paymentRepo := repository.NewPaymentRepository(deps.DB)
	videoRepo := repository.NewVideoRepository(deps.DB)

	tokens := deps.Tokens
	if tokens == nil {
		tokens = repository.NewRefreshTokenRepository(deps.DB)
	}

	authService := services.NewAuthService(userRepo, tokens, deps.Verifier, services.AuthConfig{
		JWTSecret:             cfg.JWTSecret,
		JWTRefreshSecret:      cfg.JWTRefreshSecret,
		AccessTokenTTL:        cfg.AccessTokenTTL,
		RefreshTokenTTL:       cfg.RefreshTokenTTL,
		BcryptCost:            cfg.BcryptCost,
		AllowUnverifiedSocial: cfg.AllowUnverifiedSocial,
	})
	sessionService := services.NewSessionService(sessionRepo, userRepo, deps.Publisher, cfg.DefaultSessionPrice)
	paymentService := services.NewPaymentService(paymentRepo, sessionRepo)
	profileService := services.NewProfileService(userRepo)
	videoService := services.NewVideoService(videoRepo, sessionRepo, deps.Storage, deps.Publisher)

	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	profileHandler := handlers.NewProfileHandler(profileService)
	videoHandler := handlers.NewVideoHandler(videoService)

	requireAuth := middleware.AuthRequired(cfg.JWTSecret)
	coachOnly := middleware.RequireRole(models.RoleCoach)

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/social", authHandler.SocialLogin)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Post("/logout-all", requireAuth, authHandler.LogoutAll)
	authRoutes.Get("/me", requireAuth, authHandler.Me)

	mentors := api.Group("/mentors")
	mentors.Get("", profileHandler.ListMentors)
	mentors.Get("/:id", profileHandler.GetMentor)

	sessions := api.Group("/sessions", requireAuth)
	sessions.Get("", sessionHandler.List)
	sessions.Post("", sessionHandler.Create)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Get("/:id/participants", sessionHandler.Participants)
	sessions.Post("/:id/join", sessionHandler.Join)
	sessions.Post("/:id/cancel", sessionHandler.Cancel)
	sessions.Post("/:id/confirm", sessionHandler.Confirm)
	sessions.Post("/:id/complete", sessionHandler.Complete)

	coach := api.Group("/coach", requireAuth, coachOnly)
	coach.Get("/dashboard", sessionHandler.Dashboard)
	coach.Get("/users", profileHandler.ListStudents)
	coach.Put("/profile", profileHandler.UpdateCoachProfile)
	coach.Get("/sessions/export", sessionHandler.Export)

	users := api.Group("/users", requireAuth)
	users.Get("/profile", profileHandler.GetProfile)
	users.Put("/profile", profileHandler.UpdateProfile)
	users.Get("/:id", profileHandler.GetUser)

	videos := api.Group("/videos", requireAuth)
	videos.Post("/upload", videoHandler.Upload)
	videos.Get("", videoHandler.List)
	videos.Get("/:id/feedback", videoHandler.GetFeedback)
	videos.Post("/:id/feedback", videoHandler.UpsertFeedback)

	payments := api.Group("/payments", requireAuth)
	payments.Post("", paymentHandler.Create)
	payments.Get("/:id", paymentHandler.Get)

	if deps.Hub != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.Hub)
		api.Use("/ws", requireAuth, notificationHandler.RequireUpgrade)
		api.Get("/ws", websocket.New(notificationHandler.HandleWebSocket))
	}

	return registerDocsRoutes(app, cfg)
}
