package api

import (
	"context"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/campusmarket/session-engine/internal/api/handler"
	"github.com/campusmarket/session-engine/internal/api/middleware"
	"github.com/campusmarket/session-engine/internal/core/domain"
	"github.com/campusmarket/session-engine/internal/core/service"
	"github.com/campusmarket/session-engine/internal/infrastructure/auth"
	mongodb "github.com/campusmarket/session-engine/internal/infrastructure/db/mongo"
	redisdb "github.com/campusmarket/session-engine/internal/infrastructure/db/redis"
	"github.com/campusmarket/session-engine/internal/infrastructure/feed"
	"github.com/campusmarket/session-engine/internal/pkg/config"
)

// Engine bundles the wired session-engine services so the host can drive
// them directly (bootstrap, shutdown) alongside the HTTP surface.
type Engine struct {
	Sessions   *service.SessionManager
	Aggregator *service.Aggregator
	Override   *service.Override
	Provider   *auth.Provider
}

// engineState adapts the engine snapshots to the guard middleware.
type engineState struct {
	sessions   *service.SessionManager
	aggregator *service.Aggregator
}

func (s engineState) Phase() domain.Phase                    { return s.sessions.Phase() }
func (s engineState) Identity() *domain.Identity             { return s.sessions.Identity() }
func (s engineState) Application() *domain.SellerApplication { return s.aggregator.Application() }

// NewRouter wires the engine and returns the Echo instance with all routes
// registered, plus the engine handle for lifecycle control.
func NewRouter(ctx context.Context, db *mongo.Database, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) (*echo.Echo, *Engine) {
	e := echo.New()
	e.HideBanner = true

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("campusmarket"))
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Validator = handler.NewValidator()

	// --- Infrastructure ---
	identityRepo := mongodb.NewIdentityRepository(db)
	messageRepo := mongodb.NewMessageRepository(db)
	applicationRepo := mongodb.NewApplicationRepository(db)
	overrideRepo := mongodb.NewOverrideRepository(db)
	presenceStore := redisdb.NewPresenceStore(rdb, cfg.HeartbeatInterval)
	promotionGuard := redisdb.NewPromotionGuard(rdb)

	dispatcher := feed.NewDispatcher(0, log)
	dispatcher.Start(ctx)
	changeFeed := feed.NewFeed(rdb, dispatcher, log)

	// --- Engine services ---
	provider := auth.NewProvider(db, cfg.JWTSecret, cfg.TokenTTL, log)
	resolver := service.NewProfileResolver(identityRepo, log)
	heartbeat := service.NewHeartbeat(presenceStore, cfg.HeartbeatInterval, log)
	sessions := service.NewSessionManager(provider, resolver, heartbeat, log)
	override := service.NewOverride(overrideRepo, log)
	aggregator := service.NewAggregator(
		changeFeed,
		messageRepo,
		applicationRepo,
		presenceStore,
		identityRepo,
		promotionGuard,
		sessions,
		service.AggregatorConfig{
			StalenessWindow: cfg.StalenessWindow,
			PollInterval:    cfg.PollInterval,
		},
		log,
	)

	// --- Handlers ---
	sessionHandler := handler.NewSessionHandler(sessions, aggregator, override, provider)
	authMiddleware := middleware.Auth(cfg.JWTSecret)
	guard := middleware.Guard(engineState{sessions: sessions, aggregator: aggregator})

	e.POST("/session", sessionHandler.SignIn)
	e.DELETE("/session", sessionHandler.SignOut)
	e.GET("/session", sessionHandler.Current)
	e.GET("/session/counters", sessionHandler.Counters, authMiddleware, guard)
	e.POST("/session/override", sessionHandler.ActivateOverride)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability & docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e, &Engine{
		Sessions:   sessions,
		Aggregator: aggregator,
		Override:   override,
		Provider:   provider,
	}
}
