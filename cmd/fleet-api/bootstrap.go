package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/FleetTrack/config"
	"github.com/BearBump/FleetTrack/internal/api/fleet_api"
	"github.com/BearBump/FleetTrack/internal/auth"
	"github.com/BearBump/FleetTrack/internal/broker/kafka"
	"github.com/BearBump/FleetTrack/internal/cache"
	"github.com/BearBump/FleetTrack/internal/cache/rediscache"
	"github.com/BearBump/FleetTrack/internal/logger"
	"github.com/BearBump/FleetTrack/internal/services/journeys"
	"github.com/BearBump/FleetTrack/internal/services/maintenance"
	"github.com/BearBump/FleetTrack/internal/services/reports"
	"github.com/BearBump/FleetTrack/internal/services/tires"
	"github.com/BearBump/FleetTrack/internal/services/users"
	"github.com/BearBump/FleetTrack/internal/services/vehicles"
	"github.com/BearBump/FleetTrack/internal/storage"
	"github.com/joho/godotenv"
)

type fleetAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    fleetAPIOpts
	handler http.Handler
	closers []func()
}

// apiComponents are the infrastructure pieces; cache, limiter and events are
// optional and left nil when their backend is not configured.
type apiComponents struct {
	store   storage.Storage
	cache   cache.VersionedCache
	limiter cache.Limiter
	events  journeys.EventPublisher
	log     *slog.Logger
}

func mustBootstrapFleetAPI() *fleetAPIApp {
	// .env is optional; real env vars win over it
	_ = godotenv.Load()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		swaggerPath = "api/swagger.json"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	log := logger.New(os.Stdout, cfg.FleetTrack.LogLevel)
	slog.SetDefault(log)

	httpAddr := cfg.FleetTrack.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	st, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Database, 60*time.Second)
	if err != nil {
		cancel()
		panic(err)
	}
	app := &fleetAPIApp{
		ctx:     ctx,
		cancel:  cancel,
		opts:    fleetAPIOpts{httpAddr: httpAddr, swaggerPath: swaggerPath},
		closers: []func(){st.Close},
	}

	comp := apiComponents{store: st, log: log}
	if cfg.Redis.Host != "" {
		rdb := rediscache.NewClient(cfg.Redis.Addr())
		comp.cache = rediscache.NewFromClient(rdb)
		comp.limiter = rediscache.NewRateLimiterFromClient(rdb)
		app.closers = append(app.closers, func() { _ = rdb.Close() })
	} else {
		slog.Warn("redis is not configured: journey cache and rate limiting are off")
	}
	if cfg.Kafka.Host != "" {
		p := kafka.NewProducer(cfg.Kafka.Brokers())
		comp.events = p
		app.closers = append(app.closers, func() { _ = p.Close() })
	} else {
		slog.Warn("kafka is not configured: journey events are not published")
	}

	handler, err := newAPIHandler(ctx, cfg, comp)
	if err != nil {
		app.Close()
		panic(err)
	}
	app.handler = handler
	return app
}

// newAPIHandler wires services on top of the components and makes sure the
// bootstrap admin exists.
func newAPIHandler(ctx context.Context, cfg *config.Config, c apiComponents) (http.Handler, error) {
	if cfg.FleetTrack.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	tokenTTL := time.Duration(cfg.FleetTrack.TokenTTLMinutes) * time.Minute
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	cacheTTL := time.Duration(cfg.FleetTrack.JourneyCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	rateLimit := int64(cfg.FleetTrack.RateLimitPerMinute)
	if rateLimit <= 0 {
		rateLimit = 300
	}
	eventsTopic := cfg.Kafka.JourneyEventsTopic
	if eventsTopic == "" {
		eventsTopic = "journey.events"
	}

	tokens := auth.NewTokens(cfg.FleetTrack.JWTSecret, tokenTTL)
	userSvc := users.New(c.store, tokens)
	registry := vehicles.New(c.store)

	journeySvc := journeys.New(c.store, userSvc, registry)
	if c.cache != nil {
		journeySvc = journeySvc.WithCache(c.cache, cacheTTL)
	}
	if c.events != nil {
		journeySvc = journeySvc.WithEvents(c.events, eventsTopic)
	}

	if err := userSvc.EnsureAdmin(ctx, cfg.FleetTrack.BootstrapAdminEmail, cfg.FleetTrack.BootstrapAdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	srv := fleet_api.New(fleet_api.Deps{
		Journeys:           journeySvc,
		Vehicles:           registry,
		Users:              userSvc,
		Maintenance:        maintenance.New(c.store, cfg.FleetTrack.UpcomingWindowDays, cfg.FleetTrack.UpcomingWindowKm),
		Reports:            reports.New(c.store),
		Tires:              tires.New(c.store, registry),
		Tokens:             tokens,
		Limiter:            c.limiter,
		RateLimitPerMinute: rateLimit,
		CORSOrigins:        cfg.FleetTrack.CORSOrigins,
		Logger:             c.log,
		Health:             c.store.Ping,
	})
	return srv.Routes(), nil
}

func (a *fleetAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *fleetAPIApp) Run() error {
	return runFleetAPI(a.ctx, a.opts, a.handler)
}
