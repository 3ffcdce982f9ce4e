package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/soulsalutte/clinic/internal/config"
	"github.com/soulsalutte/clinic/internal/domain/assessment"
	"github.com/soulsalutte/clinic/internal/domain/calendar"
	"github.com/soulsalutte/clinic/internal/domain/dashboard"
	"github.com/soulsalutte/clinic/internal/domain/export"
	"github.com/soulsalutte/clinic/internal/domain/patient"
	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/internal/platform/auth"
	"github.com/soulsalutte/clinic/internal/platform/db"
	"github.com/soulsalutte/clinic/internal/platform/inflight"
	"github.com/soulsalutte/clinic/internal/platform/metrics"
	"github.com/soulsalutte/clinic/internal/platform/middleware"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

const version = "0.1.0"

// app is the wired server: the router plus the services the seed command
// and tests reach into.
type app struct {
	echo        *echo.Echo
	loc         *time.Location
	patients    *patient.Service
	sessions    *scheduling.Service
	assessments *assessment.Service
	guard       inflight.Guard
	closers     []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type stores struct {
	patients    patient.Repository
	sessions    scheduling.Repository
	assessments assessment.Repository
	pool        *pgxpool.Pool
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if !cfg.UsesPostgres() {
		return &stores{
			patients:    patient.NewMemoryRepo(),
			sessions:    scheduling.NewMemoryRepo(),
			assessments: assessment.NewMemoryRepo(),
		}, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	return &stores{
		patients:    patient.NewRepoPG(pool),
		sessions:    scheduling.NewRepoPG(pool),
		assessments: assessment.NewRepoPG(pool),
		pool:        pool,
	}, nil
}

// openGuard shares in-flight holds through Redis when REDIS_URL is set, so
// several replicas refuse overlapping mutations of one session.
func openGuard(ctx context.Context, cfg *config.Config) (inflight.Guard, func(), error) {
	if cfg.RedisURL == "" {
		return inflight.NewMemoryGuard(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return inflight.NewRedisGuard(client, cfg.MutationLockTTL), func() { _ = client.Close() }, nil
}

// signingKey returns the configured key, or a random one in development
// mode where tokens need not survive a restart.
func signingKey(cfg *config.Config) ([]byte, error) {
	if cfg.AuthSigningKey != "" {
		return []byte(cfg.AuthSigningKey), nil
	}
	buf := make([]byte, 32)
	if _, err := crypto_rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), nil
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	loc, err := localtime.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		return nil, err
	}
	a := &app{loc: loc}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if st.pool != nil {
		a.closers = append(a.closers, st.pool.Close)
		logger.Info().Msg("connected to database")
	}

	guard, closeGuard, err := openGuard(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.guard = guard
	a.closers = append(a.closers, closeGuard)

	// Services. Patients learn about their dependents after the dependents
	// exist, since those need the patient lookup first.
	a.patients = patient.NewService(st.patients)
	a.sessions = scheduling.NewService(st.sessions, a.patients)
	a.assessments = assessment.NewService(st.assessments, a.patients, loc)
	a.patients.AddDependents(a.sessions, a.assessments)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Auth
	key, err := signingKey(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	revocations := auth.NewTokenRevocationStore()
	a.closers = append(a.closers, revocations.Close)
	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: key, Revocations: revocations}
	issuer := auth.NewTokenIssuer(jwtCfg, cfg.AuthTokenTTL)

	var users []auth.User
	if cfg.AdminPassword != "" {
		users = append(users, auth.NewUser(cfg.AdminUsername, "", "Administrator", cfg.AdminPassword, auth.RoleAdmin))
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	a.echo = e

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{echo.HeaderContentDisposition, echo.HeaderXRequestID},
	}))
	e.Use(echomw.BodyLimit("2M"))
	e.Use(middleware.Metrics(m))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth: requests without a token run as admin")
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger, nil))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   cfg.StoreBackend,
		})
	})
	if st.pool != nil {
		pool := st.pool
		e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	}
	e.GET("/metrics", m.Handler())

	// API group
	api := e.Group("/api")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	auth.NewHandler(issuer, users...).RegisterRoutes(api)
	patient.NewHandler(a.patients).RegisterRoutes(api)
	scheduling.NewHandler(a.sessions, guard, loc).RegisterRoutes(api)
	calendar.NewHandler(calendar.NewCoordinator(a.sessions, guard, m, logger, loc)).RegisterRoutes(api)
	assessment.NewHandler(a.assessments, loc).RegisterRoutes(api)
	export.NewHandler(export.NewExporter(a.assessments, a.patients, cfg.ClinicName, loc, m, logger)).RegisterRoutes(api)
	dashboard.NewHandler(a.sessions, a.patients, loc).RegisterRoutes(api)

	return a, nil
}
