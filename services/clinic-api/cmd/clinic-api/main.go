package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/clinicbook/clinicbook/libs/config"
	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/libs/httpx"
	otelx "github.com/clinicbook/clinicbook/libs/otel"
	"github.com/clinicbook/clinicbook/libs/outbox"
	"github.com/clinicbook/clinicbook/libs/runtime"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/booking"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/handlers"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "clinic-api"

func main() {
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8080")
	if err != nil {
		logger.Error("invalid PORT", "err", err)
		os.Exit(1)
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("missing configuration", "err", err)
		os.Exit(1)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		logger.Error("missing configuration", "err", err)
		os.Exit(1)
	}

	shutdownTracing, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	pool, err := db.Open(ctx, databaseURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 10))})
	if err != nil {
		logger.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	store := storage.NewBookingStore(pool, outboxRepo)
	engine := booking.NewEngine(store)

	api := handlers.NewAPI(
		logger,
		engine,
		storage.NewClinicRepository(pool),
		storage.NewStaffRepository(pool),
		storage.NewAppointmentTypeRepository(pool),
		storage.NewPatientRepository(pool),
		storage.NewUserRepository(pool),
		storage.NewAppointmentRepository(pool),
		handlers.Config{
			JWTSecret: jwtSecret,
			TokenTTL:  time.Duration(config.Int("TOKEN_TTL_MINUTES", 720)) * time.Minute,
		},
	)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: time.Duration(config.Int("OUTBOX_POLL_MS", 2000)) * time.Millisecond,
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	mux := runtime.NewBaseMux(runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)})
	api.Register(mux)

	middlewares := []httpx.Middleware{
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		}),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second),
	}

	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT", 120),
			time.Duration(config.Int("RATE_LIMIT_WINDOW_SECONDS", 60))*time.Second,
			serviceName,
		)
		middlewares = append(middlewares, limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)))
	} else {
		limiter := httpx.NewRateLimiter(
			config.Int("RATE_LIMIT", 120),
			time.Duration(config.Int("RATE_LIMIT_WINDOW_SECONDS", 60))*time.Second,
		)
		middlewares = append(middlewares, limiter.Middleware())
	}

	var handler http.Handler = httpx.Chain(mux, middlewares...)
	handler = httpx.WithRequestID(handler)
	handler = otelhttp.NewHandler(handler, serviceName)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
