package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/clinicbook/clinicbook/libs/config"
	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/libs/events"
	"github.com/clinicbook/clinicbook/libs/inbox"
	"github.com/clinicbook/clinicbook/libs/kafkax"
	otelx "github.com/clinicbook/clinicbook/libs/otel"
	"github.com/clinicbook/clinicbook/libs/runtime"
	"github.com/clinicbook/clinicbook/services/scheduler/internal/jobs"
)

const serviceName = "scheduler"

func main() {
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8081")
	if err != nil {
		logger.Error("invalid PORT", "err", err)
		os.Exit(1)
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("missing configuration", "err", err)
		os.Exit(1)
	}
	brokers, err := config.RequiredString("KAFKA_BROKERS")
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

	pool, err := db.Open(ctx, databaseURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 5))})
	if err != nil {
		logger.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := jobs.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	worker := jobs.NewWorker(pool, repo, logger, jobs.WorkerConfig{
		Brokers:     brokers,
		PollEvery:   time.Duration(config.Int("POLL_MS", 5000)) * time.Millisecond,
		BatchSize:   config.Int("BATCH_SIZE", 100),
		MaxAttempts: config.Int("MAX_ATTEMPTS", 5),
		DLQTopic:    config.String("DLQ_TOPIC", ""),
	})
	go worker.Run(ctx)

	bookedConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: serviceName,
		Topic:   events.TopicAppointmentBooked,
	}, jobs.BookedHandler(repo, logger))
	go bookedConsumer.Run(ctx)

	cancelledConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: serviceName,
		Topic:   events.TopicAppointmentCancelled,
	}, jobs.CancelledHandler(repo, logger))
	go cancelledConsumer.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
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
