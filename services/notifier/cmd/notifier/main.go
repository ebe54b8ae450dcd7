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
	"github.com/clinicbook/clinicbook/services/notifier/internal/notify"
	"github.com/clinicbook/clinicbook/services/notifier/internal/senders"
	"github.com/clinicbook/clinicbook/services/notifier/internal/storage"
)

const serviceName = "notifier"

func main() {
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8082")
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

	var email senders.EmailSender = &senders.LogEmailSender{Logger: logger}
	if host := config.String("SMTP_HOST", ""); host != "" {
		email = &senders.SMTPSender{
			Host:     host,
			Port:     config.String("SMTP_PORT", "587"),
			From:     config.String("SMTP_FROM", "reminders@clinicbook.local"),
			Username: config.String("SMTP_USERNAME", ""),
			Password: config.String("SMTP_PASSWORD", ""),
		}
	}

	var sms senders.SMSSender = &senders.NoopSMSSender{Logger: logger}
	if url := config.String("SMS_WEBHOOK_URL", ""); url != "" {
		sms = senders.NewWebhookSMSSender(url, config.String("SMS_WEBHOOK_TOKEN", ""))
	}

	dispatcher := notify.NewDispatcher(logger, email, sms, storage.NewNotificationRepository(pool), brokers)
	defer dispatcher.Close()

	consumer := kafkax.NewConsumer(logger, inbox.NewRepository(pool), kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: serviceName,
		Topic:   events.TopicReminderDue,
	}, dispatcher.Handler())
	go consumer.Run(ctx)

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
