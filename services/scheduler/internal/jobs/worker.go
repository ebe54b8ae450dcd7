package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/libs/events"
	"github.com/clinicbook/clinicbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type WorkerConfig struct {
	Brokers     string
	PollEvery   time.Duration
	BatchSize   int
	MaxAttempts int
	DLQTopic    string
}

// Worker drains due reminder jobs and publishes them as reminder.due
// events. Publish failures are retried with exponential backoff; a job
// that exhausts its attempts goes to the dead-letter topic.
type Worker struct {
	pool   *db.Pool
	repo   *Repository
	logger *slog.Logger
	cfg    WorkerConfig
	nowFn  func() time.Time
}

func NewWorker(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.DLQTopic == "" {
		cfg.DLQTopic = events.TopicReminderDue + ".dlq"
	}
	return &Worker{pool: pool, repo: repo, logger: logger, cfg: cfg, nowFn: time.Now}
}

func (w *Worker) Run(ctx context.Context) {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  kafkax.SplitBrokers(w.cfg.Brokers),
		Balancer: &kafka.Hash{},
	})
	defer writer.Close()

	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx, writer); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, writer *kafka.Writer) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := w.nowFn()
	due, err := w.repo.FetchDue(ctx, tx, w.cfg.BatchSize, now)
	if err != nil {
		return err
	}

	for _, job := range due {
		// Stable per job so consumer-side dedupe survives redelivery but
		// never collapses two reminders for the same appointment.
		eventID := fmt.Sprintf("reminder-%d", job.ID)
		msg := kafka.Message{
			Topic: events.TopicReminderDue,
			Key:   []byte(job.AppointmentID.String()),
			Value: job.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(eventID)},
				{Key: "event_type", Value: []byte(events.TopicReminderDue)},
				{Key: "channel", Value: []byte(job.Channel)},
			},
		}
		msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)

		if err := writer.WriteMessages(ctx, msg); err != nil {
			attempts := job.Attempts + 1
			if attempts >= w.cfg.MaxAttempts {
				w.logger.Error("reminder job exhausted retries",
					"job_id", job.ID, "appointment_id", job.AppointmentID, "err", err)
				w.deadLetter(ctx, job)
				if err := w.repo.MarkDead(ctx, tx, job.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			w.logger.Warn("reminder publish failed, will retry",
				"job_id", job.ID, "attempt", attempts, "err", err)
			if err := w.repo.MarkRetry(ctx, tx, job.ID, attempts, now.Add(backoff(attempts)), err.Error()); err != nil {
				return err
			}
			continue
		}

		if err := w.repo.MarkDone(ctx, tx, job.ID); err != nil {
			return err
		}
		w.logger.Info("reminder published",
			"job_id", job.ID, "appointment_id", job.AppointmentID, "channel", job.Channel)
	}
	return tx.Commit(ctx)
}

// deadLetter publishes the job payload to the DLQ topic, best effort: a
// DLQ write failure must not block marking the job dead.
func (w *Worker) deadLetter(ctx context.Context, job Job) {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: kafkax.SplitBrokers(w.cfg.Brokers),
	})
	defer writer.Close()

	err := writer.WriteMessages(ctx, kafka.Message{
		Topic: w.cfg.DLQTopic,
		Key:   []byte(job.AppointmentID.String()),
		Value: job.Payload,
	})
	if err != nil {
		w.logger.Error("dead-letter publish failed", "job_id", job.ID, "err", err)
	}
}

// backoff doubles per attempt starting at one minute, capped at 30m.
func backoff(attempts int) time.Duration {
	d := time.Minute << (attempts - 1)
	if d > 30*time.Minute || d <= 0 {
		return 30 * time.Minute
	}
	return d
}
