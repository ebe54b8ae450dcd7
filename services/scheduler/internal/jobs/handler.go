package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/clinicbook/clinicbook/libs/events"
	"github.com/clinicbook/clinicbook/libs/kafkax"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// BookedHandler turns appointment.booked events into reminder jobs.
func BookedHandler(repo *Repository, logger *slog.Logger) kafkax.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt events.AppointmentBooked
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("malformed booked event dropped", "err", err)
			return nil
		}
		created, err := repo.EnqueueForBooking(ctx, evt, time.Now())
		if err != nil {
			return err
		}
		logger.Info("reminders enqueued",
			"appointment_id", evt.AppointmentID, "jobs", created)
		return nil
	}
}

// CancelledHandler drops pending reminders for cancelled appointments.
func CancelledHandler(repo *Repository, logger *slog.Logger) kafkax.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt events.AppointmentCancelled
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("malformed cancelled event dropped", "err", err)
			return nil
		}
		appointmentID, err := uuid.Parse(evt.AppointmentID)
		if err != nil {
			logger.Error("cancelled event with bad appointment id dropped", "err", err)
			return nil
		}
		dropped, err := repo.CancelByAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		logger.Info("reminders cancelled",
			"appointment_id", evt.AppointmentID, "jobs", dropped)
		return nil
	}
}
