package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinicbook/clinicbook/libs/events"
	"github.com/clinicbook/clinicbook/libs/kafkax"
	"github.com/clinicbook/clinicbook/services/notifier/internal/senders"
	"github.com/clinicbook/clinicbook/services/notifier/internal/storage"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Dispatcher consumes reminder.due events, delivers them over the
// channel the scheduler picked, records the attempt, and publishes a
// sent/failed result event. A delivery failure is terminal here: the
// scheduler already retried publishing, and a reminder delivered late
// is worse than one marked failed.
type Dispatcher struct {
	logger *slog.Logger
	email  senders.EmailSender
	sms    senders.SMSSender
	store  *storage.NotificationRepository
	writer *kafka.Writer
}

func NewDispatcher(logger *slog.Logger, email senders.EmailSender, sms senders.SMSSender, store *storage.NotificationRepository, brokers string) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		email:  email,
		sms:    sms,
		store:  store,
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  kafkax.SplitBrokers(brokers),
			Balancer: &kafka.Hash{},
		}),
	}
}

func (d *Dispatcher) Close() error {
	return d.writer.Close()
}

func (d *Dispatcher) Handler() kafkax.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt events.ReminderDue
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			d.logger.Error("malformed reminder event dropped", "err", err)
			return nil
		}

		recipient, sendErr := d.deliver(ctx, evt)

		if err := d.record(ctx, evt, recipient, sendErr); err != nil {
			d.logger.Error("notification record failed", "err", err)
		}
		if err := d.publishResult(ctx, evt, recipient, sendErr); err != nil {
			d.logger.Error("notification result publish failed", "err", err)
		}

		if sendErr != nil {
			d.logger.Error("reminder delivery failed",
				"appointment_id", evt.AppointmentID, "channel", evt.Channel, "err", sendErr)
		} else {
			d.logger.Info("reminder delivered",
				"appointment_id", evt.AppointmentID, "channel", evt.Channel)
		}
		return nil
	}
}

func (d *Dispatcher) deliver(ctx context.Context, evt events.ReminderDue) (string, error) {
	subject, body := RenderReminder(evt)
	switch evt.Channel {
	case events.ChannelEmail:
		if evt.PatientEmail == "" {
			return "", fmt.Errorf("reminder has no email recipient")
		}
		return evt.PatientEmail, d.email.Send(ctx, evt.PatientEmail, subject, body)
	case events.ChannelSMS:
		if evt.PatientPhone == "" {
			return "", fmt.Errorf("reminder has no phone recipient")
		}
		return evt.PatientPhone, d.sms.Send(ctx, evt.PatientPhone, body)
	default:
		return "", fmt.Errorf("unknown channel %q", evt.Channel)
	}
}

func (d *Dispatcher) record(ctx context.Context, evt events.ReminderDue, recipient string, sendErr error) error {
	appointmentID, err := uuid.Parse(evt.AppointmentID)
	if err != nil {
		return err
	}
	clinicID, err := uuid.Parse(evt.ClinicID)
	if err != nil {
		return err
	}
	n := &storage.Notification{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		ClinicID:      clinicID,
		Channel:       evt.Channel,
		Recipient:     recipient,
		Status:        storage.StatusSent,
		SentAt:        time.Now(),
	}
	if sendErr != nil {
		n.Status = storage.StatusFailed
		n.Error = sendErr.Error()
	}
	return d.store.Record(ctx, n)
}

func (d *Dispatcher) publishResult(ctx context.Context, evt events.ReminderDue, recipient string, sendErr error) error {
	result := events.NotificationResult{
		AppointmentID: evt.AppointmentID,
		ClinicID:      evt.ClinicID,
		Channel:       evt.Channel,
		Recipient:     recipient,
		At:            time.Now(),
	}
	topic := events.TopicNotificationSent
	if sendErr != nil {
		topic = events.TopicNotificationFailed
		result.Error = sendErr.Error()
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(evt.AppointmentID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(topic)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	return d.writer.WriteMessages(ctx, msg)
}

// RenderReminder formats the reminder in the clinic's local time.
func RenderReminder(evt events.ReminderDue) (subject, body string) {
	when := evt.Start
	if loc, err := time.LoadLocation(evt.Timezone); err == nil {
		when = when.In(loc)
	}
	subject = fmt.Sprintf("Reminder: %s on %s", evt.TypeName, when.Format("Mon, 2 Jan"))
	body = fmt.Sprintf("Hi %s, this is a reminder for your %s appointment on %s at %s.",
		evt.PatientName, evt.TypeName, when.Format("Monday, 2 January 2006"), when.Format("15:04"))
	return subject, body
}
