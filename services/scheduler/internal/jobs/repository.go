package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/libs/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job statuses. Pending jobs with next_attempt_at in the past are due.
const (
	StatusPending   = "pending"
	StatusDone      = "done"
	StatusDead      = "dead"
	StatusCancelled = "cancelled"
)

type Job struct {
	ID            int64
	AppointmentID uuid.UUID
	ClinicID      uuid.UUID
	Channel       string
	RunAt         time.Time
	Payload       []byte
	Attempts      int
	Status        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnqueueForBooking creates one reminder job per (offset, channel) for a
// booked appointment. Reminders whose fire time already passed are not
// created; the unique index makes redelivered booking events a no-op.
func (r *Repository) EnqueueForBooking(ctx context.Context, evt events.AppointmentBooked, now time.Time) (int, error) {
	appointmentID, err := uuid.Parse(evt.AppointmentID)
	if err != nil {
		return 0, err
	}
	clinicID, err := uuid.Parse(evt.ClinicID)
	if err != nil {
		return 0, err
	}

	var channels []string
	if evt.PatientEmail != "" {
		channels = append(channels, events.ChannelEmail)
	}
	if evt.PatientPhone != "" {
		channels = append(channels, events.ChannelSMS)
	}

	created := 0
	for _, offset := range evt.ReminderOffsets {
		runAt := evt.Start.Add(-time.Duration(offset) * time.Minute)
		if !runAt.After(now) {
			continue
		}
		for _, channel := range channels {
			payload, err := json.Marshal(events.ReminderDue{
				AppointmentID: evt.AppointmentID,
				ClinicID:      evt.ClinicID,
				Channel:       channel,
				TypeName:      evt.TypeName,
				Start:         evt.Start,
				Timezone:      evt.Timezone,
				PatientName:   evt.PatientName,
				PatientEmail:  evt.PatientEmail,
				PatientPhone:  evt.PatientPhone,
			})
			if err != nil {
				return created, err
			}
			tag, err := r.pool.Exec(ctx, `
				INSERT INTO reminder_jobs (appointment_id, clinic_id, channel, run_at, next_attempt_at, payload, status)
				VALUES ($1, $2, $3, $4, $4, $5, 'pending')
				ON CONFLICT (appointment_id, channel, run_at) DO NOTHING
			`, appointmentID, clinicID, channel, runAt, payload)
			if err != nil {
				return created, err
			}
			created += int(tag.RowsAffected())
		}
	}
	return created, nil
}

// CancelByAppointment drops the pending reminders of a cancelled
// appointment. Jobs already done or dead are untouched.
func (r *Repository) CancelByAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'cancelled'
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int, now time.Time) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, appointment_id, clinic_id, channel, run_at, payload, attempts, status
		FROM reminder_jobs
		WHERE status = 'pending' AND next_attempt_at <= $2
		ORDER BY run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.AppointmentID, &j.ClinicID, &j.Channel, &j.RunAt, &j.Payload, &j.Attempts, &j.Status); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *Repository) MarkDone(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs SET status = 'done', completed_at = now() WHERE id = $1
	`, id)
	return err
}

func (r *Repository) MarkRetry(ctx context.Context, tx pgx.Tx, id int64, attempts int, nextAttempt time.Time, lastErr string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET attempts = $2, next_attempt_at = $3, last_error = $4
		WHERE id = $1
	`, id, attempts, nextAttempt, lastErr)
	return err
}

func (r *Repository) MarkDead(ctx context.Context, tx pgx.Tx, id int64, lastErr string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs SET status = 'dead', last_error = $2 WHERE id = $1
	`, id, lastErr)
	return err
}
