package storage

import (
	"context"
	"time"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/google/uuid"
)

type Notification struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	ClinicID      uuid.UUID
	Channel       string
	Recipient     string
	Status        string
	Error         string
	SentAt        time.Time
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// NotificationRepository keeps an audit trail of every delivery attempt.
type NotificationRepository struct {
	pool *db.Pool
}

func NewNotificationRepository(pool *db.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Record(ctx context.Context, n *Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, appointment_id, clinic_id, channel, recipient, status, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.AppointmentID, n.ClinicID, n.Channel, n.Recipient, n.Status, n.Error, n.SentAt)
	return err
}

func (r *NotificationRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, clinic_id, channel, recipient, status, error, sent_at
		FROM notifications
		WHERE appointment_id = $1
		ORDER BY sent_at
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.AppointmentID, &n.ClinicID, &n.Channel, &n.Recipient, &n.Status, &n.Error, &n.SentAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
