package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
)

// AppointmentRepository serves the read side of the admin API; writes go
// through BookingStore so they stay coupled to conflict checking and
// the outbox.
type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

type AppointmentFilter struct {
	StaffID *uuid.UUID
	Status  string
	From    time.Time
	To      time.Time
}

func (r *AppointmentRepository) List(ctx context.Context, clinicID uuid.UUID, f AppointmentFilter) ([]model.Appointment, error) {
	query := appointmentColumns + ` WHERE clinic_id = $1`
	args := []any{clinicID}

	if f.StaffID != nil {
		args = append(args, *f.StaffID)
		query += ` AND staff_id = $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += ` AND end_time > $` + strconv.Itoa(len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += ` AND start_time < $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY start_time`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// MarkCompleted flips a past scheduled appointment to completed.
func (r *AppointmentRepository) MarkCompleted(ctx context.Context, clinicID, apptID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed'
		WHERE id = $1 AND clinic_id = $2 AND status = 'scheduled' AND end_time <= now()
	`, apptID, clinicID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
