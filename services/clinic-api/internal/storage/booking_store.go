package storage

import (
	"context"
	"errors"
	"time"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/libs/outbox"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/availability"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/booking"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BookingStore backs the booking engine with Postgres. The appointments
// table carries an exclusion constraint over (staff_id, tstzrange) for
// scheduled rows, so overlap rejection holds even under concurrent
// transactions that both pass the in-transaction check.
type BookingStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingStore(pool *db.Pool, ob *outbox.Repository) *BookingStore {
	return &BookingStore{pool: pool, outbox: ob}
}

func (s *BookingStore) GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, timezone, slot_step_minutes, horizon_days, reminder_offsets_minutes, created_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func scanClinic(row pgx.Row) (*model.Clinic, error) {
	var c model.Clinic
	var offsets []int32
	err := row.Scan(&c.ID, &c.Name, &c.Timezone, &c.SlotStepMinutes, &c.HorizonDays, &offsets, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.ReminderOffsets = make([]int, len(offsets))
	for i, o := range offsets {
		c.ReminderOffsets[i] = int(o)
	}
	return &c, nil
}

func (s *BookingStore) GetStaff(ctx context.Context, clinicID, staffID uuid.UUID) (*model.Staff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, specialty, active, created_at
		FROM staff
		WHERE id = $1 AND clinic_id = $2
	`, staffID, clinicID)
	var st model.Staff
	err := row.Scan(&st.ID, &st.ClinicID, &st.Name, &st.Specialty, &st.Active, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *BookingStore) GetAppointmentType(ctx context.Context, clinicID, typeID uuid.UUID) (*model.AppointmentType, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, duration_minutes, price_cents, active, created_at
		FROM appointment_types
		WHERE id = $1 AND clinic_id = $2
	`, typeID, clinicID)
	var at model.AppointmentType
	err := row.Scan(&at.ID, &at.ClinicID, &at.Name, &at.DurationMinutes, &at.PriceCents, &at.Active, &at.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (s *BookingStore) GetPatient(ctx context.Context, clinicID, patientID uuid.UUID) (*model.Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, email, phone, created_at
		FROM patients
		WHERE id = $1 AND clinic_id = $2
	`, patientID, clinicID)
	var p model.Patient
	err := row.Scan(&p.ID, &p.ClinicID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BookingStore) ListWorkingHours(ctx context.Context, staffID uuid.UUID) ([]model.WorkingHours, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM staff_working_hours
		WHERE staff_id = $1
		ORDER BY weekday, start_minute
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byWeekday := make(map[time.Weekday][]model.MinuteInterval)
	for rows.Next() {
		var weekday int
		var iv model.MinuteInterval
		if err := rows.Scan(&weekday, &iv.Start, &iv.End); err != nil {
			return nil, err
		}
		byWeekday[time.Weekday(weekday)] = append(byWeekday[time.Weekday(weekday)], iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	var hours []model.WorkingHours
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if ivs, ok := byWeekday[wd]; ok {
			hours = append(hours, model.WorkingHours{StaffID: staffID, Weekday: wd, Intervals: ivs})
		}
	}
	return hours, nil
}

func (s *BookingStore) ListTimeOff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]model.TimeOff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, staff_id, start_time, end_time, reason
		FROM staff_time_off
		WHERE staff_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeOff
	for rows.Next() {
		var off model.TimeOff
		if err := rows.Scan(&off.ID, &off.StaffID, &off.Start, &off.End, &off.Reason); err != nil {
			return nil, err
		}
		out = append(out, off)
	}
	return out, rows.Err()
}

func (s *BookingStore) ListBookedIntervals(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE staff_id = $1 AND status = 'scheduled' AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// CreateIfFree inserts the appointment and its outbox events in one
// transaction. An explicit overlap check gives the common case a clean
// error; the exclusion constraint catches the race where two
// transactions check before either commits.
func (s *BookingStore) CreateIfFree(ctx context.Context, appt *model.Appointment, events []outbox.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE staff_id = $1 AND status = 'scheduled'
			  AND start_time < $3 AND end_time > $2
		)
	`, appt.StaffID, appt.Start, appt.End).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return booking.ErrSlotUnavailable
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, clinic_id, staff_id, patient_id, appointment_type_id,
			start_time, end_time, status, notes, recurrence_group_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, appt.ID, appt.ClinicID, appt.StaffID, appt.PatientID, appt.AppointmentTypeID,
		appt.Start, appt.End, appt.Status, appt.Notes, appt.RecurrenceGroupID, appt.CreatedAt)
	if isExclusionViolation(err) {
		return booking.ErrSlotUnavailable
	}
	if err != nil {
		return err
	}

	for _, evt := range events {
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *BookingStore) GetAppointment(ctx context.Context, clinicID, apptID uuid.UUID) (*model.Appointment, error) {
	row := s.pool.QueryRow(ctx, appointmentColumns+`
		WHERE id = $1 AND clinic_id = $2
	`, apptID, clinicID)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *BookingStore) MarkCancelled(ctx context.Context, clinicID, apptID uuid.UUID, evt outbox.Event) (*model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled'
		WHERE id = $1 AND clinic_id = $2 AND status = 'scheduled'
		RETURNING id, clinic_id, staff_id, patient_id, appointment_type_id,
			start_time, end_time, status, notes, recurrence_group_id, created_at
	`, apptID, clinicID)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *BookingStore) ListSeries(ctx context.Context, clinicID, groupID uuid.UUID) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, appointmentColumns+`
		WHERE clinic_id = $1 AND recurrence_group_id = $2
		ORDER BY start_time
	`, clinicID, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

const appointmentColumns = `
	SELECT id, clinic_id, staff_id, patient_id, appointment_type_id,
		start_time, end_time, status, notes, recurrence_group_id, created_at
	FROM appointments
`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.ClinicID, &a.StaffID, &a.PatientID, &a.AppointmentTypeID,
		&a.Start, &a.End, &a.Status, &a.Notes, &a.RecurrenceGroupID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}
