package storage

import (
	"context"
	"time"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
)

type StaffRepository struct {
	pool *db.Pool
}

func NewStaffRepository(pool *db.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

func (r *StaffRepository) Create(ctx context.Context, st *model.Staff) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO staff (id, clinic_id, name, specialty, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, st.ID, st.ClinicID, st.Name, st.Specialty, st.Active).Scan(&st.CreatedAt)
}

func (r *StaffRepository) List(ctx context.Context, clinicID uuid.UUID) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, specialty, active, created_at
		FROM staff
		WHERE clinic_id = $1
		ORDER BY name
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var st model.Staff
		if err := rows.Scan(&st.ID, &st.ClinicID, &st.Name, &st.Specialty, &st.Active, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *StaffRepository) SetActive(ctx context.Context, clinicID, staffID uuid.UUID, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff SET active = $3 WHERE id = $1 AND clinic_id = $2
	`, staffID, clinicID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceWorkingHours swaps the full weekly schedule for one staff
// member in a single transaction so readers never see a half-written
// week.
func (r *StaffRepository) ReplaceWorkingHours(ctx context.Context, staffID uuid.UUID, hours []model.WorkingHours) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM staff_working_hours WHERE staff_id = $1`, staffID); err != nil {
		return err
	}
	for _, wh := range hours {
		for _, iv := range wh.Intervals {
			_, err := tx.Exec(ctx, `
				INSERT INTO staff_working_hours (staff_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, staffID, int(wh.Weekday), iv.Start, iv.End)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *StaffRepository) AddTimeOff(ctx context.Context, off *model.TimeOff) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_time_off (id, staff_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, off.ID, off.StaffID, off.Start, off.End, off.Reason)
	return err
}

func (r *StaffRepository) ListTimeOff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]model.TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
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

func (r *StaffRepository) DeleteTimeOff(ctx context.Context, staffID, timeOffID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM staff_time_off WHERE id = $1 AND staff_id = $2
	`, timeOffID, staffID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
