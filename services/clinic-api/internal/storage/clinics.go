package storage

import (
	"context"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
)

type ClinicRepository struct {
	pool *db.Pool
}

func NewClinicRepository(pool *db.Pool) *ClinicRepository {
	return &ClinicRepository{pool: pool}
}

func (r *ClinicRepository) Create(ctx context.Context, c *model.Clinic) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO clinics (id, name, timezone, slot_step_minutes, horizon_days, reminder_offsets_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.Name, c.Timezone, c.SlotStepMinutes, c.HorizonDays, toInt32s(c.ReminderOffsets)).Scan(&c.CreatedAt)
}

func (r *ClinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, slot_step_minutes, horizon_days, reminder_offsets_minutes, created_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *ClinicRepository) Update(ctx context.Context, c *model.Clinic) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clinics
		SET name = $2, timezone = $3, slot_step_minutes = $4, horizon_days = $5, reminder_offsets_minutes = $6
		WHERE id = $1
	`, c.ID, c.Name, c.Timezone, c.SlotStepMinutes, c.HorizonDays, toInt32s(c.ReminderOffsets))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func toInt32s(values []int) []int32 {
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = int32(v)
	}
	return out
}
