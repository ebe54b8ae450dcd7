package storage

import (
	"context"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
)

type AppointmentTypeRepository struct {
	pool *db.Pool
}

func NewAppointmentTypeRepository(pool *db.Pool) *AppointmentTypeRepository {
	return &AppointmentTypeRepository{pool: pool}
}

func (r *AppointmentTypeRepository) Create(ctx context.Context, at *model.AppointmentType) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO appointment_types (id, clinic_id, name, duration_minutes, price_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, at.ID, at.ClinicID, at.Name, at.DurationMinutes, at.PriceCents, at.Active).Scan(&at.CreatedAt)
}

func (r *AppointmentTypeRepository) List(ctx context.Context, clinicID uuid.UUID) ([]model.AppointmentType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, duration_minutes, price_cents, active, created_at
		FROM appointment_types
		WHERE clinic_id = $1
		ORDER BY name
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentType
	for rows.Next() {
		var at model.AppointmentType
		if err := rows.Scan(&at.ID, &at.ClinicID, &at.Name, &at.DurationMinutes, &at.PriceCents, &at.Active, &at.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

func (r *AppointmentTypeRepository) SetActive(ctx context.Context, clinicID, typeID uuid.UUID, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment_types SET active = $3 WHERE id = $1 AND clinic_id = $2
	`, typeID, clinicID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
