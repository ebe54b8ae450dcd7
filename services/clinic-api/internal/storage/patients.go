package storage

import (
	"context"
	"errors"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PatientRepository struct {
	pool *db.Pool
}

func NewPatientRepository(pool *db.Pool) *PatientRepository {
	return &PatientRepository{pool: pool}
}

func (r *PatientRepository) Create(ctx context.Context, p *model.Patient) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, clinic_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, p.ID, p.ClinicID, p.Name, p.Email, p.Phone).Scan(&p.CreatedAt)
}

// FindOrCreateByContact matches an existing patient of the clinic by
// email (or phone when no email is given) so public bookings do not
// mint a duplicate patient per booking.
func (r *PatientRepository) FindOrCreateByContact(ctx context.Context, p *model.Patient) error {
	var row pgx.Row
	switch {
	case p.Email != "":
		row = r.pool.QueryRow(ctx, `
			SELECT id, clinic_id, name, email, phone, created_at
			FROM patients
			WHERE clinic_id = $1 AND email = $2
		`, p.ClinicID, p.Email)
	case p.Phone != "":
		row = r.pool.QueryRow(ctx, `
			SELECT id, clinic_id, name, email, phone, created_at
			FROM patients
			WHERE clinic_id = $1 AND phone = $2
		`, p.ClinicID, p.Phone)
	default:
		return r.Create(ctx, p)
	}

	var existing model.Patient
	err := row.Scan(&existing.ID, &existing.ClinicID, &existing.Name, &existing.Email, &existing.Phone, &existing.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.Create(ctx, p)
	}
	if err != nil {
		return err
	}
	*p = existing
	return nil
}

func (r *PatientRepository) Get(ctx context.Context, clinicID, patientID uuid.UUID) (*model.Patient, error) {
	row := r.pool.QueryRow(ctx, `
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

func (r *PatientRepository) List(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]model.Patient, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, email, phone, created_at
		FROM patients
		WHERE clinic_id = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`, clinicID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Patient
	for rows.Next() {
		var p model.Patient
		if err := rows.Scan(&p.ID, &p.ClinicID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
