package handlers

import (
	"net/http"
	"time"

	"github.com/clinicbook/clinicbook/services/clinic-api/internal/booking"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
)

func (a *API) handlePublicSlots(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	staffID, err := queryUUID(q.Get("staff_id"), "staff_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	typeID, err := queryUUID(q.Get("appointment_type_id"), "appointment_type_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	from, err := queryTime(q.Get("from"), "from")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	to, err := queryTime(q.Get("to"), "to")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	slots, err := a.engine.AvailableSlots(r.Context(), booking.SlotQuery{
		ClinicID:          clinicID,
		StaffID:           staffID,
		AppointmentTypeID: typeID,
		From:              from,
		To:                to,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

type publicBookRequest struct {
	StaffID           string            `json:"staff_id"`
	AppointmentTypeID string            `json:"appointment_type_id"`
	Start             time.Time         `json:"start"`
	Notes             string            `json:"notes,omitempty"`
	Patient           publicPatient     `json:"patient"`
	Recurrence        *model.Recurrence `json:"recurrence,omitempty"`
}

type publicPatient struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// handlePublicBook is the patient-facing booking endpoint: it resolves
// the patient by contact details (creating one on first booking) and
// places a single appointment or a recurring series.
func (a *API) handlePublicBook(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var req publicBookRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Patient.Name == "" {
		a.writeError(w, r, booking.Invalid("patient.name", "is required"))
		return
	}
	if req.Patient.Email == "" && req.Patient.Phone == "" {
		a.writeError(w, r, booking.Invalid("patient", "email or phone is required"))
		return
	}
	staffID, err := queryUUID(req.StaffID, "staff_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	typeID, err := queryUUID(req.AppointmentTypeID, "appointment_type_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	patient := &model.Patient{
		ID:       uuid.New(),
		ClinicID: clinicID,
		Name:     req.Patient.Name,
		Email:    req.Patient.Email,
		Phone:    req.Patient.Phone,
	}
	if err := a.patients.FindOrCreateByContact(r.Context(), patient); err != nil {
		a.writeError(w, r, err)
		return
	}

	bookingReq := booking.BookingRequest{
		ClinicID:          clinicID,
		StaffID:           staffID,
		PatientID:         patient.ID,
		AppointmentTypeID: typeID,
		Start:             req.Start,
		Notes:             req.Notes,
	}

	if req.Recurrence != nil {
		result, err := a.engine.BookSeries(r.Context(), bookingReq, *req.Recurrence)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
		return
	}

	appt, err := a.engine.Book(r.Context(), bookingReq)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, booking.Invalid(name, "must be a valid UUID")
	}
	return id, nil
}

func queryUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, booking.Invalid(name, "must be a valid UUID")
	}
	return id, nil
}

func queryTime(raw, name string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, booking.Invalid(name, "must be an RFC3339 timestamp")
	}
	return ts, nil
}
