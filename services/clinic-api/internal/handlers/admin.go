package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clinicbook/clinicbook/services/clinic-api/internal/booking"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type createClinicRequest struct {
	Name            string `json:"name"`
	Timezone        string `json:"timezone"`
	SlotStepMinutes int    `json:"slot_step_minutes"`
	HorizonDays     int    `json:"horizon_days"`
	ReminderOffsets []int  `json:"reminder_offsets_minutes"`
	OwnerEmail      string `json:"owner_email"`
	OwnerPassword   string `json:"owner_password"`
}

// handleCreateClinic bootstraps a tenant: the clinic row plus its first
// owner user, created together. Further users are added through
// /auth/register by that owner.
func (a *API) handleCreateClinic(w http.ResponseWriter, r *http.Request) {
	var req createClinicRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		a.writeError(w, r, booking.Invalid("name", "is required"))
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		a.writeError(w, r, booking.Invalid("timezone", "must be an IANA timezone name"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.OwnerEmail))
	if email == "" || len(req.OwnerPassword) < 8 {
		a.writeError(w, r, booking.Invalid("owner", "owner_email and an owner_password of 8+ characters are required"))
		return
	}
	for _, offset := range req.ReminderOffsets {
		if offset <= 0 {
			a.writeError(w, r, booking.Invalid("reminder_offsets_minutes", "offsets must be positive"))
			return
		}
	}

	clinic := &model.Clinic{
		ID:              uuid.New(),
		Name:            req.Name,
		Timezone:        req.Timezone,
		SlotStepMinutes: req.SlotStepMinutes,
		HorizonDays:     req.HorizonDays,
		ReminderOffsets: req.ReminderOffsets,
	}
	if err := a.clinics.Create(r.Context(), clinic); err != nil {
		a.writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.OwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	owner := &model.User{
		ID:           uuid.New(),
		ClinicID:     clinic.ID,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleOwner,
	}
	if err := a.users.Create(r.Context(), owner); err != nil {
		if storage.IsUniqueViolation(err) {
			writeErrorMsg(w, http.StatusConflict, "email already registered")
			return
		}
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"clinic": clinic,
		"owner":  owner,
	})
}

func (a *API) handleGetClinic(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	clinic, err := a.clinics.Get(r.Context(), clinicID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if clinic == nil {
		a.writeError(w, r, booking.NotFound("clinic", clinicID.String()))
		return
	}
	writeJSON(w, http.StatusOK, clinic)
}

func (a *API) handleUpdateClinic(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req createClinicRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		a.writeError(w, r, booking.Invalid("timezone", "must be an IANA timezone name"))
		return
	}

	clinic := &model.Clinic{
		ID:              clinicID,
		Name:            req.Name,
		Timezone:        req.Timezone,
		SlotStepMinutes: req.SlotStepMinutes,
		HorizonDays:     req.HorizonDays,
		ReminderOffsets: req.ReminderOffsets,
	}
	found, err := a.clinics.Update(r.Context(), clinic)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !found {
		a.writeError(w, r, booking.NotFound("clinic", clinicID.String()))
		return
	}
	writeJSON(w, http.StatusOK, clinic)
}

type createStaffRequest struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

func (a *API) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req createStaffRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		a.writeError(w, r, booking.Invalid("name", "is required"))
		return
	}
	st := &model.Staff{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		Name:      req.Name,
		Specialty: req.Specialty,
		Active:    true,
	}
	if err := a.staff.Create(r.Context(), st); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (a *API) handleListStaff(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, err := a.staff.List(r.Context(), clinicID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": list})
}

type workingHoursRequest struct {
	Hours []struct {
		Weekday   int                    `json:"weekday"`
		Intervals []model.MinuteInterval `json:"intervals"`
	} `json:"hours"`
}

func (a *API) handleSetWorkingHours(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	staffID, err := pathUUID(r, "staffID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.ensureStaff(r, clinicID, staffID); err != nil {
		a.writeError(w, r, err)
		return
	}

	var req workingHoursRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	var hours []model.WorkingHours
	for _, h := range req.Hours {
		if h.Weekday < 0 || h.Weekday > 6 {
			a.writeError(w, r, booking.Invalid("weekday", "must be 0 (Sunday) through 6 (Saturday)"))
			return
		}
		for _, iv := range h.Intervals {
			if iv.Start < 0 || iv.End > 24*60 || iv.End <= iv.Start {
				a.writeError(w, r, booking.Invalid("intervals", "minutes must satisfy 0 <= start < end <= 1440"))
				return
			}
		}
		hours = append(hours, model.WorkingHours{
			StaffID:   staffID,
			Weekday:   time.Weekday(h.Weekday),
			Intervals: h.Intervals,
		})
	}

	if err := a.staff.ReplaceWorkingHours(r.Context(), staffID, hours); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": hours})
}

type timeOffRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason,omitempty"`
}

func (a *API) handleAddTimeOff(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	staffID, err := pathUUID(r, "staffID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.ensureStaff(r, clinicID, staffID); err != nil {
		a.writeError(w, r, err)
		return
	}

	var req timeOffRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if !req.Start.Before(req.End) {
		a.writeError(w, r, booking.Invalid("start", "must be before end"))
		return
	}
	off := &model.TimeOff{
		ID:      uuid.New(),
		StaffID: staffID,
		Start:   req.Start,
		End:     req.End,
		Reason:  req.Reason,
	}
	if err := a.staff.AddTimeOff(r.Context(), off); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, off)
}

func (a *API) handleListTimeOff(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	staffID, err := pathUUID(r, "staffID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.ensureStaff(r, clinicID, staffID); err != nil {
		a.writeError(w, r, err)
		return
	}

	from := time.Now()
	to := from.AddDate(1, 0, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = queryTime(raw, "from"); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = queryTime(raw, "to"); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	list, err := a.staff.ListTimeOff(r.Context(), staffID, from, to)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"time_off": list})
}

func (a *API) handleDeleteTimeOff(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	staffID, err := pathUUID(r, "staffID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	timeOffID, err := pathUUID(r, "timeOffID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.ensureStaff(r, clinicID, staffID); err != nil {
		a.writeError(w, r, err)
		return
	}
	found, err := a.staff.DeleteTimeOff(r.Context(), staffID, timeOffID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !found {
		a.writeError(w, r, booking.NotFound("time off", timeOffID.String()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createTypeRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

func (a *API) handleCreateType(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req createTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		a.writeError(w, r, booking.Invalid("name", "is required"))
		return
	}
	if req.DurationMinutes <= 0 {
		a.writeError(w, r, booking.Invalid("duration_minutes", "must be positive"))
		return
	}
	at := &model.AppointmentType{
		ID:              uuid.New(),
		ClinicID:        clinicID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
		Active:          true,
	}
	if err := a.types.Create(r.Context(), at); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, at)
}

func (a *API) handleListTypes(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, err := a.types.List(r.Context(), clinicID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment_types": list})
}

type createPatientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (a *API) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req createPatientRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		a.writeError(w, r, booking.Invalid("name", "is required"))
		return
	}
	p := &model.Patient{
		ID:       uuid.New(),
		ClinicID: clinicID,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
	}
	if err := a.patients.Create(r.Context(), p); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleListPatients(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)
	list, err := a.patients.List(r.Context(), clinicID, limit, offset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": list})
}

func (a *API) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	patientID, err := pathUUID(r, "patientID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.patients.Get(r.Context(), clinicID, patientID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if p == nil {
		a.writeError(w, r, booking.NotFound("patient", patientID.String()))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var filter storage.AppointmentFilter
	q := r.URL.Query()
	if raw := q.Get("staff_id"); raw != "" {
		staffID, err := queryUUID(raw, "staff_id")
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		filter.StaffID = &staffID
	}
	if raw := q.Get("status"); raw != "" {
		filter.Status = raw
	}
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = queryTime(raw, "from"); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = queryTime(raw, "to"); err != nil {
			a.writeError(w, r, err)
			return
		}
	}

	list, err := a.appts.List(r.Context(), clinicID, filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

type createAppointmentRequest struct {
	StaffID           string            `json:"staff_id"`
	PatientID         string            `json:"patient_id"`
	AppointmentTypeID string            `json:"appointment_type_id"`
	Start             time.Time         `json:"start"`
	Notes             string            `json:"notes,omitempty"`
	Recurrence        *model.Recurrence `json:"recurrence,omitempty"`
}

// handleCreateAppointment books on behalf of an existing patient, e.g.
// a receptionist taking a phone booking.
func (a *API) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	staffID, err := queryUUID(req.StaffID, "staff_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	patientID, err := queryUUID(req.PatientID, "patient_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	typeID, err := queryUUID(req.AppointmentTypeID, "appointment_type_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	bookingReq := booking.BookingRequest{
		ClinicID:          clinicID,
		StaffID:           staffID,
		PatientID:         patientID,
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

func (a *API) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	apptID, err := pathUUID(r, "appointmentID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	appt, err := a.engine.Cancel(r.Context(), clinicID, apptID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (a *API) handleCompleteAppointment(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	apptID, err := pathUUID(r, "appointmentID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	done, err := a.appts.MarkCompleted(r.Context(), clinicID, apptID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !done {
		a.writeError(w, r, booking.Invalid("status", "appointment is not a past scheduled appointment"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": model.StatusCompleted})
}

func (a *API) handleCancelSeries(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathUUID(r, "clinicID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	groupID, err := pathUUID(r, "groupID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	cancelled, err := a.engine.CancelSeries(r.Context(), clinicID, groupID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

// ensureStaff guards nested staff routes against IDs from other clinics.
func (a *API) ensureStaff(r *http.Request, clinicID, staffID uuid.UUID) error {
	list, err := a.staff.List(r.Context(), clinicID)
	if err != nil {
		return err
	}
	for _, st := range list {
		if st.ID == staffID {
			return nil
		}
	}
	return booking.NotFound("staff", staffID.String())
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
