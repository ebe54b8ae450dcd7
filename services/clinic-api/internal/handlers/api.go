package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/clinicbook/clinicbook/services/clinic-api/internal/booking"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/rbac"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/storage"
)

type API struct {
	logger   *slog.Logger
	engine   *booking.Engine
	clinics  *storage.ClinicRepository
	staff    *storage.StaffRepository
	types    *storage.AppointmentTypeRepository
	patients *storage.PatientRepository
	users    *storage.UserRepository
	appts    *storage.AppointmentRepository

	jwtSecret string
	tokenTTL  time.Duration
}

type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
}

func NewAPI(
	logger *slog.Logger,
	engine *booking.Engine,
	clinics *storage.ClinicRepository,
	staff *storage.StaffRepository,
	types *storage.AppointmentTypeRepository,
	patients *storage.PatientRepository,
	users *storage.UserRepository,
	appts *storage.AppointmentRepository,
	cfg Config,
) *API {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &API{
		logger:    logger,
		engine:    engine,
		clinics:   clinics,
		staff:     staff,
		types:     types,
		patients:  patients,
		users:     users,
		appts:     appts,
		jwtSecret: cfg.JWTSecret,
		tokenTTL:  ttl,
	}
}

// Register wires every route onto the mux. Public endpoints carry no
// auth; everything under /api/v1/clinics/{clinicID} requires a token
// whose clinic claim matches the path.
func (a *API) Register(mux *http.ServeMux) {
	// Public booking surface.
	mux.HandleFunc("GET /api/v1/public/clinics/{clinicID}/slots", a.handlePublicSlots)
	mux.HandleFunc("POST /api/v1/public/clinics/{clinicID}/book", a.handlePublicBook)

	// Auth.
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/register", a.requireAuth(rbac.PermManageUsers, a.handleRegister))

	// Clinic bootstrap and management.
	mux.HandleFunc("POST /api/v1/clinics", a.handleCreateClinic)
	mux.HandleFunc("GET /api/v1/clinics/{clinicID}", a.requireAuth("", a.handleGetClinic))
	mux.HandleFunc("PUT /api/v1/clinics/{clinicID}", a.requireAuth(rbac.PermManageClinic, a.handleUpdateClinic))

	// Staff and schedules.
	mux.HandleFunc("POST /api/v1/clinics/{clinicID}/staff", a.requireAuth(rbac.PermManageStaff, a.handleCreateStaff))
	mux.HandleFunc("GET /api/v1/clinics/{clinicID}/staff", a.requireAuth("", a.handleListStaff))
	mux.HandleFunc("PUT /api/v1/clinics/{clinicID}/staff/{staffID}/working-hours", a.requireAuth(rbac.PermManageStaff, a.handleSetWorkingHours))
	mux.HandleFunc("POST /api/v1/clinics/{clinicID}/staff/{staffID}/time-off", a.requireAuth(rbac.PermManageStaff, a.handleAddTimeOff))
	mux.HandleFunc("GET /api/v1/clinics/{clinicID}/staff/{staffID}/time-off", a.requireAuth("", a.handleListTimeOff))
	mux.HandleFunc("DELETE /api/v1/clinics/{clinicID}/staff/{staffID}/time-off/{timeOffID}", a.requireAuth(rbac.PermManageStaff, a.handleDeleteTimeOff))

	// Appointment types.
	mux.HandleFunc("POST /api/v1/clinics/{clinicID}/appointment-types", a.requireAuth(rbac.PermManageTypes, a.handleCreateType))
	mux.HandleFunc("GET /api/v1/clinics/{clinicID}/appointment-types", a.requireAuth("", a.handleListTypes))

	// Patients.
	mux.HandleFunc("POST /api/v1/clinics/{clinicID}/patients", a.requireAuth(rbac.PermManagePatients, a.handleCreatePatient))
	mux.HandleFunc("GET /api/v1/clinics/{clinicID}/patients", a.requireAuth(rbac.PermManagePatients, a.handleListPatients))
	mux.HandleFunc("GET /api/v1/clinics/{clinicID}/patients/{patientID}", a.requireAuth(rbac.PermManagePatients, a.handleGetPatient))

	// Appointments.
	mux.HandleFunc("GET /api/v1/clinics/{clinicID}/appointments", a.requireAuth(rbac.PermViewAppointments, a.handleListAppointments))
	mux.HandleFunc("POST /api/v1/clinics/{clinicID}/appointments", a.requireAuth(rbac.PermCreateAppointment, a.handleCreateAppointment))
	mux.HandleFunc("POST /api/v1/clinics/{clinicID}/appointments/{appointmentID}/cancel", a.requireAuth(rbac.PermCancelAppointment, a.handleCancelAppointment))
	mux.HandleFunc("POST /api/v1/clinics/{clinicID}/appointments/{appointmentID}/complete", a.requireAuth(rbac.PermCreateAppointment, a.handleCompleteAppointment))
	mux.HandleFunc("POST /api/v1/clinics/{clinicID}/recurrences/{groupID}/cancel", a.requireAuth(rbac.PermCancelAppointment, a.handleCancelSeries))
}
