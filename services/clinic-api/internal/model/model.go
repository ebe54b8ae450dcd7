package model

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. A cancelled appointment releases its slot; the
// database overlap constraint only applies while status is "scheduled".
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Recurrence frequencies accepted on series bookings.
const (
	FreqWeekly   = "weekly"
	FreqBiweekly = "biweekly"
	FreqMonthly  = "monthly"
)

type Clinic struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Timezone        string    `json:"timezone"`
	SlotStepMinutes int       `json:"slot_step_minutes"`
	HorizonDays     int       `json:"horizon_days"`
	ReminderOffsets []int     `json:"reminder_offsets_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

type Staff struct {
	ID        uuid.UUID `json:"id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// MinuteInterval is a half-open [Start, End) span expressed as minutes
// from local midnight on some day.
type MinuteInterval struct {
	Start int `json:"start_minute"`
	End   int `json:"end_minute"`
}

// WorkingHours lists the bookable spans for one staff member on one
// weekday, in the clinic's local timezone.
type WorkingHours struct {
	StaffID   uuid.UUID        `json:"staff_id"`
	Weekday   time.Weekday     `json:"weekday"`
	Intervals []MinuteInterval `json:"intervals"`
}

type TimeOff struct {
	ID      uuid.UUID `json:"id"`
	StaffID uuid.UUID `json:"staff_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Reason  string    `json:"reason,omitempty"`
}

type AppointmentType struct {
	ID              uuid.UUID `json:"id"`
	ClinicID        uuid.UUID `json:"clinic_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

type Patient struct {
	ID        uuid.UUID `json:"id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Appointment struct {
	ID                uuid.UUID  `json:"id"`
	ClinicID          uuid.UUID  `json:"clinic_id"`
	StaffID           uuid.UUID  `json:"staff_id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	AppointmentTypeID uuid.UUID  `json:"appointment_type_id"`
	Start             time.Time  `json:"start"`
	End               time.Time  `json:"end"`
	Status            string     `json:"status"`
	Notes             string     `json:"notes,omitempty"`
	RecurrenceGroupID *uuid.UUID `json:"recurrence_group_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Recurrence describes how a series booking repeats. Count includes the
// first occurrence.
type Recurrence struct {
	Frequency string `json:"frequency"`
	Count     int    `json:"count"`
}

// User roles, most to least privileged.
const (
	RoleOwner        = "owner"
	RoleAdmin        = "admin"
	RoleReceptionist = "receptionist"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	ClinicID     uuid.UUID `json:"clinic_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
