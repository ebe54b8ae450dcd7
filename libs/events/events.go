// Package events defines the Kafka topics and payload contracts shared
// between the services. Topic names double as event type identifiers in
// the outbox.
package events

import "time"

const (
	TopicAppointmentBooked    = "booking.appointment.booked.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
	TopicReminderDue          = "scheduler.reminder.due.v1"
	TopicNotificationSent     = "notification.sent.v1"
	TopicNotificationFailed   = "notification.failed.v1"
)

type AppointmentBooked struct {
	AppointmentID     string    `json:"appointment_id"`
	ClinicID          string    `json:"clinic_id"`
	StaffID           string    `json:"staff_id"`
	PatientID         string    `json:"patient_id"`
	AppointmentTypeID string    `json:"appointment_type_id"`
	TypeName          string    `json:"type_name"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	Timezone          string    `json:"timezone"`
	PatientName       string    `json:"patient_name"`
	PatientEmail      string    `json:"patient_email,omitempty"`
	PatientPhone      string    `json:"patient_phone,omitempty"`
	ReminderOffsets   []int     `json:"reminder_offsets_minutes"`
}

type AppointmentCancelled struct {
	AppointmentID string    `json:"appointment_id"`
	ClinicID      string    `json:"clinic_id"`
	StaffID       string    `json:"staff_id"`
	PatientID     string    `json:"patient_id"`
	Start         time.Time `json:"start"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

// ReminderDue is emitted by the scheduler when a reminder job fires; the
// notifier turns it into an email or SMS.
type ReminderDue struct {
	AppointmentID string    `json:"appointment_id"`
	ClinicID      string    `json:"clinic_id"`
	Channel       string    `json:"channel"`
	TypeName      string    `json:"type_name"`
	Start         time.Time `json:"start"`
	Timezone      string    `json:"timezone"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email,omitempty"`
	PatientPhone  string    `json:"patient_phone,omitempty"`
}

type NotificationResult struct {
	AppointmentID string    `json:"appointment_id"`
	ClinicID      string    `json:"clinic_id"`
	Channel       string    `json:"channel"`
	Recipient     string    `json:"recipient"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
