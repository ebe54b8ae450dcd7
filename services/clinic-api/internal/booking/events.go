package booking

import (
	"encoding/json"
	"time"

	"github.com/clinicbook/clinicbook/libs/events"
	"github.com/clinicbook/clinicbook/libs/outbox"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
)

func bookedEvent(appt *model.Appointment, clinic *model.Clinic, aptType *model.AppointmentType, patient *model.Patient) (outbox.Event, error) {
	payload, err := json.Marshal(events.AppointmentBooked{
		AppointmentID:     appt.ID.String(),
		ClinicID:          appt.ClinicID.String(),
		StaffID:           appt.StaffID.String(),
		PatientID:         appt.PatientID.String(),
		AppointmentTypeID: appt.AppointmentTypeID.String(),
		TypeName:          aptType.Name,
		Start:             appt.Start,
		End:               appt.End,
		Timezone:          clinic.Timezone,
		PatientName:       patient.Name,
		PatientEmail:      patient.Email,
		PatientPhone:      patient.Phone,
		ReminderOffsets:   clinic.ReminderOffsets,
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID.String(),
		EventType:     events.TopicAppointmentBooked,
		Payload:       payload,
	}, nil
}

func cancelledEvent(appt *model.Appointment, cancelledAt time.Time) (outbox.Event, error) {
	payload, err := json.Marshal(events.AppointmentCancelled{
		AppointmentID: appt.ID.String(),
		ClinicID:      appt.ClinicID.String(),
		StaffID:       appt.StaffID.String(),
		PatientID:     appt.PatientID.String(),
		Start:         appt.Start,
		CancelledAt:   cancelledAt,
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID.String(),
		EventType:     events.TopicAppointmentCancelled,
		Payload:       payload,
	}, nil
}
