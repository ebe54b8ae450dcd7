package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/clinicbook/clinicbook/libs/events"
)

func TestRenderReminderUsesClinicLocalTime(t *testing.T) {
	evt := events.ReminderDue{
		AppointmentID: "a-1",
		Channel:       events.ChannelEmail,
		TypeName:      "Consultation",
		Start:         time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC),
		Timezone:      "America/New_York",
		PatientName:   "Ana Silva",
	}
	subject, body := RenderReminder(evt)

	if !strings.Contains(subject, "Consultation") {
		t.Errorf("subject %q missing appointment type", subject)
	}
	// 14:00 UTC is 10:00 in New York in June.
	if !strings.Contains(body, "10:00") {
		t.Errorf("body %q not rendered in clinic local time", body)
	}
	if !strings.Contains(body, "Ana Silva") {
		t.Errorf("body %q missing patient name", body)
	}
}

func TestRenderReminderUnknownTimezoneFallsBack(t *testing.T) {
	evt := events.ReminderDue{
		TypeName:    "Checkup",
		Start:       time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC),
		Timezone:    "Not/AZone",
		PatientName: "Ana",
	}
	_, body := RenderReminder(evt)
	if !strings.Contains(body, "14:00") {
		t.Errorf("body %q should keep UTC when the timezone is unknown", body)
	}
}
