// seed-demo drives the clinic-api HTTP surface end to end: it creates a
// demo clinic with one doctor, a weekly schedule and an appointment
// type, then fetches open slots and books the first one through the
// public endpoint. Useful against a fresh local stack.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "clinic-api base url")
		email    = flag.String("owner-email", getenv("OWNER_EMAIL", "owner@demo.clinic"), "owner login email")
		password = flag.String("owner-password", getenv("OWNER_PASSWORD", "demo-password-1"), "owner login password")
		tz       = flag.String("timezone", getenv("CLINIC_TZ", "America/New_York"), "clinic IANA timezone")
	)
	flag.Parse()

	base := strings.TrimRight(*baseURL, "/")

	var bootstrap struct {
		Clinic struct {
			ID string `json:"id"`
		} `json:"clinic"`
	}
	post(base+"/api/v1/clinics", "", map[string]any{
		"name":                     "Demo Clinic",
		"timezone":                 *tz,
		"slot_step_minutes":        30,
		"horizon_days":             90,
		"reminder_offsets_minutes": []int{1440, 60},
		"owner_email":              *email,
		"owner_password":           *password,
	}, &bootstrap)
	fmt.Printf("clinic=%s\n", bootstrap.Clinic.ID)

	var login struct {
		Token string `json:"token"`
	}
	post(base+"/api/v1/auth/login", "", map[string]any{
		"email":    *email,
		"password": *password,
	}, &login)

	clinicPath := base + "/api/v1/clinics/" + bootstrap.Clinic.ID

	var doctor struct {
		ID string `json:"id"`
	}
	post(clinicPath+"/staff", login.Token, map[string]any{
		"name":      "Dr. Demo",
		"specialty": "General",
	}, &doctor)

	var weekdays []map[string]any
	for wd := 1; wd <= 5; wd++ {
		weekdays = append(weekdays, map[string]any{
			"weekday":   wd,
			"intervals": []map[string]int{{"start_minute": 9 * 60, "end_minute": 17 * 60}},
		})
	}
	put(clinicPath+"/staff/"+doctor.ID+"/working-hours", login.Token, map[string]any{"hours": weekdays})

	var aptType struct {
		ID string `json:"id"`
	}
	post(clinicPath+"/appointment-types", login.Token, map[string]any{
		"name":             "Consultation",
		"duration_minutes": 30,
		"price_cents":      7500,
	}, &aptType)

	from := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	to := from.Add(7 * 24 * time.Hour)
	slotsURL := fmt.Sprintf("%s/api/v1/public/clinics/%s/slots?staff_id=%s&appointment_type_id=%s&from=%s&to=%s",
		base, bootstrap.Clinic.ID, doctor.ID, aptType.ID,
		from.Format(time.RFC3339), to.Format(time.RFC3339))

	var slots struct {
		Slots []struct {
			Start time.Time `json:"start"`
		} `json:"slots"`
	}
	get(slotsURL, &slots)
	if len(slots.Slots) == 0 {
		fatal("no open slots returned")
	}
	fmt.Printf("open_slots=%d first=%s\n", len(slots.Slots), slots.Slots[0].Start.Format(time.RFC3339))

	var appt struct {
		ID string `json:"id"`
	}
	post(base+"/api/v1/public/clinics/"+bootstrap.Clinic.ID+"/book", "", map[string]any{
		"staff_id":            doctor.ID,
		"appointment_type_id": aptType.ID,
		"start":               slots.Slots[0].Start,
		"patient": map[string]string{
			"name":  "Demo Patient",
			"email": "patient@example.com",
		},
	}, &appt)
	fmt.Printf("booked=%s\n", appt.ID)
}

func post(url, token string, body any, out any) {
	do(http.MethodPost, url, token, body, out)
}

func put(url, token string, body any) {
	do(http.MethodPut, url, token, body, nil)
}

func get(url string, out any) {
	do(http.MethodGet, url, "", nil, out)
}

func do(method, url, token string, body any, out any) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			fatal(err.Error())
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		fatal(fmt.Sprintf("%s %s -> %d: %s", method, url, resp.StatusCode, buf.String()))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			fatal(err.Error())
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
