package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clinicbook/clinicbook/libs/events"
	"github.com/clinicbook/clinicbook/libs/outbox"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/availability"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same atomicity contract as
// the Postgres implementation: CreateIfFree rejects overlapping
// scheduled appointments for the same staff member under a single lock.
type fakeStore struct {
	mu       sync.Mutex
	clinics  map[uuid.UUID]model.Clinic
	staff    map[uuid.UUID]model.Staff
	types    map[uuid.UUID]model.AppointmentType
	patients map[uuid.UUID]model.Patient
	hours    map[uuid.UUID][]model.WorkingHours
	timeOff  map[uuid.UUID][]model.TimeOff
	appts    map[uuid.UUID]*model.Appointment
	events   []outbox.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clinics:  make(map[uuid.UUID]model.Clinic),
		staff:    make(map[uuid.UUID]model.Staff),
		types:    make(map[uuid.UUID]model.AppointmentType),
		patients: make(map[uuid.UUID]model.Patient),
		hours:    make(map[uuid.UUID][]model.WorkingHours),
		timeOff:  make(map[uuid.UUID][]model.TimeOff),
		appts:    make(map[uuid.UUID]*model.Appointment),
	}
}

func (s *fakeStore) GetClinic(_ context.Context, id uuid.UUID) (*model.Clinic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clinics[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *fakeStore) GetStaff(_ context.Context, clinicID, staffID uuid.UUID) (*model.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.staff[staffID]; ok && st.ClinicID == clinicID {
		return &st, nil
	}
	return nil, nil
}

func (s *fakeStore) GetAppointmentType(_ context.Context, clinicID, typeID uuid.UUID) (*model.AppointmentType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.types[typeID]; ok && at.ClinicID == clinicID {
		return &at, nil
	}
	return nil, nil
}

func (s *fakeStore) GetPatient(_ context.Context, clinicID, patientID uuid.UUID) (*model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.patients[patientID]; ok && p.ClinicID == clinicID {
		return &p, nil
	}
	return nil, nil
}

func (s *fakeStore) ListWorkingHours(_ context.Context, staffID uuid.UUID) ([]model.WorkingHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hours[staffID], nil
}

func (s *fakeStore) ListTimeOff(_ context.Context, staffID uuid.UUID, from, to time.Time) ([]model.TimeOff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TimeOff
	for _, off := range s.timeOff[staffID] {
		if off.Start.Before(to) && from.Before(off.End) {
			out = append(out, off)
		}
	}
	return out, nil
}

func (s *fakeStore) ListBookedIntervals(_ context.Context, staffID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []availability.Interval
	for _, a := range s.appts {
		if a.StaffID == staffID && a.Status == model.StatusScheduled && a.Start.Before(to) && from.Before(a.End) {
			out = append(out, availability.Interval{Start: a.Start, End: a.End})
		}
	}
	return out, nil
}

func (s *fakeStore) CreateIfFree(_ context.Context, appt *model.Appointment, events []outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.appts {
		if existing.StaffID != appt.StaffID || existing.Status != model.StatusScheduled {
			continue
		}
		if appt.Start.Before(existing.End) && existing.Start.Before(appt.End) {
			return ErrSlotUnavailable
		}
	}
	cp := *appt
	s.appts[appt.ID] = &cp
	s.events = append(s.events, events...)
	return nil
}

func (s *fakeStore) GetAppointment(_ context.Context, clinicID, apptID uuid.UUID) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.appts[apptID]; ok && a.ClinicID == clinicID {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) MarkCancelled(_ context.Context, clinicID, apptID uuid.UUID, evt outbox.Event) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[apptID]
	if !ok || a.ClinicID != clinicID || a.Status != model.StatusScheduled {
		return nil, nil
	}
	a.Status = model.StatusCancelled
	s.events = append(s.events, evt)
	cp := *a
	return &cp, nil
}

func (s *fakeStore) ListSeries(_ context.Context, clinicID, groupID uuid.UUID) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.ClinicID == clinicID && a.RecurrenceGroupID != nil && *a.RecurrenceGroupID == groupID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type testEnv struct {
	engine  *Engine
	store   *fakeStore
	clinic  model.Clinic
	staff   model.Staff
	aptType model.AppointmentType
	patient model.Patient
	now     time.Time
}

// newTestEnv seeds a UTC clinic with one doctor working 09:00-17:00
// Monday through Friday, a 30-minute appointment type, and a fixed clock
// at 2023-12-28 12:00 UTC (a Thursday). 2024-01-01 is the next Monday.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()

	env := &testEnv{
		store: store,
		now:   time.Date(2023, 12, 28, 12, 0, 0, 0, time.UTC),
	}

	env.clinic = model.Clinic{
		ID:              uuid.New(),
		Name:            "Northside Clinic",
		Timezone:        "UTC",
		SlotStepMinutes: 30,
		HorizonDays:     90,
		ReminderOffsets: []int{1440, 60},
	}
	store.clinics[env.clinic.ID] = env.clinic

	env.staff = model.Staff{ID: uuid.New(), ClinicID: env.clinic.ID, Name: "Dr. Osei", Active: true}
	store.staff[env.staff.ID] = env.staff

	for wd := time.Monday; wd <= time.Friday; wd++ {
		store.hours[env.staff.ID] = append(store.hours[env.staff.ID], model.WorkingHours{
			StaffID:   env.staff.ID,
			Weekday:   wd,
			Intervals: []model.MinuteInterval{{Start: 9 * 60, End: 17 * 60}},
		})
	}

	env.aptType = model.AppointmentType{
		ID:              uuid.New(),
		ClinicID:        env.clinic.ID,
		Name:            "Consultation",
		DurationMinutes: 30,
		Active:          true,
	}
	store.types[env.aptType.ID] = env.aptType

	env.patient = model.Patient{
		ID:       uuid.New(),
		ClinicID: env.clinic.ID,
		Name:     "Ana Silva",
		Email:    "ana@example.com",
	}
	store.patients[env.patient.ID] = env.patient

	env.engine = NewEngine(store)
	env.engine.nowFn = func() time.Time { return env.now }
	return env
}

func (env *testEnv) request(start time.Time) BookingRequest {
	return BookingRequest{
		ClinicID:          env.clinic.ID,
		StaffID:           env.staff.ID,
		PatientID:         env.patient.ID,
		AppointmentTypeID: env.aptType.ID,
		Start:             start,
	}
}

func TestBookHappyPath(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	appt, err := env.engine.Book(context.Background(), env.request(start))
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if appt.Status != model.StatusScheduled {
		t.Errorf("status = %q, want scheduled", appt.Status)
	}
	if !appt.End.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("end = %v, want %v", appt.End, start.Add(30*time.Minute))
	}
	if len(env.store.events) != 1 || env.store.events[0].EventType != events.TopicAppointmentBooked {
		t.Errorf("expected one booked event, got %+v", env.store.events)
	}
}

func TestConcurrentDoubleBookOnlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.engine.Book(context.Background(), env.request(start))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch err {
		case nil:
			won++
		case ErrSlotUnavailable:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("%d bookings succeeded for the same slot, want exactly 1", won)
	}
}

func TestBackToBackBookingsDoNotConflict(t *testing.T) {
	env := newTestEnv(t)
	first := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	if _, err := env.engine.Book(context.Background(), env.request(first)); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := env.engine.Book(context.Background(), env.request(first.Add(30*time.Minute))); err != nil {
		t.Fatalf("adjacent booking failed: %v", err)
	}
}

func TestAvailableSlotsExcludeBooked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booked := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	if _, err := env.engine.Book(ctx, env.request(booked)); err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	slots, err := env.engine.AvailableSlots(ctx, SlotQuery{
		ClinicID:          env.clinic.ID,
		StaffID:           env.staff.ID,
		AppointmentTypeID: env.aptType.ID,
		From:              time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:                time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	// 09:00-17:00 at 30m step is 16 slots, one is taken.
	if len(slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(slots))
	}
	taken := availability.Interval{Start: booked, End: booked.Add(30 * time.Minute)}
	for _, s := range slots {
		if s.Overlaps(taken) {
			t.Errorf("offered slot %v-%v overlaps booked appointment", s.Start, s.End)
		}
	}
}

func TestAvailableSlotsRespectTimeOff(t *testing.T) {
	env := newTestEnv(t)
	env.store.timeOff[env.staff.ID] = []model.TimeOff{{
		ID:      uuid.New(),
		StaffID: env.staff.ID,
		Start:   time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC),
	}}

	slots, err := env.engine.AvailableSlots(context.Background(), SlotQuery{
		ClinicID:          env.clinic.ID,
		StaffID:           env.staff.ID,
		AppointmentTypeID: env.aptType.ID,
		From:              time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:                time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	// Only 09:00-13:00 remains open.
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.End.After(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)) {
			t.Errorf("slot %v-%v extends into time off", s.Start, s.End)
		}
	}
}

func TestBookRejectsPastStart(t *testing.T) {
	env := newTestEnv(t)
	past := env.now.Add(-24 * time.Hour)

	_, err := env.engine.Book(context.Background(), env.request(past))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(env.store.appts) != 0 {
		t.Error("rejected booking must not be persisted")
	}
}

// countingStore counts every store call so tests can assert an input
// was rejected without any persistence access.
type countingStore struct {
	*fakeStore
	calls int
}

func (s *countingStore) GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	s.calls++
	return s.fakeStore.GetClinic(ctx, id)
}

func (s *countingStore) GetStaff(ctx context.Context, clinicID, staffID uuid.UUID) (*model.Staff, error) {
	s.calls++
	return s.fakeStore.GetStaff(ctx, clinicID, staffID)
}

func (s *countingStore) GetAppointmentType(ctx context.Context, clinicID, typeID uuid.UUID) (*model.AppointmentType, error) {
	s.calls++
	return s.fakeStore.GetAppointmentType(ctx, clinicID, typeID)
}

func (s *countingStore) GetPatient(ctx context.Context, clinicID, patientID uuid.UUID) (*model.Patient, error) {
	s.calls++
	return s.fakeStore.GetPatient(ctx, clinicID, patientID)
}

func (s *countingStore) ListWorkingHours(ctx context.Context, staffID uuid.UUID) ([]model.WorkingHours, error) {
	s.calls++
	return s.fakeStore.ListWorkingHours(ctx, staffID)
}

func (s *countingStore) ListTimeOff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]model.TimeOff, error) {
	s.calls++
	return s.fakeStore.ListTimeOff(ctx, staffID, from, to)
}

func (s *countingStore) ListBookedIntervals(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	s.calls++
	return s.fakeStore.ListBookedIntervals(ctx, staffID, from, to)
}

func (s *countingStore) CreateIfFree(ctx context.Context, appt *model.Appointment, events []outbox.Event) error {
	s.calls++
	return s.fakeStore.CreateIfFree(ctx, appt, events)
}

func TestBookRejectsPastStartBeforeStoreAccess(t *testing.T) {
	env := newTestEnv(t)
	counting := &countingStore{fakeStore: env.store}
	env.engine.store = counting

	_, err := env.engine.Book(context.Background(), env.request(env.now.Add(-24*time.Hour)))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if counting.calls != 0 {
		t.Errorf("past booking touched the store %d times before rejection", counting.calls)
	}
}

func TestAvailableSlotsRejectPastRange(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.AvailableSlots(context.Background(), SlotQuery{
		ClinicID:          env.clinic.ID,
		StaffID:           env.staff.ID,
		AppointmentTypeID: env.aptType.ID,
		From:              env.now.Add(-48 * time.Hour),
		To:                env.now.Add(-24 * time.Hour),
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for a past range, got %v", err)
	}
}

func TestBookRejectsOutsideWorkingHours(t *testing.T) {
	env := newTestEnv(t)
	// Monday 08:00 is before opening.
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	_, err := env.engine.Book(context.Background(), env.request(start))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Sunday is not a working day at all.
	sunday := time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	if _, err := env.engine.Book(context.Background(), env.request(sunday)); err == nil {
		t.Fatal("expected booking on a non-working day to fail")
	}
}

func TestBookRejectsUnalignedStart(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2024, 1, 1, 9, 10, 0, 0, time.UTC)

	_, err := env.engine.Book(context.Background(), env.request(start))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for unaligned start, got %v", err)
	}
}

func TestBookCrossClinicTypeIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	otherClinic := model.Clinic{ID: uuid.New(), Name: "Other", Timezone: "UTC", SlotStepMinutes: 30}
	env.store.clinics[otherClinic.ID] = otherClinic
	foreignType := model.AppointmentType{
		ID: uuid.New(), ClinicID: otherClinic.ID, Name: "Checkup", DurationMinutes: 30, Active: true,
	}
	env.store.types[foreignType.ID] = foreignType

	req := env.request(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	req.AppointmentTypeID = foreignType.ID

	_, err := env.engine.Book(context.Background(), req)
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestBookRejectsBeyondHorizon(t *testing.T) {
	env := newTestEnv(t)
	// First Monday past the 90-day horizon.
	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	_, err := env.engine.Book(context.Background(), env.request(start))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBookSeriesWeekly(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	result, err := env.engine.BookSeries(context.Background(), env.request(start), model.Recurrence{
		Frequency: model.FreqWeekly,
		Count:     4,
	})
	if err != nil {
		t.Fatalf("BookSeries failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected full success, failures: %+v", result.Failures)
	}
	if len(result.Created) != 4 {
		t.Fatalf("created %d appointments, want 4", len(result.Created))
	}
	for i, appt := range result.Created {
		want := start.AddDate(0, 0, 7*i)
		if !appt.Start.Equal(want) {
			t.Errorf("occurrence %d starts at %v, want %v", i, appt.Start, want)
		}
		if appt.RecurrenceGroupID == nil || *appt.RecurrenceGroupID != result.RecurrenceGroupID {
			t.Errorf("occurrence %d missing recurrence group id", i)
		}
	}
}

func TestBookSeriesPartialConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	// Pre-book the third weekly occurrence so the series hits a conflict.
	blocker := start.AddDate(0, 0, 14)
	if _, err := env.engine.Book(ctx, env.request(blocker)); err != nil {
		t.Fatalf("blocker booking failed: %v", err)
	}

	result, err := env.engine.BookSeries(ctx, env.request(start), model.Recurrence{
		Frequency: model.FreqWeekly,
		Count:     4,
	})
	if err != nil {
		t.Fatalf("BookSeries failed: %v", err)
	}
	if result.Success {
		t.Error("expected Success=false with a conflicting occurrence")
	}
	if len(result.Created) != 3 {
		t.Errorf("created %d appointments, want 3", len(result.Created))
	}
	if len(result.Failures) != 1 {
		t.Fatalf("recorded %d failures, want 1", len(result.Failures))
	}
	if !result.Failures[0].Start.Equal(blocker) {
		t.Errorf("failure start = %v, want %v", result.Failures[0].Start, blocker)
	}
}

func TestBookSeriesMonthlyKeepsClockTime(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)

	result, err := env.engine.BookSeries(context.Background(), env.request(start), model.Recurrence{
		Frequency: model.FreqMonthly,
		Count:     3,
	})
	if err != nil {
		t.Fatalf("BookSeries failed: %v", err)
	}
	for i, appt := range result.Created {
		if appt.Start.Hour() != 14 || appt.Start.Minute() != 0 {
			t.Errorf("occurrence %d at %v, want 14:00 clock time", i, appt.Start)
		}
	}
}

func TestCancelFreesSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	appt, err := env.engine.Book(ctx, env.request(start))
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	cancelled, err := env.engine.Cancel(ctx, env.clinic.ID, appt.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}

	// The slot opens up again.
	if _, err := env.engine.Book(ctx, env.request(start)); err != nil {
		t.Fatalf("rebooking a cancelled slot failed: %v", err)
	}

	// Cancelling twice is rejected.
	if _, err := env.engine.Cancel(ctx, env.clinic.ID, appt.ID); err == nil {
		t.Fatal("expected second cancel to fail")
	}
}

func TestCancelSeriesOnlyFutureOccurrences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	result, err := env.engine.BookSeries(ctx, env.request(start), model.Recurrence{
		Frequency: model.FreqWeekly,
		Count:     4,
	})
	if err != nil || !result.Success {
		t.Fatalf("BookSeries failed: %v %+v", err, result)
	}

	// Advance the clock past the second occurrence.
	env.now = start.AddDate(0, 0, 8)

	cancelled, err := env.engine.CancelSeries(ctx, env.clinic.ID, result.RecurrenceGroupID)
	if err != nil {
		t.Fatalf("CancelSeries failed: %v", err)
	}
	if len(cancelled) != 2 {
		t.Fatalf("cancelled %d occurrences, want 2 future ones", len(cancelled))
	}
	for _, appt := range cancelled {
		if !appt.Start.After(env.now) {
			t.Errorf("cancelled past occurrence starting %v", appt.Start)
		}
	}
}
