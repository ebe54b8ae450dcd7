package booking

import (
	"context"
	"errors"
	"time"

	"github.com/clinicbook/clinicbook/libs/outbox"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/availability"
	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
	"github.com/google/uuid"
)

// defaultHorizonDays bounds how far ahead a clinic accepts bookings when
// the clinic record does not set its own horizon.
const defaultHorizonDays = 90

const maxSeriesCount = 52

// Store is the persistence surface the engine needs. Lookups return
// (nil, nil) when the row does not exist; CreateIfFree returns
// ErrSlotUnavailable when the appointment would overlap an existing
// scheduled one for the same staff member.
type Store interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
	GetStaff(ctx context.Context, clinicID, staffID uuid.UUID) (*model.Staff, error)
	GetAppointmentType(ctx context.Context, clinicID, typeID uuid.UUID) (*model.AppointmentType, error)
	GetPatient(ctx context.Context, clinicID, patientID uuid.UUID) (*model.Patient, error)
	ListWorkingHours(ctx context.Context, staffID uuid.UUID) ([]model.WorkingHours, error)
	ListTimeOff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]model.TimeOff, error)
	ListBookedIntervals(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]availability.Interval, error)
	CreateIfFree(ctx context.Context, appt *model.Appointment, events []outbox.Event) error
	GetAppointment(ctx context.Context, clinicID, apptID uuid.UUID) (*model.Appointment, error)
	MarkCancelled(ctx context.Context, clinicID, apptID uuid.UUID, evt outbox.Event) (*model.Appointment, error)
	ListSeries(ctx context.Context, clinicID, groupID uuid.UUID) ([]model.Appointment, error)
}

type Engine struct {
	store Store
	nowFn func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, nowFn: time.Now}
}

type SlotQuery struct {
	ClinicID          uuid.UUID
	StaffID           uuid.UUID
	AppointmentTypeID uuid.UUID
	From              time.Time
	To                time.Time
}

// AvailableSlots computes the bookable start/end intervals for one staff
// member over the queried range: the staff member's working hours in the
// clinic's timezone, minus time off, minus scheduled appointments, cut
// into duration-sized slots advancing by the clinic's slot step.
func (e *Engine) AvailableSlots(ctx context.Context, q SlotQuery) ([]availability.Interval, error) {
	if !q.From.Before(q.To) {
		return nil, Invalid("from", "must be before to")
	}
	now := e.nowFn()
	if !q.To.After(now) {
		return nil, Invalid("to", "range is entirely in the past")
	}

	clinic, loc, err := e.loadClinic(ctx, q.ClinicID)
	if err != nil {
		return nil, err
	}
	aptType, err := e.loadType(ctx, q.ClinicID, q.AppointmentTypeID)
	if err != nil {
		return nil, err
	}
	if _, err := e.loadStaff(ctx, q.ClinicID, q.StaffID); err != nil {
		return nil, err
	}

	horizon := bookingHorizon(clinic, now)
	if q.From.After(horizon) {
		return nil, Invalid("from", "beyond booking horizon")
	}
	to := q.To
	if to.After(horizon) {
		to = horizon
	}

	duration := time.Duration(aptType.DurationMinutes) * time.Minute
	step := slotStep(clinic, duration)

	hours, err := e.store.ListWorkingHours(ctx, q.StaffID)
	if err != nil {
		return nil, err
	}
	byWeekday := make(map[time.Weekday][]model.MinuteInterval, len(hours))
	for _, wh := range hours {
		byWeekday[wh.Weekday] = append(byWeekday[wh.Weekday], wh.Intervals...)
	}

	timeOff, err := e.store.ListTimeOff(ctx, q.StaffID, q.From, to)
	if err != nil {
		return nil, err
	}
	blocks := make([]availability.Interval, 0, len(timeOff))
	for _, off := range timeOff {
		blocks = append(blocks, availability.Interval{Start: off.Start, End: off.End})
	}

	booked, err := e.store.ListBookedIntervals(ctx, q.StaffID, q.From, to)
	if err != nil {
		return nil, err
	}

	var slots []availability.Interval
	day := localMidnight(q.From, loc)
	for day.Before(to) {
		windows := availability.DayWindows(day, byWeekday[day.Weekday()])
		for _, w := range availability.SubtractBlocks(windows, blocks) {
			for _, s := range availability.AvailableSlots(w.Start, w.End, duration, step, booked, now) {
				if s.Start.Before(q.From) || s.End.After(to) {
					continue
				}
				slots = append(slots, s)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots, nil
}

type BookingRequest struct {
	ClinicID          uuid.UUID
	StaffID           uuid.UUID
	PatientID         uuid.UUID
	AppointmentTypeID uuid.UUID
	Start             time.Time
	Notes             string
}

// Book places a single appointment at the requested start time. The
// start must land on an offered slot boundary inside the staff member's
// open hours; overlap with existing scheduled appointments is rejected
// atomically by the store.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	return e.bookOne(ctx, req, nil)
}

func (e *Engine) bookOne(ctx context.Context, req BookingRequest, groupID *uuid.UUID) (*model.Appointment, error) {
	// Reject past starts before touching the store at all.
	now := e.nowFn()
	if !req.Start.After(now) {
		return nil, Invalid("start", "must be in the future")
	}

	clinic, loc, err := e.loadClinic(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}
	aptType, err := e.loadType(ctx, req.ClinicID, req.AppointmentTypeID)
	if err != nil {
		return nil, err
	}
	if _, err := e.loadStaff(ctx, req.ClinicID, req.StaffID); err != nil {
		return nil, err
	}
	patient, err := e.store.GetPatient(ctx, req.ClinicID, req.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, NotFound("patient", req.PatientID.String())
	}

	if req.Start.After(bookingHorizon(clinic, now)) {
		return nil, Invalid("start", "beyond booking horizon")
	}

	duration := time.Duration(aptType.DurationMinutes) * time.Minute
	end := req.Start.Add(duration)

	ok, err := e.withinOpenHours(ctx, req.StaffID, req.Start, end, slotStep(clinic, duration), loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Invalid("start", "outside staff working hours")
	}

	appt := &model.Appointment{
		ID:                uuid.New(),
		ClinicID:          req.ClinicID,
		StaffID:           req.StaffID,
		PatientID:         req.PatientID,
		AppointmentTypeID: req.AppointmentTypeID,
		Start:             req.Start,
		End:               end,
		Status:            model.StatusScheduled,
		Notes:             req.Notes,
		RecurrenceGroupID: groupID,
		CreatedAt:         now,
	}

	evt, err := bookedEvent(appt, clinic, aptType, patient)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateIfFree(ctx, appt, []outbox.Event{evt}); err != nil {
		return nil, err
	}
	return appt, nil
}

// withinOpenHours reports whether [start, end) sits inside an open
// working window for the staff member and start is aligned to the slot
// grid of that window.
func (e *Engine) withinOpenHours(ctx context.Context, staffID uuid.UUID, start, end time.Time, step time.Duration, loc *time.Location) (bool, error) {
	hours, err := e.store.ListWorkingHours(ctx, staffID)
	if err != nil {
		return false, err
	}
	day := localMidnight(start, loc)

	var intervals []model.MinuteInterval
	for _, wh := range hours {
		if wh.Weekday == day.Weekday() {
			intervals = append(intervals, wh.Intervals...)
		}
	}
	windows := availability.DayWindows(day, intervals)

	timeOff, err := e.store.ListTimeOff(ctx, staffID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return false, err
	}
	blocks := make([]availability.Interval, 0, len(timeOff))
	for _, off := range timeOff {
		blocks = append(blocks, availability.Interval{Start: off.Start, End: off.End})
	}

	for _, w := range availability.SubtractBlocks(windows, blocks) {
		if start.Before(w.Start) || end.After(w.End) {
			continue
		}
		if step > 0 && start.Sub(w.Start)%step != 0 {
			continue
		}
		return true, nil
	}
	return false, nil
}

type OccurrenceFailure struct {
	Start  time.Time `json:"start"`
	Reason string    `json:"reason"`
}

type SeriesResult struct {
	Success           bool                `json:"success"`
	RecurrenceGroupID uuid.UUID           `json:"recurrence_group_id"`
	Created           []model.Appointment `json:"created"`
	Failures          []OccurrenceFailure `json:"failures,omitempty"`
}

// BookSeries books a recurring series occurrence by occurrence,
// preserving the local clock time across DST changes. Occurrences that
// fail validation or conflict with existing appointments are skipped
// and reported; the rest are still created. Monthly advances follow
// time.AddDate normalization: an anchor on Jan 31 yields Mar 2 or 3,
// not the last day of February.
func (e *Engine) BookSeries(ctx context.Context, req BookingRequest, rec model.Recurrence) (*SeriesResult, error) {
	if rec.Count < 1 || rec.Count > maxSeriesCount {
		return nil, Invalid("recurrence.count", "must be between 1 and 52")
	}
	switch rec.Frequency {
	case model.FreqWeekly, model.FreqBiweekly, model.FreqMonthly:
	default:
		return nil, Invalid("recurrence.frequency", "must be weekly, biweekly or monthly")
	}

	_, loc, err := e.loadClinic(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}

	groupID := uuid.New()
	result := &SeriesResult{RecurrenceGroupID: groupID}
	first := req.Start.In(loc)

	for i := 0; i < rec.Count; i++ {
		var occurrence time.Time
		switch rec.Frequency {
		case model.FreqWeekly:
			occurrence = first.AddDate(0, 0, 7*i)
		case model.FreqBiweekly:
			occurrence = first.AddDate(0, 0, 14*i)
		case model.FreqMonthly:
			occurrence = first.AddDate(0, i, 0)
		}

		occReq := req
		occReq.Start = occurrence.UTC()
		appt, err := e.bookOne(ctx, occReq, &groupID)
		if err != nil {
			var vErr *ValidationError
			if errors.Is(err, ErrSlotUnavailable) || errors.As(err, &vErr) {
				result.Failures = append(result.Failures, OccurrenceFailure{Start: occReq.Start, Reason: err.Error()})
				continue
			}
			return nil, err
		}
		result.Created = append(result.Created, *appt)
	}

	result.Success = len(result.Failures) == 0
	return result, nil
}

// Cancel marks a scheduled appointment cancelled, freeing its slot.
func (e *Engine) Cancel(ctx context.Context, clinicID, apptID uuid.UUID) (*model.Appointment, error) {
	appt, err := e.store.GetAppointment(ctx, clinicID, apptID)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, NotFound("appointment", apptID.String())
	}
	if appt.Status != model.StatusScheduled {
		return nil, Invalid("status", "appointment is not scheduled")
	}

	now := e.nowFn()
	evt, err := cancelledEvent(appt, now)
	if err != nil {
		return nil, err
	}
	cancelled, err := e.store.MarkCancelled(ctx, clinicID, apptID, evt)
	if err != nil {
		return nil, err
	}
	if cancelled == nil {
		return nil, Invalid("status", "appointment is not scheduled")
	}
	return cancelled, nil
}

// CancelSeries cancels every future scheduled occurrence of a recurrence
// group. Past and completed occurrences are left alone.
func (e *Engine) CancelSeries(ctx context.Context, clinicID, groupID uuid.UUID) ([]model.Appointment, error) {
	series, err := e.store.ListSeries(ctx, clinicID, groupID)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, NotFound("recurrence group", groupID.String())
	}

	now := e.nowFn()
	var cancelled []model.Appointment
	for _, appt := range series {
		if appt.Status != model.StatusScheduled || !appt.Start.After(now) {
			continue
		}
		evt, err := cancelledEvent(&appt, now)
		if err != nil {
			return nil, err
		}
		updated, err := e.store.MarkCancelled(ctx, clinicID, appt.ID, evt)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			cancelled = append(cancelled, *updated)
		}
	}
	return cancelled, nil
}

func (e *Engine) loadClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, *time.Location, error) {
	clinic, err := e.store.GetClinic(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if clinic == nil {
		return nil, nil, NotFound("clinic", id.String())
	}
	loc, err := time.LoadLocation(clinic.Timezone)
	if err != nil {
		return nil, nil, err
	}
	return clinic, loc, nil
}

func (e *Engine) loadType(ctx context.Context, clinicID, typeID uuid.UUID) (*model.AppointmentType, error) {
	aptType, err := e.store.GetAppointmentType(ctx, clinicID, typeID)
	if err != nil {
		return nil, err
	}
	if aptType == nil {
		return nil, NotFound("appointment type", typeID.String())
	}
	if !aptType.Active {
		return nil, Invalid("appointment_type_id", "appointment type is inactive")
	}
	if aptType.DurationMinutes <= 0 {
		return nil, Invalid("appointment_type_id", "appointment type has no duration")
	}
	return aptType, nil
}

func (e *Engine) loadStaff(ctx context.Context, clinicID, staffID uuid.UUID) (*model.Staff, error) {
	staff, err := e.store.GetStaff(ctx, clinicID, staffID)
	if err != nil {
		return nil, err
	}
	if staff == nil {
		return nil, NotFound("staff", staffID.String())
	}
	if !staff.Active {
		return nil, Invalid("staff_id", "staff member is inactive")
	}
	return staff, nil
}

func bookingHorizon(clinic *model.Clinic, now time.Time) time.Time {
	days := clinic.HorizonDays
	if days <= 0 {
		days = defaultHorizonDays
	}
	return now.AddDate(0, 0, days)
}

func slotStep(clinic *model.Clinic, duration time.Duration) time.Duration {
	if clinic.SlotStepMinutes > 0 {
		return time.Duration(clinic.SlotStepMinutes) * time.Minute
	}
	return duration
}

func localMidnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
