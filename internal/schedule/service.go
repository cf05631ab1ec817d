package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/clinic-scheduling/internal/notification"
	"github.com/carelink/clinic-scheduling/internal/observability/metrics"
	redisclient "github.com/carelink/clinic-scheduling/internal/redis"
	"github.com/carelink/clinic-scheduling/pkg/logging"
)

var (
	ErrMissingPatient    = errors.New("missing patient")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrSlotUnavailable   = errors.New("slot no longer available")
	ErrScheduleBusy      = errors.New("schedule is currently being booked, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier notification.Dispatcher
	feed     *notification.ChangeFeed
	hours    WorkingHours
	log      *logging.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier notification.Dispatcher, feed *notification.ChangeFeed, hours WorkingHours, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Default()
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		feed:     feed,
		hours:    hours,
		log:      log,
	}
}

// BookingRequest carries one booking attempt. End wins over DurationMinutes
// when both are set.
type BookingRequest struct {
	PatientID       uuid.UUID
	ProviderID      *uuid.UUID
	VaccineID       *uuid.UUID
	Date            time.Time
	Start           TimeOfDay
	DurationMinutes int
	End             *TimeOfDay
	Reason          string
	Notes           string
}

func (r BookingRequest) endTime() TimeOfDay {
	if r.End != nil {
		return *r.End
	}
	return r.Start.Add(r.DurationMinutes)
}

// AvailableSlots computes the offerable windows for a provider and date.
// Without a provider there is nothing to offer against, so the result is
// empty. Slots are recomputed from live appointment data on every call.
func (s *Service) AvailableSlots(ctx context.Context, providerID *uuid.UUID, date time.Time) ([]Slot, error) {
	if providerID == nil || *providerID == uuid.Nil {
		return []Slot{}, nil
	}

	booked, err := s.repo.ListProviderDay(ctx, *providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load provider day: %w", err)
	}

	metrics.SlotQueriesTotal.Inc()

	slots := GenerateSlots(s.hours, booked)
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// Book validates the request, re-checks the slot against current bookings
// inside a per provider+date lock, persists the appointment as scheduled and
// notifies the administrators.
//
// The conflict re-check is mandatory even when the caller just ran
// AvailableSlots: time passed between that read and this write.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil {
		return nil, ErrMissingPatient
	}

	end := req.endTime()
	if req.Date.IsZero() || !req.Start.Valid() || !end.Valid() || end <= req.Start {
		return nil, ErrInvalidTimeRange
	}

	patient, err := s.repo.GetPatientByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	appt := Appointment{
		PatientID:  req.PatientID,
		ProviderID: req.ProviderID,
		VaccineID:  req.VaccineID,
		Date:       req.Date,
		Start:      req.Start,
		End:        end,
		Status:     StatusScheduled,
		Reason:     req.Reason,
		Notes:      req.Notes,
	}

	var created *Appointment

	if req.ProviderID != nil && *req.ProviderID != uuid.Nil {
		if _, err := s.repo.GetProviderByID(ctx, *req.ProviderID); err != nil {
			if errors.Is(err, ErrProviderNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load provider: %w", err)
		}

		err = s.locker.WithScheduleLock(ctx, *req.ProviderID, req.Date, func(lockCtx context.Context) error {
			// Re-check inside the critical section: the slot list the caller
			// saw may be stale by now.
			booked, err := s.repo.ListProviderDay(lockCtx, *req.ProviderID, req.Date)
			if err != nil {
				return fmt.Errorf("re-check provider day: %w", err)
			}
			if hasConflict(req.Start, end, booked) {
				return ErrSlotUnavailable
			}

			created, err = s.repo.InsertAppointment(lockCtx, appt)
			if err != nil {
				return fmt.Errorf("insert appointment: %w", err)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, redisclient.ErrLockNotAcquired) {
				return nil, ErrScheduleBusy
			}
			if errors.Is(err, ErrSlotUnavailable) {
				metrics.BookingConflictsTotal.Inc()
			}
			return nil, err
		}
	} else {
		// No provider means no schedule to conflict with.
		created, err = s.repo.InsertAppointment(ctx, appt)
		if err != nil {
			return nil, fmt.Errorf("insert appointment: %w", err)
		}
	}

	metrics.BookingsTotal.Inc()
	s.notifyBooked(ctx, created, patient)
	s.feed.Publish(ctx, "appointments")

	return created, nil
}

// Transition moves an appointment from scheduled to one terminal status.
// The underlying update is a compare-and-set, so when two transitions race
// only the first one applies.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !to.Terminal() {
		return nil, ErrInvalidTransition
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row moved out of scheduled between our read and the CAS.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(to)).Inc()
	s.notifyTransition(ctx, updated)
	s.feed.Publish(ctx, "appointments")

	return updated, nil
}

// List returns appointments visible to the requestor, ordered by date then
// start time. Free-text search matches against a flattened form of each
// record.
func (s *Service) List(ctx context.Context, requestor Requestor, f ListFilter) ([]Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx, requestor, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		filtered := appts[:0]
		for _, a := range appts {
			if strings.Contains(a.searchable(), q) {
				filtered = append(filtered, a)
			}
		}
		appts = filtered
	}

	// The repository already orders rows, but keep the contract explicit for
	// any repository implementation that does not.
	sort.SliceStable(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.Before(appts[j].Date)
		}
		return appts[i].Start < appts[j].Start
	})

	return appts, nil
}

// Get loads a single appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// RemindUpcoming sends each patient one reminder for their scheduled
// appointments on date. The reminder flag flips through a compare-and-set,
// so restarts and concurrent workers do not double-send.
func (s *Service) RemindUpcoming(ctx context.Context, date time.Time) error {
	due, err := s.repo.FindReminderDue(ctx, date)
	if err != nil {
		return fmt.Errorf("find reminders due: %w", err)
	}

	for _, appt := range due {
		won, err := s.repo.MarkReminderSent(ctx, appt.ID)
		if err != nil {
			s.log.Error("mark reminder sent failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		if !won {
			continue
		}

		patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
		if err != nil {
			s.log.Error("load patient for reminder failed", "appointment_id", appt.ID, "error", err)
			continue
		}

		m := notification.Message{
			Type:  "appointment",
			Title: "Appointment Reminder",
			Body: fmt.Sprintf("%s, you have an appointment on %s at %s.",
				patient.FullName(), formatDate(appt.Date), appt.Start.Clock()),
			Data: appointmentPayload(&appt),
		}
		if err := s.notifier.NotifyUser(ctx, patient.ProfileID, m); err != nil {
			s.log.Error("reminder dispatch failed", "appointment_id", appt.ID, "error", err)
			continue
		}

		metrics.RemindersSentTotal.Inc()
	}

	return nil
}

// Notification side effects. A booking or transition that already persisted
// is never rolled back because dispatch failed; the failure is logged.

func (s *Service) notifyBooked(ctx context.Context, appt *Appointment, patient *Patient) {
	m := notification.Message{
		Type:  "appointment",
		Title: "New Appointment Booked",
		Body: fmt.Sprintf("Patient %s has booked an appointment for %s at %s.",
			patient.FullName(), formatDate(appt.Date), appt.Start.Clock()),
		Data: appointmentPayload(appt),
	}
	if err := s.notifier.NotifyAdmins(ctx, m); err != nil {
		s.log.Error("booking notification failed", "appointment_id", appt.ID, "error", err)
	}
}

func (s *Service) notifyTransition(ctx context.Context, appt *Appointment) {
	patientName := appt.PatientID.String()
	if patient, err := s.repo.GetPatientByID(ctx, appt.PatientID); err == nil {
		patientName = patient.FullName()
	}

	m := notification.Message{
		Type:  "appointment",
		Title: transitionTitle(appt.Status),
		Body: fmt.Sprintf("Appointment for %s on %s at %s is now %s.",
			patientName, formatDate(appt.Date), appt.Start.Clock(), appt.Status),
		Data: appointmentPayload(appt),
	}
	if err := s.notifier.NotifyAdmins(ctx, m); err != nil {
		s.log.Error("transition notification failed", "appointment_id", appt.ID, "error", err)
	}
}

func transitionTitle(to Status) string {
	switch to {
	case StatusCompleted:
		return "Appointment Completed"
	case StatusCancelled:
		return "Appointment Cancelled"
	case StatusNoShow:
		return "Appointment Marked No-Show"
	}
	return "Appointment Updated"
}

func formatDate(d time.Time) string {
	return d.Format("Monday, January 2, 2006")
}

func appointmentPayload(appt *Appointment) map[string]any {
	return map[string]any{
		"appointment_id":   appt.ID.String(),
		"patient_id":       appt.PatientID.String(),
		"appointment_date": appt.Date.Format("2006-01-02"),
		"start_time":       appt.Start.String(),
		"end_time":         appt.End.String(),
	}
}
