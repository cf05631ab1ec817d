package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ListFilter narrows List results. Date fields are date-only values; Search
// is matched by the service against a flattened form of each record, not in
// SQL. Requestor scoping is applied in SQL: patients see their own records,
// providers see assigned ones, admins see everything.
type ListFilter struct {
	DateExact *time.Time
	DateFrom  *time.Time
	DateTo    *time.Time
	Status    *Status
	Search    string
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*UserProfile, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListProviderDay returns the provider's appointments for one date,
	// excluding cancelled ones. Used for slot generation and the write-time
	// conflict re-check.
	ListProviderDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error)

	InsertAppointment(ctx context.Context, appt Appointment) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-set: the row only changes when
	// its current status matches from. Returns ErrAppointmentNotFound when no
	// row matched, which includes losing a transition race.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	ListAppointments(ctx context.Context, requestor Requestor, f ListFilter) ([]Appointment, error)

	// Reminder worker support. FindReminderDue returns scheduled appointments
	// on the given date that have not been reminded yet; MarkReminderSent
	// flips the flag and reports whether this call won the flip.
	FindReminderDue(ctx context.Context, date time.Time) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
}
