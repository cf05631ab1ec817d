package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether a status ends the appointment lifecycle.
// Every transition goes from scheduled to exactly one terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s Status) Known() bool {
	return s == StatusScheduled || s.Terminal()
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleProvider Role = "provider"
	RolePatient  Role = "patient"
)

// Requestor identifies the authenticated caller for role-scoped reads.
type Requestor struct {
	ID   uuid.UUID
	Role Role
}

type UserProfile struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Patient joins the patients row with its user profile.
type Patient struct {
	ID          uuid.UUID
	ProfileID   uuid.UUID
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Vaccine struct {
	ID        uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	ProviderID   *uuid.UUID
	VaccineID    *uuid.UUID
	Date         time.Time // date only, midnight in the clinic's zone
	Start        TimeOfDay
	End          TimeOfDay
	Status       Status
	Reason       string
	Notes        string
	ReminderSent bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BlocksSlot reports whether the appointment still occupies its time window.
// Cancelled appointments release the window; everything else keeps it.
func (a Appointment) BlocksSlot() bool {
	return a.Status != StatusCancelled
}

// searchable flattens the record for free-text matching.
func (a Appointment) searchable() string {
	parts := []string{
		a.ID.String(),
		a.PatientID.String(),
		a.Date.Format("2006-01-02"),
		a.Start.String(),
		a.End.String(),
		string(a.Status),
		a.Reason,
		a.Notes,
	}
	if a.ProviderID != nil {
		parts = append(parts, a.ProviderID.String())
	}
	if a.VaccineID != nil {
		parts = append(parts, a.VaccineID.String())
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Slot is a bookable window. Derived data, never persisted.
type Slot struct {
	Start TimeOfDay
	End   TimeOfDay
	Label string
}
