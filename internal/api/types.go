package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/clinic-scheduling/internal/schedule"
)

type BookAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	ProviderID      string `json:"provider_id,omitempty"`
	VaccineID       string `json:"vaccine_id,omitempty"`
	Date            string `json:"appointment_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	ProviderID *uuid.UUID `json:"provider_id,omitempty"`
	VaccineID  *uuid.UUID `json:"vaccine_id,omitempty"`
	Date       string     `json:"appointment_date"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		ProviderID: a.ProviderID,
		VaccineID:  a.VaccineID,
		Date:       a.Date.Format("2006-01-02"),
		StartTime:  a.Start.String(),
		EndTime:    a.End.String(),
		Status:     string(a.Status),
		Reason:     a.Reason,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

type SlotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Label     string `json:"label"`
}

func toSlotResponses(slots []schedule.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			StartTime: s.Start.String(),
			EndTime:   s.End.String(),
			Label:     s.Label,
		})
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
