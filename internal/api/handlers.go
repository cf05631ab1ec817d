package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carelink/clinic-scheduling/internal/schedule"
)

func slotsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), &providerID, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func createAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		booking, errCode, errDetail := toBookingRequest(req)
		if errCode != "" {
			writeError(w, http.StatusBadRequest, errCode, errDetail)
			return
		}

		appt, err := svc.Book(r.Context(), booking)
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func toBookingRequest(req BookAppointmentRequest) (schedule.BookingRequest, string, string) {
	var booking schedule.BookingRequest

	if req.PatientID != "" {
		id, err := uuid.Parse(req.PatientID)
		if err != nil {
			return booking, "invalid_patient_id", "patient_id must be a valid UUID"
		}
		booking.PatientID = id
	}

	if req.ProviderID != "" {
		id, err := uuid.Parse(req.ProviderID)
		if err != nil {
			return booking, "invalid_provider_id", "provider_id must be a valid UUID"
		}
		booking.ProviderID = &id
	}

	if req.VaccineID != "" {
		id, err := uuid.Parse(req.VaccineID)
		if err != nil {
			return booking, "invalid_vaccine_id", "vaccine_id must be a valid UUID"
		}
		booking.VaccineID = &id
	}

	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return booking, "invalid_date", "appointment_date must be YYYY-MM-DD"
		}
		booking.Date = date
	}

	if req.StartTime != "" {
		start, err := schedule.ParseTimeOfDay(req.StartTime)
		if err != nil {
			return booking, "invalid_start_time", "start_time must be HH:MM"
		}
		booking.Start = start
	}

	if req.EndTime != "" {
		end, err := schedule.ParseTimeOfDay(req.EndTime)
		if err != nil {
			return booking, "invalid_end_time", "end_time must be HH:MM"
		}
		booking.End = &end
	}

	booking.DurationMinutes = req.DurationMinutes
	booking.Reason = req.Reason
	booking.Notes = req.Notes

	return booking, "", ""
}

func listAppointmentsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestor, ok := RequestorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "no authenticated user")
			return
		}

		var f schedule.ListFilter

		q := r.URL.Query()
		for name, dst := range map[string]**time.Time{
			"date": &f.DateExact,
			"from": &f.DateFrom,
			"to":   &f.DateTo,
		} {
			if v := q.Get(name); v != "" {
				parsed, err := time.Parse("2006-01-02", v)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be YYYY-MM-DD")
					return
				}
				*dst = &parsed
			}
		}

		if v := q.Get("status"); v != "" {
			status := schedule.Status(v)
			if !status.Known() {
				writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+v)
				return
			}
			f.Status = &status
		}
		f.Search = q.Get("search")

		appts, err := svc.List(r.Context(), requestor, f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, schedule.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Transition(r.Context(), id, schedule.Status(req.Status))
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrMissingPatient):
		writeError(w, http.StatusBadRequest, "missing_patient", err.Error())
	case errors.Is(err, schedule.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
	case errors.Is(err, schedule.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is no longer available, please pick another")
	case errors.Is(err, schedule.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "schedule is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
