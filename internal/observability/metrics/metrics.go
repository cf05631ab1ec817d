package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_bookings_total",
		Help: "Appointments booked successfully.",
	})

	BookingConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_booking_conflicts_total",
		Help: "Bookings rejected because the slot was taken at write time.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_status_transitions_total",
		Help: "Appointment status transitions applied, by target status.",
	}, []string{"status"})

	SlotQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_slot_queries_total",
		Help: "Slot availability computations served.",
	})

	RemindersSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_reminders_sent_total",
		Help: "Patient reminders dispatched by the worker.",
	})
)
