package schedule

import "fmt"

// WorkingHours configures slot generation for a provider's day.
type WorkingHours struct {
	Start        TimeOfDay
	End          TimeOfDay
	SlotDuration int // minutes per appointment window
	Step         int // minutes between candidate start times
}

// GenerateSlots produces the offerable windows for one provider and date,
// in ascending order, given the appointments already on the books.
//
// Candidate starts advance from hours.Start by hours.Step and stop once the
// window would extend past hours.End. A candidate is dropped when its
// half-open interval intersects any appointment that still blocks its slot.
// The duration does not have to be a multiple of the step, so neighbouring
// candidates may overlap each other; only conflicts with booked appointments
// disqualify a window.
func GenerateSlots(hours WorkingHours, booked []Appointment) []Slot {
	if hours.SlotDuration <= 0 || hours.Step <= 0 || hours.End <= hours.Start {
		return nil
	}

	var slots []Slot
	for start := hours.Start; start.Add(hours.SlotDuration) <= hours.End; start = start.Add(hours.Step) {
		end := start.Add(hours.SlotDuration)

		if hasConflict(start, end, booked) {
			continue
		}

		slots = append(slots, Slot{
			Start: start,
			End:   end,
			Label: fmt.Sprintf("%s - %s", start, end),
		})
	}

	return slots
}

// hasConflict reports whether [start, end) intersects any blocking
// appointment.
func hasConflict(start, end TimeOfDay, booked []Appointment) bool {
	for _, appt := range booked {
		if !appt.BlocksSlot() {
			continue
		}
		if overlaps(start, end, appt.Start, appt.End) {
			return true
		}
	}
	return false
}

// overlaps tests two half-open intervals [aStart, aEnd) and [bStart, bEnd).
// Touching endpoints do not overlap: [9:00,9:30) and [9:30,10:00) coexist.
func overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}
