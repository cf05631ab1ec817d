package schedule

import (
	"reflect"
	"testing"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func appt(t *testing.T, start, end string, status Status) Appointment {
	t.Helper()
	return Appointment{
		Start:  mustTime(t, start),
		End:    mustTime(t, end),
		Status: status,
	}
}

func slotLabels(slots []Slot) []string {
	labels := make([]string, 0, len(slots))
	for _, s := range slots {
		labels = append(labels, s.Label)
	}
	return labels
}

func TestGenerateSlotsEmptyDay(t *testing.T) {
	hours := WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "10:00"),
		SlotDuration: 30,
		Step:         30,
	}

	got := slotLabels(GenerateSlots(hours, nil))
	want := []string{"09:00 - 09:30", "09:30 - 10:00"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlotsSkipsBookedWindow(t *testing.T) {
	hours := WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "10:00"),
		SlotDuration: 30,
		Step:         30,
	}
	booked := []Appointment{appt(t, "09:00", "09:30", StatusScheduled)}

	got := slotLabels(GenerateSlots(hours, booked))
	want := []string{"09:30 - 10:00"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlotsCancelledFreesWindow(t *testing.T) {
	hours := WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "10:00"),
		SlotDuration: 30,
		Step:         30,
	}
	booked := []Appointment{appt(t, "09:00", "09:30", StatusCancelled)}

	got := slotLabels(GenerateSlots(hours, booked))
	want := []string{"09:00 - 09:30", "09:30 - 10:00"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlotsCompletedStillBlocks(t *testing.T) {
	hours := WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "10:00"),
		SlotDuration: 30,
		Step:         30,
	}
	booked := []Appointment{appt(t, "09:00", "09:30", StatusCompleted)}

	got := slotLabels(GenerateSlots(hours, booked))
	want := []string{"09:30 - 10:00"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlotsPartialOverlapBlocks(t *testing.T) {
	hours := WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "11:00"),
		SlotDuration: 30,
		Step:         30,
	}
	// 09:45-10:15 clips both the 09:30 and the 10:00 windows
	booked := []Appointment{appt(t, "09:45", "10:15", StatusScheduled)}

	got := slotLabels(GenerateSlots(hours, booked))
	want := []string{"09:00 - 09:30", "10:30 - 11:00"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlotsStaysWithinWorkingHours(t *testing.T) {
	hours := WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "17:00"),
		SlotDuration: 30,
		Step:         15,
	}

	for _, s := range GenerateSlots(hours, nil) {
		if s.Start < hours.Start || s.End > hours.End {
			t.Fatalf("slot %s outside working hours", s.Label)
		}
		if s.End != s.Start.Add(hours.SlotDuration) {
			t.Fatalf("slot %s has wrong duration", s.Label)
		}
	}
}

func TestGenerateSlotsDurationNotMultipleOfStep(t *testing.T) {
	hours := WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "10:00"),
		SlotDuration: 25,
		Step:         15,
	}

	got := slotLabels(GenerateSlots(hours, nil))
	want := []string{"09:00 - 09:25", "09:15 - 09:40", "09:30 - 09:55"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestGenerateSlotsDeterministic(t *testing.T) {
	hours := WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "12:00"),
		SlotDuration: 30,
		Step:         15,
	}
	booked := []Appointment{
		appt(t, "09:30", "10:00", StatusScheduled),
		appt(t, "11:00", "11:30", StatusScheduled),
	}

	first := GenerateSlots(hours, booked)
	second := GenerateSlots(hours, booked)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same inputs produced different slot lists")
	}
}

func TestGenerateSlotsDegenerateConfig(t *testing.T) {
	if got := GenerateSlots(WorkingHours{}, nil); got != nil {
		t.Fatalf("zero config should produce no slots, got %v", got)
	}

	hours := WorkingHours{
		Start:        mustTime(t, "10:00"),
		End:          mustTime(t, "09:00"),
		SlotDuration: 30,
		Step:         15,
	}
	if got := GenerateSlots(hours, nil); got != nil {
		t.Fatalf("inverted hours should produce no slots, got %v", got)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	nine := mustTime(t, "09:00")
	nine30 := mustTime(t, "09:30")
	ten := mustTime(t, "10:00")

	if overlaps(nine, nine30, nine30, ten) {
		t.Fatal("touching intervals must not overlap")
	}
	if !overlaps(nine, ten, nine30, ten) {
		t.Fatal("contained interval must overlap")
	}
	if !overlaps(nine, nine30, mustTime(t, "09:15"), mustTime(t, "09:45")) {
		t.Fatal("partially overlapping intervals must overlap")
	}
}
