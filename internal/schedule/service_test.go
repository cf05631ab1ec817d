package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carelink/clinic-scheduling/internal/notification"
	redisclient "github.com/carelink/clinic-scheduling/internal/redis"
)

// In-memory repository for service tests.

type memRepo struct {
	patients     map[uuid.UUID]*Patient
	providers    map[uuid.UUID]*UserProfile
	appts        map[uuid.UUID]*Appointment
	raceOnUpdate bool // simulate losing the CAS after a clean read
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:  make(map[uuid.UUID]*Patient),
		providers: make(map[uuid.UUID]*UserProfile),
		appts:     make(map[uuid.UUID]*Appointment),
	}
}

func (m *memRepo) addPatient(first, last string) uuid.UUID {
	p := &Patient{ID: uuid.New(), ProfileID: uuid.New(), FirstName: first, LastName: last}
	m.patients[p.ID] = p
	return p.ID
}

func (m *memRepo) addProvider(first, last string) uuid.UUID {
	u := &UserProfile{ID: uuid.New(), FirstName: first, LastName: last, Role: RoleProvider}
	m.providers[u.ID] = u
	return u.ID
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *memRepo) GetProviderByID(_ context.Context, id uuid.UUID) (*UserProfile, error) {
	u, ok := m.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return u, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memRepo) ListProviderDay(_ context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appts {
		if a.ProviderID == nil || *a.ProviderID != providerID {
			continue
		}
		if !a.Date.Equal(date) || a.Status == StatusCancelled {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) InsertAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	appt.ID = uuid.New()
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	m.appts[appt.ID] = &appt
	copied := appt
	return &copied, nil
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	if m.raceOnUpdate {
		return nil, ErrAppointmentNotFound
	}
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (m *memRepo) ListAppointments(_ context.Context, _ Requestor, f ListFilter) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appts {
		if f.DateExact != nil && !a.Date.Equal(*f.DateExact) {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) FindReminderDue(_ context.Context, date time.Time) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appts {
		if a.Status == StatusScheduled && a.Date.Equal(date) && !a.ReminderSent {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) MarkReminderSent(_ context.Context, id uuid.UUID) (bool, error) {
	a, ok := m.appts[id]
	if !ok || a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	return true, nil
}

// Locker stubs.

type passLocker struct{}

func (passLocker) WithScheduleLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(context.Context) error) error {
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithScheduleLock(context.Context, uuid.UUID, time.Time, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// Dispatcher stub.

type recordingDispatcher struct {
	adminMsgs []notification.Message
	userMsgs  map[uuid.UUID][]notification.Message
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{userMsgs: make(map[uuid.UUID][]notification.Message)}
}

func (d *recordingDispatcher) NotifyUser(_ context.Context, userID uuid.UUID, m notification.Message) error {
	d.userMsgs[userID] = append(d.userMsgs[userID], m)
	return nil
}

func (d *recordingDispatcher) NotifyAdmins(_ context.Context, m notification.Message) error {
	d.adminMsgs = append(d.adminMsgs, m)
	return nil
}

func testHours(t *testing.T) WorkingHours {
	t.Helper()
	return WorkingHours{
		Start:        mustTime(t, "09:00"),
		End:          mustTime(t, "17:00"),
		SlotDuration: 30,
		Step:         15,
	}
}

func newTestService(t *testing.T, repo *memRepo) (*Service, *recordingDispatcher) {
	t.Helper()
	dispatcher := newRecordingDispatcher()
	svc := NewService(repo, passLocker{}, dispatcher, nil, testHours(t), nil)
	return svc, dispatcher
}

var testDay = time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

func bookingReq(t *testing.T, patientID uuid.UUID, providerID *uuid.UUID, start string, duration int) BookingRequest {
	t.Helper()
	return BookingRequest{
		PatientID:       patientID,
		ProviderID:      providerID,
		Date:            testDay,
		Start:           mustTime(t, start),
		DurationMinutes: duration,
	}
}

func TestBookHappyPath(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	providerID := repo.addProvider("Grace", "Lin")
	svc, dispatcher := newTestService(t, repo)

	appt, err := svc.Book(context.Background(), bookingReq(t, patientID, &providerID, "09:00", 30))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, appt.ID)
	require.Equal(t, StatusScheduled, appt.Status)
	require.Equal(t, mustTime(t, "09:30"), appt.End)

	require.Len(t, dispatcher.adminMsgs, 1)
	msg := dispatcher.adminMsgs[0]
	require.Equal(t, "appointment", msg.Type)
	require.Equal(t, "New Appointment Booked", msg.Title)
	require.Contains(t, msg.Body, "Ada Okafor")
	require.Contains(t, msg.Body, "Tuesday, September 1, 2026")
	require.Contains(t, msg.Body, "09:00 AM")
	require.Equal(t, appt.ID.String(), msg.Data["appointment_id"])
}

func TestBookValidation(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	svc, _ := newTestService(t, repo)

	_, err := svc.Book(context.Background(), bookingReq(t, uuid.Nil, nil, "09:00", 30))
	require.ErrorIs(t, err, ErrMissingPatient)

	_, err = svc.Book(context.Background(), bookingReq(t, patientID, nil, "09:00", 0))
	require.ErrorIs(t, err, ErrInvalidTimeRange)

	end := mustTime(t, "08:30")
	req := bookingReq(t, patientID, nil, "09:00", 30)
	req.End = &end
	_, err = svc.Book(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidTimeRange)

	req = bookingReq(t, patientID, nil, "09:00", 30)
	req.Date = time.Time{}
	_, err = svc.Book(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestBookUnknownPatientAndProvider(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	svc, _ := newTestService(t, repo)

	_, err := svc.Book(context.Background(), bookingReq(t, uuid.New(), nil, "09:00", 30))
	require.ErrorIs(t, err, ErrPatientNotFound)

	ghost := uuid.New()
	_, err = svc.Book(context.Background(), bookingReq(t, patientID, &ghost, "09:00", 30))
	require.ErrorIs(t, err, ErrProviderNotFound)
}

func TestBookRejectsOverlapAtWriteTime(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	otherID := repo.addPatient("Ben", "Cruz")
	providerID := repo.addProvider("Grace", "Lin")
	svc, dispatcher := newTestService(t, repo)

	_, err := svc.Book(context.Background(), bookingReq(t, patientID, &providerID, "09:00", 30))
	require.NoError(t, err)

	// 09:15-09:45 intersects 09:00-09:30 even though the caller never ran
	// AvailableSlots
	_, err = svc.Book(context.Background(), bookingReq(t, otherID, &providerID, "09:15", 30))
	require.ErrorIs(t, err, ErrSlotUnavailable)
	require.Len(t, dispatcher.adminMsgs, 1)
}

func TestBookAdjacentWindowsCoexist(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	otherID := repo.addPatient("Ben", "Cruz")
	providerID := repo.addProvider("Grace", "Lin")
	svc, _ := newTestService(t, repo)

	_, err := svc.Book(context.Background(), bookingReq(t, patientID, &providerID, "09:00", 30))
	require.NoError(t, err)

	// [09:00,09:30) and [09:30,10:00) share only the boundary point
	_, err = svc.Book(context.Background(), bookingReq(t, otherID, &providerID, "09:30", 30))
	require.NoError(t, err)
}

func TestBookWithoutProviderSkipsConflictCheck(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	svc, _ := newTestService(t, repo)

	_, err := svc.Book(context.Background(), bookingReq(t, patientID, nil, "09:00", 30))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), bookingReq(t, patientID, nil, "09:00", 30))
	require.NoError(t, err)
}

func TestBookScheduleBusy(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	providerID := repo.addProvider("Grace", "Lin")
	svc := NewService(repo, busyLocker{}, newRecordingDispatcher(), nil, testHours(t), nil)

	_, err := svc.Book(context.Background(), bookingReq(t, patientID, &providerID, "09:00", 30))
	require.ErrorIs(t, err, ErrScheduleBusy)
}

func TestTransitionScheduledToTerminal(t *testing.T) {
	for _, target := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		t.Run(string(target), func(t *testing.T) {
			repo := newMemRepo()
			patientID := repo.addPatient("Ada", "Okafor")
			svc, dispatcher := newTestService(t, repo)

			appt, err := svc.Book(context.Background(), bookingReq(t, patientID, nil, "09:00", 30))
			require.NoError(t, err)

			updated, err := svc.Transition(context.Background(), appt.ID, target)
			require.NoError(t, err)
			require.Equal(t, target, updated.Status)

			// booking + transition
			require.Len(t, dispatcher.adminMsgs, 2)
			require.Contains(t, dispatcher.adminMsgs[1].Body, string(target))
		})
	}
}

func TestTransitionFromTerminalFails(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	svc, _ := newTestService(t, repo)

	appt, err := svc.Book(context.Background(), bookingReq(t, patientID, nil, "09:00", 30))
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), appt.ID, StatusCompleted)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), appt.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionRejectsBadTargets(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	svc, _ := newTestService(t, repo)

	appt, err := svc.Book(context.Background(), bookingReq(t, patientID, nil, "09:00", 30))
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), appt.ID, StatusScheduled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Transition(context.Background(), appt.ID, Status("archived"))
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionLostRace(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	svc, _ := newTestService(t, repo)

	appt, err := svc.Book(context.Background(), bookingReq(t, patientID, nil, "09:00", 30))
	require.NoError(t, err)

	repo.raceOnUpdate = true
	_, err = svc.Transition(context.Background(), appt.ID, StatusCompleted)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancellationFreesSlot(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	providerID := repo.addProvider("Grace", "Lin")
	svc, _ := newTestService(t, repo)

	appt, err := svc.Book(context.Background(), bookingReq(t, patientID, &providerID, "09:00", 30))
	require.NoError(t, err)

	slots, err := svc.AvailableSlots(context.Background(), &providerID, testDay)
	require.NoError(t, err)
	for _, s := range slots {
		require.NotEqual(t, "09:00 - 09:30", s.Label)
	}

	_, err = svc.Transition(context.Background(), appt.ID, StatusCancelled)
	require.NoError(t, err)

	slots, err = svc.AvailableSlots(context.Background(), &providerID, testDay)
	require.NoError(t, err)
	require.Equal(t, "09:00 - 09:30", slots[0].Label)
}

func TestAvailableSlotsWithoutProvider(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(t, repo)

	slots, err := svc.AvailableSlots(context.Background(), nil, testDay)
	require.NoError(t, err)
	require.Empty(t, slots)

	nilID := uuid.Nil
	slots, err = svc.AvailableSlots(context.Background(), &nilID, testDay)
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestListSearchAndOrdering(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	svc, _ := newTestService(t, repo)

	later := bookingReq(t, patientID, nil, "11:00", 30)
	later.Reason = "Annual checkup"
	_, err := svc.Book(context.Background(), later)
	require.NoError(t, err)

	earlier := bookingReq(t, patientID, nil, "09:00", 30)
	earlier.Reason = "Vaccination"
	_, err = svc.Book(context.Background(), earlier)
	require.NoError(t, err)

	admin := Requestor{ID: uuid.New(), Role: RoleAdmin}

	all, err := svc.List(context.Background(), admin, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].Start < all[1].Start, "expected ascending start times")

	found, err := svc.List(context.Background(), admin, ListFilter{Search: "CHECKUP"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.True(t, strings.Contains(found[0].Reason, "checkup"))
}

func TestRemindUpcomingSendsOnce(t *testing.T) {
	repo := newMemRepo()
	patientID := repo.addPatient("Ada", "Okafor")
	svc, dispatcher := newTestService(t, repo)

	_, err := svc.Book(context.Background(), bookingReq(t, patientID, nil, "09:00", 30))
	require.NoError(t, err)

	require.NoError(t, svc.RemindUpcoming(context.Background(), testDay))
	require.NoError(t, svc.RemindUpcoming(context.Background(), testDay))

	profileID := repo.patients[patientID].ProfileID
	require.Len(t, dispatcher.userMsgs[profileID], 1)
	require.Contains(t, dispatcher.userMsgs[profileID][0].Body, "Ada Okafor")
}
