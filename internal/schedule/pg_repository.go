package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the slice of pgxpool.Pool the repository needs. pgxmock satisfies it
// too, so repository tests run without a database.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, patient_id, provider_id, vaccine_id, appointment_date,
	start_time, end_time, status, reason, notes, reminder_sent, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a          Appointment
		providerID *uuid.UUID
		vaccineID  *uuid.UUID
		start, end pgtype.Time
	)

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&providerID,
		&vaccineID,
		&a.Date,
		&start,
		&end,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.ReminderSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ProviderID = providerID
	a.VaccineID = vaccineID
	a.Start = timeOfDayFromPG(start)
	a.End = timeOfDayFromPG(end)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT p.id, p.profile_id, u.first_name, u.last_name, p.date_of_birth, p.created_at, p.updated_at
		FROM patients p
		JOIN user_profiles u ON u.id = p.profile_id
		WHERE p.id = $1
	`, id)

	var p Patient
	var dob *time.Time

	err := row.Scan(&p.ID, &p.ProfileID, &p.FirstName, &p.LastName, &dob, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.DateOfBirth = dob
	return &p, nil
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*UserProfile, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, role, created_at, updated_at
		FROM user_profiles
		WHERE id = $1 AND role = 'provider'
	`, id)

	var u UserProfile
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	return &u, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListProviderDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND appointment_date = $2
		  AND status <> 'cancelled'
		ORDER BY start_time
	`, providerID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, provider_id, vaccine_id, appointment_date,
			 start_time, end_time, status, reason, notes, reminder_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.PatientID, appt.ProviderID, appt.VaccineID, appt.Date,
		appt.Start.PG(), appt.End.PG(), appt.Status, appt.Reason, appt.Notes)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, requestor Requestor, f ListFilter) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments`

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch requestor.Role {
	case RoleAdmin:
		// sees everything
	case RoleProvider:
		conds = append(conds, "provider_id = "+arg(requestor.ID))
	default:
		conds = append(conds, "patient_id IN (SELECT id FROM patients WHERE profile_id = "+arg(requestor.ID)+")")
	}

	if f.DateExact != nil {
		conds = append(conds, "appointment_date = "+arg(*f.DateExact))
	}
	if f.DateFrom != nil {
		conds = append(conds, "appointment_date >= "+arg(*f.DateFrom))
	}
	if f.DateTo != nil {
		conds = append(conds, "appointment_date <= "+arg(*f.DateTo))
	}
	if f.Status != nil {
		conds = append(conds, "status = "+arg(*f.Status))
	}

	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY appointment_date, start_time"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindReminderDue(ctx context.Context, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND appointment_date = $1
		  AND reminder_sent = false
		ORDER BY start_time
	`, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true,
		    updated_at = now()
		WHERE id = $1
		  AND reminder_sent = false
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
