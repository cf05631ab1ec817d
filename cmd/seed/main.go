package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	admins, err := seedProfiles(seedCtx, pool, "admin", 3)
	if err != nil {
		log.Fatalf("seed admins: %v", err)
	}
	providers, err := seedProfiles(seedCtx, pool, "provider", 12)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	patients, err := seedPatients(seedCtx, pool, 400)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	vaccines, err := seedVaccines(seedCtx, pool)
	if err != nil {
		log.Fatalf("seed vaccines: %v", err)
	}
	if err := seedAppointments(seedCtx, pool, providers, patients, vaccines); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Printf("seed complete: %d admins, %d providers, %d patients", len(admins), len(providers), len(patients))
}

func seedProfiles(ctx context.Context, pool *pgxpool.Pool, role string, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d %s profiles", count, role)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO user_profiles (id, first_name, last_name, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.FirstName(), gofakeit.LastName(), role)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		profileID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO user_profiles (id, first_name, last_name, role, created_at, updated_at)
			VALUES ($1, $2, $3, 'patient', now(), now())
		`, profileID, gofakeit.FirstName(), gofakeit.LastName())
		if err != nil {
			return nil, err
		}

		patientID := uuid.New()
		dob := gofakeit.DateRange(
			time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		)
		_, err = tx.Exec(ctx, `
			INSERT INTO patients (id, profile_id, date_of_birth, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, patientID, profileID, dob)
		if err != nil {
			return nil, err
		}
		ids = append(ids, patientID)
	}

	return ids, tx.Commit(ctx)
}

func seedVaccines(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	names := []string{
		"Influenza (Quadrivalent)",
		"COVID-19 mRNA",
		"Tdap",
		"MMR",
		"Hepatitis B",
		"Varicella",
		"HPV",
		"Pneumococcal",
		"Shingles (RZV)",
		"Polio (IPV)",
	}

	log.Printf("seeding %d vaccines", len(names))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO vaccines (id, name, is_active, created_at, updated_at)
			VALUES ($1, $2, true, now(), now())
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

// seedAppointments books a plausible day for each provider: non-overlapping
// half-hour visits starting tomorrow morning.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, providers, patients, vaccines []uuid.UUID) error {
	log.Printf("seeding appointments for %d providers", len(providers))

	tomorrow := time.Now().AddDate(0, 0, 1)
	date := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC)

	reasons := []string{"Annual checkup", "Vaccination", "Follow-up", "New patient visit"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, providerID := range providers {
		visits := gofakeit.Number(2, 6)
		startMinutes := 9 * 60 // 09:00

		for i := 0; i < visits; i++ {
			patientID := patients[gofakeit.Number(0, len(patients)-1)]
			var vaccineID *uuid.UUID
			if gofakeit.Bool() {
				v := vaccines[gofakeit.Number(0, len(vaccines)-1)]
				vaccineID = &v
			}

			start := time.Date(1970, 1, 1, startMinutes/60, startMinutes%60, 0, 0, time.UTC)
			end := start.Add(30 * time.Minute)

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments
					(id, patient_id, provider_id, vaccine_id, appointment_date,
					 start_time, end_time, status, reason, notes, reminder_sent, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', $8, '', false, now(), now())
			`, uuid.New(), patientID, providerID, vaccineID, date,
				start.Format("15:04:05"), end.Format("15:04:05"),
				reasons[gofakeit.Number(0, len(reasons)-1)])
			if err != nil {
				return err
			}

			// leave a gap between some visits
			startMinutes += 30
			if gofakeit.Bool() {
				startMinutes += 30
			}
		}
	}

	return tx.Commit(ctx)
}
