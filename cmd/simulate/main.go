// simulate fires concurrent booking traffic at a running api-server to
// exercise the conflict re-check under contention. Workers fight over the
// same providers and day, so a healthy run shows a mix of created
// appointments and 409 responses, and zero double-bookings.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/clinic-scheduling/internal/db"
)

type simConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	PostgresDSN string
	JWTSecret   string
}

type dataPool struct {
	Patients  []uuid.UUID
	Providers []uuid.UUID
}

type counters struct {
	Booked    int64
	Conflicts int64
	BadInput  int64
	Errors    int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := simConfig{
		APIBaseURL:  getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 16),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	data, err := loadDataPool(context.Background(), pool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d patients, %d providers", len(data.Patients), len(data.Providers))

	token, err := adminToken(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("sign admin token: %v", err)
	}

	date := time.Now().AddDate(0, 0, 2).Format("2006-01-02")
	log.Printf("simulating bookings for %s with %d workers for %s", date, cfg.Workers, cfg.Duration)

	runCtx, stop := context.WithTimeout(context.Background(), cfg.Duration)
	defer stop()

	var stats counters
	var wg sync.WaitGroup
	client := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for runCtx.Err() == nil {
				doBooking(runCtx, client, cfg.APIBaseURL, token, data, date, rng, &stats)
			}
		}(time.Now().UnixNano() + int64(i))
	}

	wg.Wait()

	fmt.Println("---- simulation report ----")
	fmt.Printf("booked:    %d\n", atomic.LoadInt64(&stats.Booked))
	fmt.Printf("conflicts: %d\n", atomic.LoadInt64(&stats.Conflicts))
	fmt.Printf("bad input: %d\n", atomic.LoadInt64(&stats.BadInput))
	fmt.Printf("errors:    %d\n", atomic.LoadInt64(&stats.Errors))
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*dataPool, error) {
	dp := &dataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 500`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	provRows, err := pool.Query(ctx, `SELECT id FROM user_profiles WHERE role = 'provider' LIMIT 50`)
	if err != nil {
		return nil, err
	}
	defer provRows.Close()
	for provRows.Next() {
		var id uuid.UUID
		if err := provRows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Providers = append(dp.Providers, id)
	}
	if err := provRows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Patients) == 0 || len(dp.Providers) == 0 {
		return nil, fmt.Errorf("empty data pool, run cmd/seed first")
	}
	return dp, nil
}

func adminToken(secret string) (string, error) {
	claims := struct {
		Role string `json:"role"`
		jwt.RegisteredClaims
	}{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func doBooking(ctx context.Context, client *http.Client, baseURL, token string, data *dataPool, date string, rng *rand.Rand, stats *counters) {
	// a narrow time band maximises contention
	startMinutes := 9*60 + rng.Intn(8)*15

	body, _ := json.Marshal(map[string]any{
		"patient_id":       data.Patients[rng.Intn(len(data.Patients))].String(),
		"provider_id":      data.Providers[rng.Intn(len(data.Providers))].String(),
		"appointment_date": date,
		"start_time":       fmt.Sprintf("%02d:%02d", startMinutes/60, startMinutes%60),
		"duration_minutes": 30,
		"reason":           "load test",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			atomic.AddInt64(&stats.Errors, 1)
		}
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&stats.Booked, 1)
	case http.StatusConflict:
		atomic.AddInt64(&stats.Conflicts, 1)
	case http.StatusBadRequest:
		atomic.AddInt64(&stats.BadInput, 1)
	default:
		atomic.AddInt64(&stats.Errors, 1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
