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
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/appointment-queue/internal/db"
)

// The simulator hammers a running api-server with concurrent bookings
// and completions against a small set of shared doctors, then checks
// the turn-number invariant directly in Postgres: every pending queue
// must be exactly 1..N with no duplicates and no gaps.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Doctors     int
	Patients    int
	PostgresDSN string
	DoctorKey   string
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 16),
		Doctors:     getInt("SIM_DOCTORS", 3),
		Patients:    getInt("SIM_PATIENTS", 20),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		DoctorKey:   os.Getenv("DOCTOR_REGISTRATION_KEY"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	if cfg.DoctorKey == "" {
		log.Fatal("DOCTOR_REGISTRATION_KEY is required")
	}
	return cfg
}

type account struct {
	ID    uuid.UUID
	Token string
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict || status == http.StatusTooManyRequests:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Report(name string) {
	om.mu.Lock()
	defer om.mu.Unlock()

	fmt.Printf("%-10s total=%d success=%d conflict=%d error=%d",
		name, om.Total, om.Success, om.Conflict, om.Error)

	if len(om.latencies) > 0 {
		sorted := make([]time.Duration, len(om.latencies))
		copy(sorted, om.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		fmt.Printf(" avg=%s p95=%s max=%s",
			sum/time.Duration(len(sorted)),
			sorted[len(sorted)*95/100],
			sorted[len(sorted)-1])
	}
	fmt.Println()
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadSimConfig()

	client := &http.Client{Timeout: 10 * time.Second}

	doctors := make([]account, cfg.Doctors)
	for i := range doctors {
		doctors[i] = registerDoctor(client, cfg, i)
	}
	patients := make([]account, cfg.Patients)
	for i := range patients {
		patients[i] = registerPatient(client, cfg, i)
	}
	log.Printf("registered %d doctors and %d patients", len(doctors), len(patients))

	var (
		bookMetrics     OperationMetrics
		completeMetrics OperationMetrics
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for ctx.Err() == nil {
				doctor := doctors[rng.Intn(len(doctors))]

				if rng.Float64() < 0.7 {
					patient := patients[rng.Intn(len(patients))]
					book(client, cfg, &bookMetrics, doctor.ID, patient.Token, rng)
				} else {
					completeNext(client, cfg, &completeMetrics, doctor)
				}

				time.Sleep(time.Duration(rng.Intn(50)) * time.Millisecond)
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	fmt.Println("--- simulation results ---")
	bookMetrics.Report("book")
	completeMetrics.Report("complete")

	verifyQueues(cfg, doctors)
}

func registerDoctor(client *http.Client, cfg SimConfig, i int) account {
	body := map[string]string{
		"name":             fmt.Sprintf("Sim Doctor %d", i),
		"email":            fmt.Sprintf("sim-doctor-%d-%s@sim.test", i, uuid.NewString()[:8]),
		"password":         "simpassword",
		"specialization":   "General Practice",
		"registration_key": cfg.DoctorKey,
	}
	return register(client, cfg.APIBaseURL+"/api/auth/register/doctor", body)
}

func registerPatient(client *http.Client, cfg SimConfig, i int) account {
	body := map[string]string{
		"name":     fmt.Sprintf("Sim Patient %d", i),
		"email":    fmt.Sprintf("sim-patient-%d-%s@sim.test", i, uuid.NewString()[:8]),
		"password": "simpassword",
	}
	return register(client, cfg.APIBaseURL+"/api/auth/register", body)
}

func register(client *http.Client, url string, body map[string]string) account {
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	for {
		status, err := doJSON(client, http.MethodPost, url, "", body, &resp)
		if status == http.StatusTooManyRequests {
			// setup outpaces the auth rate limit; back off and retry
			time.Sleep(time.Second)
			continue
		}
		if err != nil || status != http.StatusCreated {
			log.Fatalf("register %s: status=%d err=%v", url, status, err)
		}
		return account{ID: resp.User.ID, Token: resp.Token}
	}
}

func book(client *http.Client, cfg SimConfig, m *OperationMetrics, doctorID uuid.UUID, patientToken string, rng *rand.Rand) {
	body := map[string]any{
		"doctor_id":    doctorID.String(),
		"scheduled_at": time.Now().Add(time.Duration(rng.Intn(14*24)) * time.Hour).Format(time.RFC3339),
	}

	start := time.Now()
	status, _ := doJSON(client, http.MethodPost, cfg.APIBaseURL+"/api/appointments", patientToken, body, nil)
	m.Record(time.Since(start), status)
}

// completeNext lists the doctor's queue and completes a random
// pending entry, occasionally one from the middle to exercise the
// out-of-order renumbering path.
func completeNext(client *http.Client, cfg SimConfig, m *OperationMetrics, doctor account) {
	var appointments []struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	status, err := doJSON(client, http.MethodGet, cfg.APIBaseURL+"/api/appointments", doctor.Token, nil, &appointments)
	if err != nil || status != http.StatusOK {
		return
	}

	var pending []uuid.UUID
	for _, a := range appointments {
		if a.Status == "pending" {
			pending = append(pending, a.ID)
		}
	}
	if len(pending) == 0 {
		return
	}

	target := pending[rand.Intn(len(pending))]

	start := time.Now()
	code, _ := doJSON(client, http.MethodPatch,
		fmt.Sprintf("%s/api/appointments/%s/complete", cfg.APIBaseURL, target), doctor.Token, nil, nil)
	m.Record(time.Since(start), code)
}

func verifyQueues(cfg SimConfig, doctors []account) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, db.DefaultPoolSettings(cfg.PostgresDSN))
	if err != nil {
		log.Fatalf("connect postgres for verification: %v", err)
	}
	defer pool.Close()

	violations := 0
	for _, d := range doctors {
		turns, err := pendingTurns(ctx, pool, d.ID)
		if err != nil {
			log.Fatalf("load pending turns for %s: %v", d.ID, err)
		}

		ok := true
		for i, turn := range turns {
			if turn != i+1 {
				ok = false
				break
			}
		}
		if !ok {
			violations++
			log.Printf("INVARIANT VIOLATED doctor=%s turns=%v", d.ID, turns)
		} else {
			log.Printf("queue ok doctor=%s pending=%d", d.ID, len(turns))
		}
	}

	if violations > 0 {
		log.Fatalf("%d doctor queue(s) violated the contiguity invariant", violations)
	}
	log.Println("all queues contiguous")
}

func pendingTurns(ctx context.Context, pool *pgxpool.Pool, doctorID uuid.UUID) ([]int, error) {
	rows, err := pool.Query(ctx, `
		SELECT turn_number
		FROM appointments
		WHERE doctor_id = $1 AND status = 'pending'
		ORDER BY turn_number ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []int
	for rows.Next() {
		var t int
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func doJSON(client *http.Client, method, url, token string, body any, out any) (int, error) {
	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
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
