package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-booking/internal/api"
	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/catalog"
	"github.com/hackgods/clinic-appointment-booking/internal/config"
	"github.com/hackgods/clinic-appointment-booking/internal/observability"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	ReviewRatio   float64
	Providers     int
	Dates         int
	AdminUsername string
	AdminPassword string
}

type DataPool struct {
	Providers []string
	Dates     []string
	Slots     []string

	mu           sync.RWMutex
	appointments []string
}

func (dp *DataPool) AddAppointment(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return "", false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	n := len(latencies)
	return sum / time.Duration(n), latencies[n*50/100], latencies[min(n*95/100, n-1)], latencies[n-1]
}

type Metrics struct {
	Reserve      OperationMetrics
	Review       OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

// simulate hammers a running api-server with concurrent reservations on a
// deliberately small set of slots, then checks no slot ended up with two
// active appointments.
func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLogger := observability.InitLogger("simulate", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := observability.InitLogger("simulate", baseCfg.Env, baseCfg.LogLevel)

	cfg := loadConfig(baseCfg)
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		logger.Fatal().Msg("SIM_WORKERS and SIM_DURATION must be > 0")
	}

	cat, err := baseCfg.Catalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("build catalog")
	}

	sim := &Simulator{
		config: cfg,
		pool:   buildDataPool(cat, cfg),
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("slots", len(sim.pool.Providers)*len(sim.pool.Dates)*len(sim.pool.Slots)).
		Msg("simulation starting")

	sim.Run()
	sim.PrintReport()

	violations, err := sim.CheckNoDoubleBooking(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("could not verify appointments")
	}
	if violations > 0 {
		fmt.Printf("FAIL: %d slots hold more than one active appointment\n", violations)
		os.Exit(1)
	}
	fmt.Println("OK: no slot holds more than one active appointment")
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort),
		Duration:      getDuration("SIM_DURATION", 20*time.Second),
		Workers:       getInt("SIM_WORKERS", 20),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.6),
		ReviewRatio:   getFloat("SIM_REVIEW_RATIO", 0.2),
		Providers:     getInt("SIM_PROVIDERS", 2),
		Dates:         getInt("SIM_DATES", 2),
		AdminUsername: base.AdminUsername,
		AdminPassword: base.AdminPassword,
	}
	if total := cfg.BookingRatio + cfg.ReviewRatio; total > 1 {
		cfg.BookingRatio /= total
		cfg.ReviewRatio /= total
	}
	return cfg
}

// buildDataPool keeps the slot space small so workers collide often.
func buildDataPool(cat *catalog.Catalog, cfg SimConfig) *DataPool {
	providers := cat.Providers()
	if cfg.Providers < len(providers) {
		providers = providers[:cfg.Providers]
	}

	slots := cat.TimeSlots()
	if len(slots) > 4 {
		slots = slots[:4]
	}

	// far enough out that repeated runs rarely reuse yesterday's dates
	start := time.Now().AddDate(0, 0, 30+rand.Intn(300))
	dates := make([]string, 0, cfg.Dates)
	for i := 0; i < cfg.Dates; i++ {
		dates = append(dates, start.AddDate(0, 0, i).Format(appointment.DateLayout))
	}

	return &DataPool{Providers: providers, Dates: dates, Slots: slots}
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doReserve(ctx, rng)
		case r < s.config.BookingRatio+s.config.ReviewRatio:
			s.doReview(ctx, rng)
		default:
			s.doAvailability(ctx, rng)
		}
	}
}

func (s *Simulator) pick(rng *rand.Rand) (provider, date, slot string) {
	return s.pool.Providers[rng.Intn(len(s.pool.Providers))],
		s.pool.Dates[rng.Intn(len(s.pool.Dates))],
		s.pool.Slots[rng.Intn(len(s.pool.Slots))]
}

func (s *Simulator) doReserve(ctx context.Context, rng *rand.Rand) {
	provider, date, slot := s.pick(rng)
	body, _ := json.Marshal(api.ReserveAppointmentRequest{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Date:     date,
		Time:     slot,
		Provider: provider,
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Reserve.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var appt api.AppointmentResponse
		if json.NewDecoder(resp.Body).Decode(&appt) == nil && appt.ID != "" {
			s.pool.AddAppointment(appt.ID)
		}
		s.metrics.Reserve.Record(latency, true, false)
	case http.StatusConflict:
		s.metrics.Reserve.Record(latency, false, true)
	default:
		s.metrics.Reserve.Record(latency, false, false)
	}
}

// doReview confirms or declines a random appointment, the way an admin works the queue.
func (s *Simulator) doReview(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	action := "confirm"
	if rng.Intn(2) == 0 {
		action = "decline"
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/appointments/%s/%s", s.config.APIBaseURL, id, action), nil)
	req.SetBasicAuth(s.config.AdminUsername, s.config.AdminPassword)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Review.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()

	// a declined slot may have been re-reserved, so confirming it again conflicts
	s.metrics.Review.Record(latency, resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	provider, date, _ := s.pick(rng)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/availability", nil)
	q := req.URL.Query()
	q.Set("provider", provider)
	q.Set("date", date)
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Availability.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()

	s.metrics.Availability.Record(latency, resp.StatusCode == http.StatusOK, false)
}

// CheckNoDoubleBooking lists every appointment and counts slots held by more
// than one pending or confirmed appointment.
func (s *Simulator) CheckNoDoubleBooking(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/appointments", nil)
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(s.config.AdminUsername, s.config.AdminPassword)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("list appointments: unexpected status %d", resp.StatusCode)
	}

	var appts []api.AppointmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&appts); err != nil {
		return 0, fmt.Errorf("decode appointments: %w", err)
	}

	return countDoubleBooked(appts), nil
}

func countDoubleBooked(appts []api.AppointmentResponse) int {
	holders := make(map[string]int)
	for _, a := range appts {
		if !appointment.AppointmentStatus(a.Status).Holds() {
			continue
		}
		holders[a.Provider+"|"+a.Date+"|"+a.Time]++
	}

	violations := 0
	for _, n := range holders {
		if n > 1 {
			violations++
		}
	}
	return violations
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Reserve", &s.metrics.Reserve)
	printOperationReport("Confirm/Decline", &s.metrics.Review)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
