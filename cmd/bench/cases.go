// README: Bench cases: environment, pricing, quote, trip lifecycle, concurrency and throughput checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// flow state shared by the ordered quote/trip cases
	passengerID string
	quoteID     string
	tripID      string
	driverID    string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:         cfg,
		httpc:       &http.Client{Timeout: 10 * time.Second},
		passengerID: "bench-" + uuid.NewString()[:8],
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: statusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: statusFail, Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: statusFail, Note: err.Error()}
					}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: statusFail, Note: err.Error()}
					}
					if !exists {
						return Result{Status: statusFail, Note: "missing table: " + t}
					}
				}
				return Result{Status: statusPass, Note: strings.Join(tables, ",")}
			},
		},
		statusCase("API: health", http.MethodGet, base+"/health", nil, http.StatusOK),

		// Pricing
		priceCase("Pricing: CL 100 km", base+"/api/pricing/calculate?distance=100&country=CL", 137000, "CLP"),
		priceCase("Pricing: CL 100 km sedan", base+"/api/pricing/calculate?distance=100&country=Chile&vehicleType=SEDAN", 123800, "CLP"),
		priceCase("Pricing: tier boundary 40 km", base+"/api/pricing/calculate?distance=40&country=CL", 65000, "CLP"),
		priceCase("Pricing: tier boundary 41 km", base+"/api/pricing/calculate?distance=41&country=CL", 66200, "CLP"),
		priceCase("Pricing: zero distance is base fare", base+"/api/pricing/calculate?distance=0&country=MX", 50, "MXN"),
		priceCase("Pricing: unknown country falls back", base+"/api/pricing/calculate?distance=100&country=Atlantis", 137000, "CLP"),
		statusCase("Pricing: negative distance -> 400", http.MethodGet, base+"/api/pricing/calculate?distance=-5", nil, http.StatusBadRequest),
		statusCase("Pricing: missing distance -> 400", http.MethodGet, base+"/api/pricing/calculate", nil, http.StatusBadRequest),
		{
			Name: "Pricing: currency by country name",
			Run: func(ctx context.Context, r *Runner) Result {
				var out struct {
					Country  string `json:"country"`
					Currency string `json:"currency"`
				}
				code, latency, err := r.do(ctx, http.MethodGet, base+"/api/pricing/currency?country=Argentina", nil, &out)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if code != http.StatusOK || out.Country != "AR" || out.Currency != "ARS" {
					return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d country=%s currency=%s", code, out.Country, out.Currency)}
				}
				return Result{Status: statusPass, Latency: latency}
			},
		},

		// Quote
		{
			Name: "Quote: create",
			Run: func(ctx context.Context, r *Runner) Result {
				var out struct {
					ID    string `json:"id"`
					Price struct {
						TotalPrice int64 `json:"totalPrice"`
					} `json:"price"`
				}
				code, latency, err := r.do(ctx, http.MethodPost, base+"/api/quotes", map[string]any{
					"passenger_id": r.passengerID,
					"country":      "CL",
					"vehicle_type": "SEDAN",
					"distance_km":  41,
				}, &out)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if code != http.StatusCreated || out.ID == "" {
					return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				r.quoteID = out.ID
				// 5000 + (40*1500 + 1*1200) * 0.9
				if out.Price.TotalPrice != 60080 {
					return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("total=%d", out.Price.TotalPrice)}
				}
				return Result{Status: statusPass, Latency: latency, Note: "id=" + out.ID}
			},
		},
		{
			Name: "Quote: cached in Redis with TTL",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				if r.quoteID == "" {
					return Result{Status: statusSkip, Note: "no quote"}
				}
				ttl, err := r.redis.TTL(ctx, "quote:"+r.quoteID).Result()
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if ttl <= 0 {
					return Result{Status: statusFail, Note: fmt.Sprintf("ttl=%s", ttl)}
				}
				return Result{Status: statusPass, Note: fmt.Sprintf("ttl=%s", ttl)}
			},
		},
		statusCase("Quote: missing passenger -> 400", http.MethodPost, base+"/api/quotes", map[string]any{"distance_km": 3}, http.StatusBadRequest),

		// Trip lifecycle
		{
			Name: "Trip: create from quote",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.quoteID == "" {
					return Result{Status: statusSkip, Note: "no quote"}
				}
				var out struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				}
				code, latency, err := r.do(ctx, http.MethodPost, base+"/api/trips", map[string]any{
					"passenger_id": r.passengerID,
					"quote_id":     r.quoteID,
				}, &out)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if code != http.StatusCreated || out.Status != "requested" {
					return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d trip_status=%s", code, out.Status)}
				}
				r.tripID = out.ID
				return Result{Status: statusPass, Latency: latency, Note: "id=" + out.ID}
			},
		},
		{
			Name: "Trip: second active trip -> 409",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: statusSkip, Note: "no trip"}
				}
				return expectStatus(r.do(ctx, http.MethodPost, base+"/api/trips", map[string]any{
					"passenger_id": r.passengerID,
					"quote_id":     r.quoteID,
				}, nil))(http.StatusConflict)
			},
		},
		{
			Name: "Concurrency: many drivers accept one trip",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: statusSkip, Note: "no trip"}
				}
				return concurrentAccept(ctx, r, base+"/api/trips/"+r.tripID+"/accept")
			},
		},
		{
			Name: "Trip: start",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.driverID == "" {
					return Result{Status: statusSkip, Note: "no accepted driver"}
				}
				return expectStatus(r.do(ctx, http.MethodPost, base+"/api/trips/"+r.tripID+"/start", map[string]any{"driver_id": r.driverID}, nil))(http.StatusOK)
			},
		},
		{
			Name: "Trip: complete with measured distance",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.driverID == "" {
					return Result{Status: statusSkip, Note: "no accepted driver"}
				}
				var out struct {
					ActualFare *struct {
						Amount int64 `json:"amount"`
					} `json:"actual_fare"`
				}
				code, latency, err := r.do(ctx, http.MethodPost, base+"/api/trips/"+r.tripID+"/complete", map[string]any{
					"driver_id":   r.driverID,
					"distance_km": 100,
				}, &out)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if code != http.StatusOK || out.ActualFare == nil || out.ActualFare.Amount != 123800 {
					return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				return Result{Status: statusPass, Latency: latency}
			},
		},
		{
			Name: "Trip: completed cannot be cancelled",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: statusSkip, Note: "no trip"}
				}
				return expectStatus(r.do(ctx, http.MethodPost, base+"/api/trips/"+r.tripID+"/cancel", map[string]any{
					"actor_type": "passenger",
					"actor_id":   r.passengerID,
				}, nil))(http.StatusConflict)
			},
		},
		{
			Name: "Consistency: events match status_version",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "db not configured"}
				}
				if r.tripID == "" {
					return Result{Status: statusSkip, Note: "no trip"}
				}
				var version, events int
				err := r.db.QueryRow(ctx, `
					SELECT t.status_version, (SELECT count(*) FROM trip_state_events e WHERE e.trip_id = t.id)
					FROM trips t WHERE t.id = $1`, r.tripID,
				).Scan(&version, &events)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				// one creation event plus one per transition
				if events != version+1 {
					return Result{Status: statusFail, Note: fmt.Sprintf("version=%d events=%d", version, events)}
				}
				return Result{Status: statusPass, Note: fmt.Sprintf("version=%d", version)}
			},
		},

		// Performance
		{
			Name: "Perf: pricing throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodGet, base+"/api/pricing/calculate?distance=25&country=PE&vehicleType=SEDAN", nil)
			},
		},
		{
			Name: "Perf: quote throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPost, base+"/api/quotes", map[string]any{
					"passenger_id": r.passengerID,
					"country":      "BR",
					"pickup":       map[string]float64{"lat": -23.5505, "lng": -46.6333},
					"dropoff":      map[string]float64{"lat": -23.4356, "lng": -46.4731},
				})
			},
		},
	}
}

// do sends a JSON request and decodes a 2xx body into out when out is non-nil.
func (r *Runner) do(ctx context.Context, method, url string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
		return resp.StatusCode, latency, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, latency, nil
}

func expectStatus(code int, latency time.Duration, err error) func(want int) Result {
	return func(want int) Result {
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		note := fmt.Sprintf("status=%d", code)
		if code != want {
			return Result{Status: statusFail, Latency: latency, Note: note}
		}
		return Result{Status: statusPass, Latency: latency, Note: note}
	}
}

func statusCase(name, method, url string, body any, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			return expectStatus(r.do(ctx, method, url, body, nil))(want)
		},
	}
}

func priceCase(name, url string, wantTotal int64, wantCurrency string) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			var out struct {
				TotalPrice int64  `json:"totalPrice"`
				Currency   string `json:"currency"`
			}
			code, latency, err := r.do(ctx, http.MethodGet, url, nil, &out)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			note := fmt.Sprintf("status=%d total=%d %s", code, out.TotalPrice, out.Currency)
			if code != http.StatusOK || out.TotalPrice != wantTotal || out.Currency != wantCurrency {
				return Result{Status: statusFail, Latency: latency, Note: note}
			}
			return Result{Status: statusPass, Latency: latency, Note: note}
		},
	}
}

// concurrentAccept races distinct drivers on the same trip; exactly one must win.
func concurrentAccept(ctx context.Context, r *Runner, url string) Result {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			driverID := fmt.Sprintf("bench-driver-%d", i)
			code, _, err := r.do(ctx, http.MethodPost, url, map[string]any{"driver_id": driverID}, nil)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case code >= 200 && code < 300:
				winners = append(winners, driverID)
			case code == http.StatusConflict:
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		return Result{Status: statusFail, Note: fmt.Sprintf("winners=%d conflicts=%d", len(winners), conflicts)}
	}
	r.driverID = winners[0]
	return Result{Status: statusPass, Note: fmt.Sprintf("winner=%s conflicts=%d", r.driverID, conflicts)}
}

func perfLoad(ctx context.Context, r *Runner, method, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, err := r.do(ctx, method, url, payload, nil)
				if err != nil || code >= 500 {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
