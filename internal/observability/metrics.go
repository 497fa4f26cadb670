package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/attendance-backend/internal/domain"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/platform/envutil"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	ledgerOps       *CounterVec
	ledgerLatency   *HistogramVec
	ledgerConflicts *CounterVec
	ledgerRetries   *CounterVec

	cacheHits      *CounterVec
	cacheMisses    *CounterVec
	cacheErrors    *CounterVec
	cacheEvictions *CounterVec

	markingItems   *CounterVec
	markingLatency *HistogramVec
	events         *CounterVec

	factsToday *GaugeVec
	dbStats    *GaugeVec
	redisUp    *Gauge
	redisPing  *Gauge

	all []collector
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Duration("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

// Init builds the process-wide registry when METRICS_ENABLED is set; otherwise it returns nil
// and every recording method becomes a no-op.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// New returns an unregistered registry. Tests use it directly.
func New() *Metrics {
	m := &Metrics{
		apiRequests: NewCounterVec("att_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"att_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("att_api_inflight_requests", "In-flight API requests."),

		ledgerOps: NewCounterVec("att_ledger_operations_total", "Ledger operations by op/status.", []string{"op", "status"}),
		ledgerLatency: NewHistogramVec(
			"att_ledger_operation_duration_seconds",
			"Ledger operation latency in seconds by op.",
			[]string{"op"},
			nil,
		),
		ledgerConflicts: NewCounterVec("att_ledger_conflicts_total", "Ledger unique-key conflicts by op.", []string{"op"}),
		ledgerRetries:   NewCounterVec("att_ledger_retryable_total", "Ledger transient failures by op.", []string{"op"}),

		cacheHits:      NewCounterVec("att_cache_hits_total", "Cache hits by region.", []string{"region"}),
		cacheMisses:    NewCounterVec("att_cache_misses_total", "Cache misses by region.", []string{"region"}),
		cacheErrors:    NewCounterVec("att_cache_errors_total", "Swallowed cache store errors by region/op.", []string{"region", "op"}),
		cacheEvictions: NewCounterVec("att_cache_evictions_total", "Cache keys evicted by region.", []string{"region"}),

		markingItems: NewCounterVec("att_marking_items_total", "Marked attendance items by op/outcome.", []string{"op", "outcome"}),
		markingLatency: NewHistogramVec(
			"att_marking_duration_seconds",
			"Marking operation latency in seconds by op.",
			[]string{"op"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		events: NewCounterVec("att_events_published_total", "Attendance events by type/status.", []string{"type", "status"}),

		factsToday: NewGaugeVec("att_facts_today", "Attendance facts recorded for the current UTC date by status.", []string{"status"}),
		dbStats:    NewGaugeVec("att_db_pool_stats", "Database connection pool stats.", []string{"stat"}),
		redisUp:    NewGauge("att_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing:  NewGauge("att_redis_ping_seconds", "Redis ping latency in seconds."),
	}
	m.all = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.ledgerOps, m.ledgerLatency, m.ledgerConflicts, m.ledgerRetries,
		m.cacheHits, m.cacheMisses, m.cacheErrors, m.cacheEvictions,
		m.markingItems, m.markingLatency, m.events,
		m.factsToday, m.dbStats, m.redisUp, m.redisPing,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if status == "" {
		status = "0"
	}
	route = orUnknown(route)
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLedgerOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	op = orUnknown(op)
	m.ledgerOps.Inc(op, orUnknown(status))
	m.ledgerLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) IncLedgerConflict(op string) {
	if m == nil {
		return
	}
	m.ledgerConflicts.Inc(orUnknown(op))
}

func (m *Metrics) IncLedgerRetry(op string) {
	if m == nil {
		return
	}
	m.ledgerRetries.Inc(orUnknown(op))
}

func (m *Metrics) IncCacheHit(region string) {
	if m == nil {
		return
	}
	m.cacheHits.Inc(orUnknown(region))
}

func (m *Metrics) IncCacheMiss(region string) {
	if m == nil {
		return
	}
	m.cacheMisses.Inc(orUnknown(region))
}

func (m *Metrics) IncCacheError(region, op string) {
	if m == nil {
		return
	}
	m.cacheErrors.Inc(orUnknown(region), orUnknown(op))
}

func (m *Metrics) AddCacheEvictions(region string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.Add(float64(n), orUnknown(region))
}

// ObserveMarking records one marking call: its latency and how many items succeeded or failed.
func (m *Metrics) ObserveMarking(op string, succeeded, failed int, dur time.Duration) {
	if m == nil {
		return
	}
	op = orUnknown(op)
	if succeeded > 0 {
		m.markingItems.Add(float64(succeeded), op, "success")
	}
	if failed > 0 {
		m.markingItems.Add(float64(failed), op, "failure")
	}
	m.markingLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) IncEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.events.Inc(orUnknown(eventType), orUnknown(status))
}

// StartDBCollector samples the sql.DB pool behind gorm (postgres or sqlite).
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings the shared client; it does not own or close it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *goredis.Client) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				err := rdb.Ping(pingCtx).Err()
				cancel()
				if err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// StartLedgerCollector publishes today's fact counts per status.
func (m *Metrics) StartLedgerCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.collectFactsToday(ctx, db, time.Now()); err != nil && log != nil {
					log.Warn("metrics: facts-today query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) collectFactsToday(ctx context.Context, db *gorm.DB, now time.Time) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.AttendanceFact{}).
		Select("status, count(*) as count").
		Where("date = ?", attendance.DateOf(now)).
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range attendance.Statuses() {
		m.factsToday.Set(0, s.String())
	}
	for _, row := range rows {
		m.factsToday.Set(float64(row.Count), orUnknown(row.Status))
	}
	return nil
}
