package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

// Layer is the region-scoped read-through cache. A nil *Layer is valid and caches nothing.
// Store failures never reach callers: they are logged, counted, and treated as a miss or no-op.
type Layer struct {
	store   Store
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	stats map[Region]*regionCounters
}

type regionCounters struct {
	hits, misses, errors, evictions atomic.Int64
}

// RegionStats is a snapshot of one region's counters.
type RegionStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Errors    int64 `json:"errors"`
	Evictions int64 `json:"evictions"`
}

func (s RegionStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func NewLayer(store Store, cfg Config, baseLog *logger.Logger, metrics *observability.Metrics) *Layer {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Regions == nil {
		cfg.Regions = DefaultConfig().Regions
	}
	return &Layer{
		store:   store,
		cfg:     cfg,
		log:     baseLog.With("service", "CacheLayer"),
		metrics: metrics,
		stats:   map[Region]*regionCounters{},
	}
}

func (l *Layer) Enabled() bool { return l != nil && l.store != nil }

func (l *Layer) Config() Config {
	if l == nil {
		return DefaultConfig()
	}
	return l.cfg
}

func (l *Layer) counters(r Region) *regionCounters {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.stats[r]
	if !ok {
		c = &regionCounters{}
		l.stats[r] = c
	}
	return c
}

func (l *Layer) prefix(r Region) string {
	return l.cfg.Namespace + ":" + string(r) + ":"
}

// FullKey is the store key for k, namespace included.
func (l *Layer) FullKey(k Key) string {
	if l == nil {
		return ""
	}
	return l.prefix(k.Region) + k.suffix
}

func (l *Layer) fail(r Region, op, key string, err error) {
	l.counters(r).errors.Add(1)
	l.metrics.IncCacheError(string(r), op)
	l.log.Warn("cache operation failed", "region", r, "op", op, "key", key, "error", err)
}

func (l *Layer) load(ctx context.Context, k Key) ([]byte, bool) {
	full := l.FullKey(k)
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()
	raw, ok, err := l.store.Get(ctx, full)
	if err != nil {
		l.fail(k.Region, "get", full, err)
		return nil, false
	}
	return raw, ok
}

func (l *Layer) save(ctx context.Context, k Key, v any) {
	full := l.FullKey(k)
	raw, err := json.Marshal(v)
	if err != nil {
		l.fail(k.Region, "encode", full, err)
		return
	}
	// A cancelled caller still gets its value stored.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.Timeout)
	defer cancel()
	if err := l.store.Set(ctx, full, raw, l.cfg.TTL(k.Region)); err != nil {
		l.fail(k.Region, "put", full, err)
	}
}

func (l *Layer) hit(r Region) {
	l.counters(r).hits.Add(1)
	l.metrics.IncCacheHit(string(r))
}

func (l *Layer) miss(r Region) {
	l.counters(r).misses.Add(1)
	l.metrics.IncCacheMiss(string(r))
}

// GetOrCompute returns the cached value for k, or runs compute, stores its result with the
// region TTL and returns it. Compute errors are returned and nothing is stored.
func GetOrCompute[T any](ctx context.Context, l *Layer, k Key, compute func(ctx context.Context) (T, error)) (T, error) {
	if !l.Enabled() {
		return compute(ctx)
	}
	if raw, ok := l.load(ctx, k); ok {
		var out T
		err := json.Unmarshal(raw, &out)
		if err == nil {
			l.hit(k.Region)
			return out, nil
		}
		l.fail(k.Region, "decode", l.FullKey(k), err)
	}
	l.miss(k.Region)
	out, err := compute(ctx)
	if err != nil {
		return out, err
	}
	l.save(ctx, k, out)
	return out, nil
}

// Put stores v under k unconditionally.
func (l *Layer) Put(ctx context.Context, k Key, v any) {
	if !l.Enabled() {
		return
	}
	l.save(ctx, k, v)
}

// Evict removes a single key.
func (l *Layer) Evict(ctx context.Context, k Key) {
	if !l.Enabled() {
		return
	}
	full := l.FullKey(k)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.Timeout)
	defer cancel()
	n, err := l.store.Delete(ctx, full)
	if err != nil {
		l.fail(k.Region, "evict", full, err)
		return
	}
	l.evicted(k.Region, n)
}

func (l *Layer) evicted(r Region, n int) {
	if n <= 0 {
		return
	}
	l.counters(r).evictions.Add(int64(n))
	l.metrics.AddCacheEvictions(string(r), n)
}

// Invalidate evicts the keys of region selected by any of scopes in a single store pass.
func (l *Layer) Invalidate(ctx context.Context, region Region, scopes ...Scope) {
	if !l.Enabled() || len(scopes) == 0 {
		return
	}
	prefix := l.prefix(region)
	patterns := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		if sc.IsAll() {
			patterns = nil
			break
		}
		patterns = append(patterns, sc.pattern(prefix))
	}
	// Eviction must finish even if the writer's context was cancelled after the commit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.Timeout)
	defer cancel()
	n, err := l.store.DeleteMatch(ctx, prefix, patterns...)
	if err != nil {
		l.fail(region, "evict", prefix+"*", err)
		return
	}
	l.evicted(region, n)
	l.log.Debug("cache invalidated", "region", region, "scopes", len(scopes), "all", patterns == nil, "evicted", n)
}

// InvalidateAll clears every listed region.
func (l *Layer) InvalidateAll(ctx context.Context, regions ...Region) {
	for _, r := range regions {
		l.Invalidate(ctx, r, AllKeys)
	}
}

// InvalidateClasses clears every region belonging to the given classes.
func (l *Layer) InvalidateClasses(ctx context.Context, classes ...Class) {
	if !l.Enabled() {
		return
	}
	l.InvalidateAll(ctx, l.cfg.RegionsIn(classes...)...)
}

// WriteImpact describes what a ledger write touched.
type WriteImpact struct {
	StudentIDs []uuid.UUID
	Dates      []time.Time
	TeacherIDs []uuid.UUID
}

func (w WriteImpact) Empty() bool {
	return len(w.StudentIDs) == 0 && len(w.Dates) == 0 && len(w.TeacherIDs) == 0
}

// scopes turns the impact into summary-class eviction scopes. Teacher summaries are dropped as
// a whole whenever a student is touched because a mark may move between markers.
func (w WriteImpact) scopes() []Scope {
	var out []Scope
	for _, id := range uniqueIDs(w.StudentIDs) {
		out = append(out, StudentScope(id))
	}
	for _, d := range uniqueDates(w.Dates) {
		out = append(out, DateScope(d))
	}
	if len(w.StudentIDs) > 0 {
		return append(out, AnyTeacherScope())
	}
	for _, id := range uniqueIDs(w.TeacherIDs) {
		out = append(out, TeacherScope(id))
	}
	return out
}

// InvalidateForWrite evicts summary-class entries of the touched students, dates and teachers
// with one store pass per summary region, then clears the dashboard and pattern classes outright.
func (l *Layer) InvalidateForWrite(ctx context.Context, impact WriteImpact) {
	if !l.Enabled() || impact.Empty() {
		return
	}
	scopes := impact.scopes()
	for _, r := range l.cfg.RegionsIn(ClassSummary) {
		l.Invalidate(ctx, r, scopes...)
	}
	l.InvalidateClasses(ctx, ClassDashboard, ClassPattern)
}

// Stats snapshots the per-region counters.
func (l *Layer) Stats() map[Region]RegionStats {
	out := map[Region]RegionStats{}
	if l == nil {
		return out
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for r, c := range l.stats {
		out[r] = RegionStats{
			Hits:      c.hits.Load(),
			Misses:    c.misses.Load(),
			Errors:    c.errors.Load(),
			Evictions: c.evictions.Load(),
		}
	}
	return out
}

func (l *Layer) Close() error {
	if !l.Enabled() {
		return nil
	}
	return l.store.Close()
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func uniqueDates(ds []time.Time) []time.Time {
	seen := map[string]bool{}
	var out []time.Time
	for _, d := range ds {
		if d.IsZero() {
			continue
		}
		k := attendance.NormalizeDate(d).Format(attendance.DateLayout)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}
