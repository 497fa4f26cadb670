package cache

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/attendance-backend/internal/platform/envutil"
)

// Region is a named partition of the cache with its own TTL.
type Region string

const (
	RegionDailySummary        Region = "daily-summary"
	RegionMonthlyOverview     Region = "monthly-overview"
	RegionAttendancePatterns  Region = "attendance-patterns"
	RegionStudentStatistics   Region = "student-statistics"
	RegionAttendanceSummaries Region = "attendance-summaries"
	RegionStudentProfiles     Region = "student-profiles"
	RegionTeacherProfiles     Region = "teacher-profiles"
	RegionClassInformation    Region = "class-information"
	RegionSchoolConfiguration Region = "school-configuration"
)

// Class groups regions that are invalidated together.
type Class string

const (
	ClassDashboard Class = "dashboard"
	ClassPattern   Class = "pattern"
	ClassSummary   Class = "summary"
	ClassRoster    Class = "roster"
)

const (
	DefaultNamespace = "attendance"
	DefaultTTL       = 30 * time.Minute
	DefaultTimeout   = 300 * time.Millisecond
)

type RegionConfig struct {
	Class Class         `yaml:"class"`
	TTL   time.Duration `yaml:"ttl"`
}

type Config struct {
	Namespace  string                  `yaml:"namespace"`
	Timeout    time.Duration           `yaml:"timeout"`
	DefaultTTL time.Duration           `yaml:"default_ttl"`
	Regions    map[Region]RegionConfig `yaml:"regions"`
}

func DefaultConfig() Config {
	return Config{
		Namespace:  DefaultNamespace,
		Timeout:    DefaultTimeout,
		DefaultTTL: DefaultTTL,
		Regions: map[Region]RegionConfig{
			RegionDailySummary:        {Class: ClassDashboard, TTL: 5 * time.Minute},
			RegionMonthlyOverview:     {Class: ClassPattern, TTL: 30 * time.Minute},
			RegionAttendancePatterns:  {Class: ClassPattern, TTL: 30 * time.Minute},
			RegionStudentStatistics:   {Class: ClassSummary, TTL: 15 * time.Minute},
			RegionAttendanceSummaries: {Class: ClassSummary, TTL: 15 * time.Minute},
			RegionStudentProfiles:     {Class: ClassRoster, TTL: time.Hour},
			RegionTeacherProfiles:     {Class: ClassRoster, TTL: time.Hour},
			RegionClassInformation:    {Class: ClassRoster, TTL: 2 * time.Hour},
			RegionSchoolConfiguration: {Class: ClassRoster, TTL: 4 * time.Hour},
		},
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if any), then env:
// CACHE_NAMESPACE, CACHE_TIMEOUT, CACHE_DEFAULT_TTL and CACHE_TTL_<REGION>.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read cache config: %w", err)
		}
		var file Config
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("parse cache config %s: %w", path, err)
		}
		cfg = cfg.merge(file)
	}
	cfg = cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) merge(o Config) Config {
	if s := strings.TrimSpace(o.Namespace); s != "" {
		c.Namespace = s
	}
	if o.Timeout > 0 {
		c.Timeout = o.Timeout
	}
	if o.DefaultTTL > 0 {
		c.DefaultTTL = o.DefaultTTL
	}
	regions := make(map[Region]RegionConfig, len(c.Regions)+len(o.Regions))
	for r, rc := range c.Regions {
		regions[r] = rc
	}
	for r, rc := range o.Regions {
		cur := regions[r]
		if rc.Class != "" {
			cur.Class = rc.Class
		}
		if rc.TTL > 0 {
			cur.TTL = rc.TTL
		}
		regions[r] = cur
	}
	c.Regions = regions
	return c
}

func (c Config) applyEnv() Config {
	c.Namespace = envutil.String("CACHE_NAMESPACE", c.Namespace)
	c.Timeout = envutil.Duration("CACHE_TIMEOUT", c.Timeout)
	c.DefaultTTL = envutil.Duration("CACHE_DEFAULT_TTL", c.DefaultTTL)
	for r, rc := range c.Regions {
		rc.TTL = envutil.Duration(r.EnvKey(), rc.TTL)
		c.Regions[r] = rc
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Namespace) == "" {
		return fmt.Errorf("cache namespace is required")
	}
	if strings.ContainsAny(c.Namespace, ":*") {
		return fmt.Errorf("cache namespace %q must not contain ':' or '*'", c.Namespace)
	}
	for r, rc := range c.Regions {
		if rc.TTL <= 0 {
			return fmt.Errorf("cache region %s: ttl must be positive", r)
		}
		switch rc.Class {
		case ClassDashboard, ClassPattern, ClassSummary, ClassRoster:
		default:
			return fmt.Errorf("cache region %s: unknown class %q", r, rc.Class)
		}
	}
	return nil
}

// TTL returns the region's TTL, or the default for regions the config does not know.
func (c Config) TTL(r Region) time.Duration {
	if rc, ok := c.Regions[r]; ok && rc.TTL > 0 {
		return rc.TTL
	}
	if c.DefaultTTL > 0 {
		return c.DefaultTTL
	}
	return DefaultTTL
}

// RegionsIn lists the configured regions of the given classes, sorted.
func (c Config) RegionsIn(classes ...Class) []Region {
	want := map[Class]bool{}
	for _, cl := range classes {
		want[cl] = true
	}
	var out []Region
	for r, rc := range c.Regions {
		if want[rc.Class] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EnvKey is the TTL override variable for the region, e.g. CACHE_TTL_DAILY_SUMMARY.
func (r Region) EnvKey() string {
	return "CACHE_TTL_" + strings.ToUpper(strings.ReplaceAll(string(r), "-", "_"))
}

func (r Region) String() string { return string(r) }
