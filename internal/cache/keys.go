package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/domain/attendance"
)

// Key identifies one cache entry inside a region. Build keys with the typed builders below;
// the namespace is prepended by the Layer.
type Key struct {
	Region Region
	suffix string
}

func (k Key) Suffix() string { return k.suffix }

func (k Key) IsZero() bool { return k.Region == "" }

// Segment names. No name may be a suffix of another, scope patterns rely on it.
const (
	segKind      = "kind"
	segSchool    = "school"
	segStudent   = "student"
	segTeacher   = "teacher"
	segDate      = "date"
	segFrom      = "from"
	segTo        = "to"
	segYear      = "year"
	segMonth     = "month"
	segStandard  = "standard"
	segSection   = "section"
	segThreshold = "threshold"
)

// escaper keeps encoded values free of separators and glob metacharacters.
var escaper = strings.NewReplacer(
	"%", "%25",
	"|", "%7C",
	":", "%3A",
	"=", "%3D",
	"*", "%2A",
	"?", "%3F",
	"[", "%5B",
	"]", "%5D",
	"\\", "%5C",
)

func escapeValue(v string) string { return escaper.Replace(v) }

type keyBuilder struct {
	region Region
	b      strings.Builder
}

func newKey(r Region) *keyBuilder { return &keyBuilder{region: r} }

func (kb *keyBuilder) str(name, v string) *keyBuilder {
	kb.b.WriteString(segment(name, v))
	return kb
}

func (kb *keyBuilder) opt(name string, v *string) *keyBuilder {
	if v == nil {
		kb.b.WriteString(name + "=nil|")
		return kb
	}
	return kb.str(name, *v)
}

func (kb *keyBuilder) id(name string, v uuid.UUID) *keyBuilder { return kb.str(name, v.String()) }

func (kb *keyBuilder) date(name string, t time.Time) *keyBuilder {
	if t.IsZero() {
		kb.b.WriteString(name + "=nil|")
		return kb
	}
	return kb.str(name, attendance.NormalizeDate(t).Format(attendance.DateLayout))
}

func (kb *keyBuilder) rng(r attendance.DateRange) *keyBuilder {
	return kb.date(segFrom, r.From).date(segTo, r.To)
}

func (kb *keyBuilder) num(name string, n int) *keyBuilder { return kb.str(name, strconv.Itoa(n)) }

func (kb *keyBuilder) key() Key { return Key{Region: kb.region, suffix: kb.b.String()} }

// segment renders one `name=v:<escaped>|` piece.
func segment(name, v string) string {
	return name + "=v:" + escapeValue(v) + "|"
}

func DailySummaryKey(schoolID uuid.UUID, date time.Time) Key {
	return newKey(RegionDailySummary).id(segSchool, schoolID).date(segDate, date).key()
}

func MonthlyOverviewKey(schoolID uuid.UUID, year int, month time.Month) Key {
	return newKey(RegionMonthlyOverview).id(segSchool, schoolID).num(segYear, year).num(segMonth, int(month)).key()
}

func StudentStatisticsKey(studentID uuid.UUID, r attendance.DateRange) Key {
	return newKey(RegionStudentStatistics).id(segStudent, studentID).rng(r).key()
}

func StudentSummaryKey(studentID uuid.UUID, r attendance.DateRange) Key {
	return newKey(RegionAttendanceSummaries).str(segKind, "student").id(segStudent, studentID).rng(r).key()
}

func TeacherSummaryKey(teacherID uuid.UUID, r attendance.DateRange) Key {
	return newKey(RegionAttendanceSummaries).str(segKind, "teacher").id(segTeacher, teacherID).rng(r).key()
}

// FactsByDateKey holds a school's facts for one day.
func FactsByDateKey(schoolID uuid.UUID, date time.Time) Key {
	return newKey(RegionAttendanceSummaries).str(segKind, "by-date").id(segSchool, schoolID).date(segDate, date).key()
}

func StudentTrendKey(studentID uuid.UUID, r attendance.DateRange) Key {
	return newKey(RegionAttendancePatterns).str(segKind, "trend").id(segStudent, studentID).rng(r).key()
}

func ClassStatisticsKey(schoolID uuid.UUID, r attendance.DateRange) Key {
	return newKey(RegionAttendancePatterns).str(segKind, "class-stats").id(segSchool, schoolID).rng(r).key()
}

func LowAttendanceKey(schoolID uuid.UUID, r attendance.DateRange, threshold float64) Key {
	return newKey(RegionAttendancePatterns).
		str(segKind, "low-attendance").
		id(segSchool, schoolID).
		rng(r).
		str(segThreshold, strconv.FormatFloat(threshold, 'f', -1, 64)).
		key()
}

func StudentProfileKey(studentID uuid.UUID) Key {
	return newKey(RegionStudentProfiles).id(segStudent, studentID).key()
}

func TeacherProfileKey(teacherID uuid.UUID) Key {
	return newKey(RegionTeacherProfiles).id(segTeacher, teacherID).key()
}

func ClassRosterKey(schoolID uuid.UUID, standard string, section *string) Key {
	return newKey(RegionClassInformation).str(segKind, "roster").id(segSchool, schoolID).str(segStandard, standard).opt(segSection, section).key()
}

func ClassCountKey(schoolID uuid.UUID, standard string, section *string) Key {
	return newKey(RegionClassInformation).str(segKind, "count").id(segSchool, schoolID).str(segStandard, standard).opt(segSection, section).key()
}

func ActiveStudentsKey(schoolID uuid.UUID) Key {
	return newKey(RegionSchoolConfiguration).str(segKind, "active-students").id(segSchool, schoolID).key()
}

func StandardsKey(schoolID uuid.UUID) Key {
	return newKey(RegionSchoolConfiguration).str(segKind, "standards").id(segSchool, schoolID).key()
}

func SectionsKey(schoolID uuid.UUID, standard string) Key {
	return newKey(RegionSchoolConfiguration).str(segKind, "sections").id(segSchool, schoolID).str(segStandard, standard).key()
}

// Scope selects the keys of a region to evict.
type Scope struct {
	fragment string // empty means every key
}

// AllKeys evicts the whole region.
var AllKeys = Scope{}

func StudentScope(id uuid.UUID) Scope { return Scope{fragment: segment(segStudent, id.String())} }
func TeacherScope(id uuid.UUID) Scope { return Scope{fragment: segment(segTeacher, id.String())} }
func SchoolScope(id uuid.UUID) Scope  { return Scope{fragment: segment(segSchool, id.String())} }

func DateScope(d time.Time) Scope {
	return Scope{fragment: segment(segDate, attendance.NormalizeDate(d).Format(attendance.DateLayout))}
}

// AnyTeacherScope matches every teacher-keyed entry.
func AnyTeacherScope() Scope { return Scope{fragment: segTeacher + "=v:"} }

func (s Scope) IsAll() bool { return s.fragment == "" }

func (s Scope) String() string {
	if s.IsAll() {
		return "*"
	}
	return strings.TrimSuffix(s.fragment, "|")
}

// pattern builds the store glob for the scope within one namespaced region.
func (s Scope) pattern(prefix string) string {
	if s.IsAll() {
		return prefix + "*"
	}
	return prefix + "*" + s.fragment + "*"
}
