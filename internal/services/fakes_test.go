package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"

	"github.com/yungbote/attendance-backend/internal/cache"
	types "github.com/yungbote/attendance-backend/internal/domain"
	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/realtime"
)

// fakeLedger keeps facts in memory and mirrors the ledger's natural-key semantics.
type fakeLedger struct {
	mu       sync.Mutex
	facts    map[uuid.UUID]*types.AttendanceFact
	students map[uuid.UUID]*types.Student
	teachers map[uuid.UUID]bool
	failFor  map[uuid.UUID]error
	reads    int
	writes   int
}

var _ domainagg.AttendanceLedger = (*fakeLedger)(nil)

func newFakeLedger(r *fakeRoster) *fakeLedger {
	l := &fakeLedger{
		facts:    map[uuid.UUID]*types.AttendanceFact{},
		students: map[uuid.UUID]*types.Student{},
		teachers: map[uuid.UUID]bool{},
		failFor:  map[uuid.UUID]error{},
	}
	for id, st := range r.students {
		l.students[id] = st
	}
	for id := range r.teachers {
		l.teachers[id] = true
	}
	return l
}

func (l *fakeLedger) Contract() domainagg.Contract { return domainagg.AttendanceLedgerContract }

func cloneFact(f *types.AttendanceFact) *types.AttendanceFact {
	if f == nil {
		return nil
	}
	c := *f
	if f.MarkedByTeacherID != nil {
		id := *f.MarkedByTeacherID
		c.MarkedByTeacherID = &id
	}
	return &c
}

func (l *fakeLedger) byKeyLocked(studentID uuid.UUID, date time.Time) *types.AttendanceFact {
	d := attendance.NormalizeDate(date)
	for _, f := range l.facts {
		if f.StudentID == studentID && f.Day().Equal(d) {
			return f
		}
	}
	return nil
}

func (l *fakeLedger) checkLocked(op string, in domainagg.UpsertFactInput) (*types.Student, error) {
	if !in.Status.Valid() {
		return nil, domainagg.Validationf(op, "invalid status %q", in.Status)
	}
	if err := l.failFor[in.StudentID]; err != nil {
		return nil, err
	}
	st := l.students[in.StudentID]
	if st == nil {
		return nil, domainagg.NotFoundf(op, "student %s not found", in.StudentID)
	}
	if in.MarkedBy != nil && !l.teachers[*in.MarkedBy] {
		return nil, domainagg.NotFoundf(op, "teacher %s not found", *in.MarkedBy)
	}
	return st, nil
}

func (l *fakeLedger) writeLocked(st *types.Student, existing *types.AttendanceFact, in domainagg.UpsertFactInput) *types.AttendanceFact {
	f := existing
	if f == nil {
		f = &types.AttendanceFact{ID: uuid.New(), StudentID: in.StudentID, SchoolID: st.SchoolID, Date: attendance.DateOf(in.Date)}
		l.facts[f.ID] = f
	}
	f.Status = in.Status
	f.Note = in.Note
	f.MarkedByTeacherID = in.MarkedBy
	f.IsHoliday = in.IsHoliday
	f.MarkedAt = in.MarkedAt
	l.writes++
	return cloneFact(f)
}

func (l *fakeLedger) Upsert(_ context.Context, in domainagg.UpsertFactInput) (*types.AttendanceFact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.checkLocked("fake.upsert", in)
	if err != nil {
		return nil, err
	}
	return l.writeLocked(st, l.byKeyLocked(in.StudentID, in.Date), in), nil
}

func (l *fakeLedger) InsertIfAbsent(_ context.Context, in domainagg.UpsertFactInput) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.checkLocked("fake.insert_if_absent", in)
	if err != nil {
		return false, err
	}
	if l.byKeyLocked(in.StudentID, in.Date) != nil {
		return false, nil
	}
	l.writeLocked(st, nil, in)
	return true, nil
}

func (l *fakeLedger) Replace(_ context.Context, factID uuid.UUID, in domainagg.UpsertFactInput, preserveID bool) (domainagg.ReplaceFactResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev, ok := l.facts[factID]
	if !ok {
		return domainagg.ReplaceFactResult{}, domainagg.NotFoundf("fake.replace", "fact %s not found", factID)
	}
	st, err := l.checkLocked("fake.replace", in)
	if err != nil {
		return domainagg.ReplaceFactResult{}, err
	}
	before := cloneFact(prev)
	sameKey := prev.StudentID == in.StudentID && prev.Day().Equal(attendance.NormalizeDate(in.Date))
	if preserveID && sameKey {
		return domainagg.ReplaceFactResult{Previous: before, Current: l.writeLocked(st, prev, in)}, nil
	}
	delete(l.facts, factID)
	cur := l.writeLocked(st, l.byKeyLocked(in.StudentID, in.Date), in)
	return domainagg.ReplaceFactResult{Previous: before, Current: cur}, nil
}

func (l *fakeLedger) Delete(_ context.Context, factID uuid.UUID) (*types.AttendanceFact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.facts[factID]
	if !ok {
		return nil, domainagg.NotFoundf("fake.delete", "fact %s not found", factID)
	}
	delete(l.facts, factID)
	l.writes++
	return cloneFact(f), nil
}

func (l *fakeLedger) GetByID(_ context.Context, factID uuid.UUID) (*types.AttendanceFact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	return cloneFact(l.facts[factID]), nil
}

func (l *fakeLedger) Get(_ context.Context, studentID uuid.UUID, date time.Time) (*types.AttendanceFact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	return cloneFact(l.byKeyLocked(studentID, date)), nil
}

func (l *fakeLedger) Exists(ctx context.Context, studentID uuid.UUID, date time.Time) (bool, error) {
	f, err := l.Get(ctx, studentID, date)
	return f != nil, err
}

func (l *fakeLedger) matchLocked(f *types.AttendanceFact, q attendance.FactFilter) bool {
	switch {
	case q.StudentID != nil && f.StudentID != *q.StudentID:
		return false
	case q.SchoolID != nil && f.SchoolID != *q.SchoolID:
		return false
	case q.TeacherID != nil && (f.MarkedByTeacherID == nil || *f.MarkedByTeacherID != *q.TeacherID):
		return false
	case q.Range != nil && !q.Range.Contains(f.Day()):
		return false
	case q.Date != nil && !f.Day().Equal(attendance.NormalizeDate(*q.Date)):
		return false
	case q.Status != nil && f.Status != *q.Status:
		return false
	case q.IsHoliday != nil && f.IsHoliday != *q.IsHoliday:
		return false
	}
	if q.Class != nil {
		st := l.students[f.StudentID]
		if st == nil || st.Standard != q.Class.Standard {
			return false
		}
		if q.Class.Section != nil && (st.Section == nil || *st.Section != *q.Class.Section) {
			return false
		}
	}
	return true
}

func (l *fakeLedger) Query(_ context.Context, q attendance.FactFilter) ([]*types.AttendanceFact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	var out []*types.AttendanceFact
	for _, f := range l.facts {
		if l.matchLocked(f, q) {
			out = append(out, cloneFact(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Day(), out[j].Day()
		if !di.Equal(dj) {
			if q.OrderAsc {
				return di.Before(dj)
			}
			return di.After(dj)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (l *fakeLedger) Page(ctx context.Context, q attendance.FactFilter) (attendance.Page, error) {
	all, err := l.Query(ctx, q)
	if err != nil {
		return attendance.Page{}, err
	}
	size := q.Size
	if size <= 0 {
		size = 20
	}
	start := q.Page * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return attendance.Page{
		Items:         all[start:end],
		Page:          q.Page,
		Size:          size,
		TotalElements: int64(len(all)),
		TotalPages:    (len(all) + size - 1) / size,
	}, nil
}

func (l *fakeLedger) Iterate(ctx context.Context, q attendance.FactFilter, batchSize int, fn func(batch []*types.AttendanceFact) error) error {
	all, err := l.Query(ctx, q)
	if err != nil {
		return err
	}
	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (l *fakeLedger) CountByClassAndStatus(_ context.Context, schoolID uuid.UUID, date time.Time) ([]attendance.ClassStatusCount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	type bucket struct {
		key    attendance.ClassKey
		status attendance.Status
	}
	counts := map[bucket]*attendance.ClassStatusCount{}
	var order []bucket
	d := attendance.NormalizeDate(date)
	for _, f := range l.facts {
		if f.SchoolID != schoolID || !f.Day().Equal(d) {
			continue
		}
		st := l.students[f.StudentID]
		b := bucket{key: st.ClassKey(), status: f.Status}
		c, ok := counts[b]
		if !ok {
			c = &attendance.ClassStatusCount{Standard: st.Standard, Section: st.Section, Status: f.Status}
			counts[b] = c
			order = append(order, b)
		}
		c.Count++
	}
	out := make([]attendance.ClassStatusCount, 0, len(order))
	for _, b := range order {
		out = append(out, *counts[b])
	}
	return out, nil
}

func (l *fakeLedger) seed(st *types.Student, date time.Time, status attendance.Status, markedBy *uuid.UUID) *types.AttendanceFact {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := &types.AttendanceFact{
		ID:                uuid.New(),
		StudentID:         st.ID,
		SchoolID:          st.SchoolID,
		Date:              datatypes.Date(attendance.NormalizeDate(date)),
		Status:            status,
		IsHoliday:         status == attendance.StatusHoliday,
		MarkedByTeacherID: markedBy,
	}
	l.facts[f.ID] = f
	return cloneFact(f)
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.facts)
}

func (l *fakeLedger) readCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

type fakeRoster struct {
	school   *types.School
	students map[uuid.UUID]*types.Student
	order    []uuid.UUID
	teachers map[uuid.UUID]*types.Teacher
	err      error
	calls    atomic.Int64
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{
		school:   &types.School{ID: uuid.New(), Name: "Green Valley", Code: "GV"},
		students: map[uuid.UUID]*types.Student{},
		teachers: map[uuid.UUID]*types.Teacher{},
	}
}

func (r *fakeRoster) addStudent(first, standard string, section *string, active bool) *types.Student {
	st := &types.Student{ID: uuid.New(), SchoolID: r.school.ID, FirstName: first, Standard: standard, Section: section, IsActive: active}
	r.students[st.ID] = st
	r.order = append(r.order, st.ID)
	return st
}

func (r *fakeRoster) addTeacher(first string, active bool) *types.Teacher {
	t := &types.Teacher{ID: uuid.New(), SchoolID: r.school.ID, FirstName: first, IsActive: active}
	r.teachers[t.ID] = t
	return t
}

func (r *fakeRoster) GetSchool(_ context.Context, id uuid.UUID) (*types.School, error) {
	if id == r.school.ID {
		return r.school, nil
	}
	return nil, nil
}

func (r *fakeRoster) GetStudent(_ context.Context, id uuid.UUID) (*types.Student, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.students[id], nil
}

func (r *fakeRoster) GetTeacher(_ context.Context, id uuid.UUID) (*types.Teacher, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.teachers[id], nil
}

func (r *fakeRoster) ListActiveStudents(_ context.Context, schoolID uuid.UUID) ([]*types.Student, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	var out []*types.Student
	for _, id := range r.order {
		st := r.students[id]
		if st.SchoolID == schoolID && st.IsActive {
			out = append(out, st)
		}
	}
	return out, nil
}

func (r *fakeRoster) ListActiveStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) ([]*types.Student, error) {
	all, err := r.ListActiveStudents(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	var out []*types.Student
	for _, st := range all {
		if st.Standard != standard {
			continue
		}
		if section != nil && (st.Section == nil || *st.Section != *section) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *fakeRoster) CountStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) (int64, error) {
	out, err := r.ListActiveStudentsByClass(ctx, schoolID, standard, section)
	return int64(len(out)), err
}

func (r *fakeRoster) ListStandards(ctx context.Context, schoolID uuid.UUID) ([]string, error) {
	all, err := r.ListActiveStudents(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, st := range all {
		if !seen[st.Standard] {
			seen[st.Standard] = true
			out = append(out, st.Standard)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeRoster) ListSections(ctx context.Context, schoolID uuid.UUID, standard string) ([]string, error) {
	all, err := r.ListActiveStudentsByClass(ctx, schoolID, standard, nil)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, st := range all {
		if st.Section != nil && !seen[*st.Section] {
			seen[*st.Section] = true
			out = append(out, *st.Section)
		}
	}
	sort.Strings(out)
	return out, nil
}

type publishedEvent struct {
	Type     realtime.EventType
	SchoolID uuid.UUID
	Data     any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, t realtime.EventType, schoolID uuid.UUID, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: t, SchoolID: schoolID, Data: data})
}

func (p *recordingPublisher) ofType(t realtime.EventType) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var errStoreDown = errors.New("connection refused")

func newServiceLayer(t *testing.T) (*cache.Layer, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(clockwork.NewFakeClock(), 0)
	t.Cleanup(func() { _ = store.Close() })
	return cache.NewLayer(store, cache.DefaultConfig(), nil, observability.New()), store
}

func strPtr(s string) *string { return &s }
