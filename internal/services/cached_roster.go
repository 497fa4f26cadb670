package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/cache"
	types "github.com/yungbote/attendance-backend/internal/domain"
)

// errRosterMiss keeps unknown ids out of the cache.
var errRosterMiss = errors.New("roster entry not found")

// CachedRoster is a read-through RosterProvider over the roster cache regions.
type CachedRoster struct {
	inner RosterProvider
	layer *cache.Layer
}

var _ RosterProvider = (*CachedRoster)(nil)

func NewCachedRoster(inner RosterProvider, layer *cache.Layer) *CachedRoster {
	return &CachedRoster{inner: inner, layer: layer}
}

func lookup[T any](ctx context.Context, layer *cache.Layer, k cache.Key, get func(context.Context) (*T, error)) (*T, error) {
	out, err := cache.GetOrCompute(ctx, layer, k, func(ctx context.Context) (*T, error) {
		v, err := get(ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, errRosterMiss
		}
		return v, nil
	})
	if errors.Is(err, errRosterMiss) {
		return nil, nil
	}
	return out, err
}

// GetSchool is not cached; school rows are read rarely and only by the warm-up path.
func (c *CachedRoster) GetSchool(ctx context.Context, id uuid.UUID) (*types.School, error) {
	return c.inner.GetSchool(ctx, id)
}

func (c *CachedRoster) GetStudent(ctx context.Context, id uuid.UUID) (*types.Student, error) {
	return lookup(ctx, c.layer, cache.StudentProfileKey(id), func(ctx context.Context) (*types.Student, error) {
		return c.inner.GetStudent(ctx, id)
	})
}

func (c *CachedRoster) GetTeacher(ctx context.Context, id uuid.UUID) (*types.Teacher, error) {
	return lookup(ctx, c.layer, cache.TeacherProfileKey(id), func(ctx context.Context) (*types.Teacher, error) {
		return c.inner.GetTeacher(ctx, id)
	})
}

func (c *CachedRoster) ListActiveStudents(ctx context.Context, schoolID uuid.UUID) ([]*types.Student, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.ActiveStudentsKey(schoolID), func(ctx context.Context) ([]*types.Student, error) {
		return c.inner.ListActiveStudents(ctx, schoolID)
	})
}

func (c *CachedRoster) ListActiveStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) ([]*types.Student, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.ClassRosterKey(schoolID, standard, section), func(ctx context.Context) ([]*types.Student, error) {
		return c.inner.ListActiveStudentsByClass(ctx, schoolID, standard, section)
	})
}

func (c *CachedRoster) CountStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) (int64, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.ClassCountKey(schoolID, standard, section), func(ctx context.Context) (int64, error) {
		return c.inner.CountStudentsByClass(ctx, schoolID, standard, section)
	})
}

func (c *CachedRoster) ListStandards(ctx context.Context, schoolID uuid.UUID) ([]string, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.StandardsKey(schoolID), func(ctx context.Context) ([]string, error) {
		return c.inner.ListStandards(ctx, schoolID)
	})
}

func (c *CachedRoster) ListSections(ctx context.Context, schoolID uuid.UUID, standard string) ([]string, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.SectionsKey(schoolID, standard), func(ctx context.Context) ([]string, error) {
		return c.inner.ListSections(ctx, schoolID, standard)
	})
}

// InvalidateSchool drops the school's class and configuration entries. Profile regions are
// keyed by person only, so they are cleared whole.
func (c *CachedRoster) InvalidateSchool(ctx context.Context, schoolID uuid.UUID) {
	c.layer.Invalidate(ctx, cache.RegionClassInformation, cache.SchoolScope(schoolID))
	c.layer.Invalidate(ctx, cache.RegionSchoolConfiguration, cache.SchoolScope(schoolID))
	c.layer.InvalidateAll(ctx, cache.RegionStudentProfiles, cache.RegionTeacherProfiles)
}
