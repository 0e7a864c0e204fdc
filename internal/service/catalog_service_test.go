package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
	appErrors "github.com/campuskit/school-api/pkg/errors"
)

type mockCatalogCourseRepo struct {
	courses    []models.CourseDetail
	total      int
	listCalls  int
	lastFilter models.CourseFilter
}

func (m *mockCatalogCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	m.listCalls++
	m.lastFilter = filter
	return m.courses, m.total, nil
}

type memoryCacheRepo struct {
	entries  map[string]interface{}
	patterns []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string]interface{}{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	value, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *CatalogPage:
		*d = value.(CatalogPage)
	case *models.Semester:
		*d = value.(models.Semester)
	}
	return nil
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	switch v := value.(type) {
	case *CatalogPage:
		m.entries[key] = *v
	case *models.Semester:
		m.entries[key] = *v
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

func TestCatalogServiceListsOnlyActiveCourses(t *testing.T) {
	repo := &mockCatalogCourseRepo{
		courses: []models.CourseDetail{{Course: models.Course{ID: "crs-1", Code: "MATH101"}}},
		total:   1,
	}
	svc := NewCatalogService(repo, nil, 0, nil)

	page, err := svc.List(context.Background(), models.CourseFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Courses, 1)
	assert.Equal(t, models.CourseStatusActive, repo.lastFilter.Status)
	assert.Equal(t, 1, page.Pagination.TotalCount)
}

func TestCatalogServiceServesSecondReadFromCache(t *testing.T) {
	repo := &mockCatalogCourseRepo{
		courses: []models.CourseDetail{{Course: models.Course{ID: "crs-1", Code: "MATH101"}}},
		total:   1,
	}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewCatalogService(repo, cache, time.Minute, nil)

	filter := models.CourseFilter{Page: 1, PageSize: 10}
	first, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	second, err := svc.List(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, first.Courses, second.Courses)
}

func TestCatalogServiceDistinctFiltersUseDistinctKeys(t *testing.T) {
	repo := &mockCatalogCourseRepo{total: 0}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewCatalogService(repo, cache, time.Minute, nil)

	_, err := svc.List(context.Background(), models.CourseFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), models.CourseFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.listCalls)
}

func TestCatalogKeyEncodesRequiredFlag(t *testing.T) {
	required := true
	withFlag := catalogKey(models.CourseFilter{Required: &required, Page: 1, PageSize: 10})
	without := catalogKey(models.CourseFilter{Page: 1, PageSize: 10})

	assert.Contains(t, withFlag, ":true:")
	assert.Contains(t, without, ":any:")
	assert.NotEqual(t, withFlag, without)
}

func TestCacheServiceDisabledIsPassive(t *testing.T) {
	cache := NewCacheService(nil, nil, time.Minute, nil, false)

	var page CatalogPage
	hit, err := cache.Get(context.Background(), "catalog:courses:x", &page)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, cache.Set(context.Background(), "catalog:courses:x", &page, time.Minute))
	require.NoError(t, cache.Invalidate(context.Background(), "catalog:*"))
}
