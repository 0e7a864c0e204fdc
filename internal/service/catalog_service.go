package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/school-api/internal/models"
	appErrors "github.com/campuskit/school-api/pkg/errors"
)

type catalogCourseRepo interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
}

// CatalogPage is a cached slice of the public course catalog.
type CatalogPage struct {
	Courses    []models.CourseDetail `json:"courses"`
	Pagination *models.Pagination    `json:"pagination"`
}

// CatalogService serves the public course catalog with a read-through cache.
// Only ACTIVE courses are listed. Course writes invalidate the catalog:* keys.
type CatalogService struct {
	courses catalogCourseRepo
	cache   *CacheService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(courses catalogCourseRepo, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{courses: courses, cache: cache, ttl: ttl, logger: logger}
}

// List returns the catalog page for the filter, served from cache when warm.
func (s *CatalogService) List(ctx context.Context, filter models.CourseFilter) (*CatalogPage, error) {
	filter.Status = models.CourseStatusActive

	key := catalogKey(filter)
	if s.cache != nil {
		var cached CatalogPage
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course catalog")
	}

	page := &CatalogPage{
		Courses:    courses,
		Pagination: paginationFor(filter.Page, filter.PageSize, total),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, page, s.ttl); err != nil {
			s.logger.Warn("failed to cache catalog page", zap.String("key", key), zap.Error(err))
		}
	}
	return page, nil
}

func catalogKey(filter models.CourseFilter) string {
	required := "any"
	if filter.Required != nil {
		required = fmt.Sprintf("%t", *filter.Required)
	}
	return fmt.Sprintf("catalog:courses:%s:%s:%s:%d:%d:%s:%s",
		filter.Search, filter.DepartmentID, required,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}
