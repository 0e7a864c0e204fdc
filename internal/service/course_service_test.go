package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
)

type mockCourseRepo struct {
	courses    map[string]*models.Course
	detail     *models.CourseDetail
	nameErr    error
	codeErr    error
	classCount int

	created       *models.Course
	updated       *models.Course
	deletedID     string
	replacedID    string
	replacedWith  []string
	prereqs       map[string][]string
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	return nil, 0, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

func (m *mockCourseRepo) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockCourseRepo) NameAvailable(ctx context.Context, q repository.Queryer, name, excludeID string) error {
	return m.nameErr
}

func (m *mockCourseRepo) CodeAvailable(ctx context.Context, q repository.Queryer, code, excludeID string) error {
	return m.codeErr
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "crs-new"
	m.created = course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.updated = course
	return nil
}

func (m *mockCourseRepo) CountClassRooms(ctx context.Context, id string) (int, error) {
	return m.classCount, nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *mockCourseRepo) Prerequisites(ctx context.Context, id string) ([]models.Course, error) {
	prereqs := make([]models.Course, 0, len(m.prereqs[id]))
	for _, prereqID := range m.prereqs[id] {
		prereqs = append(prereqs, models.Course{ID: prereqID})
	}
	return prereqs, nil
}

func (m *mockCourseRepo) ReplacePrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error {
	m.replacedID = courseID
	m.replacedWith = prerequisiteIDs
	if m.prereqs == nil {
		m.prereqs = map[string][]string{}
	}
	m.prereqs[courseID] = prerequisiteIDs
	return nil
}

type mockCourseDeptRepo struct {
	dept *models.Department
}

func (m *mockCourseDeptRepo) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if m.dept == nil {
		return nil, sql.ErrNoRows
	}
	return m.dept, nil
}

type courseFixture struct {
	svc   *CourseService
	repo  *mockCourseRepo
	cache *memoryCacheRepo
}

func newCourseFixture(t *testing.T) (*courseFixture, func()) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	f := &courseFixture{
		repo: &mockCourseRepo{courses: map[string]*models.Course{
			"crs-1": {ID: "crs-1", Code: "MATH101", Name: "Algebra I", Status: models.CourseStatusActive},
			"crs-2": {ID: "crs-2", Code: "MATH201", Name: "Algebra II", Status: models.CourseStatusActive},
		}},
		cache: newMemoryCacheRepo(),
	}
	cacheSvc := NewCacheService(f.cache, nil, time.Minute, nil, true)
	f.svc = NewCourseService(
		f.repo,
		&mockCourseDeptRepo{dept: &models.Department{ID: "dept-1", Name: "Mathematics"}},
		repository.NewStore(sqlx.NewDb(db, "sqlmock")),
		cacheSvc,
		nil,
		nil,
	)
	return f, func() { db.Close() }
}

func TestCourseServiceCreateInvalidatesCatalog(t *testing.T) {
	f, cleanup := newCourseFixture(t)
	defer cleanup()

	course, err := f.svc.Create(context.Background(), CreateCourseRequest{
		Name:         "Geometry",
		Code:         "MATH110",
		DepartmentID: "dept-1",
		Credits:      3,
	})
	require.NoError(t, err)
	assert.Equal(t, "crs-new", course.ID)
	assert.Contains(t, f.cache.patterns, "catalog:*")
}

func TestCourseServiceSetPrerequisitesRejectsSelf(t *testing.T) {
	f, cleanup := newCourseFixture(t)
	defer cleanup()

	err := f.svc.SetPrerequisites(context.Background(), "crs-2", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-2"},
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
	assert.Empty(t, f.repo.replacedID)
}

func TestCourseServiceSetPrerequisitesRejectsDuplicates(t *testing.T) {
	f, cleanup := newCourseFixture(t)
	defer cleanup()

	err := f.svc.SetPrerequisites(context.Background(), "crs-2", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-1", "crs-1"},
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestCourseServiceSetPrerequisitesUnknownCourse(t *testing.T) {
	f, cleanup := newCourseFixture(t)
	defer cleanup()

	err := f.svc.SetPrerequisites(context.Background(), "crs-2", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-404"},
	})
	requireErrCode(t, err, "NOT_FOUND")
}

func TestCourseServiceSetPrerequisitesReplacesList(t *testing.T) {
	f, cleanup := newCourseFixture(t)
	defer cleanup()

	err := f.svc.SetPrerequisites(context.Background(), "crs-2", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "crs-2", f.repo.replacedID)
	assert.Equal(t, []string{"crs-1"}, f.repo.replacedWith)
}

func TestCourseServiceSetPrerequisitesRejectsCycle(t *testing.T) {
	f, cleanup := newCourseFixture(t)
	defer cleanup()

	err := f.svc.SetPrerequisites(context.Background(), "crs-2", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-1"},
	})
	require.NoError(t, err)

	err = f.svc.SetPrerequisites(context.Background(), "crs-1", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-2"},
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
	assert.NotEqual(t, "crs-1", f.repo.replacedID)
}

func TestCourseServiceSetPrerequisitesRejectsTransitiveCycle(t *testing.T) {
	f, cleanup := newCourseFixture(t)
	defer cleanup()
	f.repo.courses["crs-3"] = &models.Course{ID: "crs-3", Code: "MATH301", Name: "Algebra III", Status: models.CourseStatusActive}

	require.NoError(t, f.svc.SetPrerequisites(context.Background(), "crs-2", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-1"},
	}))
	require.NoError(t, f.svc.SetPrerequisites(context.Background(), "crs-3", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-2"},
	}))

	err := f.svc.SetPrerequisites(context.Background(), "crs-1", SetPrerequisitesRequest{
		PrerequisiteIDs: []string{"crs-3"},
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestCourseServiceDeleteWithSectionsRefused(t *testing.T) {
	f, cleanup := newCourseFixture(t)
	defer cleanup()
	f.repo.classCount = 2

	err := f.svc.Delete(context.Background(), "crs-1")
	requireErrCode(t, err, "PRECONDITION_FAILED")
	assert.Empty(t, f.repo.deletedID)
}
