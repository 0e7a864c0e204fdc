package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
)

type mockSemesterRepo struct {
	found        *models.Semester
	current      *models.Semester
	currentCalls int
	nameErr      error
	overlap      bool
	classCount   int

	created       *models.Semester
	updated       *models.Semester
	setCurrentID  string
	softDeletedID string
}

func (m *mockSemesterRepo) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error) {
	return nil, 0, nil
}

func (m *mockSemesterRepo) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if m.found == nil {
		return nil, sql.ErrNoRows
	}
	return m.found, nil
}

func (m *mockSemesterRepo) FindCurrent(ctx context.Context) (*models.Semester, error) {
	m.currentCalls++
	if m.current == nil {
		return nil, sql.ErrNoRows
	}
	return m.current, nil
}

func (m *mockSemesterRepo) NameAvailable(ctx context.Context, q repository.Queryer, name, excludeID string) error {
	return m.nameErr
}

func (m *mockSemesterRepo) OverlapExists(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	return m.overlap, nil
}

func (m *mockSemesterRepo) Create(ctx context.Context, semester *models.Semester) error {
	semester.ID = "sem-new"
	m.created = semester
	return nil
}

func (m *mockSemesterRepo) Update(ctx context.Context, semester *models.Semester) error {
	m.updated = semester
	return nil
}

func (m *mockSemesterRepo) SetCurrent(ctx context.Context, id string) error {
	m.setCurrentID = id
	return nil
}

func (m *mockSemesterRepo) CountClassRooms(ctx context.Context, id string) (int, error) {
	return m.classCount, nil
}

func (m *mockSemesterRepo) SoftDelete(ctx context.Context, id string) error {
	m.softDeletedID = id
	return nil
}

func newSemesterService(t *testing.T, repo *mockSemesterRepo) (*SemesterService, func()) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	svc := NewSemesterService(repo, repository.NewStore(sqlx.NewDb(db, "sqlmock")), nil, nil, nil)
	return svc, func() { db.Close() }
}

func TestSemesterServiceCreateSuccess(t *testing.T) {
	repo := &mockSemesterRepo{}
	svc, cleanup := newSemesterService(t, repo)
	defer cleanup()

	semester, err := svc.Create(context.Background(), CreateSemesterRequest{
		Name:      "2026 Fall",
		StartDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "sem-new", semester.ID)
	assert.Equal(t, "2026 Fall", repo.created.Name)
}

func TestSemesterServiceCreateEndBeforeStart(t *testing.T) {
	svc, cleanup := newSemesterService(t, &mockSemesterRepo{})
	defer cleanup()

	_, err := svc.Create(context.Background(), CreateSemesterRequest{
		Name:      "Backwards",
		StartDate: time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestSemesterServiceCreateOverlapRejected(t *testing.T) {
	svc, cleanup := newSemesterService(t, &mockSemesterRepo{overlap: true})
	defer cleanup()

	_, err := svc.Create(context.Background(), CreateSemesterRequest{
		Name:      "2026 Fall",
		StartDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC),
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
	assert.Contains(t, err.Error(), "overlap")
}

func TestSemesterServiceCreateDuplicateName(t *testing.T) {
	repo := &mockSemesterRepo{nameErr: fmt.Errorf("semesters.name: %w", repository.ErrDuplicate)}
	svc, cleanup := newSemesterService(t, repo)
	defer cleanup()

	_, err := svc.Create(context.Background(), CreateSemesterRequest{
		Name:      "2026 Fall",
		StartDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC),
	})
	requireErrCode(t, err, "CONFLICT")
}

func TestSemesterServiceDeleteWithClassSectionsRefused(t *testing.T) {
	repo := &mockSemesterRepo{
		found:      &models.Semester{ID: "sem-1", Name: "2026 Fall"},
		classCount: 3,
	}
	svc, cleanup := newSemesterService(t, repo)
	defer cleanup()

	err := svc.Delete(context.Background(), "sem-1")
	requireErrCode(t, err, "PRECONDITION_FAILED")
	assert.Empty(t, repo.softDeletedID)
}

func TestSemesterServiceDeleteSuccess(t *testing.T) {
	repo := &mockSemesterRepo{found: &models.Semester{ID: "sem-1"}}
	svc, cleanup := newSemesterService(t, repo)
	defer cleanup()

	err := svc.Delete(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Equal(t, "sem-1", repo.softDeletedID)
}

func TestSemesterServiceCurrentMissing(t *testing.T) {
	svc, cleanup := newSemesterService(t, &mockSemesterRepo{})
	defer cleanup()

	_, err := svc.Current(context.Background())
	requireErrCode(t, err, "NOT_FOUND")
}

func TestSemesterServiceSetCurrent(t *testing.T) {
	repo := &mockSemesterRepo{found: &models.Semester{ID: "sem-1", Name: "2026 Fall"}}
	svc, cleanup := newSemesterService(t, repo)
	defer cleanup()

	semester, err := svc.SetCurrent(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Equal(t, "sem-1", repo.setCurrentID)
	assert.Equal(t, "sem-1", semester.ID)
}

func TestSemesterServiceCurrentServedFromCache(t *testing.T) {
	repo := &mockSemesterRepo{current: &models.Semester{ID: "sem-1", Name: "2026 Fall", Status: models.SemesterStatusActive}}
	svc, cleanup := newSemesterService(t, repo)
	defer cleanup()
	svc.cache = NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)

	first, err := svc.Current(context.Background())
	require.NoError(t, err)
	second, err := svc.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.currentCalls)
}

func TestSemesterServiceSetCurrentInvalidatesCache(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	repo := &mockSemesterRepo{
		found:   &models.Semester{ID: "sem-2", Name: "2027 Spring"},
		current: &models.Semester{ID: "sem-1", Name: "2026 Fall"},
	}
	svc, cleanup := newSemesterService(t, repo)
	defer cleanup()
	svc.cache = NewCacheService(cacheRepo, nil, time.Minute, nil, true)

	_, err := svc.Current(context.Background())
	require.NoError(t, err)

	_, err = svc.SetCurrent(context.Background(), "sem-2")
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.patterns, "catalog:semester:*")
}
