package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
)

type mockClassRoomRepo struct {
	found     *models.ClassRoom
	detail    *models.ClassRoomDetail
	nameTaken bool
	enrolled  int

	created   *models.ClassRoom
	updated   *models.ClassRoom
	deletedID string
}

func (m *mockClassRoomRepo) List(ctx context.Context, filter models.ClassRoomFilter) ([]models.ClassRoomDetail, int, error) {
	return nil, 0, nil
}

func (m *mockClassRoomRepo) FindByID(ctx context.Context, q repository.Queryer, id string) (*models.ClassRoom, error) {
	if m.found == nil {
		return nil, sql.ErrNoRows
	}
	return m.found, nil
}

func (m *mockClassRoomRepo) FindDetailByID(ctx context.Context, id string) (*models.ClassRoomDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockClassRoomRepo) NameTaken(ctx context.Context, courseID, semesterID, name, excludeID string) (bool, error) {
	return m.nameTaken, nil
}

func (m *mockClassRoomRepo) CountActiveEnrollments(ctx context.Context, q repository.Queryer, id string) (int, error) {
	return m.enrolled, nil
}

func (m *mockClassRoomRepo) Create(ctx context.Context, class *models.ClassRoom) error {
	class.ID = "class-new"
	m.created = class
	return nil
}

func (m *mockClassRoomRepo) Update(ctx context.Context, class *models.ClassRoom) error {
	m.updated = class
	return nil
}

func (m *mockClassRoomRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

type mockCourseLookup struct {
	course *models.Course
}

func (m *mockCourseLookup) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

type mockRoomLookup struct {
	room *models.Room
}

func (m *mockRoomLookup) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if m.room == nil {
		return nil, sql.ErrNoRows
	}
	return m.room, nil
}

type classRoomFixture struct {
	svc   *ClassRoomService
	repo  *mockClassRoomRepo
	rooms *mockRoomLookup
}

func newClassRoomFixture(t *testing.T) (*classRoomFixture, func()) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	f := &classRoomFixture{
		repo:  &mockClassRoomRepo{},
		rooms: &mockRoomLookup{room: &models.Room{ID: "room-1", Capacity: 40}},
	}
	f.svc = NewClassRoomService(
		f.repo,
		&mockCourseLookup{course: &models.Course{ID: "crs-1", Code: "MATH101", Status: models.CourseStatusActive}},
		&mockEnrollmentSemesterRepo{semester: &models.Semester{ID: "sem-1"}},
		f.rooms,
		repository.NewStore(sqlx.NewDb(db, "sqlmock")),
		nil,
		nil,
	)
	return f, func() { db.Close() }
}

func validCreateClassRequest() CreateClassRoomRequest {
	return CreateClassRoomRequest{
		CourseID:      "crs-1",
		SemesterID:    "sem-1",
		Name:          "Section A",
		DayOfWeek:     "MONDAY",
		StartTime:     "08:00",
		EndTime:       "09:30",
		MaxEnrollment: 30,
	}
}

func TestClassRoomServiceCreateSuccess(t *testing.T) {
	f, cleanup := newClassRoomFixture(t)
	defer cleanup()

	class, err := f.svc.Create(context.Background(), validCreateClassRequest())
	require.NoError(t, err)
	assert.Equal(t, "class-new", class.ID)
	assert.Equal(t, "Section A", f.repo.created.Name)
}

func TestClassRoomServiceCreateStartAfterEnd(t *testing.T) {
	f, cleanup := newClassRoomFixture(t)
	defer cleanup()

	req := validCreateClassRequest()
	req.StartTime = "10:00"
	req.EndTime = "09:00"
	_, err := f.svc.Create(context.Background(), req)
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestClassRoomServiceCreateRoomTooSmall(t *testing.T) {
	f, cleanup := newClassRoomFixture(t)
	defer cleanup()
	f.rooms.room.Capacity = 20

	req := validCreateClassRequest()
	roomID := "room-1"
	req.RoomID = &roomID
	_, err := f.svc.Create(context.Background(), req)
	requireErrCode(t, err, "VALIDATION_ERROR")
	assert.Contains(t, err.Error(), "capacity")
}

func TestClassRoomServiceCreateDuplicateSectionName(t *testing.T) {
	f, cleanup := newClassRoomFixture(t)
	defer cleanup()
	f.repo.nameTaken = true

	_, err := f.svc.Create(context.Background(), validCreateClassRequest())
	requireErrCode(t, err, "CONFLICT")
}

func TestClassRoomServiceUpdateCannotShrinkBelowHeadcount(t *testing.T) {
	f, cleanup := newClassRoomFixture(t)
	defer cleanup()
	f.repo.found = &models.ClassRoom{ID: "class-1", CourseID: "crs-1", SemesterID: "sem-1", MaxEnrollment: 30}
	f.repo.enrolled = 25

	_, err := f.svc.Update(context.Background(), "class-1", UpdateClassRoomRequest{
		Name:          "Section A",
		DayOfWeek:     "MONDAY",
		StartTime:     "08:00",
		EndTime:       "09:30",
		MaxEnrollment: 20,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
	assert.Nil(t, f.repo.updated)
}

func TestClassRoomServiceDeleteWithEnrollmentsRefused(t *testing.T) {
	f, cleanup := newClassRoomFixture(t)
	defer cleanup()
	f.repo.found = &models.ClassRoom{ID: "class-1"}
	f.repo.enrolled = 1

	err := f.svc.Delete(context.Background(), "class-1")
	requireErrCode(t, err, "PRECONDITION_FAILED")
	assert.Empty(t, f.repo.deletedID)
}

func TestClassRoomServiceDeleteEmptySection(t *testing.T) {
	f, cleanup := newClassRoomFixture(t)
	defer cleanup()
	f.repo.found = &models.ClassRoom{ID: "class-1"}

	err := f.svc.Delete(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "class-1", f.repo.deletedID)
}
