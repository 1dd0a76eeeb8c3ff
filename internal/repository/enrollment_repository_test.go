package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "member_id", "status", "created_at", "cancelled_at"}).
		AddRow("enr-1", "ses-1", "m1", models.EnrollmentStatusScheduled, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, member_id, status, created_at, cancelled_at FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "m1", enrollment.MemberID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("ses-1", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("ses-1", "m2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsActive(context.Background(), "ses-1", "m1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsActive(context.Background(), "ses-1", "m2")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{SessionID: "ses-1", MemberID: "m1"}
	err := repo.Create(context.Background(), enrollment)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusScheduled, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE enrollments SET status = 'CANCELLED'").
		WithArgs("enr-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE enrollments SET status = 'CANCELLED'").
		WithArgs("enr-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	freed, err := repo.Cancel(context.Background(), "enr-1", now)
	require.NoError(t, err)
	assert.True(t, freed)

	// the guarded update makes repeat cancellation a no-op
	freed, err = repo.Cancel(context.Background(), "enr-1", now)
	require.NoError(t, err)
	assert.False(t, freed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusPresent).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusPresent)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"enrollment_id", "member_id", "member_name", "status", "created_at"}).
		AddRow("enr-1", "m1", "Ana Souza", models.EnrollmentStatusScheduled, time.Now()).
		AddRow("enr-2", "m2", "Bruno Lima", models.EnrollmentStatusCancelled, time.Now())
	mock.ExpectQuery("FROM enrollments e").
		WithArgs("ses-1").
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "ses-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Ana Souza", roster[0].MemberName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByMember(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "member_id", "status", "created_at", "cancelled_at"}).
		AddRow("enr-2", "ses-2", "m1", models.EnrollmentStatusScheduled, time.Now(), nil).
		AddRow("enr-1", "ses-1", "m1", models.EnrollmentStatusCancelled, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, member_id, status, created_at, cancelled_at FROM enrollments WHERE member_id = $1 ORDER BY created_at DESC")).
		WithArgs("m1").
		WillReturnRows(rows)

	enrollments, err := repo.ListByMember(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
