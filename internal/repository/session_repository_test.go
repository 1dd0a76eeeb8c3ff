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

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "starts_at", "duration_min", "location_id", "modality_id", "instructor_id", "substitute_id", "capacity", "kind", "created_at", "updated_at"})
}

func TestSessionRepositoryList(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	from := time.Now().UTC()
	to := from.Add(24 * time.Hour)

	rows := sessionRows().
		AddRow("ses-1", from.Add(time.Hour), 60, "loc-1", "mod-1", "staff-1", nil, 10, models.SessionKindRegular, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, starts_at, duration_min, location_id, modality_id, instructor_id, substitute_id, capacity, kind, created_at, updated_at FROM class_sessions WHERE starts_at >= $1 AND starts_at < $2 AND location_id = $3 ORDER BY starts_at ASC, id ASC LIMIT 50 OFFSET 0")).
		WithArgs(from, to, "loc-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_sessions WHERE starts_at >= $1 AND starts_at < $2 AND location_id = $3")).
		WithArgs(from, to, "loc-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sessions, total, err := repo.List(context.Background(), models.SessionFilter{From: from, To: to, LocationID: "loc-1"})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListAvailable(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	from := time.Now().UTC()
	to := from.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "starts_at", "duration_min", "location_id", "modality_id", "instructor_id", "substitute_id", "capacity", "kind", "created_at", "updated_at", "active_count", "seats_remaining"}).
		AddRow("ses-1", from.Add(time.Hour), 60, "loc-1", "mod-1", "staff-1", nil, 10, models.SessionKindRegular, time.Now(), time.Now(), 7, 3)
	mock.ExpectQuery("FROM class_sessions s").
		WithArgs(from, to).
		WillReturnRows(rows)

	sessions, err := repo.ListAvailable(context.Background(), models.SessionFilter{From: from, To: to})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 7, sessions[0].ActiveCount)
	assert.Equal(t, 3, sessions[0].SeatsRemaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryActiveCount(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE session_id = $1 AND status IN ('SCHEDULED', 'PRESENT', 'ABSENT_WITH_MAKEUP')")).
		WithArgs("ses-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.ActiveCount(context.Background(), "ses-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFindInstructorOverlap(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	from := time.Now().UTC()
	to := from.Add(time.Hour)

	t.Run("without exclusion", func(t *testing.T) {
		rows := sessionRows().
			AddRow("ses-1", from, 60, "loc-1", "mod-1", "staff-1", nil, 10, models.SessionKindRegular, time.Now(), time.Now())
		mock.ExpectQuery("WHERE instructor_id = ").
			WithArgs("staff-1", from, to).
			WillReturnRows(rows)

		overlaps, err := repo.FindInstructorOverlap(context.Background(), "staff-1", from, to, "")
		require.NoError(t, err)
		assert.Len(t, overlaps, 1)
	})

	t.Run("excluding the rescheduled session", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("AND id <> $4")).
			WithArgs("staff-1", from, to, "ses-1").
			WillReturnRows(sessionRows())

		overlaps, err := repo.FindInstructorOverlap(context.Background(), "staff-1", from, to, "ses-1")
		require.NoError(t, err)
		assert.Empty(t, overlaps)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO class_sessions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.ClassSession{
		StartsAt:     time.Now().UTC().Add(24 * time.Hour),
		DurationMin:  60,
		LocationID:   "loc-1",
		ModalityID:   "mod-1",
		InstructorID: "staff-1",
		Capacity:     10,
	}
	err := repo.Create(context.Background(), session)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionKindRegular, session.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateKind(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_sessions SET kind = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("ses-1", models.SessionKindCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateKind(context.Background(), "ses-1", models.SessionKindCancelled)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_sessions WHERE id = $1")).
		WithArgs("ses-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "ses-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
