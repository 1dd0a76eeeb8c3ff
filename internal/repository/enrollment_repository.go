package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
)

const enrollmentColumns = "id, session_id, member_id, status, created_at, cancelled_at"

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive checks whether the member already holds a seat in the session.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, sessionID, memberID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE session_id = $1 AND member_id = $2 AND status IN ('SCHEDULED', 'PRESENT', 'ABSENT_WITH_MAKEUP') LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, sessionID, memberID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusScheduled
	}
	const query = `INSERT INTO enrollments (id, session_id, member_id, status, created_at, cancelled_at)
        VALUES (:id, :session_id, :member_id, :status, :created_at, :cancelled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Cancel frees the seat held by the enrollment. It reports false when the
// enrollment was not in a seat-holding state, which keeps cancellation
// idempotent at the storage layer.
func (r *EnrollmentRepository) Cancel(ctx context.Context, id string, cancelledAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = 'CANCELLED', cancelled_at = $2 WHERE id = $1 AND status IN ('SCHEDULED', 'PRESENT', 'ABSENT_WITH_MAKEUP')`
	result, err := r.db.ExecContext(ctx, query, id, cancelledAt)
	if err != nil {
		return false, fmt.Errorf("cancel enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel enrollment rows: %w", err)
	}
	return affected > 0, nil
}

// UpdateStatus records an attendance outcome for the enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// Roster lists all enrollments for a session joined with member identity,
// including historical records on cancelled sessions.
func (r *EnrollmentRepository) Roster(ctx context.Context, sessionID string) ([]models.RosterRow, error) {
	const query = `SELECT e.id AS enrollment_id, e.member_id, u.full_name AS member_name, e.status, e.created_at
        FROM enrollments e
        LEFT JOIN users u ON u.id = e.member_id
        WHERE e.session_id = $1
        ORDER BY e.created_at ASC, e.id ASC`
	var rows []models.RosterRow
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session roster: %w", err)
	}
	return rows, nil
}

// ListByMember returns a member's enrollments, newest first.
func (r *EnrollmentRepository) ListByMember(ctx context.Context, memberID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE member_id = $1 ORDER BY created_at DESC", enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, memberID); err != nil {
		return nil, fmt.Errorf("list member enrollments: %w", err)
	}
	return enrollments, nil
}
