package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
)

const sessionColumns = "id, starts_at, duration_min, location_id, modality_id, instructor_id, substitute_id, capacity, kind, created_at, updated_at"

// SessionRepository handles persistence of class sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions within the filter window ordered by start time.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSession, int, error) {
	base := "FROM class_sessions WHERE starts_at >= $1 AND starts_at < $2"
	args := []interface{}{filter.From, filter.To}

	var conditions []string
	if filter.LocationID != "" {
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", len(args)+1))
		args = append(args, filter.LocationID)
	}
	if filter.ModalityID != "" {
		conditions = append(conditions, fmt.Sprintf("modality_id = $%d", len(args)+1))
		args = append(args, filter.ModalityID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY starts_at ASC, id ASC LIMIT %d OFFSET %d", sessionColumns, base, size, offset)
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// ListAvailable returns bookable sessions with seat accounting: not cancelled,
// future start, and active enrollments strictly below capacity.
func (r *SessionRepository) ListAvailable(ctx context.Context, filter models.SessionFilter) ([]models.AvailableSession, error) {
	base := `FROM class_sessions s
LEFT JOIN (
    SELECT session_id, COUNT(*) AS active_count FROM enrollments
    WHERE status IN ('SCHEDULED', 'PRESENT', 'ABSENT_WITH_MAKEUP')
    GROUP BY session_id
) a ON a.session_id = s.id
WHERE s.kind <> 'CANCELLED' AND s.starts_at >= $1 AND s.starts_at < $2 AND s.capacity > COALESCE(a.active_count, 0)`
	args := []interface{}{filter.From, filter.To}

	var conditions []string
	if filter.LocationID != "" {
		conditions = append(conditions, fmt.Sprintf("s.location_id = $%d", len(args)+1))
		args = append(args, filter.LocationID)
	}
	if filter.ModalityID != "" {
		conditions = append(conditions, fmt.Sprintf("s.modality_id = $%d", len(args)+1))
		args = append(args, filter.ModalityID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT s.id, s.starts_at, s.duration_min, s.location_id, s.modality_id, s.instructor_id, s.substitute_id, s.capacity, s.kind, s.created_at, s.updated_at,
COALESCE(a.active_count, 0) AS active_count,
s.capacity - COALESCE(a.active_count, 0) AS seats_remaining
%s ORDER BY s.starts_at ASC, s.id ASC`, base)

	var sessions []models.AvailableSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list available sessions: %w", err)
	}
	return sessions, nil
}

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE id = $1", sessionColumns)
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveCount counts enrollments still occupying a seat for the session.
func (r *SessionRepository) ActiveCount(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE session_id = $1 AND status IN ('SCHEDULED', 'PRESENT', 'ABSENT_WITH_MAKEUP')`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// FindInstructorOverlap returns non-cancelled sessions of the instructor that
// overlap the given window.
func (r *SessionRepository) FindInstructorOverlap(ctx context.Context, instructorID string, from, to time.Time, excludeID string) ([]models.ClassSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_sessions
WHERE instructor_id = $1 AND kind <> 'CANCELLED'
AND starts_at < $3 AND starts_at + (duration_min || ' minutes')::interval > $2`, sessionColumns)
	args := []interface{}{instructorID, from, to}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("find instructor overlap: %w", err)
	}
	return sessions, nil
}

// Create persists a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.ClassSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Kind == "" {
		session.Kind = models.SessionKindRegular
	}
	const query = `INSERT INTO class_sessions (id, starts_at, duration_min, location_id, modality_id, instructor_id, substitute_id, capacity, kind, created_at, updated_at)
        VALUES (:id, :starts_at, :duration_min, :location_id, :modality_id, :instructor_id, :substitute_id, :capacity, :kind, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateKind changes the session kind, used for cancellation.
func (r *SessionRepository) UpdateKind(ctx context.Context, id string, kind models.SessionKind) error {
	const query = `UPDATE class_sessions SET kind = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, kind, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session kind: %w", err)
	}
	return nil
}

// UpdateCapacity sets a new capacity. Existing enrollments are never evicted;
// a session below its active count simply refuses new bookings.
func (r *SessionRepository) UpdateCapacity(ctx context.Context, id string, capacity int) error {
	const query = `UPDATE class_sessions SET capacity = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, capacity, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session capacity: %w", err)
	}
	return nil
}

// Reschedule moves the session start and duration.
func (r *SessionRepository) Reschedule(ctx context.Context, id string, startsAt time.Time, durationMin int) error {
	const query = `UPDATE class_sessions SET starts_at = $2, duration_min = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, startsAt, durationMin, time.Now().UTC()); err != nil {
		return fmt.Errorf("reschedule session: %w", err)
	}
	return nil
}

// Delete removes a session row. Callers must first verify that no active
// enrollments reference it.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM class_sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
