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

const waitlistColumns = "id, session_id, member_id, enqueued_at"

// WaitlistRepository handles persistence of waitlist entries.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// FindByID returns a waitlist entry by its ID.
func (r *WaitlistRepository) FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM waitlist_entries WHERE id = $1", waitlistColumns)
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Exists checks whether the member is already queued for the session.
func (r *WaitlistRepository) Exists(ctx context.Context, sessionID, memberID string) (bool, error) {
	const query = `SELECT 1 FROM waitlist_entries WHERE session_id = $1 AND member_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, sessionID, memberID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check waitlist entry: %w", err)
	}
	return true, nil
}

// Create appends a new waitlist entry.
func (r *WaitlistRepository) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO waitlist_entries (id, session_id, member_id, enqueued_at)
        VALUES (:id, :session_id, :member_id, :enqueued_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create waitlist entry: %w", err)
	}
	return nil
}

// Head returns the entry with the earliest enqueue timestamp for the session,
// ties broken by lower entry id. Returns sql.ErrNoRows when the queue is empty.
func (r *WaitlistRepository) Head(ctx context.Context, sessionID string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM waitlist_entries WHERE session_id = $1 ORDER BY enqueued_at ASC, id ASC LIMIT 1", waitlistColumns)
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, sessionID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes an entry, reporting whether a row was removed.
func (r *WaitlistRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM waitlist_entries WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete waitlist entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete waitlist entry rows: %w", err)
	}
	return affected > 0, nil
}

// CountAhead counts entries for the same session enqueued strictly before the
// given entry, ties broken by entry id. The 1-based rank is this count plus one.
func (r *WaitlistRepository) CountAhead(ctx context.Context, entry *models.WaitlistEntry) (int, error) {
	const query = `SELECT COUNT(*) FROM waitlist_entries WHERE session_id = $1 AND (enqueued_at < $2 OR (enqueued_at = $2 AND id < $3))`
	var count int
	if err := r.db.GetContext(ctx, &count, query, entry.SessionID, entry.EnqueuedAt, entry.ID); err != nil {
		return 0, fmt.Errorf("count waitlist rank: %w", err)
	}
	return count, nil
}

// ListBySession returns the session queue in promotion order.
func (r *WaitlistRepository) ListBySession(ctx context.Context, sessionID string) ([]models.WaitlistEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM waitlist_entries WHERE session_id = $1 ORDER BY enqueued_at ASC, id ASC", waitlistColumns)
	var entries []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session waitlist: %w", err)
	}
	return entries, nil
}

// ListByMember returns a member's waitlist entries, oldest first.
func (r *WaitlistRepository) ListByMember(ctx context.Context, memberID string) ([]models.WaitlistEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM waitlist_entries WHERE member_id = $1 ORDER BY enqueued_at ASC", waitlistColumns)
	var entries []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, memberID); err != nil {
		return nil, fmt.Errorf("list member waitlist: %w", err)
	}
	return entries, nil
}
