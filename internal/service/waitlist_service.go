package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/config"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

type waitlistRepository interface {
	FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	Exists(ctx context.Context, sessionID, memberID string) (bool, error)
	Create(ctx context.Context, entry *models.WaitlistEntry) error
	Head(ctx context.Context, sessionID string) (*models.WaitlistEntry, error)
	Delete(ctx context.Context, id string) (bool, error)
	CountAhead(ctx context.Context, entry *models.WaitlistEntry) (int, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.WaitlistEntry, error)
	ListByMember(ctx context.Context, memberID string) ([]models.WaitlistEntry, error)
}

// WaitlistService owns the per-session FIFO queue. Positions are derived from
// enqueue order on every read, never stored.
type WaitlistService struct {
	waitlist waitlistRepository
	locks    *SessionLocks
	metrics  *MetricsService
	cfg      config.BookingConfig
	logger   *zap.Logger
}

// NewWaitlistService constructs WaitlistService.
func NewWaitlistService(waitlist waitlistRepository, locks *SessionLocks, metrics *MetricsService, cfg config.BookingConfig, logger *zap.Logger) *WaitlistService {
	if locks == nil {
		locks = NewSessionLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{waitlist: waitlist, locks: locks, metrics: metrics, cfg: cfg, logger: logger}
}

// IsQueued reports whether the member already sits in the session queue.
func (s *WaitlistService) IsQueued(ctx context.Context, sessionID, memberID string) (bool, error) {
	queued, err := s.waitlist.Exists(ctx, sessionID, memberID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check waitlist")
	}
	return queued, nil
}

// Enqueue appends the member to the session queue. Callers must already hold
// the session lock and have verified the member holds no seat.
func (s *WaitlistService) Enqueue(ctx context.Context, sessionID, memberID string) (*models.WaitlistEntry, error) {
	queued, err := s.waitlist.Exists(ctx, sessionID, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check waitlist")
	}
	if queued {
		return nil, appErrors.Clone(appErrors.ErrAlreadyQueued, "")
	}
	entry := &models.WaitlistEntry{SessionID: sessionID, MemberID: memberID}
	if err := s.waitlist.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue")
	}
	return entry, nil
}

// PromoteNext dequeues and returns the head of the session queue, or nil when
// the queue is empty. Callers must already hold the session lock; the seat the
// promoted member takes is created by the caller in the same critical section.
func (s *WaitlistService) PromoteNext(ctx context.Context, sessionID string) (*models.WaitlistEntry, error) {
	head, err := s.waitlist.Head(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read waitlist head")
	}
	removed, err := s.waitlist.Delete(ctx, head.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dequeue")
	}
	if !removed {
		return nil, nil
	}
	if s.metrics != nil {
		s.metrics.RecordPromotion()
	}
	s.logger.Info("waitlist entry promoted",
		zap.String("session_id", sessionID),
		zap.String("entry_id", head.ID),
		zap.String("member_id", head.MemberID))
	return head, nil
}

// Withdraw removes a waitlist entry. Members may withdraw their own entries;
// staff may withdraw any. Withdrawal never triggers promotions.
func (s *WaitlistService) Withdraw(ctx context.Context, entryID string, actor *models.JWTClaims) error {
	entry, err := s.waitlist.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if err := s.authorize(entry.MemberID, actor); err != nil {
		return err
	}

	release, err := s.locks.Acquire(ctx, entry.SessionID, s.cfg.LockRetries, s.cfg.LockRetryWait)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLockTimeout()
		}
		return err
	}
	defer release()

	removed, err := s.waitlist.Delete(ctx, entryID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
	}
	return nil
}

// PositionOf computes the 1-based queue position of an entry.
func (s *WaitlistService) PositionOf(ctx context.Context, entryID string, actor *models.JWTClaims) (*models.WaitlistPosition, error) {
	entry, err := s.waitlist.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if err := s.authorize(entry.MemberID, actor); err != nil {
		return nil, err
	}
	ahead, err := s.waitlist.CountAhead(ctx, entry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute position")
	}
	return &models.WaitlistPosition{EntryID: entry.ID, SessionID: entry.SessionID, Position: ahead + 1}, nil
}

// ListBySession returns a session queue in promotion order.
func (s *WaitlistService) ListBySession(ctx context.Context, sessionID string) ([]models.WaitlistEntry, error) {
	entries, err := s.waitlist.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	return entries, nil
}

// ListForMember returns the member's own queue entries.
func (s *WaitlistService) ListForMember(ctx context.Context, memberID string) ([]models.WaitlistEntry, error) {
	entries, err := s.waitlist.ListByMember(ctx, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	return entries, nil
}

func (s *WaitlistService) authorize(memberID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if actor.UserID == memberID || actor.Role.Staff() {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "cannot act on another member's waitlist entry")
}
