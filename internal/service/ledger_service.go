package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/config"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

type ledgerEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, sessionID, memberID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Cancel(ctx context.Context, id string, cancelledAt time.Time) (bool, error)
	ListByMember(ctx context.Context, memberID string) ([]models.Enrollment, error)
}

type sessionSeatReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	ActiveCount(ctx context.Context, sessionID string) (int, error)
}

type waitlistQueue interface {
	IsQueued(ctx context.Context, sessionID, memberID string) (bool, error)
	Enqueue(ctx context.Context, sessionID, memberID string) (*models.WaitlistEntry, error)
	PromoteNext(ctx context.Context, sessionID string) (*models.WaitlistEntry, error)
}

// LedgerService owns enrollments and the capacity invariant. All seat
// mutations for a session run under that session's lock, so the active count
// can never overshoot capacity and a freed seat goes to the waitlist head
// before any concurrent booking can see it.
type LedgerService struct {
	enrollments ledgerEnrollmentRepository
	sessions    sessionSeatReader
	waitlist    waitlistQueue
	identity    IdentityDirectory
	locks       *SessionLocks
	metrics     *MetricsService
	cache       *CacheService
	cfg         config.BookingConfig
	logger      *zap.Logger
}

// NewLedgerService constructs LedgerService.
func NewLedgerService(enrollments ledgerEnrollmentRepository, sessions sessionSeatReader, waitlist waitlistQueue, identity IdentityDirectory, locks *SessionLocks, metrics *MetricsService, cache *CacheService, cfg config.BookingConfig, logger *zap.Logger) *LedgerService {
	if locks == nil {
		locks = NewSessionLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		enrollments: enrollments,
		sessions:    sessions,
		waitlist:    waitlist,
		identity:    identity,
		locks:       locks,
		metrics:     metrics,
		cache:       cache,
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *LedgerService) loadSession(ctx context.Context, id string) (*models.ClassSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// ReserveSeat books the member into the session, or appends them to the
// waitlist when the session is full. Members book for themselves; staff may
// book on behalf of any member.
func (s *LedgerService) ReserveSeat(ctx context.Context, sessionID, memberID string, actor *models.JWTClaims) (*models.BookingResult, error) {
	if err := s.authorize(memberID, actor); err != nil {
		return nil, err
	}
	if _, err := s.identity.ResolveMember(ctx, memberID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve member")
	}

	release, err := s.locks.Acquire(ctx, sessionID, s.cfg.LockRetries, s.cfg.LockRetryWait)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLockTimeout()
		}
		return nil, err
	}
	defer release()

	// Session state is read under the lock. A capacity change or cancellation
	// committed while this booking waited is seen here, never a stale snapshot.
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Cancelled() {
		return nil, appErrors.Clone(appErrors.ErrSessionCancelled, "")
	}
	if !session.StartsAt.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session has already started")
	}

	enrolled, err := s.enrollments.ExistsActive(ctx, sessionID, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	queued, err := s.waitlist.IsQueued(ctx, sessionID, memberID)
	if err != nil {
		return nil, err
	}
	if enrolled || queued {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	}

	active, err := s.sessions.ActiveCount(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}

	if active < session.Capacity {
		enrollment := &models.Enrollment{SessionID: sessionID, MemberID: memberID}
		if err := s.enrollments.Create(ctx, enrollment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		if s.metrics != nil {
			s.metrics.RecordBooking(string(models.BookingOutcomeEnrolled))
		}
		s.cache.InvalidateAvailability(ctx)
		s.logger.Info("seat reserved",
			zap.String("session_id", sessionID),
			zap.String("member_id", memberID),
			zap.String("enrollment_id", enrollment.ID))
		return &models.BookingResult{Type: models.BookingOutcomeEnrolled, ID: enrollment.ID, Enrollment: enrollment}, nil
	}

	entry, err := s.waitlist.Enqueue(ctx, sessionID, memberID)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordBooking(string(models.BookingOutcomeWaitlisted))
	}
	s.logger.Info("member waitlisted",
		zap.String("session_id", sessionID),
		zap.String("member_id", memberID),
		zap.String("entry_id", entry.ID))
	return &models.BookingResult{Type: models.BookingOutcomeWaitlisted, ID: entry.ID, Waitlist: entry}, nil
}

// CancelEnrollment frees the seat and, inside the same critical section,
// promotes the waitlist head into it. Cancelling an enrollment that no longer
// holds a seat reports not found. No promotion runs on cancelled sessions.
func (s *LedgerService) CancelEnrollment(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.CancelResult, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.authorize(enrollment.MemberID, actor); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, enrollment.SessionID, s.cfg.LockRetries, s.cfg.LockRetryWait)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLockTimeout()
		}
		return nil, err
	}
	defer release()

	// Loaded under the lock so a concurrent session cancellation cannot slip
	// past the promotion guard below.
	session, err := s.loadSession(ctx, enrollment.SessionID)
	if err != nil {
		return nil, err
	}

	freed, err := s.enrollments.Cancel(ctx, enrollmentID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	if !freed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment no longer holds a seat")
	}
	s.cache.InvalidateAvailability(ctx)

	result := &models.CancelResult{Freed: true}
	if session.Cancelled() {
		return result, nil
	}

	promoted, err := s.waitlist.PromoteNext(ctx, enrollment.SessionID)
	if err != nil {
		return nil, err
	}
	if promoted != nil {
		seat := &models.Enrollment{SessionID: promoted.SessionID, MemberID: promoted.MemberID}
		if err := s.enrollments.Create(ctx, seat); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seat promoted member")
		}
		result.PromotedMemberID = &promoted.MemberID
	}
	return result, nil
}

// GetEnrollment loads a single enrollment, visible to its member and staff.
func (s *LedgerService) GetEnrollment(ctx context.Context, id string, actor *models.JWTClaims) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.authorize(enrollment.MemberID, actor); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ListForMember returns the member's enrollments, newest first.
func (s *LedgerService) ListForMember(ctx context.Context, memberID string) ([]models.Enrollment, error) {
	enrollments, err := s.enrollments.ListByMember(ctx, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

func (s *LedgerService) authorize(memberID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if actor.UserID == memberID || actor.Role.Staff() {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "cannot act on another member's enrollment")
}
