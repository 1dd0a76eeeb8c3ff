package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

type seatLedger interface {
	ReserveSeat(ctx context.Context, sessionID, memberID string, actor *models.JWTClaims) (*models.BookingResult, error)
	CancelEnrollment(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.CancelResult, error)
}

type availabilityCatalog interface {
	ListAvailable(ctx context.Context, filter models.SessionFilter) ([]models.AvailableSession, error)
}

type waitlistManager interface {
	PositionOf(ctx context.Context, entryID string, actor *models.JWTClaims) (*models.WaitlistPosition, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.WaitlistEntry, error)
	ListForMember(ctx context.Context, memberID string) ([]models.WaitlistEntry, error)
	Withdraw(ctx context.Context, entryID string, actor *models.JWTClaims) error
}

type attendanceMarker interface {
	Mark(ctx context.Context, enrollmentID string, outcome models.EnrollmentStatus, actor *models.JWTClaims) (*models.AttendanceResult, error)
}

// BookRequest is the booking payload. MemberID defaults to the caller.
type BookRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	MemberID  string `json:"member_id,omitempty"`
}

// SchedulingService is the stateless composition layer over the catalog,
// ledger, waitlist, and attendance components. It resolves who the request is
// for before forwarding; all state lives in the components beneath it.
type SchedulingService struct {
	ledger     seatLedger
	catalog    availabilityCatalog
	waitlist   waitlistManager
	attendance attendanceMarker
	logger     *zap.Logger
}

// NewSchedulingService constructs SchedulingService.
func NewSchedulingService(ledger seatLedger, catalog availabilityCatalog, waitlist waitlistManager, attendance attendanceMarker, logger *zap.Logger) *SchedulingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{
		ledger:     ledger,
		catalog:    catalog,
		waitlist:   waitlist,
		attendance: attendance,
		logger:     logger,
	}
}

// Book reserves a seat or waitlists the member. Members book for themselves;
// staff may name any member.
func (s *SchedulingService) Book(ctx context.Context, req BookRequest, actor *models.JWTClaims) (*models.BookingResult, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	memberID := req.MemberID
	if memberID == "" {
		memberID = actor.UserID
	}
	if memberID != actor.UserID && !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot book for another member")
	}
	return s.ledger.ReserveSeat(ctx, req.SessionID, memberID, actor)
}

// Cancel frees a booked seat, promoting the waitlist head if one exists.
func (s *SchedulingService) Cancel(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.CancelResult, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	return s.ledger.CancelEnrollment(ctx, enrollmentID, actor)
}

// ListAvailable returns upcoming bookable sessions with remaining seats.
func (s *SchedulingService) ListAvailable(ctx context.Context, filter models.SessionFilter) ([]models.AvailableSession, error) {
	return s.catalog.ListAvailable(ctx, filter)
}

// ListWaitlisted returns a session's queue in promotion order. Staff only.
func (s *SchedulingService) ListWaitlisted(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.WaitlistEntry, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return s.waitlist.ListBySession(ctx, sessionID)
}

// MyWaitlist returns the caller's own queue entries.
func (s *SchedulingService) MyWaitlist(ctx context.Context, actor *models.JWTClaims) ([]models.WaitlistEntry, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	return s.waitlist.ListForMember(ctx, actor.UserID)
}

// MarkAttendance records an attendance outcome on an enrollment.
func (s *SchedulingService) MarkAttendance(ctx context.Context, enrollmentID string, outcome models.EnrollmentStatus, actor *models.JWTClaims) (*models.AttendanceResult, error) {
	return s.attendance.Mark(ctx, enrollmentID, outcome, actor)
}

// WaitlistPosition computes the 1-based rank of a queue entry.
func (s *SchedulingService) WaitlistPosition(ctx context.Context, entryID string, actor *models.JWTClaims) (*models.WaitlistPosition, error) {
	return s.waitlist.PositionOf(ctx, entryID, actor)
}

// Withdraw removes a queue entry without promoting anyone.
func (s *SchedulingService) Withdraw(ctx context.Context, entryID string, actor *models.JWTClaims) error {
	return s.waitlist.Withdraw(ctx, entryID, actor)
}
