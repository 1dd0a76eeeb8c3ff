package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

type attendanceEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type sessionFinder interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
}

// attendanceTransitions is the closed transition table. Scheduled is the only
// state with outgoing edges; the three outcomes are terminal.
var attendanceTransitions = map[models.EnrollmentStatus][]models.EnrollmentStatus{
	models.EnrollmentStatusScheduled: {
		models.EnrollmentStatusPresent,
		models.EnrollmentStatusAbsentWithMakeup,
		models.EnrollmentStatusAbsentWithoutMakeup,
	},
}

func transitionAllowed(from, to models.EnrollmentStatus) bool {
	for _, allowed := range attendanceTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AttendanceService records attendance outcomes on enrollments.
type AttendanceService struct {
	enrollments attendanceEnrollmentRepository
	sessions    sessionFinder
	billing     BillingPlans
	audit       auditWriter
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(enrollments attendanceEnrollmentRepository, sessions sessionFinder, billing BillingPlans, audit auditWriter, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		enrollments: enrollments,
		sessions:    sessions,
		billing:     billing,
		audit:       audit,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Mark transitions an enrollment to an attendance outcome. Only staff may
// mark, never the member of record for the seat, and never before the
// session's start time. AbsentWithMakeup grants make-up eligibility, which is
// surfaced alongside the billing plan's credit answer but not enforced here.
func (s *AttendanceService) Mark(ctx context.Context, enrollmentID string, outcome models.EnrollmentStatus, actor *models.JWTClaims) (*models.AttendanceResult, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may mark attendance")
	}
	if !outcome.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance outcome")
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.UserID == enrollment.MemberID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "members cannot mark their own attendance")
	}
	if !transitionAllowed(enrollment.Status, outcome) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
	}

	session, err := s.sessions.FindByID(ctx, enrollment.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Cancelled() {
		return nil, appErrors.Clone(appErrors.ErrSessionCancelled, "")
	}
	if s.now().Before(session.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrTooEarly, "")
	}

	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, outcome); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	enrollment.Status = outcome

	s.writeAudit(ctx, actor, enrollmentID, outcome)

	result := &models.AttendanceResult{Enrollment: *enrollment}
	if outcome == models.EnrollmentStatusAbsentWithMakeup {
		result.MakeupEligible = true
		if s.billing != nil {
			credit, err := s.billing.HasMakeupCredit(ctx, enrollment.MemberID)
			if err != nil {
				s.logger.Warn("billing credit check failed", zap.String("member_id", enrollment.MemberID), zap.Error(err))
			} else {
				result.HasMakeupCredit = credit
			}
		}
	}
	return result, nil
}

func (s *AttendanceService) writeAudit(ctx context.Context, actor *models.JWTClaims, enrollmentID string, outcome models.EnrollmentStatus) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"outcome": string(outcome)})
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionAttendanceMark,
		Resource:   "enrollment",
		ResourceID: &enrollmentID,
		NewValues:  payload,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", models.AuditActionAttendanceMark), zap.Error(err))
	}
}
