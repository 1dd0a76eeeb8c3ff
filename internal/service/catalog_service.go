package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/config"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSession, int, error)
	ListAvailable(ctx context.Context, filter models.SessionFilter) ([]models.AvailableSession, error)
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	ActiveCount(ctx context.Context, sessionID string) (int, error)
	FindInstructorOverlap(ctx context.Context, instructorID string, from, to time.Time, excludeID string) ([]models.ClassSession, error)
	Create(ctx context.Context, session *models.ClassSession) error
	UpdateKind(ctx context.Context, id string, kind models.SessionKind) error
	UpdateCapacity(ctx context.Context, id string, capacity int) error
	Reschedule(ctx context.Context, id string, startsAt time.Time, durationMin int) error
	Delete(ctx context.Context, id string) error
}

type rosterReader interface {
	Roster(ctx context.Context, sessionID string) ([]models.RosterRow, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateSessionRequest describes the staff payload for publishing a session.
type CreateSessionRequest struct {
	StartsAt     time.Time `json:"starts_at" validate:"required"`
	DurationMin  int       `json:"duration_min" validate:"required,min=1"`
	LocationID   string    `json:"location_id" validate:"required"`
	ModalityID   string    `json:"modality_id" validate:"required"`
	InstructorID string    `json:"instructor_id" validate:"required"`
	SubstituteID *string   `json:"substitute_id,omitempty"`
	Capacity     int       `json:"capacity" validate:"required,min=1"`
	Kind         string    `json:"kind,omitempty"`
}

// RescheduleSessionRequest moves an existing session.
type RescheduleSessionRequest struct {
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	DurationMin int       `json:"duration_min" validate:"required,min=1"`
}

// CapacityRequest changes the seat count of a session.
type CapacityRequest struct {
	Capacity int `json:"capacity" validate:"required,min=1"`
}

// CatalogService owns class session records: publication, listing, staff
// mutations, and the cancellation event interface point.
type CatalogService struct {
	sessions    sessionRepository
	enrollments rosterReader
	audit       auditWriter
	directory   StudioDirectory
	identity    IdentityDirectory
	events      SessionEventSink
	locks       *SessionLocks
	cache       *CacheService
	maxWindow   time.Duration
	booking     config.BookingConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCatalogService constructs CatalogService. It shares locks with the
// booking ledger so capacity changes and cancellations serialize with seat
// reservations on the same session.
func NewCatalogService(sessions sessionRepository, enrollments rosterReader, audit auditWriter, directory StudioDirectory, identity IdentityDirectory, events SessionEventSink, locks *SessionLocks, cache *CacheService, cfg config.CatalogConfig, booking config.BookingConfig, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if locks == nil {
		locks = NewSessionLocks()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxWindow := cfg.MaxListWindow
	if maxWindow <= 0 {
		maxWindow = 7 * 24 * time.Hour
	}
	return &CatalogService{
		sessions:    sessions,
		enrollments: enrollments,
		audit:       audit,
		directory:   directory,
		identity:    identity,
		events:      events,
		locks:       locks,
		cache:       cache,
		maxWindow:   maxWindow,
		booking:     booking,
		validator:   validate,
		logger:      logger,
	}
}

func (s *CatalogService) boundWindow(filter models.SessionFilter) (models.SessionFilter, error) {
	if filter.From.IsZero() || filter.To.IsZero() {
		return filter, appErrors.Clone(appErrors.ErrValidation, "date range is required")
	}
	if !filter.To.After(filter.From) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "date range end must come after start")
	}
	if filter.To.Sub(filter.From) > s.maxWindow {
		return filter, appErrors.Clone(appErrors.ErrValidation, "date range exceeds the maximum listing window")
	}
	return filter, nil
}

// List returns sessions in the bounded window ordered by start time.
func (s *CatalogService) List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSession, *models.Pagination, error) {
	filter, err := s.boundWindow(filter)
	if err != nil {
		return nil, nil, err
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return sessions, pagination, nil
}

// ListAvailable returns bookable sessions with seatsRemaining, cached briefly.
func (s *CatalogService) ListAvailable(ctx context.Context, filter models.SessionFilter) ([]models.AvailableSession, error) {
	filter, err := s.boundWindow(filter)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if filter.From.Before(now) {
		filter.From = now
	}

	key := AvailabilityKey(filter.From, filter.To, filter.LocationID, filter.ModalityID)
	var cached []models.AvailableSession
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	sessions, err := s.sessions.ListAvailable(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available sessions")
	}
	s.cache.Set(ctx, key, sessions)
	return sessions, nil
}

// Get loads a single session.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.ClassSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// Create publishes a new session after validating the instructor is free.
func (s *CatalogService) Create(ctx context.Context, req CreateSessionRequest, actor *models.JWTClaims) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	kind := models.SessionKind(req.Kind)
	if req.Kind == "" {
		kind = models.SessionKindRegular
	}
	if !kind.Valid() || kind == models.SessionKindCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session kind")
	}
	if !req.StartsAt.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session start must be in the future")
	}

	if ok, err := s.directory.LocationExists(ctx, req.LocationID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check location")
	} else if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown location")
	}
	if ok, err := s.directory.ModalityExists(ctx, req.ModalityID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check modality")
	} else if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown modality")
	}
	if _, err := s.identity.ResolveInstructor(ctx, req.InstructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown instructor")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve instructor")
	}

	endsAt := req.StartsAt.Add(time.Duration(req.DurationMin) * time.Minute)
	overlaps, err := s.sessions.FindInstructorOverlap(ctx, req.InstructorID, req.StartsAt, endsAt, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor availability")
	}
	if len(overlaps) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "instructor already has an overlapping session")
	}

	session := &models.ClassSession{
		StartsAt:     req.StartsAt,
		DurationMin:  req.DurationMin,
		LocationID:   req.LocationID,
		ModalityID:   req.ModalityID,
		InstructorID: req.InstructorID,
		SubstituteID: req.SubstituteID,
		Capacity:     req.Capacity,
		Kind:         kind,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.writeAudit(ctx, actor, models.AuditActionSessionCreate, session.ID, session)
	s.cache.InvalidateAvailability(ctx)
	return session, nil
}

// Cancel marks a session cancelled, keeping enrollments as historical records
// and blocking all further booking and waitlist operations against it.
func (s *CatalogService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.ClassSession, error) {
	// Runs under the session lock so the kind flip cannot interleave with a
	// seat reservation in flight.
	release, err := s.locks.Acquire(ctx, id, s.booking.LockRetries, s.booking.LockRetryWait)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Cancelled() {
		return nil, appErrors.Clone(appErrors.ErrSessionCancelled, "session already cancelled")
	}

	if err := s.sessions.UpdateKind(ctx, id, models.SessionKindCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	session.Kind = models.SessionKindCancelled

	s.writeAudit(ctx, actor, models.AuditActionSessionCancel, id, nil)
	s.cache.InvalidateAvailability(ctx)

	if s.events != nil {
		event := SessionCancelledEvent{
			SessionID:   session.ID,
			LocationID:  session.LocationID,
			ModalityID:  session.ModalityID,
			StartsAt:    session.StartsAt,
			CancelledAt: time.Now().UTC(),
		}
		if actor != nil {
			event.CancelledBy = actor.UserID
		}
		if err := s.events.SessionCancelled(event); err != nil {
			s.logger.Warn("failed to emit cancellation event", zap.String("session_id", id), zap.Error(err))
		}
	}
	return session, nil
}

// SetCapacity changes the seat count. Reductions below the active enrollment
// count are allowed and never evict; the session just refuses new bookings.
func (s *CatalogService) SetCapacity(ctx context.Context, id string, req CapacityRequest, actor *models.JWTClaims) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid capacity payload")
	}

	// Same lock as seat reservations, so a booking admitted concurrently is
	// counted against the new capacity, not a stale one.
	release, err := s.locks.Acquire(ctx, id, s.booking.LockRetries, s.booking.LockRetryWait)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Cancelled() {
		return nil, appErrors.Clone(appErrors.ErrSessionCancelled, "")
	}

	if err := s.sessions.UpdateCapacity(ctx, id, req.Capacity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update capacity")
	}
	session.Capacity = req.Capacity

	s.writeAudit(ctx, actor, models.AuditActionSessionCapacity, id, req)
	s.cache.InvalidateAvailability(ctx)
	return session, nil
}

// Reschedule moves a session, re-validating the instructor window.
func (s *CatalogService) Reschedule(ctx context.Context, id string, req RescheduleSessionRequest, actor *models.JWTClaims) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Cancelled() {
		return nil, appErrors.Clone(appErrors.ErrSessionCancelled, "")
	}
	if !req.StartsAt.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session start must be in the future")
	}

	endsAt := req.StartsAt.Add(time.Duration(req.DurationMin) * time.Minute)
	overlaps, err := s.sessions.FindInstructorOverlap(ctx, session.InstructorID, req.StartsAt, endsAt, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor availability")
	}
	if len(overlaps) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "instructor already has an overlapping session")
	}

	if err := s.sessions.Reschedule(ctx, id, req.StartsAt, req.DurationMin); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule session")
	}
	session.StartsAt = req.StartsAt
	session.DurationMin = req.DurationMin

	s.writeAudit(ctx, actor, models.AuditActionSessionReschedule, id, req)
	s.cache.InvalidateAvailability(ctx)
	return session, nil
}

// Delete removes a session. Rejected while active enrollments reference it.
func (s *CatalogService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.sessions.ActiveCount(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "session has active enrollments")
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.writeAudit(ctx, actor, models.AuditActionSessionDelete, id, nil)
	s.cache.InvalidateAvailability(ctx)
	return nil
}

// Roster lists every enrollment for the session joined with member identity.
func (s *CatalogService) Roster(ctx context.Context, id string) (*models.ClassSession, []models.RosterRow, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.enrollments.Roster(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return session, rows, nil
}

func (s *CatalogService) writeAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{Action: action, Resource: "class_session", ResourceID: &resourceID}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
