package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/config"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/jobs"
)

// SessionCancelledEvent is the payload published when staff cancel a session.
// The notification collaborator subscribes to the channel and owns delivery.
type SessionCancelledEvent struct {
	SessionID   string    `json:"session_id"`
	LocationID  string    `json:"location_id"`
	ModalityID  string    `json:"modality_id"`
	StartsAt    time.Time `json:"starts_at"`
	CancelledBy string    `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type eventPublisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// SessionEventSink receives domain events emitted by the catalog.
type SessionEventSink interface {
	SessionCancelled(event SessionCancelledEvent) error
}

// NotificationService dispatches cancellation events to the pub/sub channel
// through a background queue, keeping the cancel path fast.
type NotificationService struct {
	queue     *jobs.Queue
	publisher eventPublisher
	channel   string
	logger    *zap.Logger
	enabled   bool
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(publisher eventPublisher, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		publisher: publisher,
		channel:   cfg.Channel,
		logger:    logger,
		enabled:   cfg.Enabled && publisher != nil,
	}
	s.queue = jobs.NewQueue("notifications", s.dispatch, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start begins background dispatching.
func (s *NotificationService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the dispatcher.
func (s *NotificationService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// SessionCancelled enqueues a cancellation event for publication.
func (s *NotificationService) SessionCancelled(event SessionCancelledEvent) error {
	if !s.enabled {
		return nil
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "session.cancelled",
		Payload: event,
	})
}

func (s *NotificationService) dispatch(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(SessionCancelledEvent)
	if !ok {
		s.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	return s.publisher.Publish(ctx, s.channel, event)
}
