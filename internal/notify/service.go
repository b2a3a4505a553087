package notify

import (
	"context"

	"go.uber.org/zap"

	"apsconnect/internal/apperr"
	"apsconnect/internal/metrics"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	Get(ctx context.Context, id string) (Notification, error)
	ListForUser(ctx context.Context, userID, role, branch string, semester, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// Service inserts notifications and hands their ids to the dispatch queue.
// Delivery is fire-and-forget: failures are logged and swallowed, never
// surfaced to the operation that triggered them.
type Service struct {
	store  Store
	queue  Queue
	logger *zap.Logger
}

// NewService creates a service. queue may be nil when realtime dispatch is
// disabled.
func NewService(store Store, queue Queue, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, queue: queue, logger: logger}
}

// Notify inserts a notification for the given target. It never returns an
// error; the primary operation's outcome must not depend on delivery.
func (s *Service) Notify(ctx context.Context, target Target, title, message string) {
	if target.UserID == "" && !target.Broadcast() {
		s.logger.Warn("notification dropped: empty target", zap.String("title", title))
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return
	}
	n, err := s.store.Insert(ctx, Notification{
		UserID:   target.UserID,
		Role:     target.Role,
		Branch:   target.Branch,
		Semester: target.Semester,
		Title:    title,
		Message:  message,
	})
	if err != nil {
		s.logger.Error("notification insert failed", zap.String("title", title), zap.Error(err))
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.NotificationsTotal.WithLabelValues("ok").Inc()

	if s.queue != nil {
		if err := s.queue.Publish(ctx, Message{Type: "notification", Body: []byte(n.ID)}); err != nil {
			s.logger.Warn("notification dispatch enqueue failed",
				zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
}

// NotifyUser is the single-recipient convenience used by other services.
func (s *Service) NotifyUser(ctx context.Context, userID, title, message string) {
	s.Notify(ctx, Target{UserID: userID}, title, message)
}

// List returns the notifications visible to a user.
func (s *Service) List(ctx context.Context, userID, role, branch string, semester, limit int) ([]Notification, error) {
	return s.store.ListForUser(ctx, userID, role, branch, semester, limit)
}

// MarkRead flags a notification read for its owner.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	if id == "" || userID == "" {
		return apperr.New(apperr.BadRequest, "id and user id required")
	}
	return s.store.MarkRead(ctx, id, userID)
}
