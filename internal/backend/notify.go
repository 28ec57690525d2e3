package backend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/metrics"
	"github.com/locolive/proconnect/pkg/validator"
)

// dedupWindow suppresses repeats of the same notification from the same sender
const dedupWindow = 5 * time.Minute

const (
	maxTitleLen   = 200
	maxMessageLen = 500
)

// notify records a notification unless an equivalent one was sent within dedupWindow.
// Failures are logged and never fail the operation that triggered them.
func (s *Service) notify(ctx context.Context, n *domain.Notification) {
	n.Title = validator.SanitizeString(n.Title, maxTitleLen)
	n.Message = validator.SanitizeString(n.Message, maxMessageLen)
	n.CreatedAt = s.now()

	dup, err := s.store.RecentNotification(ctx, n, n.CreatedAt.Add(-dedupWindow))
	if err != nil {
		s.logger.Warn("notification dedup check failed", zap.Error(err))
		return
	}
	if dup {
		s.logger.Debug("suppressed duplicate notification",
			zap.Stringer("recipient", n.Recipient),
			zap.String("kind", string(n.Kind)),
		)
		return
	}

	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.logger.Warn("failed to create notification", zap.Error(err))
		return
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Kind)).Inc()
}

func (s *Service) Notifications(ctx context.Context, viewer domain.UserID) ([]domain.Notification, error) {
	return s.store.ListNotifications(ctx, viewer)
}

func (s *Service) UnreadCount(ctx context.Context, viewer domain.UserID) (int, error) {
	list, err := s.store.ListNotifications(ctx, viewer)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	count := 0
	for _, n := range list {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

// MarkRead is idempotent. Notifications of other users look missing.
func (s *Service) MarkRead(ctx context.Context, viewer domain.UserID, id domain.ID) error {
	if err := s.store.MarkNotificationRead(ctx, viewer, id, s.now()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, viewer domain.UserID) (int, error) {
	count, err := s.store.MarkAllNotificationsRead(ctx, viewer, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return count, nil
}

// CleanupNotifications deletes read notifications older than retention
func (s *Service) CleanupNotifications(ctx context.Context, retention time.Duration) (int, error) {
	return s.store.DeleteReadNotifications(ctx, s.now().Add(-retention))
}

// StartCleanupWorker runs CleanupNotifications every interval until ctx is done
func (s *Service) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.CleanupNotifications(ctx, retention)
				if err != nil {
					s.logger.Warn("notification cleanup failed", zap.Error(err))
					continue
				}
				if n > 0 {
					s.logger.Info("cleaned up read notifications", zap.Int("deleted", n))
				}
			}
		}
	}()
}
