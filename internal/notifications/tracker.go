// Package notifications tracks which notifications the viewer has read.
//
// Marking read is a soft operation: the local flip happens first and stays even if the
// server call fails. The unread count is always computed from the held set.
package notifications

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/domain"
)

type Tracker struct {
	api    domain.NotificationsAPI
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	items map[domain.ID]domain.Notification
}

func NewTracker(api domain.NotificationsAPI, logger *zap.Logger) *Tracker {
	return &Tracker{
		api:    api,
		logger: logger,
		now:    time.Now,
		items:  make(map[domain.ID]domain.Notification),
	}
}

// Merge folds server notifications into the held set. A notification read locally stays
// read even if the server copy still says unread.
func (t *Tracker) Merge(list []domain.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, n := range list {
		if cur, ok := t.items[n.ID]; ok && cur.IsRead && !n.IsRead {
			n.IsRead = true
			n.ReadAt = cur.ReadAt
		}
		t.items[n.ID] = n
	}
}

// Load pulls every notification page from the server and merges it
func (t *Tracker) Load(ctx context.Context) error {
	list, err := domain.AllPages(ctx, t.api.ListNotifications)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}
	t.Merge(list)
	return nil
}

// MarkRead marks one notification read. Already read is a no-op and makes no network call.
func (t *Tracker) MarkRead(ctx context.Context, id domain.ID) error {
	t.mu.Lock()
	n, ok := t.items[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("mark read: notification %s: %w", id, domain.ErrNotFound)
	}
	if n.IsRead {
		t.mu.Unlock()
		return nil
	}
	readAt := t.now()
	n.IsRead = true
	n.ReadAt = &readAt
	t.items[id] = n
	t.mu.Unlock()

	if err := t.api.MarkNotificationRead(ctx, id); err != nil {
		t.logger.Warn("mark read failed, keeping local state", zap.Stringer("notification_id", id), zap.Error(err))
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkAllRead marks every held notification read and tells the server to do the same
func (t *Tracker) MarkAllRead(ctx context.Context) error {
	readAt := t.now()

	t.mu.Lock()
	for id, n := range t.items {
		if !n.IsRead {
			n.IsRead = true
			n.ReadAt = &readAt
			t.items[id] = n
		}
	}
	t.mu.Unlock()

	if err := t.api.MarkAllNotificationsRead(ctx); err != nil {
		t.logger.Warn("mark all read failed, keeping local state", zap.Error(err))
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// UnreadCount is the number of held notifications not yet read
func (t *Tracker) UnreadCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, n := range t.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Unread lists unread notifications, newest first
func (t *Tracker) Unread() []domain.Notification {
	return t.list(func(n domain.Notification) bool { return !n.IsRead })
}

// All lists every held notification, newest first
func (t *Tracker) All() []domain.Notification {
	return t.list(func(domain.Notification) bool { return true })
}

func (t *Tracker) list(keep func(domain.Notification) bool) []domain.Notification {
	t.mu.RLock()
	out := make([]domain.Notification, 0, len(t.items))
	for _, n := range t.items {
		if keep(n) {
			out = append(out, n)
		}
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out
}
