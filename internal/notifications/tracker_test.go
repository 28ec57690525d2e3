package notifications_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/notifications"
)

type fakeAPI struct {
	list    []domain.Notification
	fail    error
	markOne atomic.Int32
	markAll atomic.Int32
}

func (f *fakeAPI) MarkNotificationRead(context.Context, domain.ID) error {
	f.markOne.Add(1)
	return f.fail
}

func (f *fakeAPI) MarkAllNotificationsRead(context.Context) error {
	f.markAll.Add(1)
	return f.fail
}

func (f *fakeAPI) ListNotifications(_ context.Context, page int) (*domain.Page[domain.Notification], error) {
	return &domain.Page[domain.Notification]{Count: len(f.list), Results: f.list}, f.fail
}

func threeUnread() []domain.Notification {
	now := time.Now()
	return []domain.Notification{
		{ID: 1, Recipient: 1, Kind: domain.NotificationLike, CreatedAt: now.Add(-2 * time.Minute)},
		{ID: 2, Recipient: 1, Kind: domain.NotificationComment, CreatedAt: now.Add(-time.Minute)},
		{ID: 3, Recipient: 1, Kind: domain.NotificationConnectionRequest, CreatedAt: now},
	}
}

func TestMarkReadScenario(t *testing.T) {
	api := &fakeAPI{}
	tr := notifications.NewTracker(api, zap.NewNop())
	tr.Merge(threeUnread())
	require.Equal(t, 3, tr.UnreadCount())

	require.NoError(t, tr.MarkRead(context.Background(), 2))
	assert.Equal(t, 2, tr.UnreadCount())

	require.NoError(t, tr.MarkAllRead(context.Background()))
	assert.Equal(t, 0, tr.UnreadCount())

	require.NoError(t, tr.MarkAllRead(context.Background()))
	assert.Equal(t, 0, tr.UnreadCount(), "mark all read is idempotent")
	assert.Equal(t, int32(2), api.markAll.Load())
}

func TestMarkReadAlreadyReadIsNoop(t *testing.T) {
	api := &fakeAPI{}
	tr := notifications.NewTracker(api, zap.NewNop())
	tr.Merge(threeUnread())

	require.NoError(t, tr.MarkRead(context.Background(), 1))
	require.NoError(t, tr.MarkRead(context.Background(), 1))
	assert.Equal(t, int32(1), api.markOne.Load())

	require.ErrorIs(t, tr.MarkRead(context.Background(), 42), domain.ErrNotFound)
}

func TestFailedMarkReadKeepsLocalFlip(t *testing.T) {
	api := &fakeAPI{fail: fmt.Errorf("%w: offline", domain.ErrNetwork)}
	tr := notifications.NewTracker(api, zap.NewNop())
	tr.Merge(threeUnread())

	require.ErrorIs(t, tr.MarkRead(context.Background(), 3), domain.ErrNetwork)
	assert.Equal(t, 2, tr.UnreadCount())

	require.ErrorIs(t, tr.MarkAllRead(context.Background()), domain.ErrNetwork)
	assert.Equal(t, 0, tr.UnreadCount())
}

func TestMergeKeepsReadMonotonic(t *testing.T) {
	tr := notifications.NewTracker(&fakeAPI{}, zap.NewNop())
	tr.Merge(threeUnread())
	require.NoError(t, tr.MarkRead(context.Background(), 1))

	// stale server page still reports 1 as unread
	tr.Merge(threeUnread())
	assert.Equal(t, 2, tr.UnreadCount())

	all := tr.All()
	require.Len(t, all, 3)
	assert.Equal(t, domain.ID(3), all[0].ID, "newest first")
	assert.True(t, all[2].IsRead)
	assert.NotNil(t, all[2].ReadAt)

	unread := tr.Unread()
	assert.Len(t, unread, 2)
}

func TestConcurrentMarkReadAndMarkAll(t *testing.T) {
	api := &fakeAPI{}
	tr := notifications.NewTracker(api, zap.NewNop())
	var list []domain.Notification
	for i := 1; i <= 50; i++ {
		list = append(list, domain.Notification{ID: domain.ID(i), CreatedAt: time.Now()})
	}
	tr.Merge(list)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id domain.ID) {
			defer wg.Done()
			_ = tr.MarkRead(context.Background(), id)
		}(domain.ID(i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = tr.MarkAllRead(context.Background())
	}()
	wg.Wait()

	assert.Equal(t, 0, tr.UnreadCount())
}

func TestLoad(t *testing.T) {
	api := &fakeAPI{list: threeUnread()}
	tr := notifications.NewTracker(api, zap.NewNop())
	require.NoError(t, tr.Load(context.Background()))
	assert.Equal(t, 3, tr.UnreadCount())

	api.fail = fmt.Errorf("%w: offline", domain.ErrNetwork)
	require.ErrorIs(t, tr.Load(context.Background()), domain.ErrNetwork)
}
