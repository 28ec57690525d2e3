package connections_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/connections"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/graph"
)

var (
	user1 = domain.UserRef{ID: 1, DisplayName: "Ada"}
	user2 = domain.UserRef{ID: 2, DisplayName: "Grace"}
	user3 = domain.UserRef{ID: 3, DisplayName: "Linus"}
)

// fakeAPI answers like the backend would, unless fail is set
type fakeAPI struct {
	mu     sync.Mutex
	nextID domain.ID
	fail   error
	calls  []string

	requests    []domain.ConnectionRequest
	connections []domain.Connection
	follows     []domain.Follow
	followers   []domain.Follow
}

func (f *fakeAPI) record(call string) (domain.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.nextID++
	return f.nextID + 100, f.fail
}

func (f *fakeAPI) SendRequest(_ context.Context, p domain.SendRequestParams) (*domain.ConnectionRequest, error) {
	id, err := f.record("send")
	if err != nil {
		return nil, err
	}
	return &domain.ConnectionRequest{
		ID: id, Sender: user1, Receiver: domain.UserRef{ID: p.ReceiverID},
		Message: p.Message, Status: domain.RequestStatusPending, CreatedAt: time.Now(),
	}, nil
}

func (f *fakeAPI) RespondRequest(_ context.Context, id domain.ID, action domain.RespondAction) (*domain.ConnectionRequest, error) {
	connID, err := f.record("respond")
	if err != nil {
		return nil, err
	}
	req := &domain.ConnectionRequest{ID: id, Sender: user1, Receiver: user2, Status: domain.RequestStatusDeclined}
	if action == domain.ActionAccept {
		req.Status = domain.RequestStatusAccepted
		req.Connection = &domain.Connection{ID: connID, UserA: user1, UserB: user2, RequestID: id, ConnectedAt: time.Now()}
	}
	return req, nil
}

func (f *fakeAPI) WithdrawRequest(context.Context, domain.ID) error {
	_, err := f.record("withdraw")
	return err
}

func (f *fakeAPI) RemoveConnection(context.Context, domain.ID) error {
	_, err := f.record("remove_connection")
	return err
}

func (f *fakeAPI) Follow(_ context.Context, userID domain.UserID) (*domain.Follow, error) {
	id, err := f.record("follow")
	if err != nil {
		return nil, err
	}
	return &domain.Follow{ID: id, Follower: user1, Following: domain.UserRef{ID: userID}}, nil
}

func (f *fakeAPI) Unfollow(context.Context, domain.UserID) error {
	_, err := f.record("unfollow")
	return err
}

func (f *fakeAPI) ListRequests(_ context.Context, page int) (*domain.Page[domain.ConnectionRequest], error) {
	return &domain.Page[domain.ConnectionRequest]{Count: len(f.requests), Results: f.requests}, f.fail
}

func (f *fakeAPI) ListConnections(_ context.Context, page int) (*domain.Page[domain.Connection], error) {
	return &domain.Page[domain.Connection]{Count: len(f.connections), Results: f.connections}, f.fail
}

func (f *fakeAPI) ListFollowing(_ context.Context, page int) (*domain.Page[domain.Follow], error) {
	return &domain.Page[domain.Follow]{Count: len(f.follows), Results: f.follows}, f.fail
}

func (f *fakeAPI) ListFollowers(_ context.Context, page int) (*domain.Page[domain.Follow], error) {
	return &domain.Page[domain.Follow]{Count: len(f.followers), Results: f.followers}, f.fail
}

func newService(t *testing.T, viewer domain.UserRef) (*connections.Service, *fakeAPI, *graph.Repository) {
	t.Helper()
	api := &fakeAPI{}
	repo := graph.NewRepository()
	return connections.NewService(viewer, api, repo, zap.NewNop()), api, repo
}

func TestSendRequestScenario(t *testing.T) {
	svc, _, repo := newService(t, user1)

	req, err := svc.SendRequest(context.Background(), user2, "hi")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.False(t, req.ID.Provisional())

	assert.Equal(t, domain.StatusPendingSent, repo.RelationshipStatus(1, 2))
	assert.Equal(t, domain.StatusPendingReceived, repo.RelationshipStatus(2, 1))

	out := repo.PendingOutgoing(1)
	require.Len(t, out, 1)
	assert.Equal(t, req.ID, out[0].ID, "provisional request replaced by the server's")
}

func TestSendRequestToSelf(t *testing.T) {
	svc, api, _ := newService(t, user1)
	_, err := svc.SendRequest(context.Background(), user1, "")
	require.ErrorIs(t, err, domain.ErrSelfRequest)
	assert.Empty(t, api.calls)
}

func TestSendRequestWhenAlreadyRelatedLeavesRepositoryUnchanged(t *testing.T) {
	for _, status := range []domain.RelationshipStatus{domain.StatusPendingSent, domain.StatusPendingReceived, domain.StatusConnected} {
		t.Run(string(status), func(t *testing.T) {
			svc, api, repo := newService(t, user1)
			switch status {
			case domain.StatusPendingSent:
				require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 9, Sender: user1, Receiver: user2, Status: domain.RequestStatusPending}))
			case domain.StatusPendingReceived:
				require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 9, Sender: user2, Receiver: user1, Status: domain.RequestStatusPending}))
			case domain.StatusConnected:
				require.NoError(t, repo.UpsertConnection(domain.Connection{ID: 9, UserA: user2, UserB: user1}))
			}
			before := repo.Snapshot()
			version := repo.Version()

			_, err := svc.SendRequest(context.Background(), user2, "again")
			require.ErrorIs(t, err, domain.ErrAlreadyRelated)
			assert.Equal(t, before, repo.Snapshot())
			assert.Equal(t, version, repo.Version())
			assert.Empty(t, api.calls)
		})
	}
}

func TestSendRequestRollsBackOnNetworkFailure(t *testing.T) {
	svc, api, repo := newService(t, user1)
	api.fail = fmt.Errorf("%w: connection refused", domain.ErrNetwork)

	_, err := svc.SendRequest(context.Background(), user2, "hi")
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(1, 2))
	assert.Empty(t, repo.Requests(1))
}

func TestAcceptScenario(t *testing.T) {
	sender, _, repo := newService(t, user1)
	req, err := sender.SendRequest(context.Background(), user2, "hi")
	require.NoError(t, err)

	receiver := connections.NewService(user2, &fakeAPI{nextID: 50}, repo, zap.NewNop())
	accepted, err := receiver.Respond(context.Background(), req.ID, domain.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusAccepted, accepted.Status)

	assert.Equal(t, domain.StatusConnected, repo.RelationshipStatus(1, 2))
	conns := repo.Connections(1)
	require.Len(t, conns, 1, "exactly one connection for the pair")
	assert.False(t, conns[0].ID.Provisional())

	stored, ok := repo.Request(req.ID)
	require.True(t, ok, "accepted request is retained")
	assert.Equal(t, domain.RequestStatusAccepted, stored.Status)
	assert.Empty(t, repo.PendingIncoming(2))

	_, err = receiver.Respond(context.Background(), req.ID, domain.ActionAccept)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, repo.Connections(1), 1)
}

func TestConflictOnRespondOrWithdrawIsNotFound(t *testing.T) {
	svc, api, repo := newService(t, user2)
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 9, Sender: user1, Receiver: user2, Status: domain.RequestStatusPending}))
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 10, Sender: user2, Receiver: user3, Status: domain.RequestStatusPending}))
	before := repo.Snapshot()
	api.fail = fmt.Errorf("%w: status 409", domain.ErrAlreadyRelated)

	_, err := svc.Respond(context.Background(), 9, domain.ActionAccept)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorContains(t, err, "status 409")

	require.ErrorIs(t, svc.Withdraw(context.Background(), 10), domain.ErrNotFound)
	assert.Equal(t, before, repo.Snapshot())
}

func TestRespondRequiresReceiver(t *testing.T) {
	svc, api, repo := newService(t, user1)
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 9, Sender: user1, Receiver: user2, Status: domain.RequestStatusPending}))

	_, err := svc.Respond(context.Background(), 9, domain.ActionAccept)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, api.calls)

	_, err = svc.Respond(context.Background(), 9, "maybe")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRespondRollbackRestoresPendingRequest(t *testing.T) {
	svc, api, repo := newService(t, user2)
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 9, Sender: user1, Receiver: user2, Status: domain.RequestStatusPending}))
	before := repo.Snapshot()
	api.fail = fmt.Errorf("%w: timeout", domain.ErrNetwork)

	_, err := svc.Respond(context.Background(), 9, domain.ActionAccept)
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, before, repo.Snapshot())
	assert.Equal(t, domain.StatusPendingReceived, repo.RelationshipStatus(2, 1))
	assert.Empty(t, repo.Connections(2))
}

func TestDeclineCreatesNoConnection(t *testing.T) {
	svc, _, repo := newService(t, user2)
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 9, Sender: user1, Receiver: user2, Status: domain.RequestStatusPending}))

	req, err := svc.Respond(context.Background(), 9, domain.ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusDeclined, req.Status)
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(1, 2))
	assert.Empty(t, repo.Connections(2))
}

func TestWithdraw(t *testing.T) {
	svc, api, repo := newService(t, user1)
	req, err := svc.SendRequest(context.Background(), user3, "")
	require.NoError(t, err)

	other := connections.NewService(user3, api, repo, zap.NewNop())
	require.ErrorIs(t, other.Withdraw(context.Background(), req.ID), domain.ErrNotFound, "only the sender may withdraw")

	require.NoError(t, svc.Withdraw(context.Background(), req.ID))
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(1, 3))
	stored, _ := repo.Request(req.ID)
	assert.Equal(t, domain.RequestStatusWithdrawn, stored.Status)

	require.ErrorIs(t, svc.Withdraw(context.Background(), req.ID), domain.ErrNotFound)

	// terminal requests allow a new one
	_, err = svc.SendRequest(context.Background(), user3, "second try")
	require.NoError(t, err)
}

func TestWithdrawRollback(t *testing.T) {
	svc, api, repo := newService(t, user1)
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 9, Sender: user1, Receiver: user3, Status: domain.RequestStatusPending}))
	api.fail = fmt.Errorf("%w: 502", domain.ErrNetwork)

	require.ErrorIs(t, svc.Withdraw(context.Background(), 9), domain.ErrNetwork)
	assert.Equal(t, domain.StatusPendingSent, repo.RelationshipStatus(1, 3))
}

func TestRemoveConnection(t *testing.T) {
	svc, api, repo := newService(t, user1)
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 8, Sender: user2, Receiver: user1, Status: domain.RequestStatusAccepted}))
	require.NoError(t, repo.UpsertConnection(domain.Connection{ID: 9, UserA: user2, UserB: user1, RequestID: 8}))
	require.NoError(t, repo.UpsertConnection(domain.Connection{ID: 10, UserA: user2, UserB: user3}))

	require.ErrorIs(t, svc.RemoveConnection(context.Background(), 10), domain.ErrNotFound, "viewer is not a party")
	require.ErrorIs(t, svc.RemoveConnection(context.Background(), 77), domain.ErrNotFound)

	api.fail = fmt.Errorf("%w: reset", domain.ErrNetwork)
	require.ErrorIs(t, svc.RemoveConnection(context.Background(), 9), domain.ErrNetwork)
	assert.Equal(t, domain.StatusConnected, repo.RelationshipStatus(1, 2))

	api.fail = nil
	require.NoError(t, svc.RemoveConnection(context.Background(), 9))
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(1, 2))
	_, ok := repo.Request(8)
	assert.True(t, ok, "request history survives connection removal")
	assert.Empty(t, repo.PendingIncoming(1), "no request is resurrected")
}

func TestFollowAndUnfollow(t *testing.T) {
	svc, api, repo := newService(t, user1)

	_, err := svc.Follow(context.Background(), user1)
	require.ErrorIs(t, err, domain.ErrSelfRequest)

	f, err := svc.Follow(context.Background(), user2)
	require.NoError(t, err)
	assert.False(t, f.ID.Provisional())
	assert.True(t, repo.IsFollowing(1, 2))
	assert.Len(t, repo.Following(1), 1)

	_, err = svc.Follow(context.Background(), user2)
	require.ErrorIs(t, err, domain.ErrAlreadyRelated)

	api.fail = fmt.Errorf("%w: down", domain.ErrNetwork)
	require.ErrorIs(t, svc.Unfollow(context.Background(), 2), domain.ErrNetwork)
	assert.True(t, repo.IsFollowing(1, 2))

	api.fail = nil
	require.NoError(t, svc.Unfollow(context.Background(), 2))
	assert.False(t, repo.IsFollowing(1, 2))
	require.ErrorIs(t, svc.Unfollow(context.Background(), 2), domain.ErrNotFound)
}

func TestFollowRollback(t *testing.T) {
	svc, api, repo := newService(t, user1)
	api.fail = fmt.Errorf("%w: down", domain.ErrNetwork)

	_, err := svc.Follow(context.Background(), user3)
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.False(t, repo.IsFollowing(1, 3))
}

func TestClosedServiceDoesNotReconcile(t *testing.T) {
	svc, api, repo := newService(t, user1)
	svc.Close()
	api.fail = fmt.Errorf("%w: down", domain.ErrNetwork)

	_, err := svc.SendRequest(context.Background(), user2, "")
	require.Error(t, err)
	// the optimistic insert stays; nothing reconciles into a disposed session
	assert.Equal(t, domain.StatusPendingSent, repo.RelationshipStatus(1, 2))
}

func TestHydrate(t *testing.T) {
	svc, api, repo := newService(t, user1)
	api.requests = []domain.ConnectionRequest{
		{ID: 1, Sender: user2, Receiver: user1, Status: domain.RequestStatusPending},
		{ID: 2, Sender: user1, Receiver: user3, Status: domain.RequestStatusDeclined},
	}
	api.connections = []domain.Connection{{ID: 5, UserA: user1, UserB: domain.UserRef{ID: 4}}}
	api.follows = []domain.Follow{{ID: 6, Follower: user1, Following: user3}}
	api.followers = []domain.Follow{{ID: 7, Follower: user2, Following: user1}}

	require.NoError(t, svc.Hydrate(context.Background()))
	assert.Equal(t, domain.StatusPendingReceived, svc.Status(2))
	assert.Equal(t, domain.StatusNone, svc.Status(3))
	assert.Equal(t, domain.StatusConnected, svc.Status(4))
	assert.True(t, repo.IsFollowing(1, 3))
	assert.Equal(t, []domain.UserRef{user2}, repo.Followers(1))

	api.fail = fmt.Errorf("%w: down", domain.ErrNetwork)
	require.ErrorIs(t, svc.Hydrate(context.Background()), domain.ErrNetwork)
	assert.Equal(t, domain.StatusConnected, svc.Status(4), "failed hydrate keeps the previous graph")
}
