package discovery_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/connections"
	"github.com/locolive/proconnect/internal/discovery"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/graph"
)

func users(ids ...domain.UserID) []domain.UserRef {
	out := make([]domain.UserRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.UserRef{ID: id, DisplayName: "user " + id.String()})
	}
	return out
}

func ids(refs []domain.UserRef) []domain.UserID {
	out := make([]domain.UserID, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ID)
	}
	return out
}

func TestSuggestionsExcludeSelfAndRelated(t *testing.T) {
	repo := graph.NewRepository()
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 1, Sender: domain.UserRef{ID: 1}, Receiver: domain.UserRef{ID: 2}, Status: domain.RequestStatusPending}))
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 2, Sender: domain.UserRef{ID: 3}, Receiver: domain.UserRef{ID: 1}, Status: domain.RequestStatusPending}))
	require.NoError(t, repo.UpsertConnection(domain.Connection{ID: 3, UserA: domain.UserRef{ID: 4}, UserB: domain.UserRef{ID: 1}}))
	require.NoError(t, repo.UpsertRequest(domain.ConnectionRequest{ID: 4, Sender: domain.UserRef{ID: 1}, Receiver: domain.UserRef{ID: 5}, Status: domain.RequestStatusDeclined}))

	all := users(7, 1, 2, 3, 4, 5, 6)
	got := slices.Collect(discovery.Suggestions(all, 1, repo))
	assert.Equal(t, []domain.UserID{7, 5, 6}, ids(got), "insertion order, only unrelated users")

	for _, u := range got {
		assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(1, u.ID))
	}
}

func TestSuggestionsAreRestartableAndLazy(t *testing.T) {
	repo := graph.NewRepository()
	seq := discovery.Suggestions(users(2, 3, 4, 5), 1, repo)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	assert.Equal(t, []domain.UserID{2, 3}, ids(discovery.Top(seq, 2)))
	assert.Empty(t, discovery.Top(seq, 0))

	// each pass observes the repository at iteration time
	require.NoError(t, repo.UpsertConnection(domain.Connection{ID: 1, UserA: domain.UserRef{ID: 1}, UserB: domain.UserRef{ID: 3}}))
	assert.Equal(t, []domain.UserID{2, 4, 5}, ids(slices.Collect(seq)))
}

func TestSendThenDeclineRoundTrip(t *testing.T) {
	repo := graph.NewRepository()
	all := users(1, 2, 3)
	api := &stubAPI{}

	viewer := connections.NewService(domain.UserRef{ID: 1}, api, repo, zap.NewNop())
	other := connections.NewService(domain.UserRef{ID: 3}, api, repo, zap.NewNop())

	assert.Contains(t, ids(slices.Collect(discovery.Suggestions(all, 1, repo))), domain.UserID(3))

	req, err := viewer.SendRequest(context.Background(), domain.UserRef{ID: 3}, "")
	require.NoError(t, err)
	assert.NotContains(t, ids(slices.Collect(discovery.Suggestions(all, 1, repo))), domain.UserID(3))
	assert.NotContains(t, ids(slices.Collect(discovery.Suggestions(all, 3, repo))), domain.UserID(1))

	_, err = other.Respond(context.Background(), req.ID, domain.ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNone, repo.RelationshipStatus(1, 3))
	assert.Contains(t, ids(slices.Collect(discovery.Suggestions(all, 1, repo))), domain.UserID(3))
}

func TestFilterDismissAndCache(t *testing.T) {
	repo := &countingRepo{Repository: graph.NewRepository()}
	f := discovery.NewFilter(1, repo)
	f.SetUsers(users(2, 3, 4))

	assert.Equal(t, []domain.UserID{2, 3, 4}, ids(f.List()))
	lookups := repo.lookups
	assert.Equal(t, []domain.UserID{2, 3, 4}, ids(f.List()))
	assert.Equal(t, lookups, repo.lookups, "unchanged repository serves the cached list")

	f.Dismiss(3)
	assert.Equal(t, []domain.UserID{2, 4}, ids(f.List()))
	assert.Equal(t, []domain.UserID{3}, f.Dismissed())

	require.NoError(t, repo.UpsertConnection(domain.Connection{ID: 1, UserA: domain.UserRef{ID: 1}, UserB: domain.UserRef{ID: 4}, ConnectedAt: time.Now()}))
	assert.Equal(t, []domain.UserID{2}, ids(f.List()), "repository change invalidates the cache")

	f.Undismiss(3)
	assert.Equal(t, []domain.UserID{2, 3}, ids(f.List()))
	assert.Equal(t, []domain.UserID{2, 3}, ids(slices.Collect(f.Seq())))
}

type countingRepo struct {
	*graph.Repository
	lookups int
}

func (r *countingRepo) RelationshipStatus(viewer, other domain.UserID) domain.RelationshipStatus {
	r.lookups++
	return r.Repository.RelationshipStatus(viewer, other)
}

type stubAPI struct {
	next domain.ID
}

func (s *stubAPI) SendRequest(_ context.Context, p domain.SendRequestParams) (*domain.ConnectionRequest, error) {
	s.next++
	return &domain.ConnectionRequest{ID: s.next, Sender: domain.UserRef{ID: 1}, Receiver: domain.UserRef{ID: p.ReceiverID}, Status: domain.RequestStatusPending}, nil
}

func (s *stubAPI) RespondRequest(_ context.Context, id domain.ID, action domain.RespondAction) (*domain.ConnectionRequest, error) {
	status := domain.RequestStatusDeclined
	if action == domain.ActionAccept {
		status = domain.RequestStatusAccepted
	}
	return &domain.ConnectionRequest{ID: id, Sender: domain.UserRef{ID: 1}, Receiver: domain.UserRef{ID: 3}, Status: status}, nil
}

func (s *stubAPI) WithdrawRequest(context.Context, domain.ID) error  { return nil }
func (s *stubAPI) RemoveConnection(context.Context, domain.ID) error { return nil }
func (s *stubAPI) Unfollow(context.Context, domain.UserID) error     { return nil }

func (s *stubAPI) Follow(context.Context, domain.UserID) (*domain.Follow, error) {
	return &domain.Follow{}, nil
}

func (s *stubAPI) ListRequests(context.Context, int) (*domain.Page[domain.ConnectionRequest], error) {
	return &domain.Page[domain.ConnectionRequest]{}, nil
}

func (s *stubAPI) ListConnections(context.Context, int) (*domain.Page[domain.Connection], error) {
	return &domain.Page[domain.Connection]{}, nil
}

func (s *stubAPI) ListFollowing(context.Context, int) (*domain.Page[domain.Follow], error) {
	return &domain.Page[domain.Follow]{}, nil
}

func (s *stubAPI) ListFollowers(context.Context, int) (*domain.Page[domain.Follow], error) {
	return &domain.Page[domain.Follow]{}, nil
}
